// Package logger provides structured logging backed by zerolog.
//
// Loggers carry the service name and are tagged per component; fields are
// passed as maps so call sites stay free of zerolog types:
//
//	log := logger.Get("registry")
//	log.Debug("instance created", logger.Fields(logger.FieldInstance, "repo"))
package logger
