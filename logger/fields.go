package logger

import (
	"time"
)

// Standard field keys used across the container.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldInstance  = "instance"
	FieldRegistry  = "registry_id"
	FieldProxy     = "proxy_id"
	FieldOperation = "operation"
	FieldPhase     = "phase"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
	FieldCount     = "count"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	log.Debug("created", logger.Fields("instance", name, "early", true))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for an operation that failed on an instance.
func ErrorFields(instance, op string, err error) map[string]interface{} {
	return map[string]interface{}{
		FieldInstance:  instance,
		FieldOperation: op,
		FieldError:     err.Error(),
	}
}

// DurationFields creates fields for a timed operation.
func DurationFields(op string, d time.Duration) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldDuration:  d.Milliseconds(),
	}
}
