// Package errors defines the error taxonomy of the container as coded
// AppError values. Codes are matched with errors.Is against the exported
// sentinels or with HasCode; suppressed failures ride along as related causes.
package errors
