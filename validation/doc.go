// Package validation validates configuration and instance definitions.
//
// Struct tag validation uses go-playground/validator and adds an "identity"
// tag for instance names:
//
//	type Definition struct {
//	    Name string `validate:"required,identity"`
//	}
//	err := validation.Validate(def)
//
// Programmatic checks collect field errors the same way:
//
//	v := validation.New()
//	v.Check(cfg.Endpoint != "", "telemetry.endpoint", "is required when tracing is enabled")
//	err := v.Validate()
//
// Both return *errors.AppError with code INVALID_INPUT and the field list in
// Details["fields"].
package validation
