package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// AppError is the unified error type of the container.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
	// Related holds failures suppressed while the error was being produced.
	Related []error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, " (cause: %v)", e.Cause)
	}
	if len(e.Related) > 0 {
		fmt.Fprintf(&b, " [%d related]", len(e.Related))
	}
	return b.String()
}

// Unwrap returns the cause followed by the related failures, so errors.Is and
// errors.As see all of them.
func (e *AppError) Unwrap() []error {
	out := make([]error, 0, len(e.Related)+1)
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return append(out, e.Related...)
}

// Is matches another AppError by code, so the sentinel values below work with errors.Is.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Message == ""
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// AddRelated attaches suppressed failures and returns the receiver.
func (e *AppError) AddRelated(errs ...error) *AppError {
	for _, err := range errs {
		if err != nil {
			e.Related = append(e.Related, err)
		}
	}
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// Sentinels for errors.Is matching by code.
var (
	ErrIdentityAlreadyBound           = &AppError{Code: ErrCodeIdentityAlreadyBound}
	ErrCurrentlyInCreation            = &AppError{Code: ErrCodeCurrentlyInCreation}
	ErrCreationNotAllowed             = &AppError{Code: ErrCodeCreationNotAllowed}
	ErrConstructionFailed             = &AppError{Code: ErrCodeConstructionFailed}
	ErrDisposalFailed                 = &AppError{Code: ErrCodeDisposalFailed}
	ErrUnresolvableInterceptionTarget = &AppError{Code: ErrCodeUnresolvableInterceptionTarget}
	ErrEarlyReferenceMismatch         = &AppError{Code: ErrCodeEarlyReferenceMismatch}
	ErrNotFound                       = &AppError{Code: ErrCodeNotFound}
	ErrInvalidInput                   = &AppError{Code: ErrCodeInvalidInput}
)

// --- Constructors ---

// IdentityAlreadyBound creates an error for a name that already has a finished value.
func IdentityAlreadyBound(name string, existing any) *AppError {
	return New(ErrCodeIdentityAlreadyBound,
		fmt.Sprintf("could not bind '%s': there is already object [%T] bound", name, existing)).
		WithDetail("instance", name)
}

// CurrentlyInCreation creates an error for an unresolvable circular reference.
func CurrentlyInCreation(name string) *AppError {
	return New(ErrCodeCurrentlyInCreation,
		fmt.Sprintf("instance '%s' is currently in creation: is there an unresolvable circular reference?", name)).
		WithDetail("instance", name)
}

// CreationNotAllowed creates an error for a creation attempt during teardown.
func CreationNotAllowed(name string) *AppError {
	return New(ErrCodeCreationNotAllowed,
		fmt.Sprintf("creation of '%s' not allowed while instances are being destroyed "+
			"(do not request an instance from a disposal callback)", name)).
		WithDetail("instance", name)
}

// ConstructionFailed creates an error for a failed factory invocation.
func ConstructionFailed(name string, cause error) *AppError {
	return New(ErrCodeConstructionFailed, fmt.Sprintf("construction of '%s' failed", name)).
		WithDetail("instance", name).
		WithCause(cause)
}

// DisposalFailed creates an error for a failed disposal callback.
func DisposalFailed(name string, cause error) *AppError {
	return New(ErrCodeDisposalFailed, fmt.Sprintf("disposal of '%s' failed", name)).
		WithDetail("instance", name).
		WithCause(cause)
}

// UnresolvableInterceptionTarget creates an error for an instance that cannot be proxied.
func UnresolvableInterceptionTarget(name, reason string) *AppError {
	return New(ErrCodeUnresolvableInterceptionTarget,
		fmt.Sprintf("cannot build proxy for '%s': %s", name, reason)).
		WithDetail("instance", name)
}

// EarlyReferenceMismatch creates an error for collaborators that were handed an
// early reference which initialization later replaced.
func EarlyReferenceMismatch(name string, dependents []string) *AppError {
	return New(ErrCodeEarlyReferenceMismatch,
		fmt.Sprintf("instance '%s' has been injected into %v in its raw version as part of a circular reference, "+
			"but has eventually been wrapped", name, dependents)).
		WithDetail("instance", name).
		WithDetail("dependents", dependents)
}

// NotFound creates an error for a missing instance or definition.
func NotFound(resource, name string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s '%s' not found", resource, name)).
		WithDetail("resource", resource).
		WithDetail("instance", name)
}

// InvalidInput creates an error for invalid input.
func InvalidInput(field, reason string) *AppError {
	e := New(ErrCodeInvalidInput, fmt.Sprintf("invalid input: %s", reason))
	if field != "" {
		e.WithDetail("field", field)
	}
	return e
}

// Internal creates an error for an internal failure.
func Internal(cause error) *AppError {
	return New(ErrCodeInternal, "an unexpected error occurred").WithCause(cause)
}

// --- Helpers ---

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err or any error it wraps is an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, &AppError{Code: code})
}
