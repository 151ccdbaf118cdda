package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Registry errors
const (
	// ErrCodeIdentityAlreadyBound indicates a direct registration of a name that already has a finished value.
	ErrCodeIdentityAlreadyBound ErrorCode = "IDENTITY_ALREADY_BOUND"
	// ErrCodeCurrentlyInCreation indicates a re-entrant creation request for a name already in creation.
	ErrCodeCurrentlyInCreation ErrorCode = "CURRENTLY_IN_CREATION"
	// ErrCodeCreationNotAllowed indicates a creation attempt while the registry is destroying its instances.
	ErrCodeCreationNotAllowed ErrorCode = "CREATION_NOT_ALLOWED"
	// ErrCodeConstructionFailed indicates the instance factory failed.
	ErrCodeConstructionFailed ErrorCode = "CONSTRUCTION_FAILED"
	// ErrCodeDisposalFailed indicates a disposal callback failed during teardown.
	ErrCodeDisposalFailed ErrorCode = "DISPOSAL_FAILED"
)

// Interception errors
const (
	// ErrCodeUnresolvableInterceptionTarget indicates no proxy could be built for an eligible instance.
	ErrCodeUnresolvableInterceptionTarget ErrorCode = "UNRESOLVABLE_INTERCEPTION_TARGET"
	// ErrCodeEarlyReferenceMismatch indicates collaborators hold an early reference that differs
	// from the instance produced by initialization.
	ErrCodeEarlyReferenceMismatch ErrorCode = "EARLY_REFERENCE_MISMATCH"
)

// General errors
const (
	// ErrCodeNotFound indicates the requested instance or definition was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// A failed construction leaves no finished value behind, so a fresh request may succeed.
var retryableCodes = map[ErrorCode]bool{
	ErrCodeConstructionFailed: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
