// Package domain defines the core domain models for tokstash.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// Codes have the form TS-<AREA>-<NNNN>; the numeric part mirrors the HTTP
// family the error usually maps to.
type DomainError struct {
	Code    string // Error code (e.g., "TS-TOKN-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Token Errors (TOKN)
// ============================================================================

var (
	// ErrTokenMalformed indicates the token cannot be mapped to a storage path.
	ErrTokenMalformed = NewDomainError("TS-TOKN-4000", "malformed token")

	// ErrTokenNotFound indicates no record exists for the token in the queried partition.
	ErrTokenNotFound = NewDomainError("TS-TOKN-4040", "token not found")

	// ErrTokenExpired indicates the record exists but its expiration has passed.
	ErrTokenExpired = NewDomainError("TS-TOKN-4041", "token expired")

	// ErrInvalidToken is the single outward signal for not-found, expired and
	// malformed tokens. Transports render it instead of the precise cause.
	ErrInvalidToken = NewDomainError("TS-TOKN-4100", "invalid token")
)

// ============================================================================
// Storage Errors (STOR)
// ============================================================================

var (
	// ErrRecordNotFound is returned by backends when a path has no record.
	ErrRecordNotFound = NewDomainError("TS-STOR-4040", "record not found")

	// ErrRecordCorrupted indicates a stored value could not be decoded.
	ErrRecordCorrupted = NewDomainError("TS-STOR-5002", "record corrupted")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("TS-SYS-5000", "internal server error")

	// ErrStorage indicates the backend failed; never retried by the engine.
	ErrStorage = NewDomainError("TS-SYS-5001", "storage error")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("TS-SYS-4290", "too many requests")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidTTL indicates a non-positive or unparsable expiration_seconds.
	ErrInvalidTTL = NewDomainError("TS-ARG-1001", "expiration_seconds must be a positive integer")

	// ErrMissingTTL indicates expiration_seconds was not supplied.
	ErrMissingTTL = NewDomainError("TS-ARG-1002", "expiration_seconds is required")

	// ErrInvalidPayload indicates the payload is not a JSON object.
	ErrInvalidPayload = NewDomainError("TS-ARG-1003", "payload must be a JSON object")
)

// IsCallerError reports whether err is a caller input error (TS-ARG-*).
func IsCallerError(err error) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return len(de.Code) > 7 && de.Code[:7] == "TS-ARG-"
}

// IsInvalidToken reports whether err should be surfaced as "invalid token".
func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrInvalidToken)
}
