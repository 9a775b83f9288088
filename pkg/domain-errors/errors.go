// Package dErrors defines coded domain errors for business-level failures.
//
// These are NOT HTTP errors and NOT infrastructure sentinels. Stores return
// pkg/platform/sentinel errors for factual resource states; services translate
// those into coded domain errors here; transport maps codes onto HTTP statuses.
package dErrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain failure. Codes are stable API surface: transport
// serializes them verbatim into error envelopes.
type Code string

const (
	// CodeInvalidTransition rejects an illegal stage/status jump. Recoverable:
	// a rejected business operation, not a system fault.
	CodeInvalidTransition Code = "invalid_transition"

	// CodeImmutableField rejects a mutation of a protected field.
	CodeImmutableField Code = "immutable_field"

	// CodeConflict reports an optimistic-concurrency loss. The caller should
	// re-read state and retry or surface the conflict.
	CodeConflict Code = "conflict"

	// CodeCodeExhausted means subject code allocation ran out of candidates.
	// Treated as a fatal configuration error, not expected in practice.
	CodeCodeExhausted Code = "code_exhausted"

	// CodeAuditWrite means the audit append failed. Fatal for the enclosing
	// operation: the business mutation must not commit without its record.
	CodeAuditWrite Code = "audit_write_failed"

	CodeNotFound     Code = "not_found"
	CodeInvalidInput Code = "invalid_input"
	CodeInternal     Code = "internal"
)

// Error is a coded domain error. It wraps an optional cause for errors.Is/As.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded domain error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the domain code from an error chain. Unknown errors map to
// CodeInternal so callers never branch on a missing code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// ToHTTPStatus maps a domain code to its transport status. Kept here so every
// handler produces the same mapping.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidTransition, CodeImmutableField:
		return http.StatusUnprocessableEntity
	case CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeCodeExhausted, CodeAuditWrite, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
