// Package domainerrors defines coded errors shared across engine modules.
//
// Codes classify failures by who must act on them: invalid_input and
// bad_request are the caller's fault, conflict protects store invariants,
// unavailable is retryable, internal_error is ours. Tamper findings are
// deliberately NOT errors - the verify module returns structured verdicts
// so a TAMPERED result can never be mistaken for an infrastructure failure.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies the error class. Values appear verbatim in JSON error
// responses, so they are stable API surface.
type Code string

const (
	// CodeInvalidInput marks malformed or missing fields detected before
	// any hashing or persistence happens.
	CodeInvalidInput Code = "invalid_input"

	// CodeBadRequest marks requests that could not be decoded at all.
	CodeBadRequest Code = "bad_request"

	// CodeNotFound marks lookups for records that do not exist.
	CodeNotFound Code = "not_found"

	// CodeConflict marks rejected writes that would violate a store
	// invariant, e.g. a reused submission id.
	CodeConflict Code = "conflict"

	// CodeUnauthorized marks requests lacking valid credentials.
	CodeUnauthorized Code = "unauthorized"

	// CodeUnavailable marks retryable infrastructure failures such as an
	// unreachable store or an exceeded deadline.
	CodeUnavailable Code = "unavailable"

	// CodeInternal marks unexpected failures. Details are logged, never
	// returned to callers.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. Construct with New or Wrap.
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

// New creates a coded error with a caller-facing message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error while keeping it
// reachable through errors.Is/As.
func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, cause: cause}
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the caller-facing message, or empty for uncoded errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// ToHTTPStatus maps an error code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
