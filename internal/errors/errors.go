// Package errors provides the domain error codes surfaced by the sync core.
//
// Usage:
//
//	// In services - wrap lower-level failures with a code
//	if err := s.store.SaveArchive(ctx, a); err != nil {
//	    return errors.Persistence("save archive", err)
//	}
//
//	// In reducers - fold the code into slice state
//	state.Error = errors.CodeOf(err)
//
//	// Or match with errors.Is
//	if errors.Is(err, errors.ErrEmptyResult) {
//	    ...
//	}
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeServer       Code = "SERVER"
	CodeDecode       Code = "DECODE"
	CodeEmptyResult  Code = "EMPTY_RESULT"
	CodeNotFound     Code = "NOT_FOUND"
	CodePersistence  Code = "PERSISTENCE"
	CodeValidation   Code = "VALIDATION"
	CodeUnauthorized Code = "UNAUTHORIZED"
)

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrServer       = &Error{Code: CodeServer, Message: "server error"}
	ErrDecode       = &Error{Code: CodeDecode, Message: "malformed response"}
	ErrEmptyResult  = &Error{Code: CodeEmptyResult, Message: "empty result"}
	ErrNotFound     = &Error{Code: CodeNotFound, Message: "not found"}
	ErrPersistence  = &Error{Code: CodePersistence, Message: "persistence error"}
	ErrValidation   = &Error{Code: CodeValidation, Message: "validation error"}
	ErrUnauthorized = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
)

// Server creates a server error wrapping cause.
func Server(msg string, cause error) *Error {
	return &Error{Code: CodeServer, Message: msg, cause: cause}
}

// Decode creates a decode error wrapping cause.
func Decode(msg string, cause error) *Error {
	return &Error{Code: CodeDecode, Message: msg, cause: cause}
}

// EmptyResult creates an empty result error.
func EmptyResult(msg string) *Error {
	return &Error{Code: CodeEmptyResult, Message: msg}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Persistence creates a persistence error wrapping cause.
func Persistence(msg string, cause error) *Error {
	return &Error{Code: CodePersistence, Message: msg, cause: cause}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// CodeOf returns the code carried by err, or "" for nil.
// Errors without a domain code are reported as CodeServer so that raw
// transport failures never leak into state unclassified.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeServer
}

// FromRemote classifies a remote client failure under op. A cause that
// already carries a code keeps it; anything else becomes a server error.
func FromRemote(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return &Error{Code: e.Code, Message: op, cause: err}
	}
	return Server(op, err)
}
