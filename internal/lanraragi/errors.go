package lanraragi

import (
	"fmt"

	apperrors "github.com/lanreader/lanreader/internal/errors"
)

// Sentinel errors for archive server operations. Each carries a domain code,
// so errors.CodeOf classifies client failures without string matching.
var (
	ErrServer        = &apperrors.Error{Code: apperrors.CodeServer, Message: "lanraragi: server error"}
	ErrDecode        = &apperrors.Error{Code: apperrors.CodeDecode, Message: "lanraragi: malformed response"}
	ErrEmptyPages    = &apperrors.Error{Code: apperrors.CodeEmptyResult, Message: "lanraragi: archive has no pages"}
	ErrUnauthorized  = &apperrors.Error{Code: apperrors.CodeUnauthorized, Message: "lanraragi: unauthorized"}
	ErrNotFound      = &apperrors.Error{Code: apperrors.CodeNotFound, Message: "lanraragi: not found"}
	ErrNotConfigured = &apperrors.Error{Code: apperrors.CodeUnauthorized, Message: "lanraragi: server url not configured"}
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op     string // Operation: "listArchives", "extract", "page", ...
	Status int    // HTTP status, 0 when no response was received
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("lanraragi %s [%d]: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("lanraragi %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapError(op string, status int, err error) error {
	if _, ok := err.(*Error); ok {
		return err
	}
	return &Error{Op: op, Status: status, Err: err}
}
