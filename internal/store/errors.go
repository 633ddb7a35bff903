package store

import (
	"errors"
	"fmt"
)

// Error is a persistence failure with the operation that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes every *Error match ErrPersistence.
func (e *Error) Is(target error) bool {
	return target == ErrPersistence
}

// Sentinel errors.
var (
	// ErrNotFound is a cache miss on a point lookup.
	ErrNotFound = errors.New("store: not found")

	// ErrPersistence matches any transaction or I/O failure.
	ErrPersistence = errors.New("store: persistence failure")
)

// Wrap tags err with op. nil and ErrNotFound pass through untouched.
func Wrap(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Err: err}
}
