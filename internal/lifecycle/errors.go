package lifecycle

import (
	"errors"
	"fmt"
)

// Code classifies an error for transports. Each transport maps codes to its
// own status values exactly once.
type Code string

const (
	CodeNotFound     Code = "not_found"
	CodeInvalidState Code = "invalid_state"
	CodeForbidden    Code = "forbidden"
	CodeConflict     Code = "conflict"
	CodeValidation   Code = "validation"
	CodeInternal     Code = "internal"
)

// Error is a classified, user-facing error.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code Code, msg string) *Error { return &Error{Code: code, Msg: msg} }

func internal(op string, err error) *Error {
	return &Error{Code: CodeInternal, Msg: op, Err: err}
}

// CodeOf returns the code carried by err, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// Store sentinels. Implementations return these (possibly wrapped) so the
// service can classify them.
var (
	// ErrNotExist is returned when a row is missing or soft-deleted.
	ErrNotExist = errors.New("row does not exist")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("unique constraint violation")
)
