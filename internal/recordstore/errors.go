package recordstore

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by a Store wraps exactly one of them.
var (
	ErrConstraint = errors.New("referential constraint violation")
	ErrNotFound   = errors.New("record not found")
	ErrInvalid    = errors.New("invalid request")
	ErrUnexpected = errors.New("unexpected store error")
)

const (
	MessageConstraint = "This record has dependent records and cannot be deleted."
	MessageUnexpected = "An unexpected error occurred."
)

// Error tags a backend failure with the operation, the table and one of the kinds above.
type Error struct {
	Op    string
	Table string
	Kind  error
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Table, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op, table string, kind, err error) *Error {
	return &Error{Op: op, Table: table, Kind: kind, Err: err}
}

// UserMessage renders a store error for display.
func UserMessage(err error) string {
	if errors.Is(err, ErrConstraint) {
		return MessageConstraint
	}
	return MessageUnexpected
}

// IsClientError reports whether err was caused by the request rather than the backend.
func IsClientError(err error) bool {
	return errors.Is(err, ErrConstraint) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalid)
}
