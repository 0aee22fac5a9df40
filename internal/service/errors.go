package service

import (
	"errors"
	"fmt"
)

// Kind classifies service failures. Handlers map each kind to one HTTP
// status and never inspect the wrapped cause.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindDuplicate
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindInvalidID
	KindStoreFault
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDuplicate:
		return "duplicate"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindInvalidID:
		return "invalid_id"
	case KindStoreFault:
		return "store_fault"
	}
	return "unknown"
}

// FieldError is a single per-field validation message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the tagged error returned by AuthService. Message is safe to
// show to clients; Err carries the internal cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or 0 when err is not a service error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func storeFault(msg string, cause error) *Error {
	return newError(KindStoreFault, msg, cause)
}
