package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error independently of the transport that reports it.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindLimitExceeded
	KindInvalidInput
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindLimitExceeded:
		return "limit_exceeded"
	case KindInvalidInput:
		return "invalid_input"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Error carries a Kind and a caller-safe message.
type Error struct {
	Kind Kind
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

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// holds for every not-found error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound      = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrForbidden     = &Error{Kind: KindForbidden, Msg: "forbidden"}
	ErrConflict      = &Error{Kind: KindConflict, Msg: "conflict"}
	ErrLimitExceeded = &Error{Kind: KindLimitExceeded, Msg: "limit exceeded"}
	ErrInvalidInput  = &Error{Kind: KindInvalidInput, Msg: "invalid input"}
	ErrUnauthorized  = &Error{Kind: KindUnauthorized, Msg: "unauthorized"}
	ErrInternal      = &Error{Kind: KindInternal, Msg: "internal error"}
)

func NotFound(msg string) error      { return &Error{Kind: KindNotFound, Msg: msg} }
func Forbidden(msg string) error     { return &Error{Kind: KindForbidden, Msg: msg} }
func Conflict(msg string) error      { return &Error{Kind: KindConflict, Msg: msg} }
func LimitExceeded(msg string) error { return &Error{Kind: KindLimitExceeded, Msg: msg} }
func InvalidInput(msg string) error  { return &Error{Kind: KindInvalidInput, Msg: msg} }
func Unauthorized(msg string) error  { return &Error{Kind: KindUnauthorized, Msg: msg} }

// Internal wraps an unexpected failure. The cause is kept for logging and
// never rendered to callers.
func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf reports the Kind of err. Errors that are not *Error are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the caller-safe message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return "internal error"
}
