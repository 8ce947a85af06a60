package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how it should be surfaced to the person who
// triggered the action.
type Kind string

const (
	KindUnreachable  Kind = "unreachable"
	KindRejected     Kind = "rejected"
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindUnauthorized Kind = "unauthorized"
	KindInternal     Kind = "internal"
)

// UnreachableMessage is shown whenever the endpoint cannot be contacted.
const UnreachableMessage = "Unable to reach the server. Please check your connection and try again."

// Sentinels for errors.Is; an empty Message matches any error of that Kind.
var (
	ErrUnreachable  = &Error{Kind: KindUnreachable}
	ErrRejected     = &Error{Kind: KindRejected}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
)

// Error carries a human readable message that is displayed verbatim.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Text builds an error from a message that must not be treated as a format.
func Text(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Rejected(format string, args ...any) *Error {
	return New(KindRejected, format, args...)
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return New(KindUnauthorized, format, args...)
}

// Unreachable wraps a transport failure while keeping the generic message.
func Unreachable(cause error) *Error {
	return &Error{Kind: KindUnreachable, Message: UnreachableMessage, Err: cause}
}

// Internal hides the cause behind a generic message.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: cause}
}

// KindOf reports the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the text to show for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
