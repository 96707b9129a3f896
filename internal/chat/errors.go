package chat

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an operation failure for the gateway boundary.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindUnauthenticated
	KindNotFound
	KindNotAuthorized
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindNotFound:
		return "not_found"
	case KindNotAuthorized:
		return "not_authorized"
	case KindValidation:
		return "validation"
	default:
		return "internal"
	}
}

// Error is the domain error carried from an operation to the gateway.
// Only the Message of non-internal kinds is ever written to the wire.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewNotFoundError(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func NewNotAuthorizedError(msg string) *Error {
	return &Error{Kind: KindNotAuthorized, Message: msg}
}

func NewValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func NewUnauthenticatedError(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func NewInternalError(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: err}
}

// Kind extracts the ErrorKind from err, defaulting to KindInternal for
// anything that is not a chat.Error.
func Kind(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Translate converts an operation failure into the uniform client-visible
// error event. Domain errors surface their message; anything else is
// reduced to a generic message so internal detail never reaches the wire.
// Callers log the original error before translating.
func Translate(err error) *ServerEvent {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return NewErrorEvent(e.Message)
	}
	return NewErrorEvent("Internal server error")
}
