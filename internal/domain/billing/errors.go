package billing

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindMissingSignature ErrorKind = "missing_signature"
	KindInvalidSignature ErrorKind = "invalid_signature"
	KindNotFound         ErrorKind = "not_found"
	KindInvalidRequest   ErrorKind = "invalid_request"
	KindConflict         ErrorKind = "conflict"
	KindInternal         ErrorKind = "internal_error"
)

// Error is the typed failure raised by the billing use cases and the webhook gate.
// Message is safe to show to users; Err is for logs only.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func MissingSignature() *Error {
	return &Error{Kind: KindMissingSignature, Message: "Missing signature header"}
}

func InvalidSignature(err error) *Error {
	return &Error{Kind: KindInvalidSignature, Message: "Invalid signature", Err: err}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func InvalidRequest(msg string, err error) *Error {
	return &Error{Kind: KindInvalidRequest, Message: msg, Err: err}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of a billing error, or KindInternal for anything else.
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var be *Error
	if errors.As(err, &be) && be.Kind != KindInternal {
		return be.Message
	}
	return "An internal error occurred. Please try again later."
}
