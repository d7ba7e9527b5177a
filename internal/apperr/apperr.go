// Package apperr defines the error kinds services return to the transport
// layer.  Kinds are not Go types: every error is an *Error carrying one
// Kind, a caller-safe message and an optional wrapped cause.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers.
type Kind string

const (
	InvalidInput    Kind = "INVALID_INPUT"
	NotFound        Kind = "NOT_FOUND"
	SeatConflict    Kind = "SEAT_CONFLICT"
	Unauthorized    Kind = "UNAUTHORIZED" // caller is not the owner
	Unauthenticated Kind = "UNAUTHENTICATED"
	GatewayFailure  Kind = "GATEWAY_FAILURE"
	Conflict        Kind = "CONFLICT"
	Unexpected      Kind = "UNEXPECTED"
)

// Error is the concrete error type produced by services.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind around cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Invalid is shorthand for New(InvalidInput, ...).
func Invalid(format string, args ...any) *Error { return New(InvalidInput, format, args...) }

// Missing is shorthand for New(NotFound, ...).
func Missing(format string, args ...any) *Error { return New(NotFound, format, args...) }

// Internal wraps an unexpected cause; the message shown to callers is fixed.
func Internal(cause error) *Error {
	return &Error{Kind: Unexpected, Message: "an unexpected error occurred", Err: cause}
}

// KindOf returns the kind of err, or Unexpected for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unexpected
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the caller-safe message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Unexpected {
		return e.Message
	}
	return "an unexpected error occurred"
}
