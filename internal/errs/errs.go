// Package errs defines the transport-independent error taxonomy shared
// by the ledger engine and the transfer coordinator.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way both HTTP facades need to: whether
// it is deterministic (never retry) or transient (retry with a budget).
type Kind string

const (
	KindInvalidRequest      Kind = "INVALID_REQUEST"
	KindAccountNotFound     Kind = "ACCOUNT_NOT_FOUND"
	KindInsufficientFunds   Kind = "INSUFFICIENT_FUNDS"
	KindIdempotencyConflict Kind = "IDEMPOTENCY_CONFLICT"
	KindTransient           Kind = "TRANSIENT"
	KindUnavailable         Kind = "UNAVAILABLE"
)

// Error is the canonical error value passed between layers. Facades
// map Kind to a status code; nothing downstream of a service method
// should need to inspect anything but Kind and Message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Retriable reports whether the caller of the component that raised
// this error may retry internally. Only Transient errors qualify;
// everything else — including Unavailable, which is already the
// terminal signal after retries were exhausted — must not be retried
// further by the caller.
func Retriable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindTransient
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to Transient for any
// error that did not originate in this package (an unclassified
// failure is treated as potentially retriable, never as a
// deterministic rejection).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}
