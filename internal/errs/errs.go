// Package errs defines the domain-agnostic error kinds the core surfaces
// (spec §7). Kinds are mapped to transport-level concerns (HTTP status,
// logging) by external collaborators; this package only carries the kind
// and a message.
package errs

import "fmt"

// Kind is one of the fixed error kinds the core can fail with.
type Kind string

const (
	NotFound          Kind = "NOT_FOUND"
	Forbidden         Kind = "FORBIDDEN"
	NotFriends        Kind = "NOT_FRIENDS"
	Duplicate         Kind = "DUPLICATE"
	DuplicateName     Kind = "DUPLICATE_NAME"
	InvalidRecipient  Kind = "INVALID_RECIPIENT"
	MissingRecipients Kind = "MISSING_RECIPIENTS"
	MissingCircles    Kind = "MISSING_CIRCLES"
	Private           Kind = "PRIVATE"
	DomainMismatch    Kind = "DOMAIN_MISMATCH"
	SelfEndorse       Kind = "SELF_ENDORSE"
	LimitExceeded     Kind = "LIMIT_EXCEEDED"
	ValidationError   Kind = "VALIDATION_ERROR"
	HardConstraint    Kind = "HARD_CONSTRAINT"
	NotConfigured     Kind = "NOT_CONFIGURED"
	Internal          Kind = "INTERNAL_ERROR"
)

// Error is a structured domain error: a fixed Kind plus a human-readable
// message and, optionally, the infrastructure error it wraps.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped infrastructure error, if any.
func (e *Error) Unwrap() error { return e.Err }

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an infrastructure error with a domain Kind.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// As is a thin wrapper around errors.As kept local so callers only need to
// import this package for the common case.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
