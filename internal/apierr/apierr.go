// Package apierr defines the error taxonomy shared by every layer of the
// control plane. Handlers map a Kind to an HTTP status; nothing below the
// HTTP layer should know about status codes.
package apierr

import "fmt"

// Kind is a coarse error classification, not a concrete type hierarchy.
type Kind string

const (
	KindInvalidArgument   Kind = "invalid_argument"
	KindUnauthenticated   Kind = "unauthenticated"
	KindPermissionDenied  Kind = "permission_denied"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindGone              Kind = "gone"
	KindRateLimited       Kind = "rate_limited"
	KindServiceUnavailable Kind = "service_unavailable"
	KindInternal          Kind = "internal"
)

// Error is the error type returned across package boundaries in this
// module. Wrap lower-level errors with fmt.Errorf("...: %w", err) before
// attaching a Kind so the original cause survives for logging.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind to an existing error, preserving it for %w unwrapping.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithDetails attaches structured detail fields, returned to the caller
// under the "details" key of the JSON error envelope.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// As extracts an *Error from err, returning (nil, false) if err is not one.
func As(err error) (*Error, bool) {
	var e *Error
	if err == nil {
		return nil, false
	}
	if ae, ok := err.(*Error); ok {
		return ae, true
	}
	if u, ok := err.(interface{ Unwrap() error }); ok {
		return As(u.Unwrap())
	}
	_ = e
	return nil, false
}

// KindOf returns the Kind of err, defaulting to KindInternal for anything
// that isn't an *Error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
