// Package errs defines the gRPC-code-inspired error taxonomy used across
// spindle. Every external error (I/O, protocol decode, websocket, gateway)
// is mapped into one of these kinds so callers can branch on "what kind of
// failure is this" without string matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an Error the way a gRPC status code would.
type Kind int

const (
	Unknown Kind = iota
	Cancelled
	InvalidArgument
	DeadlineExceeded
	NotFound
	PermissionDenied
	ResourceExhausted
	FailedPrecondition
	Unimplemented
	Unavailable
	DataLoss
)

func (k Kind) String() string {
	switch k {
	case Cancelled:
		return "cancelled"
	case InvalidArgument:
		return "invalid_argument"
	case DeadlineExceeded:
		return "deadline_exceeded"
	case NotFound:
		return "not_found"
	case PermissionDenied:
		return "permission_denied"
	case ResourceExhausted:
		return "resource_exhausted"
	case FailedPrecondition:
		return "failed_precondition"
	case Unimplemented:
		return "unimplemented"
	case Unavailable:
		return "unavailable"
	case DataLoss:
		return "data_loss"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind and the operation that
// produced it, e.g. errs.New(errs.NotFound, "queue: position", err).
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, errs.Of(errs.NotFound)) work by matching on Kind:
// any *Error target with the same Kind matches, whatever its Op and Err.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// KindOf extracts the Kind of err, walking Unwrap chains, defaulting to
// Unknown if no *Error is found.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Of builds a sentinel *Error for use with errors.Is, e.g.
// errors.Is(err, errs.Of(errs.NotFound)).
func Of(kind Kind) *Error {
	return &Error{Kind: kind}
}
