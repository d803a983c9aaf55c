package ipccom

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies the failures this package surfaces to callers.
type ErrorKind int

const (
	// KindNotInitialised means a proxy or stub was invoked before binding.
	KindNotInitialised ErrorKind = iota
	// KindMarshalling means the transport's send failed, or a received
	// sequence was inconsistent (too short, unparseable header, ...).
	KindMarshalling
	// KindIntegrity means an inbound frame referenced a stub index out of
	// range, or one whose stored MID.Control did not match: a forged or
	// stale identifier.
	KindIntegrity
	// KindTimeout means a waiter observed cancellation: disconnect,
	// shutdown, or an explicit timeout.
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotInitialised:
		return "not_initialised"
	case KindMarshalling:
		return "marshalling"
	case KindIntegrity:
		return "integrity"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the error type returned across every boundary named in the
// design's error-handling section. Use errors.As to recover the Kind.
type Error struct {
	Kind ErrorKind
	msg  string
	// cause is wrapped with github.com/pkg/errors so a log line can still
	// print a stack trace back to where the failure actually originated,
	// even though callers that only check Kind never need to look at it.
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("ipccom: %s: %s: %v", e.Kind, e.msg, e.cause)
	}
	return fmt.Sprintf("ipccom: %s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// newError builds an Error, optionally wrapping a lower-level cause with a
// stack trace via pkg/errors.
func newError(kind ErrorKind, msg string, cause error) *Error {
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return &Error{Kind: kind, msg: msg, cause: cause}
}

func errNotInitialised(msg string) error { return newError(KindNotInitialised, msg, nil) }
func errMarshalling(msg string, cause error) error {
	return newError(KindMarshalling, msg, cause)
}
func errIntegrity(msg string) error { return newError(KindIntegrity, msg, nil) }
func errTimeout(msg string) error   { return newError(KindTimeout, msg, nil) }
