package wsfeed

import (
	"fmt"
	"net/url"

	"github.com/pkg/errors"
)

// Transport level errors, reported by Handle implementations.
var (
	ErrConnectionClosed = errors.New("connection has been closed")
	ErrCannotConnect    = errors.New("connection cannot be established")
	ErrTerminated       = errors.New("program exit")
	ErrRateLimit        = errors.New("rate limit exceeded")
)

// Client level errors.
var (
	// ErrTransportOpen is returned by Connect when the transport reports an error before opening.
	ErrTransportOpen = errors.New("transport could not be opened")
	// ErrUnexpectedClose is the reason attached to transitions caused by a remote close. It is never
	// returned to callers, the client reconnects instead.
	ErrUnexpectedClose = errors.New("connection closed unexpectedly")
	// ErrSubscriptionRejected is returned by Subscribe when the acknowledgement does not cover the request.
	ErrSubscriptionRejected = errors.New("subscription rejected")
	// ErrLivenessTimeout is the reason attached to the Subscribed -> TimedOut transition.
	ErrLivenessTimeout = errors.New("no heartbeat within liveness timeout")
	// ErrMaxAttemptsExceeded is the reason the client gave up reconnecting.
	ErrMaxAttemptsExceeded = errors.New("max reconnect attempts exceeded")
	// ErrUnsupportedTransition is matched by every UnsupportedTransitionError.
	ErrUnsupportedTransition = errors.New("unsupported transition")
	// ErrClosed is returned by operations issued after Close.
	ErrClosed = errors.New("client closed")
)

// UnsupportedTransitionError is returned when an operation is not valid in the current state.
type UnsupportedTransitionError struct {
	State     State
	Operation string
}

func (e UnsupportedTransitionError) Error() string {
	return fmt.Sprintf("unsupported transition: cannot %s while %s", e.Operation, e.State)
}

func (e UnsupportedTransitionError) Is(target error) bool {
	return target == ErrUnsupportedTransition
}

type ErrUnrecoverableConnection struct {
	err error
	url string
}

func (e ErrUnrecoverableConnection) Error() string {
	return fmt.Sprintf("Unrecoverable connection error: %s to %s", e.err, e.url)
}

func (e ErrUnrecoverableConnection) Unwrap() error { return e.err }

func WrapErrorUnrecoverableConnection(err error, rawURL string) error {
	if err == nil {
		return nil
	}
	if u, perr := url.Parse(rawURL); perr == nil {
		// never leak credentials passed in the url
		u.User = nil
		rawURL = u.String()
	}
	return &ErrUnrecoverableConnection{
		err: err,
		url: rawURL,
	}
}
