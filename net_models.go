package wsfeed

import (
	"context"
)

// SignalKind enumerates the asynchronous signals a Handle reports.
type SignalKind uint8

const (
	SignalOpened SignalKind = iota + 1
	SignalError
	SignalClosed
	SignalMessage
)

func (k SignalKind) String() string {
	switch k {
	case SignalOpened:
		return "opened"
	case SignalError:
		return "error"
	case SignalClosed:
		return "closed"
	case SignalMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Signal is the payload delivered to signal listeners. Data is only set for SignalMessage, Err for
// SignalError and, optionally, SignalClosed.
type Signal struct {
	Kind SignalKind
	Data []byte
	Err  error
}

type SignalListener = callback[Signal]

type (
	// Handle is a single transport connection attempt. It is created idle by a Dialer so that listeners
	// can be attached before Open starts connecting.
	Handle interface {
		// Open starts connecting in the background. The outcome is reported through exactly one of
		// SignalOpened or SignalError. After SignalOpened, inbound payloads are reported as SignalMessage
		// and the end of the connection as SignalClosed.
		Open(ctx context.Context)

		// Send writes a data payload. It fails once the handle is closed.
		Send(data []byte) error

		// On registers a listener for the given signal. Opened, error and closed are latched: a listener
		// registered after they happened is invoked on registration.
		On(kind SignalKind, listener SignalListener) ListenerID

		// Off removes a listener previously registered with On.
		Off(kind SignalKind, id ListenerID) bool

		// ListenerCount returns the listeners currently registered for kind.
		ListenerCount(kind SignalKind) int

		// Close terminates the connection and releases its resources. It is idempotent.
		Close()
	}

	// Dialer creates handles for an endpoint.
	Dialer interface {
		Dial(url string) Handle
	}

	// DialerFunc adapts a function to the Dialer interface.
	DialerFunc func(url string) Handle
)

func (f DialerFunc) Dial(url string) Handle {
	return f(url)
}
