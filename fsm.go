package wsfeed

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a Client.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateSubscribing
	StateSubscribed
	StateDisconnected
	StateReconnecting
	StateWaitingToReconnect
	StateReconnected
	StateTimedOut
	StateFailed
	StateClosed

	// stateAny only appears in the wildcard edge.
	stateAny State = -1
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateSubscribing:
		return "Subscribing"
	case StateSubscribed:
		return "Subscribed"
	case StateDisconnected:
		return "Disconnected"
	case StateReconnecting:
		return "Reconnecting"
	case StateWaitingToReconnect:
		return "WaitingToReconnect"
	case StateReconnected:
		return "Reconnected"
	case StateTimedOut:
		return "TimedOut"
	case StateFailed:
		return "Failed"
	case StateClosed:
		return "Closed"
	case stateAny:
		return "*"
	default:
		return "Unknown"
	}
}

// Edge names a state to state transition.
type Edge struct {
	From State
	To   State
}

var anyEdge = Edge{From: stateAny, To: stateAny}

func (e Edge) String() string {
	return fmt.Sprintf("transitioned from %s to %s", e.From, e.To)
}

// Transition is published after every state change. Reason is nil for transitions requested by the
// caller or caused by a successful step.
type Transition struct {
	Edge
	Reason error
	At     time.Time
}

type eventKind uint8

const (
	evConnect eventKind = iota + 1
	evSubscribe
	evReconnect
	evOpened
	evTransportError
	evClosed
	evMessage
	evWatchdogCheck
	evClose
)

func (k eventKind) String() string {
	switch k {
	case evConnect:
		return "connect"
	case evSubscribe:
		return "subscribe"
	case evReconnect:
		return "reconnect"
	case evOpened:
		return "handle opened"
	case evTransportError:
		return "handle error"
	case evClosed:
		return "handle closed"
	case evMessage:
		return "handle message"
	case evWatchdogCheck:
		return "liveness check"
	case evClose:
		return "close"
	default:
		return "unknown"
	}
}

// event is the single unit of work of the machine loop.
//
// Scoped events (signals, timers) carry the epoch of the state that registered them and are dropped
// once that state exited. Messages are instead bound to the handle generation that produced them: the
// message listener lives as long as the handle, so a message racing a Subscribing -> Subscribed
// transition is handled by the new state.
type event struct {
	kind    eventKind
	scoped  bool
	epoch   uint64
	conn    uint64
	data    []byte
	err     error
	request *outboundSubscription
	reply   chan error
}

type outboundSubscription struct {
	request SubscribeRequest
	payload []byte
}

type transitionKey struct {
	state State
	kind  eventKind
}

// transitionFunc computes the next state. ok is false when the event is consumed without a transition.
type transitionFunc func(m *machine, ev event) (next State, reason error, ok bool)

var transitionTable = map[transitionKey]transitionFunc{
	{StateIdle, evConnect}: to(StateConnecting),

	{StateConnecting, evOpened}:         to(StateConnected),
	{StateConnecting, evTransportError}: (*machine).onConnectError,

	{StateConnected, evClosed}:    (*machine).onUnexpectedClose,
	{StateConnected, evSubscribe}: (*machine).onSubscribe,

	{StateSubscribing, evClosed}:  (*machine).onUnexpectedClose,
	{StateSubscribing, evMessage}: (*machine).onSubscribingMessage,

	{StateSubscribed, evClosed}:        (*machine).onUnexpectedClose,
	{StateSubscribed, evMessage}:       (*machine).onSubscribedMessage,
	{StateSubscribed, evWatchdogCheck}: (*machine).onWatchdogCheck,
	{StateSubscribed, evSubscribe}:     (*machine).onSubscribe,

	{StateDisconnected, evReconnect}: (*machine).onFreshReconnect,

	{StateReconnecting, evOpened}:         to(StateReconnected),
	{StateReconnecting, evTransportError}: (*machine).onReconnectError,

	{StateWaitingToReconnect, evReconnect}: (*machine).onRetryReconnect,

	{StateReconnected, evClosed}:    (*machine).onUnexpectedClose,
	{StateReconnected, evSubscribe}: (*machine).onSubscribe,

	{StateTimedOut, evClosed}:    (*machine).onUnexpectedClose,
	{StateTimedOut, evReconnect}: (*machine).onFreshReconnect,
}

func to(next State) transitionFunc {
	return func(*machine, event) (State, error, bool) {
		return next, nil, true
	}
}
