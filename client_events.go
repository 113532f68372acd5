package wsfeed

import "sync/atomic"

type EventType uint8

const (
	EventTicker EventType = iota + 1
	EventHeartbeat
	EventSubscriptions
	EventTimeout
	EventFailure
)

func (t EventType) String() string {
	switch t {
	case EventTicker:
		return "ticker"
	case EventHeartbeat:
		return "heartbeat"
	case EventSubscriptions:
		return "subscriptions"
	case EventTimeout:
		return "timeout"
	case EventFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// feedEvents is the multi subscriber surface of decoded data and lifecycle notifications. Listeners
// run on the client loop and must not block.
type feedEvents struct {
	tickers       *EventEmitterCallback[EventType, Ticker]
	heartbeats    *EventEmitterCallback[EventType, Heartbeat]
	subscriptionz *EventEmitterCallback[EventType, Subscriptions]
	errs          *EventEmitterCallback[EventType, error]

	notifying *atomic.Bool
}

func newFeedEvents(notifying *atomic.Bool) *feedEvents {
	return &feedEvents{
		notifying:     notifying,
		tickers:       NewEventEmitter[EventType, Ticker](),
		heartbeats:    NewEventEmitter[EventType, Heartbeat](),
		subscriptionz: NewEventEmitter[EventType, Subscriptions](),
		errs:          NewEventEmitter[EventType, error](),
	}
}

func (e *feedEvents) ticker(t Ticker)               { emit(e, e.tickers, EventTicker, t) }
func (e *feedEvents) heartbeat(h Heartbeat)         { emit(e, e.heartbeats, EventHeartbeat, h) }
func (e *feedEvents) subscriptions(s Subscriptions) { emit(e, e.subscriptionz, EventSubscriptions, s) }
func (e *feedEvents) timeout(err error)             { emit(e, e.errs, EventTimeout, err) }
func (e *feedEvents) failure(err error)             { emit(e, e.errs, EventFailure, err) }

func emit[V any](e *feedEvents, emitter *EventEmitterCallback[EventType, V], kind EventType, v V) {
	e.notifying.Store(true)
	defer e.notifying.Store(false)
	emitter.Emit(kind, v)
}

func (e *feedEvents) listenerCount() int {
	return e.tickers.TotalListenerCount() +
		e.heartbeats.TotalListenerCount() +
		e.subscriptionz.TotalListenerCount() +
		e.errs.TotalListenerCount()
}

func (e *feedEvents) Close() {
	e.tickers.Close()
	e.heartbeats.Close()
	e.subscriptionz.Close()
	e.errs.Close()
}
