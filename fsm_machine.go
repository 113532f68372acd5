package wsfeed

import (
	"context"
	"sync/atomic"
	"time"
)

// connContext is the mutable state threaded through every transition. Only the loop goroutine
// touches it.
type connContext struct {
	handle Handle
	// conn is the generation of handle, bumped on every dial.
	conn uint64
	// messages is the message listener on handle, owned by the handle rather than by a state.
	messages ListenerID
	attempts int
	// pending is the subscription being verified, or waiting to be replayed after a reconnect.
	pending *outboundSubscription
	// accepted is the last subscription whose acknowledgement verified.
	accepted *outboundSubscription
}

type machine struct {
	opts   Options
	logger Logger

	state     State
	snapshot  atomic.Int32
	epoch     uint64
	scope     *stateScope
	ctx       connContext
	watchdog  *livenessWatchdog
	nextDelay time.Duration

	mailbox     *mailbox
	transitions *EventEmitterCallback[Edge, Transition]
	events      *feedEvents
	// notifying is set while the loop runs user listeners.
	notifying atomic.Bool

	runCtx context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newMachine(opts Options, logger Logger) *machine {
	runCtx, cancel := context.WithCancel(context.Background())

	m := &machine{
		opts:        opts,
		logger:      logger,
		state:       StateIdle,
		scope:       newStateScope(0),
		watchdog:    newLivenessWatchdog(opts.LivenessTimeout),
		mailbox:     newMailbox(),
		transitions: NewEventEmitter[Edge, Transition](),
		runCtx:      runCtx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	m.events = newFeedEvents(&m.notifying)
	m.snapshot.Store(int32(StateIdle))

	return m
}

func (m *machine) State() State {
	return State(m.snapshot.Load())
}

func (m *machine) post(ev event) bool {
	return m.mailbox.post(ev)
}

// postScoped posts an event that is only valid while the current state is active.
func (m *machine) postScoped(epoch uint64, ev event) {
	ev.scoped = true
	ev.epoch = epoch
	m.post(ev)
}

func (m *machine) run() {
	defer close(m.done)

	for range m.mailbox.notify {
		for _, ev := range m.mailbox.drain() {
			m.dispatch(ev)

			if m.state == StateClosed {
				for _, rest := range m.mailbox.close() {
					if rest.reply != nil {
						rest.reply <- ErrClosed
					}
				}
				return
			}
		}
	}
}

func (m *machine) dispatch(ev event) {
	if ev.kind == evClose {
		m.close(ev)
		return
	}

	if ev.scoped && ev.epoch != m.epoch {
		m.logger.Debugf("dropping stale %s scheduled by a previous state", ev.kind)
		return
	}
	if ev.kind == evMessage && ev.conn != m.ctx.conn {
		m.logger.Debugf("dropping message from superseded connection #%d", ev.conn)
		return
	}

	fn, ok := transitionTable[transitionKey{state: m.state, kind: ev.kind}]
	if !ok && ev.kind == evMessage {
		m.logger.Debugf("ignoring message received while %s", m.state)
		return
	}
	if !ok {
		err := UnsupportedTransitionError{State: m.state, Operation: ev.kind.String()}
		if ev.reply != nil {
			ev.reply <- err
		} else {
			m.logger.Warnf("ignoring event: %s", err)
		}
		return
	}

	// completion listeners go in before the transition that may complete them
	if ev.reply != nil {
		m.await(ev)
	}

	next, reason, ok := fn(m, ev)
	if !ok {
		return
	}

	m.transition(next, reason)
}

func (m *machine) transition(next State, reason error) {
	prev := m.state

	// no listener or timer of the exiting state may fire once it is left
	m.scope.release()

	m.state = next
	m.epoch++
	m.scope = newStateScope(m.epoch)
	m.snapshot.Store(int32(next))

	t := Transition{Edge: Edge{From: prev, To: next}, Reason: reason, At: time.Now()}
	if reason != nil {
		m.logger.Infof("%s: %s", t.Edge, reason)
	} else {
		m.logger.Info(t.Edge.String())
	}

	m.enter(t)
	m.logListenerCounts()

	m.notifying.Store(true)
	defer m.notifying.Store(false)
	m.transitions.Emit(t.Edge, t)
	m.transitions.Emit(anyEdge, t)
}

// inListener reports whether the caller may be a listener running on the loop, which must never wait
// for the loop to finish.
func (m *machine) inListener() bool {
	return m.notifying.Load()
}

// await resolves ev.reply when the operation it requested completes.
func (m *machine) await(ev event) {
	var id ListenerID
	id = m.transitions.On(anyEdge, func(t Transition) {
		err, done := operationOutcome(ev.kind, t)
		if !done {
			return
		}
		m.transitions.Off(anyEdge, id)
		ev.reply <- err
	})
}

func operationOutcome(kind eventKind, t Transition) (error, bool) {
	if t.To == StateClosed {
		return ErrClosed, true
	}

	switch kind {
	case evConnect:
		switch t.Edge {
		case Edge{From: StateConnecting, To: StateConnected}:
			return nil, true
		case Edge{From: StateConnecting, To: StateIdle}:
			return t.Reason, true
		}
	case evSubscribe:
		switch t.To {
		case StateSubscribed:
			return nil, true
		case StateFailed:
			return t.Reason, true
		}
	}

	return nil, false
}

func (m *machine) close(ev event) {
	if m.state != StateClosed {
		m.transition(StateClosed, ErrClosed)
	}

	m.cancel()
	m.transitions.Close()
	m.events.Close()

	if ev.reply != nil {
		ev.reply <- nil
	}
}

func (m *machine) logListenerCounts() {
	h := m.ctx.handle
	if h == nil {
		return
	}
	m.logger.Debugf(
		"listener counts on conn #%d: opened=%d error=%d closed=%d message=%d",
		m.ctx.conn,
		h.ListenerCount(SignalOpened),
		h.ListenerCount(SignalError),
		h.ListenerCount(SignalClosed),
		h.ListenerCount(SignalMessage),
	)
}
