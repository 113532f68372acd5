package wsfeed

import (
	"time"

	"github.com/pkg/errors"
)

// enter runs the entry action of t.To. Entry actions never transition by themselves: whatever they
// start reports back through the mailbox.
func (m *machine) enter(t Transition) {
	switch t.To {
	case StateIdle:
		m.teardownHandle()
	case StateConnecting, StateReconnecting:
		m.dial()
	case StateConnected:
		m.listenClosed()
	case StateSubscribing:
		m.listenClosed()
		m.sendPending()
	case StateSubscribed:
		m.ctx.accepted = m.ctx.pending
		m.ctx.pending = nil
		m.ctx.attempts = 0
		m.listenClosed()
		m.startWatchdog()
	case StateDisconnected:
		m.teardownHandle()
		m.schedule(0, event{kind: evReconnect})
	case StateWaitingToReconnect:
		m.schedule(m.nextDelay, event{kind: evReconnect})
	case StateReconnected:
		m.ctx.attempts = 0
		m.listenClosed()
		m.scheduleReplay()
	case StateTimedOut:
		m.listenClosed()
		m.schedule(0, event{kind: evReconnect})
		m.events.timeout(t.Reason)
	case StateFailed:
		m.teardownHandle()
		m.events.failure(t.Reason)
	case StateClosed:
		m.teardownHandle()
	}
}

// dial replaces the handle of the context with a fresh one. The previous handle is torn down first.
//
// Messages are listened to for the whole life of the handle rather than per state, so that no frame
// is lost while one state is left and the next one entered. The transition table decides what a
// message means in the state that eventually handles it.
func (m *machine) dial() {
	m.teardownHandle()

	h := m.opts.Dialer.Dial(m.opts.URL)
	m.ctx.conn++
	m.ctx.handle = h

	conn := m.ctx.conn
	m.ctx.messages = h.On(SignalMessage, func(s Signal) {
		m.post(event{kind: evMessage, conn: conn, data: s.Data})
	})

	epoch := m.epoch
	m.scope.listen(h, SignalOpened, func(Signal) {
		m.postScoped(epoch, event{kind: evOpened})
	})
	m.scope.listen(h, SignalError, func(s Signal) {
		m.postScoped(epoch, event{kind: evTransportError, err: s.Err})
	})

	m.logger.Debugf("opening conn #%d to %s", m.ctx.conn, m.opts.URL)
	h.Open(m.runCtx)
}

func (m *machine) teardownHandle() {
	if m.ctx.handle == nil {
		return
	}
	m.ctx.handle.Off(SignalMessage, m.ctx.messages)
	m.ctx.handle.Close()
	m.ctx.handle = nil
	m.ctx.messages = 0
}

func (m *machine) listenClosed() {
	epoch := m.epoch
	m.scope.listen(m.ctx.handle, SignalClosed, func(s Signal) {
		m.postScoped(epoch, event{kind: evClosed, err: s.Err})
	})
}

func (m *machine) schedule(d time.Duration, ev event) {
	epoch := m.epoch
	m.scope.after(d, func() {
		m.postScoped(epoch, ev)
	})
}

func (m *machine) scheduleReplay() {
	replay := m.ctx.pending
	if replay == nil {
		replay = m.ctx.accepted
	}
	if replay == nil {
		m.logger.Debug("nothing to resubscribe after reconnect")
		return
	}
	m.schedule(0, event{kind: evSubscribe, request: replay})
}

func (m *machine) sendPending() {
	if err := m.ctx.handle.Send(m.ctx.pending.payload); err != nil {
		// the handle reports its own close, which moves us to Disconnected
		m.logger.Errorf("cannot send subscribe request: %s", err)
	}
}

func (m *machine) startWatchdog() {
	m.watchdog.Arm()

	epoch := m.epoch
	m.scope.every(m.opts.LivenessCheckInterval, func() {
		m.postScoped(epoch, event{kind: evWatchdogCheck})
	})
}

func (m *machine) onConnectError(ev event) (State, error, bool) {
	return StateIdle, errors.Wrap(ErrTransportOpen, errorString(ev.err)), true
}

func (m *machine) onUnexpectedClose(ev event) (State, error, bool) {
	if ev.err != nil {
		return StateDisconnected, errors.Wrap(ErrUnexpectedClose, ev.err.Error()), true
	}
	return StateDisconnected, ErrUnexpectedClose, true
}

func (m *machine) onSubscribe(ev event) (State, error, bool) {
	m.ctx.pending = ev.request
	return StateSubscribing, nil, true
}

func (m *machine) onFreshReconnect(event) (State, error, bool) {
	m.ctx.attempts = 0
	return StateReconnecting, nil, true
}

func (m *machine) onRetryReconnect(event) (State, error, bool) {
	m.ctx.attempts++
	return StateReconnecting, nil, true
}

func (m *machine) onReconnectError(ev event) (State, error, bool) {
	failures := m.ctx.attempts + 1

	delay, retry := m.opts.Policy.Next(failures)
	if !retry {
		err := errors.Wrapf(ErrMaxAttemptsExceeded, "%d attempts, last error: %s", failures, errorString(ev.err))
		return StateFailed, WrapErrorUnrecoverableConnection(err, m.opts.URL), true
	}

	m.nextDelay = delay
	m.logger.Infof("reconnect attempt %d failed (%s), retrying in %s", failures, errorString(ev.err), delay)
	return StateWaitingToReconnect, errors.Wrap(ErrTransportOpen, errorString(ev.err)), true
}

func (m *machine) onSubscribingMessage(ev event) (State, error, bool) {
	msg, err := m.opts.Codec.Decode(ev.data)
	if err != nil {
		m.logger.Warnf("ignoring undecodable message while subscribing: %s", err)
		return m.state, nil, false
	}

	switch msg := msg.(type) {
	case Subscriptions:
		m.events.subscriptions(msg)
		if Verify(m.ctx.pending.request, msg) {
			return StateSubscribed, nil, true
		}
		return StateFailed, errors.Wrapf(
			ErrSubscriptionRejected,
			"acknowledged %v, requested %v", msg.Channels, m.ctx.pending.request.Channels,
		), true
	case RemoteError:
		return StateFailed, errors.Wrap(ErrSubscriptionRejected, msg.Error()), true
	default:
		// only acknowledgements matter until verified
		return m.state, nil, false
	}
}

func (m *machine) onSubscribedMessage(ev event) (State, error, bool) {
	msg, err := m.opts.Codec.Decode(ev.data)
	if err != nil {
		m.logger.Warnf("ignoring undecodable message: %s", err)
		return m.state, nil, false
	}

	switch msg := msg.(type) {
	case Heartbeat:
		m.watchdog.Beat(time.Now())
		m.events.heartbeat(msg)
	case Ticker:
		m.events.ticker(msg)
	case Subscriptions:
		m.events.subscriptions(msg)
	case RemoteError:
		m.logger.Warnf("feed reported an error: %s", msg)
	default:
		m.logger.Debugf("ignoring message of type %q", msg.Type())
	}

	return m.state, nil, false
}

func (m *machine) onWatchdogCheck(event) (State, error, bool) {
	if !m.watchdog.Check(time.Now()) {
		return m.state, nil, false
	}
	return StateTimedOut, errors.Wrapf(
		ErrLivenessTimeout, "last heartbeat at %s", m.watchdog.LastSeen().Format(time.RFC3339Nano),
	), true
}

func errorString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
