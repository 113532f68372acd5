package wsfeed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// fakeHandle is a Handle driven by the test: signals are raised explicitly and sent payloads recorded.
type fakeHandle struct {
	url     string
	signals *EventEmitterCallback[SignalKind, Signal]
	opened  chan struct{}
	sent    chan []byte

	mu        sync.Mutex
	openCount int
	closed    bool
	// afterOff runs after every listener removal, as a reader goroutine interleaving would.
	afterOff func(kind SignalKind)

	OnOpen func(h *fakeHandle)
}

func newFakeHandle(url string) *fakeHandle {
	return &fakeHandle{
		url:     url,
		signals: NewEventEmitter[SignalKind, Signal](),
		opened:  make(chan struct{}, 1),
		sent:    make(chan []byte, 16),
	}
}

func (h *fakeHandle) Open(context.Context) {
	h.mu.Lock()
	h.openCount++
	onOpen := h.OnOpen
	h.mu.Unlock()

	h.opened <- struct{}{}
	if onOpen != nil {
		go onOpen(h)
	}
}

func (h *fakeHandle) Send(data []byte) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return ErrConnectionClosed
	}
	h.sent <- data
	return nil
}

func (h *fakeHandle) On(kind SignalKind, listener SignalListener) ListenerID {
	return h.signals.On(kind, listener)
}

func (h *fakeHandle) Off(kind SignalKind, id ListenerID) bool {
	removed := h.signals.Off(kind, id)

	h.mu.Lock()
	afterOff := h.afterOff
	h.mu.Unlock()
	if afterOff != nil {
		afterOff(kind)
	}

	return removed
}

func (h *fakeHandle) setAfterOff(fn func(kind SignalKind)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.afterOff = fn
}

func (h *fakeHandle) ListenerCount(kind SignalKind) int {
	return h.signals.ListenerCount(kind)
}

func (h *fakeHandle) totalListeners() int {
	return h.signals.TotalListenerCount()
}

func (h *fakeHandle) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *fakeHandle) emitOpened() { h.signals.Latch(SignalOpened, Signal{Kind: SignalOpened}) }

func (h *fakeHandle) emitError(err error) {
	h.signals.Latch(SignalError, Signal{Kind: SignalError, Err: err})
}

func (h *fakeHandle) emitClosed() {
	h.signals.Latch(SignalClosed, Signal{Kind: SignalClosed, Err: ErrConnectionClosed})
}

func (h *fakeHandle) emitMessage(data string) {
	h.signals.Emit(SignalMessage, Signal{Kind: SignalMessage, Data: []byte(data)})
}

// fakeDialer hands out fakeHandles and keeps every one of them.
type fakeDialer struct {
	mu      sync.Mutex
	handles []*fakeHandle
	dialed  chan *fakeHandle
	// onOpen is installed on every handle dialed from now on.
	onOpen func(h *fakeHandle)
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan *fakeHandle, 128)}
}

func (d *fakeDialer) Dial(url string) Handle {
	h := newFakeHandle(url)

	d.mu.Lock()
	h.OnOpen = d.onOpen
	d.handles = append(d.handles, h)
	d.mu.Unlock()

	d.dialed <- h
	return h
}

func (d *fakeDialer) setOnOpen(fn func(h *fakeHandle)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onOpen = fn
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handles)
}

func (d *fakeDialer) all() []*fakeHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*fakeHandle, len(d.handles))
	copy(out, d.handles)
	return out
}

// next waits for the next dialed handle and for the machine to open it.
func (d *fakeDialer) next(t *testing.T) *fakeHandle {
	t.Helper()

	select {
	case h := <-d.dialed:
		select {
		case <-h.opened:
		case <-time.After(waitFor):
			t.Fatal("handle was dialed but never opened")
		}
		return h
	case <-time.After(waitFor):
		t.Fatal("no handle dialed")
	}
	return nil
}

func waitSent(t *testing.T, h *fakeHandle) []byte {
	t.Helper()

	select {
	case data := <-h.sent:
		return data
	case <-time.After(waitFor):
		t.Fatal("nothing sent")
	}
	return nil
}

func requireState(t *testing.T, c *Client, state State) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == state }, waitFor, time.Millisecond,
		"expected state %s, got %s", state, c.State())
}

// mockPolicy records every decision asked to the reconnect policy.
type mockPolicy struct {
	mock.Mock
}

func (m *mockPolicy) Next(failures int) (time.Duration, bool) {
	args := m.Called(failures)
	return args.Get(0).(time.Duration), args.Bool(1)
}

const (
	ackETHUSD = `{"type":"subscriptions","channels":[` +
		`{"name":"heartbeat","product_ids":["ETH-USD"]},` +
		`{"name":"ticker","product_ids":["ETH-USD"]}]}`
	heartbeatETHUSD = `{"type":"heartbeat","sequence":90,"last_trade_id":20,` +
		`"product_id":"ETH-USD","time":"2021-05-28T13:38:19.460Z"}`
	tickerETHUSD = `{"type":"ticker","sequence":12345,"product_id":"ETH-USD","price":"2712.01",` +
		`"open_24h":"2650.10","volume_24h":"1000.00000001","low_24h":"2600.5","high_24h":"2750",` +
		`"volume_30d":"30000.123","best_bid":"2711.99","best_ask":"2712.01","side":"buy",` +
		`"time":"2021-05-28T13:38:19.460Z","trade_id":7,"last_size":"0.01000000"}`
)
