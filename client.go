package wsfeed

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	DefaultURL                   = "wss://ws-feed.exchange.coinbase.com"
	DefaultReconnectDelay        = time.Second
	DefaultMaxReconnectAttempts  = 60
	DefaultLivenessTimeout       = 10 * time.Second
	DefaultLivenessCheckInterval = time.Second
)

// Options configures a Client. Zero values are replaced by defaults.
type Options struct {
	URL                  string
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	// LivenessTimeout is how long the feed may stay silent (no heartbeat) before reconnecting.
	LivenessTimeout time.Duration
	// LivenessCheckInterval is how often silence is checked for.
	LivenessCheckInterval time.Duration
	// Policy overrides the fixed delay policy built from ReconnectDelay and MaxReconnectAttempts.
	Policy ReconnectPolicy
	Dialer Dialer
	Codec  Codec
	Logger Logger
}

func (o Options) withDefaults() Options {
	if o.URL == "" {
		o.URL = DefaultURL
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = DefaultReconnectDelay
	}
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if o.LivenessTimeout <= 0 {
		o.LivenessTimeout = DefaultLivenessTimeout
	}
	if o.LivenessCheckInterval <= 0 {
		o.LivenessCheckInterval = DefaultLivenessCheckInterval
	}
	if o.Policy == nil {
		o.Policy = FixedDelayPolicy{Delay: o.ReconnectDelay, MaxAttempts: o.MaxReconnectAttempts}
	}
	if o.Logger == nil {
		o.Logger = newNopLogger()
	}
	if o.Codec == nil {
		o.Codec = NewJSONCodec()
	}
	if o.Dialer == nil {
		o.Dialer = NewWebsocketDialer(o.Logger, WebsocketDialerOptions{})
	}
	return o
}

// Client is a subscription oriented feed client. It connects, subscribes, verifies the acknowledgement,
// watches heartbeats and transparently reconnects and resubscribes after a disconnect, until it gives up
// after too many consecutive failed attempts.
//
// Every transition runs on a single goroutine owned by the client; listeners registered with the On*
// methods are invoked on that goroutine and must not block.
type Client struct {
	m         *machine
	closeOnce sync.Once
}

func NewClient(opts Options) *Client {
	opts = opts.withDefaults()
	logger := opts.Logger.WithField("session", uuid.NewString())

	c := &Client{m: newMachine(opts, logger)}
	go c.m.run()

	return c
}

// Connect opens the connection. It is only valid while Idle and returns once Connected, or with an
// ErrTransportOpen error if the transport could not be opened.
func (c *Client) Connect(ctx context.Context) error {
	return c.request(ctx, event{kind: evConnect})
}

// Subscribe sends req and returns once the acknowledgement verified. It is valid while Connected,
// Reconnected or Subscribed, in which case req replaces the current subscription once verified.
// A failed verification leaves the client Failed.
func (c *Client) Subscribe(ctx context.Context, req SubscribeRequest) error {
	if req.IsEmpty() {
		return errors.New("subscribe request has no channels")
	}

	req = req.clone()
	payload, err := c.m.opts.Codec.EncodeSubscribe(req)
	if err != nil {
		return errors.Wrap(err, "cannot encode subscribe request")
	}

	return c.request(ctx, event{
		kind:    evSubscribe,
		request: &outboundSubscription{request: req, payload: payload},
	})
}

// SubscribeProducts subscribes productIDs to the heartbeat and ticker channels.
func (c *Client) SubscribeProducts(ctx context.Context, productIDs ...string) error {
	if len(productIDs) == 0 {
		return errors.New("no product ids to subscribe to")
	}
	return c.Subscribe(ctx, NewProductsRequest(productIDs...))
}

// Close removes every listener, cancels pending timers and closes the connection. Further operations
// fail with ErrClosed. Calling Close more than once is a no-op.
//
// Close waits for the client to shut down, except when called from a listener: the shutdown then
// happens once the listener returns, and Done reports its completion.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.m.post(event{kind: evClose})
	})
	if c.m.inListener() {
		return nil
	}
	<-c.m.done
	return nil
}

// Done is closed once the client has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.m.done
}

// State returns a snapshot of the current state.
func (c *Client) State() State {
	return c.m.State()
}

func (c *Client) OnTicker(fn func(Ticker)) (remove func()) {
	id := c.m.events.tickers.On(EventTicker, fn)
	return func() { c.m.events.tickers.Off(EventTicker, id) }
}

func (c *Client) OnHeartbeat(fn func(Heartbeat)) (remove func()) {
	id := c.m.events.heartbeats.On(EventHeartbeat, fn)
	return func() { c.m.events.heartbeats.Off(EventHeartbeat, id) }
}

func (c *Client) OnSubscriptions(fn func(Subscriptions)) (remove func()) {
	id := c.m.events.subscriptionz.On(EventSubscriptions, fn)
	return func() { c.m.events.subscriptionz.Off(EventSubscriptions, id) }
}

// OnTimeout is notified when the feed went silent for longer than the liveness timeout. The client
// reconnects on its own afterwards.
func (c *Client) OnTimeout(fn func(error)) (remove func()) {
	id := c.m.events.errs.On(EventTimeout, fn)
	return func() { c.m.events.errs.Off(EventTimeout, id) }
}

// OnFailure is notified once when the client reaches the terminal Failed state.
func (c *Client) OnFailure(fn func(error)) (remove func()) {
	id := c.m.events.errs.On(EventFailure, fn)
	return func() { c.m.events.errs.Off(EventFailure, id) }
}

// OnTransition is notified every time the client moves along edge.
func (c *Client) OnTransition(edge Edge, fn func(Transition)) (remove func()) {
	id := c.m.transitions.On(edge, fn)
	return func() { c.m.transitions.Off(edge, id) }
}

// OnAnyTransition is notified on every transition.
func (c *Client) OnAnyTransition(fn func(Transition)) (remove func()) {
	return c.OnTransition(anyEdge, fn)
}

func (c *Client) request(ctx context.Context, ev event) error {
	ev.reply = make(chan error, 1)
	if !c.m.post(ev) {
		return ErrClosed
	}

	select {
	case err := <-ev.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.m.done:
		select {
		case err := <-ev.reply:
			return err
		default:
			return ErrClosed
		}
	}
}
