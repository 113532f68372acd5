package wsfeed

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/pkg/errors"
)

type (
	openConnectionParamsRepo interface {
		Get(ctx context.Context) (OpenConnectionParams, error)
	}

	ErrAdapter func(*websocket.Conn, *http.Response, error) error

	ErrorAdapters struct {
		OnDial ErrAdapter
	}

	WebsocketDialerOptions struct {
		// Dialer defaults to websocket.DefaultDialer.
		Dialer *websocket.Dialer
		// Params, when set, overrides the url handed to Dial.
		Params *OpenConnectionParamsRepo
		// Header is sent on the upgrade request when Params is not set.
		Header        http.Header
		ErrorAdapters ErrorAdapters
		// PingInterval enables active keep-alive pings when positive.
		PingInterval time.Duration
		// WriteTimeout bounds every frame write. Defaults to one second.
		WriteTimeout time.Duration
	}

	// WebsocketDialer creates websocket handles.
	WebsocketDialer struct {
		logger Logger
		opts   WebsocketDialerOptions
	}

	// wsHandle is a Handle over a single websocket connection. Reads and writes run on their own
	// goroutines; writes are serialized through the send channel.
	wsHandle struct {
		errAdapters              ErrorAdapters
		openConnectionParamsRepo openConnectionParamsRepo
		logger                   Logger
		dialer                   *websocket.Dialer
		signals                  *EventEmitterCallback[SignalKind, Signal]
		pingInterval             time.Duration
		writeTimeout             time.Duration

		connMu sync.Mutex
		conn   *websocket.Conn

		openOnce        sync.Once
		closeChan       chan struct{}
		closeOnce       sync.Once
		closeReason     error
		closeReasonOnce sync.Once
		send            chan frame // send frames to be sent over the wire
	}
)

func NewWebsocketDialer(logger Logger, opts WebsocketDialerOptions) *WebsocketDialer {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = time.Second
	}
	return &WebsocketDialer{
		logger: logger.WithField("net", "ws_connection"),
		opts:   opts,
	}
}

// Dial returns an idle handle for rawURL; nothing touches the network until Open.
func (d *WebsocketDialer) Dial(rawURL string) Handle {
	var params openConnectionParamsRepo
	if d.opts.Params != nil {
		params = d.opts.Params
	} else {
		params = NewOpenConnectionParamsRepo(d.logger, StaticOpenConnectionParams(rawURL, d.opts.Header))
	}

	return &wsHandle{
		errAdapters:              d.opts.ErrorAdapters,
		openConnectionParamsRepo: params,
		logger:                   d.logger,
		dialer:                   d.opts.Dialer,
		signals:                  NewEventEmitter[SignalKind, Signal](),
		pingInterval:             d.opts.PingInterval,
		writeTimeout:             d.opts.WriteTimeout,
		closeChan:                make(chan struct{}),
		send:                     make(chan frame, 32),
	}
}

func (w *wsHandle) On(kind SignalKind, listener SignalListener) ListenerID {
	return w.signals.On(kind, listener)
}

func (w *wsHandle) Off(kind SignalKind, id ListenerID) bool {
	return w.signals.Off(kind, id)
}

func (w *wsHandle) ListenerCount(kind SignalKind) int {
	return w.signals.ListenerCount(kind)
}

// Open initiates the websocket connection in the background.
func (w *wsHandle) Open(ctx context.Context) {
	w.openOnce.Do(func() {
		go w.start(ctx)
	})
}

// Send queues a text frame.
func (w *wsHandle) Send(data []byte) error {
	select {
	case <-w.closeChan:
		return ErrConnectionClosed
	default:
	}

	select {
	case w.send <- frame{kind: dataFrame, data: data}:
		return nil
	case <-w.closeChan:
		return ErrConnectionClosed
	}
}

// Close terminates the websocket connection and releases its goroutines.
func (w *wsHandle) Close() {
	w.safeClose()
}

// CloseErr returns an error that explains why the websocket connection was closed.
func (w *wsHandle) CloseErr() error {
	return w.closeReason
}

func (w *wsHandle) start(ctx context.Context) {
	p, err := w.openConnectionParamsRepo.Get(ctx)
	if err != nil {
		w.fail(err)
		return
	}

	conn, resp, err := w.dialer.DialContext(ctx, p.URL.String(), p.Header)
	if err = w.handleDialError(conn, resp, err); err != nil {
		w.logger.Errorf("connection err to %s: %s", p.URL.Redacted(), err)
		w.fail(err)
		return
	}

	w.connMu.Lock()
	select {
	case <-w.closeChan:
		// closed while dialing
		w.connMu.Unlock()
		_ = conn.Close()
		w.fail(ErrTerminated)
		return
	default:
	}
	w.conn = conn
	w.connMu.Unlock()

	w.logger.Debugf("success opening connection to %s", p.URL.Redacted())

	conn.SetPingHandler(func(appData string) error {
		w.logger.Debugln("<= [PING]")
		w.replyPingWithPong([]byte(appData))
		return nil
	})

	conn.SetPongHandler(func(string) error {
		w.logger.Debugln("<= [PONG]")
		return nil
	})

	w.signals.Latch(SignalOpened, Signal{Kind: SignalOpened})

	go w.read(conn)
	go w.write(conn)
	if w.pingInterval > 0 {
		go w.keepAlive(w.pingInterval)
	}
}

func (w *wsHandle) fail(err error) {
	w.signals.Latch(SignalError, Signal{Kind: SignalError, Err: err})
}

func (w *wsHandle) read(conn *websocket.Conn) {
	defer w.safeClose()

	for {
		messageType, bts, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.closeChan:
				w.setCloseReason(ErrTerminated)
			default:
				w.logger.Errorf("error occurred on websocket read: %s", err)
				w.setCloseReason(errors.Wrap(
					ErrConnectionClosed,
					"error occurred on websocket read: "+err.Error(),
				))
			}
			return
		}

		switch messageType {
		case websocket.TextMessage, websocket.BinaryMessage:
			w.logger.Debugf("<= [DATA] %s", bts)
			w.signals.Emit(SignalMessage, Signal{Kind: SignalMessage, Data: bts})
		}
	}
}

func (w *wsHandle) write(conn *websocket.Conn) {
	defer w.safeClose()

	for {
		select {
		case <-w.closeChan:
			return
		case f := <-w.send:
			deadline := time.Now().Add(w.writeTimeout)
			_ = conn.SetWriteDeadline(deadline)

			var err error

			switch f.kind {
			case pingFrame:
				w.logger.Debugln("=> [PING]")
				err = conn.WriteControl(websocket.PingMessage, f.data, deadline)
			case pongFrame:
				w.logger.Debugln("=> [PONG]")
				err = conn.WriteControl(websocket.PongMessage, f.data, deadline)
			case dataFrame:
				w.logger.Infof("=> [DATA] %s", f.data)
				err = conn.WriteMessage(websocket.TextMessage, f.data)
			}

			if err != nil {
				if websocket.IsCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					w.setCloseReason(ErrConnectionClosed)
				} else {
					w.setCloseReason(errors.Wrap(ErrConnectionClosed, err.Error()))
				}
				return
			}
		}
	}
}

func (w *wsHandle) safeClose() {
	w.closeOnce.Do(w.close)
}

func (w *wsHandle) close() {
	w.connMu.Lock()
	close(w.closeChan)
	conn := w.conn
	w.connMu.Unlock()

	if conn == nil {
		return
	}

	// WriteControl may run concurrently with the writer goroutine
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(w.writeTimeout),
	)
	_ = conn.Close()

	w.setCloseReason(ErrTerminated)
	w.signals.Latch(SignalClosed, Signal{Kind: SignalClosed, Err: w.CloseErr()})
}

func (w *wsHandle) setCloseReason(err error) {
	w.closeReasonOnce.Do(func() {
		w.closeReason = err
	})
}

func (w *wsHandle) handleDialError(conn *websocket.Conn, resp *http.Response, err error) error {
	if w.errAdapters.OnDial != nil {
		return w.errAdapters.OnDial(conn, resp, err)
	}

	// 1. Check HTTP errors first
	var msg string

	if resp != nil {
		if resp.Body != nil {
			bts, rerr := io.ReadAll(resp.Body)
			if rerr == nil {
				msg = string(bts)
			}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return errors.Wrap(ErrRateLimit, msg)
		}
	}

	// 2. Network errors
	if err != nil {
		return errors.Wrap(ErrCannotConnect, err.Error())
	}

	return nil
}
