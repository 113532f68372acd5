package sink

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/sonirico/wsfeed"
)

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink republishes tickers and heartbeats as JSON on <prefix>.<type>.<product id>.
type NATSSink struct {
	conn   *nats.Conn
	pub    publisher
	prefix string
	logger wsfeed.Logger
}

func NewNATSSink(url, prefix string, logger wsfeed.Logger) (*NATSSink, error) {
	logger = logger.WithField("sink", "nats")

	conn, err := nats.Connect(url,
		nats.Name("wsfeed"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnf("disconnected: %s", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infof("reconnected to %s", c.ConnectedUrlRedacted())
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot connect to nats at %s", url)
	}

	s := newNATSSink(conn, prefix, logger)
	s.conn = conn
	return s, nil
}

func newNATSSink(pub publisher, prefix string, logger wsfeed.Logger) *NATSSink {
	return &NATSSink{pub: pub, prefix: strings.TrimSuffix(prefix, "."), logger: logger}
}

func (s *NATSSink) Subject(kind wsfeed.MessageType, productID string) string {
	return s.prefix + "." + string(kind) + "." + productID
}

func (s *NATSSink) WriteTicker(t wsfeed.Ticker) {
	s.publish(s.Subject(wsfeed.TickerMessage, t.ProductID), t)
}

func (s *NATSSink) WriteHeartbeat(h wsfeed.Heartbeat) {
	s.publish(s.Subject(wsfeed.HeartbeatMessage, h.ProductID), h)
}

func (s *NATSSink) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Errorf("cannot encode %s: %s", subject, err)
		return
	}
	if err := s.pub.Publish(subject, data); err != nil {
		s.logger.Errorf("cannot publish %s: %s", subject, err)
	}
}

// Close drains the connection so that buffered messages are flushed.
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
