// Package sink forwards decoded feed events to external systems.
package sink

import (
	"github.com/sonirico/wsfeed"
)

// Sink consumes feed events. Writes are called from the client's event goroutine and must not block.
type Sink interface {
	WriteTicker(t wsfeed.Ticker)
	WriteHeartbeat(h wsfeed.Heartbeat)
	// Close flushes pending writes and releases the underlying connection.
	Close() error
}

// Fanout writes every event to each of its sinks in order.
type Fanout []Sink

func (f Fanout) WriteTicker(t wsfeed.Ticker) {
	for _, s := range f {
		s.WriteTicker(t)
	}
}

func (f Fanout) WriteHeartbeat(h wsfeed.Heartbeat) {
	for _, s := range f {
		s.WriteHeartbeat(h)
	}
}

// Close closes every sink and returns the first error.
func (f Fanout) Close() error {
	var first error
	for _, s := range f {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Attach routes the client's tickers and heartbeats into s. The returned func detaches it.
func Attach(c *wsfeed.Client, s Sink) (detach func()) {
	offTicker := c.OnTicker(s.WriteTicker)
	offHeartbeat := c.OnHeartbeat(s.WriteHeartbeat)
	return func() {
		offTicker()
		offHeartbeat()
	}
}
