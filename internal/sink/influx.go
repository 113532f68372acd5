package sink

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pkg/errors"

	"github.com/sonirico/wsfeed"
)

const TickerMeasurement = "ticker"

type InfluxOptions struct {
	URL           string
	Token         string
	Org           string
	Bucket        string
	FlushInterval time.Duration
}

// InfluxSink batches tickers as points of the ticker measurement. Heartbeats are not stored.
type InfluxSink struct {
	client influxdb2.Client
	writer api.WriteAPI
	logger wsfeed.Logger
	done   chan struct{}
}

func NewInfluxSink(opts InfluxOptions, logger wsfeed.Logger) *InfluxSink {
	flush := opts.FlushInterval
	if flush <= 0 {
		flush = 10 * time.Second
	}

	client := influxdb2.NewClientWithOptions(
		opts.URL,
		opts.Token,
		influxdb2.DefaultOptions().
			SetFlushInterval(uint(flush.Milliseconds())).
			SetPrecision(time.Millisecond),
	)

	s := &InfluxSink{
		client: client,
		writer: client.WriteAPI(opts.Org, opts.Bucket),
		logger: logger.WithField("sink", "influx"),
		done:   make(chan struct{}),
	}
	go s.logErrors()

	return s
}

func (s *InfluxSink) logErrors() {
	errs := s.writer.Errors()
	for {
		select {
		case <-s.done:
			return
		case err, ok := <-errs:
			if !ok {
				return
			}
			s.logger.Errorf("cannot write points: %s", err)
		}
	}
}

func (s *InfluxSink) WriteTicker(t wsfeed.Ticker) {
	p, err := TickerPoint(t)
	if err != nil {
		s.logger.Warnf("skipping ticker %d of %s: %s", t.Sequence, t.ProductID, err)
		return
	}
	s.writer.WritePoint(p)
}

func (s *InfluxSink) WriteHeartbeat(wsfeed.Heartbeat) {}

func (s *InfluxSink) Close() error {
	s.writer.Flush()
	// closing the client closes the error channel, so logErrors keeps draining until then
	s.client.Close()
	close(s.done)
	return nil
}

// TickerPoint maps t to a point tagged by product and side. Decimals become float fields; missing
// decimals are left out.
func TickerPoint(t wsfeed.Ticker) (*write.Point, error) {
	decimals := []struct {
		name  string
		value wsfeed.Decimal
	}{
		{"price", t.Price},
		{"open_24h", t.Open24h},
		{"volume_24h", t.Volume24h},
		{"low_24h", t.Low24h},
		{"high_24h", t.High24h},
		{"volume_30d", t.Volume30d},
		{"best_bid", t.BestBid},
		{"best_ask", t.BestAsk},
		{"last_size", t.LastSize},
	}

	fields := make(map[string]any, len(decimals))
	for _, d := range decimals {
		if d.value == "" {
			continue
		}
		f, err := d.value.Float64()
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s %q", d.name, d.value)
		}
		fields[d.name] = f
	}
	if len(fields) == 0 {
		return nil, errors.New("ticker has no values")
	}

	tags := map[string]string{"product_id": t.ProductID}
	if t.Side != "" {
		tags["side"] = string(t.Side)
	}

	at := t.Time
	if at.IsZero() {
		at = time.Now()
	}

	return influxdb2.NewPoint(TickerMeasurement, tags, fields, at), nil
}
