package sink

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sonirico/wsfeed"
)

var (
	tickerTime = time.Date(2021, 5, 28, 13, 38, 19, 460000000, time.UTC)

	ticker = wsfeed.Ticker{
		Sequence:  12345,
		ProductID: "ETH-USD",
		Price:     "2712.01",
		Open24h:   "2650.10",
		Volume24h: "1000.00000001",
		Low24h:    "2600.5",
		High24h:   "2750",
		Volume30d: "30000.123",
		BestBid:   "2711.99",
		BestAsk:   "2712.01",
		Side:      wsfeed.SideBuy,
		Time:      tickerTime,
		TradeID:   7,
		LastSize:  "0.01",
	}

	heartbeat = wsfeed.Heartbeat{Sequence: 90, LastTradeID: 20, ProductID: "ETH-USD", Time: tickerTime}
)

func testLogger(t *testing.T) wsfeed.Logger {
	return wsfeed.NewZapLogger(zaptest.NewLogger(t))
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) WriteTicker(t wsfeed.Ticker)       { m.Called(t) }
func (m *mockSink) WriteHeartbeat(h wsfeed.Heartbeat) { m.Called(h) }
func (m *mockSink) Close() error                      { return m.Called().Error(0) }

func TestFanout(t *testing.T) {
	first, second := &mockSink{}, &mockSink{}
	for _, s := range []*mockSink{first, second} {
		s.On("WriteTicker", ticker).Once()
		s.On("WriteHeartbeat", heartbeat).Once()
	}
	first.On("Close").Return(errors.New("boom"))
	second.On("Close").Return(nil)

	f := Fanout{first, second}
	f.WriteTicker(ticker)
	f.WriteHeartbeat(heartbeat)

	assert.EqualError(t, f.Close(), "boom")
	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestTickerPoint(t *testing.T) {
	p, err := TickerPoint(ticker)
	require.NoError(t, err)

	line := write.PointToLineProtocol(p, time.Millisecond)

	assert.True(t, strings.HasPrefix(line, "ticker,product_id=ETH-USD,side=buy "), line)
	for _, field := range []string{
		"price=2712.01", "open_24h=2650.1", "volume_24h=1000.00000001", "low_24h=2600.5",
		"high_24h=2750", "volume_30d=30000.123", "best_bid=2711.99", "best_ask=2712.01", "last_size=0.01",
	} {
		assert.Contains(t, line, field)
	}
	assert.True(t, strings.HasSuffix(strings.TrimSpace(line), " 1622209099460"), line)
}

func TestTickerPointSkipsMissingDecimals(t *testing.T) {
	p, err := TickerPoint(wsfeed.Ticker{ProductID: "ETH-USD", Price: "1.5", Time: tickerTime})
	require.NoError(t, err)

	line := write.PointToLineProtocol(p, time.Millisecond)
	assert.Contains(t, line, "price=1.5")
	assert.NotContains(t, line, "side=")
	assert.NotContains(t, line, "best_bid")
}

func TestTickerPointRejectsInvalidTickers(t *testing.T) {
	_, err := TickerPoint(wsfeed.Ticker{ProductID: "ETH-USD", Price: "NaN-ish"})
	assert.Error(t, err)

	_, err = TickerPoint(wsfeed.Ticker{ProductID: "ETH-USD"})
	assert.Error(t, err)
}

func TestInfluxSinkWritesBatches(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
		query  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		query = r.URL.RawQuery
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewInfluxSink(InfluxOptions{
		URL:           srv.URL,
		Token:         "token",
		Org:           "acme",
		Bucket:        "prices",
		FlushInterval: time.Hour,
	}, testLogger(t))

	s.WriteTicker(ticker)
	s.WriteTicker(wsfeed.Ticker{ProductID: "ETH-USD"})
	s.WriteHeartbeat(heartbeat)
	require.NoError(t, s.Close())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(bodies) > 0
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	all := strings.Join(bodies, "")
	assert.Equal(t, 1, strings.Count(all, "ticker,"))
	assert.Contains(t, all, "price=2712.01")
	assert.Contains(t, query, "bucket=prices")
	assert.Contains(t, query, "org=acme")
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads []string
	err      error
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, string(data))
	return p.err
}

func TestNATSSinkSubjects(t *testing.T) {
	pub := &recordingPublisher{}
	s := newNATSSink(pub, "md.", testLogger(t))

	s.WriteTicker(ticker)
	s.WriteHeartbeat(heartbeat)

	assert.Equal(t, []string{"md.ticker.ETH-USD", "md.heartbeat.ETH-USD"}, pub.subjects)
	assert.JSONEq(t, `{
		"sequence": 12345, "product_id": "ETH-USD", "price": "2712.01", "open_24h": "2650.10",
		"volume_24h": "1000.00000001", "low_24h": "2600.5", "high_24h": "2750", "volume_30d": "30000.123",
		"best_bid": "2711.99", "best_ask": "2712.01", "side": "buy", "time": "2021-05-28T13:38:19.46Z",
		"trade_id": 7, "last_size": "0.01"
	}`, pub.payloads[0])
	assert.JSONEq(t, `{
		"sequence": 90, "last_trade_id": 20, "product_id": "ETH-USD", "time": "2021-05-28T13:38:19.46Z"
	}`, pub.payloads[1])
	assert.NoError(t, s.Close())
}

func TestNATSSinkKeepsGoingOnPublishErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats: connection closed")}
	s := newNATSSink(pub, "md", testLogger(t))

	s.WriteTicker(ticker)
	s.WriteTicker(ticker)

	assert.Len(t, pub.subjects, 2)
}

func TestAttachRoutesClientEvents(t *testing.T) {
	c := wsfeed.NewClient(wsfeed.Options{Logger: testLogger(t)})
	defer func() { _ = c.Close() }()

	s := &mockSink{}
	detach := Attach(c, s)
	detach()
	s.AssertNotCalled(t, "WriteTicker", mock.Anything)
}
