package wsfeed

import (
	"fmt"
	"strconv"
	"time"
)

type MessageType string

const (
	SubscribeMessage     MessageType = "subscribe"
	SubscriptionsMessage MessageType = "subscriptions"
	HeartbeatMessage     MessageType = "heartbeat"
	TickerMessage        MessageType = "ticker"
	ErrorMessage         MessageType = "error"
)

// Decimal is a decimal number exactly as transmitted by the feed. It is never parsed on the way
// through the client; consumers convert it when they need arithmetic.
type Decimal string

func (d Decimal) String() string {
	return string(d)
}

// Float64 parses the decimal. Precision beyond float64 is lost.
func (d Decimal) Float64() (float64, error) {
	return strconv.ParseFloat(string(d), 64)
}

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Message is an inbound message decoded by a Codec.
type Message interface {
	Type() MessageType
}

// Subscriptions is the remote acknowledgement of the channels it has activated.
type Subscriptions struct {
	Channels []Channel `json:"channels"`
}

func (Subscriptions) Type() MessageType { return SubscriptionsMessage }

// Heartbeat is the liveness beat the feed pushes once per second per product.
type Heartbeat struct {
	Sequence    int64     `json:"sequence"`
	LastTradeID int64     `json:"last_trade_id"`
	ProductID   string    `json:"product_id"`
	Time        time.Time `json:"time"`
}

func (Heartbeat) Type() MessageType { return HeartbeatMessage }

// Ticker is a data update for a product.
type Ticker struct {
	Sequence  int64     `json:"sequence"`
	ProductID string    `json:"product_id"`
	Price     Decimal   `json:"price"`
	Open24h   Decimal   `json:"open_24h"`
	Volume24h Decimal   `json:"volume_24h"`
	Low24h    Decimal   `json:"low_24h"`
	High24h   Decimal   `json:"high_24h"`
	Volume30d Decimal   `json:"volume_30d"`
	BestBid   Decimal   `json:"best_bid"`
	BestAsk   Decimal   `json:"best_ask"`
	Side      Side      `json:"side"`
	Time      time.Time `json:"time"`
	TradeID   int64     `json:"trade_id"`
	LastSize  Decimal   `json:"last_size"`
}

func (Ticker) Type() MessageType { return TickerMessage }

// RemoteError is an error reported by the feed, typically in response to a bad subscribe request.
type RemoteError struct {
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

func (RemoteError) Type() MessageType { return ErrorMessage }

func (e RemoteError) Error() string {
	if e.Reason == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Reason)
}

// Unknown is any well formed message whose type the codec does not model.
type Unknown struct {
	Kind MessageType
	Raw  []byte
}

func (u Unknown) Type() MessageType { return u.Kind }
