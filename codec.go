package wsfeed

import (
	"encoding/json"

	"github.com/pkg/errors"
)

var ErrMalformedMessage = errors.New("malformed message")

// Codec translates between wire payloads and typed messages.
type Codec interface {
	// Decode returns one of Subscriptions, Heartbeat, Ticker, RemoteError or Unknown.
	Decode(data []byte) (Message, error)
	EncodeSubscribe(req SubscribeRequest) ([]byte, error)
}

type jsonCodec struct{}

// NewJSONCodec returns the codec for the feed's JSON text protocol.
func NewJSONCodec() Codec {
	return jsonCodec{}
}

type envelope struct {
	Type MessageType `json:"type"`
}

type subscribeEnvelope struct {
	Type     MessageType `json:"type"`
	Channels []Channel   `json:"channels"`
}

func (jsonCodec) EncodeSubscribe(req SubscribeRequest) ([]byte, error) {
	// empty lists are sent as [] rather than null
	channels := make([]Channel, len(req.Channels))
	for i, c := range req.Channels {
		channels[i] = NewChannel(c.Name, c.ProductIDs...)
	}

	return json.Marshal(subscribeEnvelope{Type: SubscribeMessage, Channels: channels})
}

func (jsonCodec) Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(ErrMalformedMessage, err.Error())
	}

	var (
		msg Message
		err error
	)

	switch env.Type {
	case SubscriptionsMessage:
		var m Subscriptions
		err = json.Unmarshal(data, &m)
		msg = m
	case HeartbeatMessage:
		var m Heartbeat
		err = json.Unmarshal(data, &m)
		msg = m
	case TickerMessage:
		var m Ticker
		err = json.Unmarshal(data, &m)
		msg = m
	case ErrorMessage:
		var m RemoteError
		err = json.Unmarshal(data, &m)
		msg = m
	case "":
		return nil, errors.Wrap(ErrMalformedMessage, "missing message type")
	default:
		raw := make([]byte, len(data))
		copy(raw, data)
		msg = Unknown{Kind: env.Type, Raw: raw}
	}

	if err != nil {
		return nil, errors.Wrapf(ErrMalformedMessage, "%s: %s", env.Type, err)
	}

	return msg, nil
}
