package wsfeed

const (
	HeartbeatChannel = "heartbeat"
	TickerChannel    = "ticker"
)

// Channel is a named stream kind scoped to a set of product ids.
type Channel struct {
	Name       string   `json:"name"`
	ProductIDs []string `json:"product_ids"`
}

// NewChannel copies productIDs so the channel cannot be mutated through the caller's slice.
func NewChannel(name string, productIDs ...string) Channel {
	ids := make([]string, len(productIDs))
	copy(ids, productIDs)
	return Channel{Name: name, ProductIDs: ids}
}

// SubscribeRequest is the ordered list of channels the client wishes to receive.
type SubscribeRequest struct {
	Channels []Channel `json:"channels"`
}

// NewSubscribeRequest builds a request from channels.
func NewSubscribeRequest(channels ...Channel) SubscribeRequest {
	return SubscribeRequest{Channels: channels}
}

// NewProductsRequest subscribes productIDs to the heartbeat and ticker channels.
func NewProductsRequest(productIDs ...string) SubscribeRequest {
	return NewSubscribeRequest(
		NewChannel(HeartbeatChannel, productIDs...),
		NewChannel(TickerChannel, productIDs...),
	)
}

func (r SubscribeRequest) IsEmpty() bool {
	return len(r.Channels) == 0
}

// clone returns a deep copy, so an accepted request is never aliased by the caller.
func (r SubscribeRequest) clone() SubscribeRequest {
	channels := make([]Channel, len(r.Channels))
	for i, c := range r.Channels {
		channels[i] = NewChannel(c.Name, c.ProductIDs...)
	}
	return SubscribeRequest{Channels: channels}
}

// Verify reports whether ack covers req: every requested channel must be acknowledged under the same
// name with, at least, every requested product id. Channel and product order are irrelevant. When a
// channel name is acknowledged more than once, a single one of those entries has to cover the request;
// product ids are never combined across entries.
func Verify(req SubscribeRequest, ack Subscriptions) bool {
	for _, requested := range req.Channels {
		if !acknowledged(requested, ack.Channels) {
			return false
		}
	}

	return true
}

func acknowledged(requested Channel, acked []Channel) bool {
	for _, c := range acked {
		if c.Name == requested.Name && covers(c.ProductIDs, requested.ProductIDs) {
			return true
		}
	}

	return false
}

func covers(have, want []string) bool {
	ids := make(map[string]struct{}, len(have))
	for _, id := range have {
		ids[id] = struct{}{}
	}
	for _, id := range want {
		if _, ok := ids[id]; !ok {
			return false
		}
	}

	return true
}
