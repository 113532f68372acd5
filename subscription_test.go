package wsfeed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerify(t *testing.T) {
	req := NewProductsRequest("ETH-USD")

	tests := []struct {
		name string
		req  SubscribeRequest
		ack  Subscriptions
		want bool
	}{
		{
			name: "exact match",
			req:  req,
			ack: Subscriptions{Channels: []Channel{
				NewChannel(HeartbeatChannel, "ETH-USD"),
				NewChannel(TickerChannel, "ETH-USD"),
			}},
			want: true,
		},
		{
			name: "missing channel",
			req:  req,
			ack: Subscriptions{Channels: []Channel{
				NewChannel(HeartbeatChannel, "ETH-USD"),
			}},
			want: false,
		},
		{
			name: "missing product",
			req:  req,
			ack: Subscriptions{Channels: []Channel{
				NewChannel(HeartbeatChannel),
				NewChannel(TickerChannel, "ETH-USD"),
			}},
			want: false,
		},
		{
			name: "superset of channels and products",
			req:  req,
			ack: Subscriptions{Channels: []Channel{
				NewChannel("status"),
				NewChannel(HeartbeatChannel, "BTC-USD", "ETH-USD"),
				NewChannel(TickerChannel, "ETH-USD", "BTC-USD"),
			}},
			want: true,
		},
		{
			name: "order is irrelevant",
			req: NewSubscribeRequest(
				NewChannel(TickerChannel, "BTC-USD", "ETH-USD"),
				NewChannel(HeartbeatChannel, "ETH-USD"),
			),
			ack: Subscriptions{Channels: []Channel{
				NewChannel(HeartbeatChannel, "ETH-USD"),
				NewChannel(TickerChannel, "ETH-USD", "BTC-USD"),
			}},
			want: true,
		},
		{
			name: "products split across duplicated channels",
			req:  NewSubscribeRequest(NewChannel(TickerChannel, "BTC-USD", "ETH-USD")),
			ack: Subscriptions{Channels: []Channel{
				NewChannel(TickerChannel, "ETH-USD"),
				NewChannel(TickerChannel, "BTC-USD"),
			}},
			want: false,
		},
		{
			name: "one of the duplicated channels covers the request",
			req:  NewSubscribeRequest(NewChannel(TickerChannel, "BTC-USD", "ETH-USD")),
			ack: Subscriptions{Channels: []Channel{
				NewChannel(TickerChannel, "ETH-USD"),
				NewChannel(TickerChannel, "ETH-USD", "BTC-USD", "SOL-USD"),
			}},
			want: true,
		},
		{
			name: "empty acknowledgement",
			req:  req,
			ack:  Subscriptions{},
			want: false,
		},
		{
			name: "channel without products",
			req:  NewSubscribeRequest(NewChannel("status")),
			ack:  Subscriptions{Channels: []Channel{NewChannel("status")}},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Verify(tt.req, tt.ack))
		})
	}
}

func TestRequestsDoNotAliasCallerSlices(t *testing.T) {
	ids := []string{"ETH-USD"}
	req := NewSubscribeRequest(NewChannel(TickerChannel, ids...))
	ids[0] = "BTC-USD"

	clone := req.clone()
	req.Channels[0].ProductIDs[0] = "SOL-USD"

	assert.Equal(t, []string{"SOL-USD"}, req.Channels[0].ProductIDs)
	assert.Equal(t, []string{"ETH-USD"}, clone.Channels[0].ProductIDs)
	assert.False(t, req.IsEmpty())
	assert.True(t, SubscribeRequest{}.IsEmpty())
}
