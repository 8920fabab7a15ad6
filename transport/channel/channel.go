// Package channel provides the in-memory Go channel transport used for tests
// and single-process deployments.
package channel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/portable/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "channel"

// Alias is accepted as a second name for the same transport.
const Alias = "gochannel"

// ChannelConfig is passed to Factory on every Build.
var ChannelConfig = gochannel.Config{
	OutputChannelBuffer: 64,
}

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

func init() {
	Register()
}

// Register adds the transport to the default registry under both names.
func Register() {
	transport.Register(TransportName, Build)
	transport.Register(Alias, Build)
}

// Build creates a fresh in-memory pub/sub. Publisher and subscriber share it.
func Build(_ context.Context, _ transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	pub, sub := Factory(ChannelConfig, logger)
	return transport.Transport{
		Publisher:  pub,
		Subscriber: sub,
	}, nil
}
