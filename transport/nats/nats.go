// Package nats provides NATS transports. "nats" uses core NATS subjects;
// "nats-jetstream" persists messages in JetStream and redelivers on nack.
package nats

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/drblury/portable/transport"
)

const (
	// TransportName is the name used to register the core NATS transport.
	TransportName = "nats"
	// JetStreamTransportName is the name used to register the JetStream transport.
	JetStreamTransportName = "nats-jetstream"

	// DurablePrefix names JetStream consumers.
	DurablePrefix = "portable"
)

// NatsOptions are applied to every connection opened by this package.
var NatsOptions = []nc.Option{
	nc.Name("portable"),
	nc.RetryOnFailedConnect(true),
	nc.Timeout(30 * time.Second),
	nc.ReconnectWait(time.Second),
}

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return nats.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg nats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return nats.NewSubscriber(cfg, logger)
}

func init() {
	transport.Register(TransportName, Build)
	transport.Register(JetStreamTransportName, BuildJetStream)
}

// Build creates a core NATS transport. Core NATS has no acknowledgements, so
// nacked messages are not redelivered.
func Build(_ context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	return build(cfg, nats.JetStreamConfig{Disabled: true}, logger)
}

// BuildJetStream creates a transport backed by JetStream streams, provisioned
// on first use.
func BuildJetStream(_ context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	return build(cfg, nats.JetStreamConfig{
		AutoProvision: true,
		TrackMsgId:    true,
		DurablePrefix: DurablePrefix,
	}, logger)
}

func build(cfg transport.Config, js nats.JetStreamConfig, logger watermill.LoggerAdapter) (transport.Transport, error) {
	url := cfg.GetNATSURL()
	marshaler := &nats.NATSMarshaler{}

	publisher, err := PublisherFactory(
		nats.PublisherConfig{
			URL:         url,
			NatsOptions: NatsOptions,
			Marshaler:   marshaler,
			JetStream:   js,
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(
		nats.SubscriberConfig{
			URL:         url,
			NatsOptions: NatsOptions,
			Unmarshaler: marshaler,
			JetStream:   js,
		},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}
