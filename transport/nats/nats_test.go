package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/portable/transport"
	"github.com/drblury/portable/transport/transporttest"
)

func stubFactories(t *testing.T) (*nats.PublisherConfig, *nats.SubscriberConfig) {
	t.Helper()
	originalPub, originalSub := PublisherFactory, SubscriberFactory
	t.Cleanup(func() {
		PublisherFactory = originalPub
		SubscriberFactory = originalSub
	})

	var pubCfg nats.PublisherConfig
	var subCfg nats.SubscriberConfig
	PublisherFactory = func(cfg nats.PublisherConfig, _ watermill.LoggerAdapter) (message.Publisher, error) {
		pubCfg = cfg
		return &transporttest.Publisher{}, nil
	}
	SubscriberFactory = func(cfg nats.SubscriberConfig, _ watermill.LoggerAdapter) (message.Subscriber, error) {
		subCfg = cfg
		return &transporttest.Subscriber{}, nil
	}
	return &pubCfg, &subCfg
}

func TestRegister(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))
	assert.True(t, transport.DefaultRegistry.Has(JetStreamTransportName))
}

func TestBuildCoreNATS(t *testing.T) {
	pubCfg, subCfg := stubFactories(t)

	tr, err := Build(context.Background(), &transporttest.Config{NATSURL: "nats://localhost:4222"}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.NotNil(t, tr.Publisher)
	assert.NotNil(t, tr.Subscriber)

	assert.Equal(t, "nats://localhost:4222", pubCfg.URL)
	assert.Equal(t, "nats://localhost:4222", subCfg.URL)
	assert.True(t, pubCfg.JetStream.Disabled)
	assert.True(t, subCfg.JetStream.Disabled)
	assert.Len(t, pubCfg.NatsOptions, len(NatsOptions))
	assert.Same(t, pubCfg.Marshaler, subCfg.Unmarshaler)
}

func TestBuildJetStream(t *testing.T) {
	pubCfg, subCfg := stubFactories(t)

	_, err := BuildJetStream(context.Background(), &transporttest.Config{NATSURL: "nats://localhost:4222"}, watermill.NopLogger{})
	require.NoError(t, err)

	assert.False(t, pubCfg.JetStream.Disabled)
	assert.True(t, pubCfg.JetStream.AutoProvision)
	assert.True(t, pubCfg.JetStream.TrackMsgId)
	assert.Equal(t, DurablePrefix, subCfg.JetStream.DurablePrefix)
}

func TestBuildErrors(t *testing.T) {
	t.Run("publisher", func(t *testing.T) {
		stubFactories(t)
		PublisherFactory = func(nats.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
			return nil, errors.New("no servers available")
		}
		_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
		assert.EqualError(t, err, "no servers available")
	})

	t.Run("subscriber closes publisher", func(t *testing.T) {
		stubFactories(t)
		pub := &transporttest.Publisher{}
		PublisherFactory = func(nats.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
			return pub, nil
		}
		SubscriberFactory = func(nats.SubscriberConfig, watermill.LoggerAdapter) (message.Subscriber, error) {
			return nil, errors.New("subscribe timeout")
		}
		_, err := BuildJetStream(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
		assert.EqualError(t, err, "subscribe timeout")
		assert.True(t, pub.Closed)
	})
}
