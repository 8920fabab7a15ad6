package transport

import (
	"context"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/portable/internal/runtime/config"
	errspkg "github.com/drblury/portable/internal/runtime/errors"
	pubtransport "github.com/drblury/portable/transport"
)

func TestDefaultFactoryBuildsChannel(t *testing.T) {
	tr, err := DefaultFactory().Build(context.Background(), &config.Config{PubSubSystem: "channel"}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.NotNil(t, tr.Publisher)
	assert.NotNil(t, tr.Subscriber)
}

func TestDefaultFactoryBuildsDummy(t *testing.T) {
	tr, err := DefaultFactory().Build(context.Background(), &config.Config{PubSubSystem: "dummy"}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.NoError(t, tr.Publisher.Publish("anything"))
}

func TestFactoryRequiresConfig(t *testing.T) {
	_, err := DefaultFactory().Build(context.Background(), nil, watermill.NopLogger{})
	assert.ErrorIs(t, err, errspkg.ErrConfigRequired)
}

func TestRegistryFactoryUsesGivenRegistry(t *testing.T) {
	registry := pubtransport.NewRegistry()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	registry.Register("memory", func(context.Context, pubtransport.Config, watermill.LoggerAdapter) (pubtransport.Transport, error) {
		return pubtransport.Transport{Publisher: pubSub, Subscriber: pubSub}, nil
	})

	tr, err := RegistryFactory(registry).Build(context.Background(), &config.Config{PubSubSystem: "memory"}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.Same(t, pubSub, tr.Publisher)

	_, err = RegistryFactory(registry).Build(context.Background(), &config.Config{PubSubSystem: "channel"}, watermill.NopLogger{})
	assert.Error(t, err)
}

func TestFactoryFunc(t *testing.T) {
	called := false
	f := FactoryFunc(func(context.Context, *config.Config, watermill.LoggerAdapter) (Transport, error) {
		called = true
		return Transport{}, nil
	})
	_, err := f.Build(context.Background(), &config.Config{}, nil)
	require.NoError(t, err)
	assert.True(t, called)
}
