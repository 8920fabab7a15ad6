// Package transport resolves the publisher and subscriber pair a Service runs on.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/portable/internal/runtime/config"
	errspkg "github.com/drblury/portable/internal/runtime/errors"
	pubtransport "github.com/drblury/portable/transport"

	// Built-in transports register themselves on import.
	_ "github.com/drblury/portable/transport/transports"
)

// Transport combines a publisher and subscriber pair produced by a factory.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Factory builds the transport selected by the configuration.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)

func (f FactoryFunc) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	return f(ctx, conf, logger)
}

// DefaultFactory builds transports through the default transport registry.
func DefaultFactory() Factory {
	return registryFactory{registry: pubtransport.DefaultRegistry}
}

// RegistryFactory builds transports through registry.
func RegistryFactory(registry *pubtransport.Registry) Factory {
	return registryFactory{registry: registry}
}

type registryFactory struct {
	registry *pubtransport.Registry
}

func (f registryFactory) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	if conf == nil {
		return Transport{}, errspkg.ErrConfigRequired
	}
	t, err := f.registry.Build(ctx, conf, logger)
	if err != nil {
		return Transport{}, err
	}
	return Transport{Publisher: t.Publisher, Subscriber: t.Subscriber}, nil
}
