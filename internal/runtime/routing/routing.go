// Package routing derives transport routing keys from message wire types.
package routing

import (
	"context"
	"strings"

	"github.com/drblury/portable/internal/runtime/bus"
	"github.com/drblury/portable/internal/runtime/envelope"
	errspkg "github.com/drblury/portable/internal/runtime/errors"
	"github.com/drblury/portable/internal/runtime/typeregistry"
)

// Placeholder is replaced by the message wire type in a routing key pattern.
const Placeholder = "{messageType}"

// DefaultPattern routes by the bare wire type.
const DefaultPattern = Placeholder

// KeyMiddleware attaches an AMQPStamp carrying a routing key computed from the
// message wire type, unless the envelope already pins a non-empty key.
type KeyMiddleware struct {
	registry *typeregistry.Registry
	pattern  string
}

var _ bus.Middleware = (*KeyMiddleware)(nil)

// NewKeyMiddleware validates pattern and returns the middleware.
func NewKeyMiddleware(registry *typeregistry.Registry, pattern string) (*KeyMiddleware, error) {
	if registry == nil {
		return nil, errspkg.ErrRegistryRequired
	}
	if !strings.Contains(pattern, Placeholder) {
		return nil, errspkg.ErrInvalidPattern
	}
	return &KeyMiddleware{registry: registry, pattern: pattern}, nil
}

// Pattern returns the configured pattern.
func (m *KeyMiddleware) Pattern() string {
	return m.pattern
}

// Key computes the routing key for a wire type.
func (m *KeyMiddleware) Key(wireType string) string {
	return strings.ReplaceAll(m.pattern, Placeholder, wireType)
}

// Apply returns env with the routing key set. It is the pure part of Handle.
func (m *KeyMiddleware) Apply(env envelope.Envelope) (envelope.Envelope, error) {
	current, ok := envelope.LastOf[envelope.AMQPStamp](env)
	if ok && current.RoutingKey != "" {
		return env, nil
	}

	wireType, err := m.registry.MessageWireTypeOf(env.Message())
	if err != nil {
		return envelope.Envelope{}, err
	}

	stamp := envelope.AMQPStamp{RoutingKey: m.Key(wireType), Flags: envelope.FlagNoParam}
	if ok {
		stamp.Flags = current.Flags
		stamp.Attributes = current.Attributes
	}
	return env.WithoutAll(envelope.Kind[envelope.AMQPStamp]()).With(stamp), nil
}

func (m *KeyMiddleware) Handle(ctx context.Context, env envelope.Envelope, next bus.Handler) (envelope.Envelope, error) {
	routed, err := m.Apply(env)
	if err != nil {
		return envelope.Envelope{}, err
	}
	return next.Handle(ctx, routed)
}
