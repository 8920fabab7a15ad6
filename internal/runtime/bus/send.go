package bus

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/portable/internal/runtime/envelope"
	errspkg "github.com/drblury/portable/internal/runtime/errors"
	"github.com/drblury/portable/internal/runtime/serializer"
)

// Sender hands an envelope to a transport and returns it with a SentStamp.
type Sender interface {
	Send(ctx context.Context, env envelope.Envelope) (envelope.Envelope, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, env envelope.Envelope) (envelope.Envelope, error)

func (f SenderFunc) Send(ctx context.Context, env envelope.Envelope) (envelope.Envelope, error) {
	return f(ctx, env)
}

// TransportSender encodes envelopes and publishes them through a Watermill
// publisher. The topic is the routing key of the last AMQPStamp, falling back
// to the configured default topic.
type TransportSender struct {
	name         string
	encoder      serializer.Encoder
	publisher    message.Publisher
	defaultTopic string
}

// NewTransportSender wires an encoder and publisher. name is recorded as the
// sender alias on every SentStamp.
func NewTransportSender(name string, encoder serializer.Encoder, publisher message.Publisher, defaultTopic string) (*TransportSender, error) {
	if encoder == nil {
		return nil, errspkg.ErrCodecRequired
	}
	if publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	return &TransportSender{
		name:         name,
		encoder:      encoder,
		publisher:    publisher,
		defaultTopic: defaultTopic,
	}, nil
}

// Topic resolves the destination for env.
func (s *TransportSender) Topic(env envelope.Envelope) (string, error) {
	if stamp, ok := envelope.LastOf[envelope.AMQPStamp](env); ok && stamp.RoutingKey != "" {
		return stamp.RoutingKey, nil
	}
	if s.defaultTopic == "" {
		return "", errspkg.ErrTopicRequired
	}
	return s.defaultTopic, nil
}

func (s *TransportSender) Send(ctx context.Context, env envelope.Envelope) (envelope.Envelope, error) {
	topic, err := s.Topic(env)
	if err != nil {
		return env, err
	}

	payload, err := s.encoder.Encode(env)
	if err != nil {
		return env, err
	}

	msg := payload.ToMessage()
	msg.SetContext(ctx)
	if err := s.publisher.Publish(topic, msg); err != nil {
		return env, fmt.Errorf("publish to %q: %w", topic, err)
	}

	return env.With(envelope.SentStamp{
		SenderClass: fmt.Sprintf("%T", s.publisher),
		SenderAlias: s.name,
	}), nil
}

// SendMiddleware routes outgoing envelopes to sender instead of the rest of
// the chain. Envelopes that carry a ReceivedStamp came from a transport and
// continue down the chain untouched.
func SendMiddleware(sender Sender) Middleware {
	return MiddlewareFunc(func(ctx context.Context, env envelope.Envelope, next Handler) (envelope.Envelope, error) {
		if env.Has(envelope.Kind[envelope.ReceivedStamp]()) {
			return next.Handle(ctx, env)
		}
		return sender.Send(ctx, env)
	})
}
