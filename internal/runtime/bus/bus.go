// Package bus dispatches envelopes through an ordered middleware chain. It is
// the glue between application code, the portable serializer and a Watermill
// publisher or router.
package bus

import (
	"context"

	"github.com/drblury/portable/internal/runtime/envelope"
	errspkg "github.com/drblury/portable/internal/runtime/errors"
)

// Handler processes an envelope and returns the (possibly re-stamped) result.
type Handler interface {
	Handle(ctx context.Context, env envelope.Envelope) (envelope.Envelope, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env envelope.Envelope) (envelope.Envelope, error)

func (f HandlerFunc) Handle(ctx context.Context, env envelope.Envelope) (envelope.Envelope, error) {
	return f(ctx, env)
}

// Middleware is one step of the chain. It decides whether and how to call next.
type Middleware interface {
	Handle(ctx context.Context, env envelope.Envelope, next Handler) (envelope.Envelope, error)
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(ctx context.Context, env envelope.Envelope, next Handler) (envelope.Envelope, error)

func (f MiddlewareFunc) Handle(ctx context.Context, env envelope.Envelope, next Handler) (envelope.Envelope, error) {
	return f(ctx, env, next)
}

// Chain is an ordered list of middleware; the first element runs first.
type Chain []Middleware

// Then composes the chain around final.
func (c Chain) Then(final Handler) Handler {
	if final == nil {
		final = HandlerFunc(passthrough)
	}
	h := final
	for i := len(c) - 1; i >= 0; i-- {
		h = bind(c[i], h)
	}
	return h
}

func bind(mw Middleware, next Handler) Handler {
	return HandlerFunc(func(ctx context.Context, env envelope.Envelope) (envelope.Envelope, error) {
		return mw.Handle(ctx, env, next)
	})
}

func passthrough(_ context.Context, env envelope.Envelope) (envelope.Envelope, error) {
	return env, nil
}

// Bus is a named middleware chain.
type Bus struct {
	name    string
	handler Handler
}

// New builds a bus from middleware in execution order.
func New(name string, middleware ...Middleware) *Bus {
	return &Bus{name: name, handler: Chain(middleware).Then(nil)}
}

// Name returns the bus name stamped onto dispatched envelopes.
func (b *Bus) Name() string {
	return b.name
}

// Dispatch wraps msg (a message or an Envelope) with stamps and runs it
// through the chain. A BusNameStamp is added when none is present.
func (b *Bus) Dispatch(ctx context.Context, msg any, stamps ...envelope.Stamp) (envelope.Envelope, error) {
	env := envelope.New(msg, stamps...)
	if env.Message() == nil {
		return envelope.Envelope{}, errspkg.ErrMessageRequired
	}
	if b.name != "" && !env.Has(envelope.Kind[envelope.BusNameStamp]()) {
		env = env.With(envelope.BusNameStamp{BusName: b.name})
	}
	return b.handler.Handle(ctx, env)
}
