package bus

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/drblury/portable/internal/runtime/envelope"
	errspkg "github.com/drblury/portable/internal/runtime/errors"
)

// MessageHandler processes a message and may return a result, which is
// recorded on a HandledStamp.
type MessageHandler func(ctx context.Context, msg any) (any, error)

type namedHandler struct {
	name string
	fn   MessageHandler
}

// Handlers maps message types to the handlers invoked for them. Lookups use
// the canonical (pointer-stripped) message type.
type Handlers struct {
	mu     sync.RWMutex
	byType map[reflect.Type][]namedHandler
}

// NewHandlers returns an empty handler table.
func NewHandlers() *Handlers {
	return &Handlers{byType: make(map[reflect.Type][]namedHandler)}
}

// Register adds fn for messages of msgType. Handlers run in registration order.
func (h *Handlers) Register(msgType reflect.Type, name string, fn MessageHandler) {
	if msgType == nil || fn == nil {
		return
	}
	key := envelope.Canonical(msgType)
	h.mu.Lock()
	h.byType[key] = append(h.byType[key], namedHandler{name: name, fn: fn})
	h.mu.Unlock()
}

func (h *Handlers) lookup(msg any) []namedHandler {
	if msg == nil {
		return nil
	}
	key := envelope.Canonical(reflect.TypeOf(msg))
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]namedHandler(nil), h.byType[key]...)
}

// On registers a typed handler. Value and pointer forms of T are accepted.
func On[T any](h *Handlers, name string, fn func(ctx context.Context, msg T) (any, error)) {
	h.Register(reflect.TypeFor[T](), name, func(ctx context.Context, msg any) (any, error) {
		typed, ok := envelope.As[T](msg)
		if !ok {
			return nil, fmt.Errorf("handler %s: unexpected message type %T", name, msg)
		}
		return fn(ctx, typed)
	})
}

// HandleMiddleware invokes every handler registered for the envelope's
// message and stamps each result. Without a matching handler it fails with
// ErrNoHandler unless allowNoHandlers is set.
func HandleMiddleware(handlers *Handlers, allowNoHandlers bool) Middleware {
	return MiddlewareFunc(func(ctx context.Context, env envelope.Envelope, next Handler) (envelope.Envelope, error) {
		matched := handlers.lookup(env.Message())
		if len(matched) == 0 {
			if allowNoHandlers {
				return next.Handle(ctx, env)
			}
			return env, fmt.Errorf("%w %T", errspkg.ErrNoHandler, env.Message())
		}

		for _, h := range matched {
			result, err := h.fn(ctx, env.Message())
			if err != nil {
				return env, fmt.Errorf("handler %s: %w", h.name, err)
			}
			env = env.With(envelope.HandledStamp{Result: result, HandlerName: h.name})
		}
		return next.Handle(ctx, env)
	})
}
