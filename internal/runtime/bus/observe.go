package bus

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/portable/internal/runtime/envelope"
	errspkg "github.com/drblury/portable/internal/runtime/errors"
	loggingpkg "github.com/drblury/portable/internal/runtime/logging"
	"github.com/drblury/portable/internal/runtime/typeregistry"
)

// UnregisteredLabel is used in logs, spans and metrics for messages without a
// wire type.
const UnregisteredLabel = "unregistered"

// TracerName is the instrumentation scope used by TracingMiddleware.
const TracerName = "github.com/drblury/portable/bus"

func wireLabel(registry *typeregistry.Registry, msg any) string {
	if registry == nil || msg == nil {
		return UnregisteredLabel
	}
	wire, err := registry.MessageWireTypeOf(msg)
	if err != nil {
		return UnregisteredLabel
	}
	return wire
}

// LoggingMiddleware logs every envelope passing through the chain together
// with its outcome.
func LoggingMiddleware(logger loggingpkg.ServiceLogger, registry *typeregistry.Registry) (Middleware, error) {
	if logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	return MiddlewareFunc(func(ctx context.Context, env envelope.Envelope, next Handler) (envelope.Envelope, error) {
		fields := loggingpkg.LogFields{
			"message_type": wireLabel(registry, env.Message()),
			"stamps":       env.Len(),
		}
		if name, ok := envelope.LastOf[envelope.BusNameStamp](env); ok {
			fields["bus"] = name.BusName
		}
		logger.Debug("Dispatching message", fields)

		out, err := next.Handle(ctx, env)
		if err != nil {
			logger.Error("Message dispatch failed", err, fields)
			return out, err
		}
		logger.Trace("Message dispatched", fields)
		return out, nil
	}), nil
}

// TracingMiddleware wraps the rest of the chain in an OpenTelemetry span named
// after the message wire type.
func TracingMiddleware(registry *typeregistry.Registry, kind trace.SpanKind) Middleware {
	return MiddlewareFunc(func(ctx context.Context, env envelope.Envelope, next Handler) (envelope.Envelope, error) {
		wire := wireLabel(registry, env.Message())
		ctx, span := otel.Tracer(TracerName).Start(ctx, "dispatch "+wire, trace.WithSpanKind(kind))
		defer span.End()

		span.SetAttributes(
			attribute.String("messaging.message.type", wire),
			attribute.Int("messaging.message.stamps", env.Len()),
		)
		if id, ok := envelope.LastOf[envelope.TransportMessageIDStamp](env); ok {
			if s, isString := id.ID.(string); isString {
				span.SetAttributes(attribute.String("messaging.message.id", s))
			}
		}

		out, err := next.Handle(ctx, env)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return out, err
	})
}

// Metrics holds the collectors updated by MetricsMiddleware.
type Metrics struct {
	dispatched *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics registers the bus collectors on reg. Collectors that are already
// registered are reused.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	dispatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "bus",
		Name:      "messages_total",
		Help:      "Envelopes dispatched through the bus by message type and outcome.",
	}, []string{"message_type", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "bus",
		Name:      "dispatch_duration_seconds",
		Help:      "Time spent in the middleware chain per message type.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"message_type"})

	var err error
	if dispatched, err = register(reg, dispatched); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	return &Metrics{dispatched: dispatched, duration: duration}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Middleware returns the chain step recording m.
func (m *Metrics) Middleware(registry *typeregistry.Registry) Middleware {
	return MiddlewareFunc(func(ctx context.Context, env envelope.Envelope, next Handler) (envelope.Envelope, error) {
		wire := wireLabel(registry, env.Message())
		start := time.Now()
		out, err := next.Handle(ctx, env)
		m.duration.WithLabelValues(wire).Observe(time.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		m.dispatched.WithLabelValues(wire, outcome).Inc()
		return out, err
	})
}

// MetricsMiddleware registers the bus collectors and returns their middleware.
func MetricsMiddleware(reg prometheus.Registerer, namespace string, registry *typeregistry.Registry) (Middleware, error) {
	m, err := NewMetrics(reg, namespace)
	if err != nil {
		return nil, err
	}
	return m.Middleware(registry), nil
}
