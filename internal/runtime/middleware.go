package runtime

import (
	"errors"
	"net/http"

	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	errspkg "github.com/drblury/portable/internal/runtime/errors"
	idspkg "github.com/drblury/portable/internal/runtime/ids"
	loggingpkg "github.com/drblury/portable/internal/runtime/logging"
	"github.com/drblury/portable/internal/runtime/serializer"
)

// CorrelationIDKey is the transport header carrying the correlation identifier.
const CorrelationIDKey = "correlation_id"

// MiddlewareBuilder constructs a router middleware for a service.
type MiddlewareBuilder func(*Service) (message.HandlerMiddleware, error)

// MiddlewareRegistration describes one router middleware. Builders returning
// a nil middleware are skipped.
type MiddlewareRegistration struct {
	Name       string
	Middleware message.HandlerMiddleware
	Builder    MiddlewareBuilder
}

// DefaultMiddlewares returns the router chain installed by NewService.
func DefaultMiddlewares() []MiddlewareRegistration {
	return []MiddlewareRegistration{
		CorrelationIDMiddleware(),
		LogMessagesMiddleware(nil),
		MetricsMiddleware(),
		PoisonQueueMiddleware(nil),
		RecovererMiddleware(),
	}
}

// MetricsMiddleware adds Watermill's Prometheus router metrics and serves them
// on the metrics port.
func MetricsMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "metrics",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			if !s.Conf.MetricsEnabled {
				return nil, nil
			}

			metricsBuilder := metrics.NewPrometheusMetricsBuilder(
				s.metricsRegisterer,
				s.Conf.MetricsNamespace,
				s.Conf.PubSubSystem,
			)
			metricsBuilder.AddPrometheusRouterMetrics(s.router)

			if s.Conf.MetricsPort > 0 {
				s.RegisterHTTPHandler(s.Conf.MetricsPort, "/metrics", metricsHandler(s.metricsRegisterer))
			}

			return metricsBuilder.NewRouterMiddleware().Middleware, nil
		},
	}
}

func metricsHandler(reg prometheus.Registerer) http.Handler {
	if gatherer, ok := reg.(prometheus.Gatherer); ok && reg != prometheus.DefaultRegisterer {
		return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// CorrelationIDMiddleware ensures each consumed message carries a correlation identifier.
func CorrelationIDMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "correlation_id",
		Middleware: func(h message.HandlerFunc) message.HandlerFunc {
			return func(msg *message.Message) ([]*message.Message, error) {
				if _, ok := msg.Metadata[CorrelationIDKey]; !ok {
					msg.Metadata.Set(CorrelationIDKey, idspkg.CreateULID())
				}
				return h(msg)
			}
		},
	}
}

// LogMessagesMiddleware logs every consumed message at debug level. The
// service logger is used when logger is nil.
func LogMessagesMiddleware(logger loggingpkg.ServiceLogger) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "log_messages",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			l := logger
			if l == nil {
				l = s.Logger
			}
			if l == nil {
				return nil, errspkg.ErrLoggerRequired
			}
			return func(h message.HandlerFunc) message.HandlerFunc {
				return func(msg *message.Message) ([]*message.Message, error) {
					l.Debug("Consuming message", loggingpkg.LogFields{
						"message_uuid":   msg.UUID,
						"message_type":   msg.Metadata.Get(serializer.HeaderMessageType),
						"correlation_id": msg.Metadata.Get(CorrelationIDKey),
						"payload_bytes":  len(msg.Payload),
					})
					return h(msg)
				}
			}, nil
		},
	}
}

// PoisonQueueMiddleware forwards messages whose handler error matches filter
// to the failure topic. The default filter matches malformed payloads. Nothing
// is installed when no failure topic is configured.
func PoisonQueueMiddleware(filter func(error) bool) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "poison_queue",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			if s.Conf.FailureTopic == "" {
				return nil, nil
			}
			if s.publisher == nil {
				return nil, errspkg.ErrPublisherRequired
			}
			f := filter
			if f == nil {
				f = errspkg.IsMalformedPayload
			}
			return middleware.PoisonQueueWithFilter(s.publisher, s.Conf.FailureTopic, f)
		},
	}
}

// RecovererMiddleware converts handler panics into errors.
func RecovererMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "recoverer",
		Middleware: middleware.Recoverer,
	}
}

// RegisterMiddleware attaches the supplied middleware to the router.
func (s *Service) RegisterMiddleware(cfg MiddlewareRegistration) error {
	if s.router == nil {
		return errspkg.ErrRouterRequired
	}

	var mw message.HandlerMiddleware
	switch {
	case cfg.Middleware != nil:
		mw = cfg.Middleware
	case cfg.Builder != nil:
		var err error
		mw, err = cfg.Builder(s)
		if err != nil {
			return err
		}
	default:
		return errors.New("middleware registration requires Middleware or Builder")
	}

	if mw == nil {
		return nil
	}

	s.router.AddMiddleware(mw)
	return nil
}
