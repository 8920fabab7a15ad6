package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/portable/internal/runtime/bus"
	configpkg "github.com/drblury/portable/internal/runtime/config"
	"github.com/drblury/portable/internal/runtime/envelope"
	errspkg "github.com/drblury/portable/internal/runtime/errors"
	loggingpkg "github.com/drblury/portable/internal/runtime/logging"
	"github.com/drblury/portable/internal/runtime/normalizer"
	"github.com/drblury/portable/internal/runtime/routing"
	"github.com/drblury/portable/internal/runtime/serializer"
	transportpkg "github.com/drblury/portable/internal/runtime/transport"
	"github.com/drblury/portable/internal/runtime/typeregistry"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// ServiceDependencies holds the collaborators of a Service. Registry is
// required; everything else falls back to a default.
type ServiceDependencies struct {
	Registry    *typeregistry.Registry
	Normalizers []normalizer.Normalizer

	// Handlers receive consumed envelopes. An empty table is created when nil.
	Handlers        *bus.Handlers
	AllowNoHandlers bool

	// BusMiddlewares run on both buses, after the built-in observability
	// steps and before sending or handling.
	BusMiddlewares []bus.Middleware

	Middlewares               []MiddlewareRegistration // Appended after the default router middleware.
	DisableDefaultMiddlewares bool

	TransportFactory  transportpkg.Factory
	MetricsRegisterer prometheus.Registerer
}

// Service wires the portable serializer and buses onto a Watermill router,
// publisher and subscriber.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	registry   *typeregistry.Registry
	serializer *serializer.Serializer
	keys       *routing.KeyMiddleware
	handlers   *bus.Handlers

	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router

	outbound *bus.Bus
	inbound  *bus.Bus

	metricsRegisterer prometheus.Registerer
	busMetrics        *bus.Metrics

	consumed   map[string]struct{}
	consumedMu sync.Mutex

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex
}

// NewService validates conf, builds the transport and assembles both buses.
// Register handlers before calling Start.
func NewService(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if deps.Registry == nil {
		return nil, errspkg.ErrRegistryRequired
	}

	resolved := conf.WithDefaults()
	if err := resolved.Validate(); err != nil {
		return nil, err
	}

	wmLogger := loggingpkg.NewWatermillAdapter(log)
	log.Info("Creating portable service", loggingpkg.LogFields{
		"pubsub_system": resolved.PubSubSystem,
		"config":        resolved,
	})

	ser, err := serializer.New(deps.Registry, normalizer.NewSet(deps.Normalizers...), resolved.Format)
	if err != nil {
		return nil, err
	}
	keys, err := routing.NewKeyMiddleware(deps.Registry, resolved.RoutingKeyPattern)
	if err != nil {
		return nil, err
	}

	s := &Service{
		Conf:              &resolved,
		Logger:            log,
		registry:          deps.Registry,
		serializer:        ser,
		keys:              keys,
		handlers:          deps.Handlers,
		metricsRegisterer: deps.MetricsRegisterer,
		consumed:          make(map[string]struct{}),
	}
	if s.handlers == nil {
		s.handlers = bus.NewHandlers()
	}
	if s.metricsRegisterer == nil {
		s.metricsRegisterer = prometheus.DefaultRegisterer
	}

	factory := deps.TransportFactory
	if factory == nil {
		factory = transportpkg.DefaultFactory()
	}
	transport, err := factory.Build(ctx, s.Conf, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("build %s transport: %w", resolved.PubSubSystem, err)
	}
	s.publisher = transport.Publisher
	s.subscriber = transport.Subscriber

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, err
	}
	s.router = router
	s.router.AddPlugin(plugin.SignalsHandler)

	if err := s.buildBuses(deps); err != nil {
		return nil, err
	}
	if err := s.registerConfiguredMiddlewares(deps); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) buildBuses(deps ServiceDependencies) error {
	logMW, err := bus.LoggingMiddleware(s.Logger, s.registry)
	if err != nil {
		return err
	}

	if s.Conf.MetricsEnabled {
		s.busMetrics, err = bus.NewMetrics(s.metricsRegisterer, s.Conf.MetricsNamespace)
		if err != nil {
			return err
		}
	}

	observe := func(kind trace.SpanKind) []bus.Middleware {
		chain := []bus.Middleware{logMW, bus.TracingMiddleware(s.registry, kind)}
		if s.busMetrics != nil {
			chain = append(chain, s.busMetrics.Middleware(s.registry))
		}
		return append(chain, deps.BusMiddlewares...)
	}

	sender, err := bus.NewTransportSender(s.Conf.PubSubSystem, s.serializer, s.publisher, s.Conf.DefaultTopic)
	if err != nil {
		return err
	}

	outbound := append([]bus.Middleware{s.keys}, observe(trace.SpanKindProducer)...)
	outbound = append(outbound, bus.SendMiddleware(sender))
	s.outbound = bus.New(s.Conf.BusName, outbound...)

	inbound := append(observe(trace.SpanKindConsumer), bus.HandleMiddleware(s.handlers, deps.AllowNoHandlers))
	s.inbound = bus.New(s.Conf.BusName, inbound...)
	return nil
}

// Dispatch stamps msg with a routing key, encodes it and publishes it.
func (s *Service) Dispatch(ctx context.Context, msg any, stamps ...envelope.Stamp) (envelope.Envelope, error) {
	return s.outbound.Dispatch(ctx, msg, stamps...)
}

// Handlers returns the table consulted for consumed envelopes.
func (s *Service) Handlers() *bus.Handlers {
	return s.handlers
}

// Serializer returns the codec shared by both buses.
func (s *Service) Serializer() *serializer.Serializer {
	return s.serializer
}

// Registry returns the type registry.
func (s *Service) Registry() *typeregistry.Registry {
	return s.registry
}

// RoutingKey returns the routing key derived for msg.
func (s *Service) RoutingKey(msg any) (string, error) {
	wire, err := s.registry.MessageWireTypeOf(msg)
	if err != nil {
		return "", err
	}
	return s.keys.Key(wire), nil
}

// Start consumes the configured topic and runs the router until ctx is
// cancelled.
func (s *Service) Start(ctx context.Context) error {
	if s.Conf.ConsumeTopic != "" {
		if err := s.Consume(s.Conf.ConsumeTopic); err != nil {
			return err
		}
	}
	s.startHTTPServers()
	return routerRun(s.router, ctx)
}

// Running is closed once the router has started all handlers.
func (s *Service) Running() chan struct{} {
	return s.router.Running()
}

// Close stops the router and releases the publisher.
func (s *Service) Close() error {
	var errs []error
	if s.router != nil {
		errs = append(errs, s.router.Close())
	}
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	return errors.Join(errs...)
}

func (s *Service) registerConfiguredMiddlewares(deps ServiceDependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("register middleware %s: %w", name, err)
		}
	}
	return nil
}

// RegisterHTTPHandler mounts handler on pattern of an HTTP server started
// with the service.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		addr := fmt.Sprintf(":%d", port)
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": addr})
		go func(addr string, handler http.Handler) {
			if err := http.ListenAndServe(addr, handler); err != nil {
				s.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": addr})
			}
		}(addr, mux)
	}
}
