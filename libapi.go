package portable

import (
	"context"

	runtimepkg "github.com/drblury/portable/internal/runtime"
	"github.com/drblury/portable/internal/runtime/bus"
	configpkg "github.com/drblury/portable/internal/runtime/config"
	"github.com/drblury/portable/internal/runtime/envelope"
	errspkg "github.com/drblury/portable/internal/runtime/errors"
	idspkg "github.com/drblury/portable/internal/runtime/ids"
	jsoncodec "github.com/drblury/portable/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/portable/internal/runtime/logging"
	metadatapkg "github.com/drblury/portable/internal/runtime/metadata"
	"github.com/drblury/portable/internal/runtime/normalizer"
	"github.com/drblury/portable/internal/runtime/routing"
	"github.com/drblury/portable/internal/runtime/serializer"
	transportpkg "github.com/drblury/portable/internal/runtime/transport"
	"github.com/drblury/portable/internal/runtime/typeregistry"
	newtransport "github.com/drblury/portable/transport"
)

type (
	Config               = configpkg.Config
	Service              = runtimepkg.Service
	ServiceDependencies  = runtimepkg.ServiceDependencies
	Transport            = transportpkg.Transport
	TransportFactory     = transportpkg.Factory
	TransportFactoryFunc = transportpkg.FactoryFunc

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration

	// Envelope model
	Envelope                    = envelope.Envelope
	Stamp                       = envelope.Stamp
	NonTransmissible            = envelope.NonTransmissible
	DelayStamp                  = envelope.DelayStamp
	BusNameStamp                = envelope.BusNameStamp
	TransportMessageIDStamp     = envelope.TransportMessageIDStamp
	ErrorDetailsStamp           = envelope.ErrorDetailsStamp
	RedeliveryStamp             = envelope.RedeliveryStamp
	SentToFailureTransportStamp = envelope.SentToFailureTransportStamp
	SentStamp                   = envelope.SentStamp
	HandledStamp                = envelope.HandledStamp
	ReceivedStamp               = envelope.ReceivedStamp
	AMQPStamp                   = envelope.AMQPStamp
	FlattenedError              = envelope.FlattenedError

	// Type registry
	TypeRegistry        = typeregistry.Registry
	TypeRegistryBuilder = typeregistry.Builder
	TypeEntry           = typeregistry.Entry
	TypeMapping         = typeregistry.Mapping

	// Serialization
	Serializer  = serializer.Serializer
	WirePayload = serializer.WirePayload
	Encoder     = serializer.Encoder
	Decoder     = serializer.Decoder
	Codec       = serializer.Codec
	Normalizer  = normalizer.Normalizer
	Normalizers = normalizer.Set

	// Bus
	Bus                  = bus.Bus
	BusHandler           = bus.Handler
	BusHandlerFunc       = bus.HandlerFunc
	BusMiddleware        = bus.Middleware
	BusMiddlewareFunc    = bus.MiddlewareFunc
	MessageHandler       = bus.MessageHandler
	Handlers             = bus.Handlers
	Sender               = bus.Sender
	TransportSender      = bus.TransportSender
	RoutingKeyMiddleware = routing.KeyMiddleware

	Metadata = metadatapkg.Metadata

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	EntryLogger               = loggingpkg.EntryLogger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]

	DuplicateTypeError    = errspkg.DuplicateTypeError
	UnknownTypeError      = errspkg.UnknownTypeError
	MalformedPayloadError = errspkg.MalformedPayloadError
	ConfigValidationError = errspkg.ConfigValidationError

	TransportBuilder  = newtransport.Builder
	TransportConfig   = newtransport.Config
	TransportRegistry = newtransport.Registry
)

var (
	NewService     = runtimepkg.NewService
	ValidateConfig = configpkg.ValidateConfig

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware = runtimepkg.CorrelationIDMiddleware
	LogMessagesMiddleware   = runtimepkg.LogMessagesMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	PoisonQueueMiddleware   = runtimepkg.PoisonQueueMiddleware
	RecovererMiddleware     = runtimepkg.RecovererMiddleware

	NewEnvelope          = envelope.New
	NewDelayStamp        = envelope.NewDelayStamp
	NewErrorDetailsStamp = envelope.NewErrorDetailsStamp
	FlattenError         = envelope.Flatten

	NewTypeRegistry        = typeregistry.New
	MustNewTypeRegistry    = typeregistry.MustNew
	NewTypeRegistryBuilder = typeregistry.NewBuilder
	DefaultStamps          = typeregistry.DefaultStamps

	NewSerializer  = serializer.New
	NewNormalizers = normalizer.NewSet
	ContentType    = serializer.ContentType

	NewBus                  = bus.New
	NewHandlers             = bus.NewHandlers
	NewTransportSender      = bus.NewTransportSender
	SendMiddleware          = bus.SendMiddleware
	HandleMiddleware        = bus.HandleMiddleware
	BusLoggingMiddleware    = bus.LoggingMiddleware
	BusTracingMiddleware    = bus.TracingMiddleware
	BusMetricsMiddleware    = bus.MetricsMiddleware
	NewRoutingKeyMiddleware = routing.NewKeyMiddleware

	DefaultTransportRegistry = newtransport.DefaultRegistry
	RegisterTransport        = newtransport.Register
	BuildTransport           = newtransport.Build

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrDuplicateType     = errspkg.ErrDuplicateType
	ErrUnknownType       = errspkg.ErrUnknownType
	ErrUnsupportedFormat = errspkg.ErrUnsupportedFormat
	ErrInvalidPattern    = errspkg.ErrInvalidPattern
	ErrMalformedPayload  = errspkg.ErrMalformedPayload
	ErrUnsupportedValue  = errspkg.ErrUnsupportedValue
	ErrInvalidEntry      = errspkg.ErrInvalidEntry
	ErrNoHandler         = errspkg.ErrNoHandler
	ErrMessageRequired   = errspkg.ErrMessageRequired
	ErrPublisherRequired = errspkg.ErrPublisherRequired
	ErrTopicRequired     = errspkg.ErrTopicRequired
	ErrConfigRequired    = errspkg.ErrConfigRequired
	ErrRegistryRequired  = errspkg.ErrRegistryRequired
	ErrLoggerRequired    = errspkg.ErrLoggerRequired
	ErrConsumingRefused  = errspkg.ErrConsumingRefused
	IsMalformedPayload   = errspkg.IsMalformedPayload

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewTextServiceLogger      = loggingpkg.NewTextServiceLogger

	NewMetadata = metadatapkg.New

	CreateULID = idspkg.CreateULID
)

const (
	HeaderMessageType = serializer.HeaderMessageType
	HeaderContentType = serializer.HeaderContentType
	StampHeaderPrefix = serializer.StampHeaderPrefix

	RoutingKeyPlaceholder = routing.Placeholder
	CorrelationIDKey      = runtimepkg.CorrelationIDKey
)

// TypeFor maps T to wireType in a TypeMapping.
func TypeFor[T any](wireType string) TypeEntry {
	return typeregistry.For[T](wireType)
}

// On registers a handler for messages of type T.
func On[T any](handlers *Handlers, name string, fn func(ctx context.Context, msg T) (any, error)) {
	bus.On(handlers, name, fn)
}

// LastStamp returns the most recently added stamp of type T.
func LastStamp[T any](env Envelope) (T, bool) {
	return envelope.LastOf[T](env)
}

// AllStamps returns every stamp of type T in insertion order.
func AllStamps[T any](env Envelope) []T {
	return envelope.AllOf[T](env)
}

// NewEntryServiceLogger adapts an entry-style logger.
func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}
