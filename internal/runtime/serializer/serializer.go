// Package serializer converts envelopes to wire payloads (headers plus body)
// and back. Type names never reach the wire: messages and stamps are
// identified by the wire types held in the type registry.
package serializer

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/drblury/portable/internal/runtime/envelope"
	errspkg "github.com/drblury/portable/internal/runtime/errors"
	"github.com/drblury/portable/internal/runtime/jsoncodec"
	"github.com/drblury/portable/internal/runtime/metadata"
	"github.com/drblury/portable/internal/runtime/normalizer"
	"github.com/drblury/portable/internal/runtime/typeregistry"
)

const (
	HeaderMessageType = "X-Message-Type"
	HeaderContentType = "Content-Type"
	StampHeaderPrefix = "X-Message-Stamp-"

	FormatJSON = "json"

	fallbackContentType = "text/plain"
)

var contentTypes = map[string]string{
	FormatJSON: "application/json",
}

// ContentType maps a serialization format to its MIME type.
func ContentType(format string) string {
	if ct, ok := contentTypes[format]; ok {
		return ct
	}
	return fallbackContentType
}

// WirePayload is the transport level representation of an envelope.
type WirePayload struct {
	Headers metadata.Metadata
	Body    []byte
}

// Encoder turns envelopes into wire payloads.
type Encoder interface {
	Encode(env envelope.Envelope) (WirePayload, error)
}

// Decoder turns wire payloads back into envelopes.
type Decoder interface {
	Decode(p WirePayload) (envelope.Envelope, error)
}

// Codec encodes and decodes.
type Codec interface {
	Encoder
	Decoder
}

// Serializer is the portable envelope codec. It holds no mutable state and is
// safe for concurrent use.
type Serializer struct {
	registry    *typeregistry.Registry
	normalizers *normalizer.Set
	format      string
	contentType string
}

var _ Codec = (*Serializer)(nil)

// New creates a serializer for format. A nil normalizer set means the
// built-in normalizers only.
func New(registry *typeregistry.Registry, normalizers *normalizer.Set, format string) (*Serializer, error) {
	if registry == nil {
		return nil, errspkg.ErrRegistryRequired
	}
	if _, ok := contentTypes[format]; !ok {
		return nil, fmt.Errorf("%w: %q", errspkg.ErrUnsupportedFormat, format)
	}
	if normalizers == nil {
		normalizers = normalizer.NewSet()
	}
	return &Serializer{
		registry:    registry,
		normalizers: normalizers,
		format:      format,
		contentType: ContentType(format),
	}, nil
}

// Format returns the configured serialization format.
func (s *Serializer) Format() string {
	return s.format
}

// Registry returns the type registry the serializer resolves against.
func (s *Serializer) Registry() *typeregistry.Registry {
	return s.registry
}

// Encode drops local-only stamps, then writes one header for the message type,
// one for the content type and one per remaining stamp kind. The body is the
// normalized message.
func (s *Serializer) Encode(env envelope.Envelope) (WirePayload, error) {
	env = env.WithoutTransient()

	msg := env.Message()
	if msg == nil {
		return WirePayload{}, errspkg.ErrMessageRequired
	}
	wireType, err := s.registry.MessageWireTypeOf(msg)
	if err != nil {
		return WirePayload{}, err
	}

	headers := metadata.New(
		HeaderMessageType, wireType,
		HeaderContentType, s.contentType,
	)

	for _, kind := range env.Kinds() {
		stampType, err := s.registry.StampWireType(kind)
		if err != nil {
			return WirePayload{}, err
		}
		encoded, err := s.normalizers.Marshal(env.All(kind))
		if err != nil {
			return WirePayload{}, fmt.Errorf("encode %s stamps: %w", stampType, err)
		}
		headers[StampHeaderPrefix+typeregistry.UpperFirst(stampType)] = string(encoded)
	}

	body, err := s.normalizers.Marshal(msg)
	if err != nil {
		return WirePayload{}, fmt.Errorf("encode %s message: %w", wireType, err)
	}

	return WirePayload{Headers: headers, Body: body}, nil
}

// Decode rebuilds an envelope. Every failure is a MalformedPayloadError;
// lookup misses additionally match ErrUnknownType. Stamp headers are read in
// header name order.
func (s *Serializer) Decode(p WirePayload) (envelope.Envelope, error) {
	if len(bytes.TrimSpace(p.Body)) == 0 {
		return envelope.Envelope{}, errspkg.NewMalformedPayload("encoded envelope should have a body", nil)
	}

	wireType := p.Headers[HeaderMessageType]
	if wireType == "" {
		return envelope.Envelope{}, errspkg.NewMalformedPayload("encoded envelope does not have a "+HeaderMessageType+" header", nil)
	}

	msgType, err := s.registry.MessageType(wireType)
	if err != nil {
		return envelope.Envelope{}, errspkg.NewMalformedPayload("unknown message type", err)
	}

	stamps, err := s.DecodeStamps(p.Headers)
	if err != nil {
		return envelope.Envelope{}, err
	}

	msg, err := s.decodeBody(p.Body, msgType)
	if err != nil {
		return envelope.Envelope{}, err
	}

	return envelope.New(msg, stamps...), nil
}

// DecodeStamps decodes every stamp header in headers, in header name order.
// Other headers are ignored.
func (s *Serializer) DecodeStamps(headers metadata.Metadata) ([]envelope.Stamp, error) {
	var stamps []envelope.Stamp
	stampHeaders := headers.WithPrefix(StampHeaderPrefix)
	for _, token := range stampHeaders.Keys() {
		name := StampHeaderPrefix + token
		stampType, _, err := s.registry.StampTypeForHeader(token)
		if err != nil {
			return nil, errspkg.NewMalformedPayload("unknown stamp header "+name, err)
		}
		decoded, err := s.normalizers.Unmarshal([]byte(stampHeaders[token]), reflect.SliceOf(stampType))
		if err != nil {
			return nil, errspkg.NewMalformedPayload("could not decode stamp header "+name, err)
		}
		for i := 0; i < decoded.Len(); i++ {
			stamps = append(stamps, decoded.Index(i).Interface())
		}
	}
	return stamps, nil
}

func (s *Serializer) decodeBody(body []byte, msgType reflect.Type) (any, error) {
	var tree any
	if err := jsoncodec.UnmarshalNumber(body, &tree); err != nil {
		return nil, errspkg.NewMalformedPayload("could not decode message body", err)
	}
	if _, ok := tree.(map[string]any); !ok {
		return nil, errspkg.NewMalformedPayload(fmt.Sprintf("message body must be an object, got %T", tree), nil)
	}
	switch envelope.Canonical(msgType).Kind() {
	case reflect.Struct, reflect.Map:
	default:
		return nil, errspkg.NewMalformedPayload(fmt.Sprintf("message type %s does not decode to an object", msgType), nil)
	}

	decoded, err := s.normalizers.Denormalize(tree, msgType)
	if err != nil {
		return nil, errspkg.NewMalformedPayload("could not decode message body", err)
	}
	return decoded.Interface(), nil
}
