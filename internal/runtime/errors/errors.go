package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrDuplicateType     = sterrors.New("portable: duplicate type mapping")
	ErrUnknownType       = sterrors.New("portable: unknown type")
	ErrUnsupportedFormat = sterrors.New("portable: unsupported serialization format")
	ErrInvalidPattern    = sterrors.New("portable: routing key pattern must contain {messageType}")
	ErrMalformedPayload  = sterrors.New("portable: malformed payload")
	ErrUnsupportedValue  = sterrors.New("portable: no normalizer supports value")
	ErrInvalidEntry      = sterrors.New("portable: invalid type mapping entry")
	ErrRegistryBuilt     = sterrors.New("portable: registry builder already built")
	ErrNoHandler         = sterrors.New("portable: no handler for message")
	ErrMessageRequired   = sterrors.New("portable: message is required")
	ErrPublisherRequired = sterrors.New("portable: publisher is required")
	ErrTopicRequired     = sterrors.New("portable: topic is required")
	ErrConfigRequired    = sterrors.New("portable: configuration is required")
	ErrRegistryRequired  = sterrors.New("portable: type registry is required")
	ErrCodecRequired     = sterrors.New("portable: serializer is required")
	ErrRouterRequired    = sterrors.New("portable: router is not initialised")
	ErrLoggerRequired    = sterrors.New("portable: logger is required")
	ErrConsumingRefused  = sterrors.New("portable: consuming not allowed")
)

// Namespace identifies one of the two registry namespaces.
type Namespace string

const (
	NamespaceMessage Namespace = "message"
	NamespaceStamp   Namespace = "stamp"
)

// DuplicateTypeError reports a mapping that collides with an existing entry,
// either by implementation type or by wire type string.
type DuplicateTypeError struct {
	Namespace Namespace
	Type      string
	WireType  string
	Existing  string
}

func (e *DuplicateTypeError) Error() string {
	if e.Existing != "" {
		return fmt.Sprintf("portable: duplicate %s type mapping %q => %q (already mapped to %q)", e.Namespace, e.Type, e.WireType, e.Existing)
	}
	return fmt.Sprintf("portable: duplicate %s type mapping %q => %q", e.Namespace, e.Type, e.WireType)
}

func (e *DuplicateTypeError) Is(target error) bool { return target == ErrDuplicateType }

// UnknownTypeError reports a failed registry lookup. Name holds either the
// implementation type name or the wire type string that was asked for.
type UnknownTypeError struct {
	Namespace Namespace
	Name      string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("portable: unknown %s type %q", e.Namespace, e.Name)
}

func (e *UnknownTypeError) Is(target error) bool { return target == ErrUnknownType }

// MalformedPayloadError is returned by decode for any payload that cannot be
// turned back into an envelope. It is never worth retrying.
type MalformedPayloadError struct {
	Reason string
	Err    error
}

func NewMalformedPayload(reason string, err error) error {
	return &MalformedPayloadError{Reason: reason, Err: err}
}

func (e *MalformedPayloadError) Error() string {
	if e.Err == nil {
		return "portable: malformed payload: " + e.Reason
	}
	return fmt.Sprintf("portable: malformed payload: %s: %v", e.Reason, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

func (e *MalformedPayloadError) Is(target error) bool { return target == ErrMalformedPayload }

// IsMalformedPayload reports whether err is, or wraps, a malformed payload error.
func IsMalformedPayload(err error) bool {
	return sterrors.Is(err, ErrMalformedPayload)
}

// ConfigValidationError wraps configuration validation failures.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "portable: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error { return e.Err }

// NewConfigValidationError returns nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
