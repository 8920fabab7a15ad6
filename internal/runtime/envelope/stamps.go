package envelope

import (
	"fmt"
	"runtime"
	"time"
)

// FlagNoParam is the AMQP publish flag value meaning "no flags".
const FlagNoParam = 0

// DelayStamp asks the transport to delay delivery by Delay milliseconds.
type DelayStamp struct {
	Delay int64 `json:"delay"`
}

// NewDelayStamp converts d to a DelayStamp with millisecond precision.
func NewDelayStamp(d time.Duration) DelayStamp {
	return DelayStamp{Delay: d.Milliseconds()}
}

// Duration returns the delay as a time.Duration.
func (s DelayStamp) Duration() time.Duration {
	return time.Duration(s.Delay) * time.Millisecond
}

// BusNameStamp records the bus an envelope was dispatched on.
type BusNameStamp struct {
	BusName string `json:"busName"`
}

// TransportMessageIDStamp carries the identifier the transport assigned.
type TransportMessageIDStamp struct {
	ID any `json:"id"`
}

// ErrorDetailsStamp describes the last handling failure.
type ErrorDetailsStamp struct {
	ExceptionClass   string          `json:"exceptionClass"`
	ExceptionCode    int             `json:"exceptionCode"`
	ExceptionMessage string          `json:"exceptionMessage"`
	FlattenException *FlattenedError `json:"flattenException,omitempty"`
}

// NewErrorDetailsStamp captures err together with the caller's location.
func NewErrorDetailsStamp(err error) ErrorDetailsStamp {
	flat := Flatten(err)
	if flat == nil {
		return ErrorDetailsStamp{}
	}
	if _, file, line, ok := runtime.Caller(1); ok {
		flat.File = file
		flat.Line = line
	}
	return ErrorDetailsStamp{
		ExceptionClass:   flat.Class,
		ExceptionCode:    flat.Code,
		ExceptionMessage: flat.Message,
		FlattenException: flat,
	}
}

// FlattenedError is a serializable snapshot of an error chain.
type FlattenedError struct {
	Message  string          `json:"message"`
	Code     int             `json:"code"`
	Class    string          `json:"class"`
	File     string          `json:"file"`
	Line     int             `json:"line"`
	Trace    []string        `json:"trace"`
	Previous *FlattenedError `json:"previous,omitempty"`
}

// Coder is implemented by errors exposing a numeric code.
type Coder interface {
	Code() int
}

// Flatten converts err and its single-unwrap chain into a FlattenedError.
func Flatten(err error) *FlattenedError {
	if err == nil {
		return nil
	}
	flat := &FlattenedError{
		Message: err.Error(),
		Class:   fmt.Sprintf("%T", err),
	}
	if c, ok := err.(Coder); ok {
		flat.Code = c.Code()
	}
	if u, ok := err.(interface{ Unwrap() error }); ok {
		flat.Previous = Flatten(u.Unwrap())
	}
	return flat
}

func (f *FlattenedError) Error() string {
	return f.Message
}

// RedeliveryStamp counts how often an envelope has been retried.
type RedeliveryStamp struct {
	RetryCount    int       `json:"retryCount"`
	RedeliveredAt time.Time `json:"redeliveredAt"`
}

// SentToFailureTransportStamp records the receiver an envelope originally came from.
type SentToFailureTransportStamp struct {
	OriginalReceiverName string `json:"originalReceiverName"`
}

// SentStamp marks an envelope as handed to a sender.
type SentStamp struct {
	SenderClass string `json:"senderClass"`
	SenderAlias string `json:"senderAlias,omitempty"`
}

func (SentStamp) LocalOnly() {}

// HandledStamp records a handler invocation and its result.
type HandledStamp struct {
	Result      any    `json:"result"`
	HandlerName string `json:"handlerName"`
}

func (HandledStamp) LocalOnly() {}

// ReceivedStamp marks an envelope as consumed from a transport.
type ReceivedStamp struct {
	TransportName string `json:"transportName"`
}

func (ReceivedStamp) LocalOnly() {}

// AMQPStamp carries AMQP publishing options. A non-empty RoutingKey pins the
// routing key used when the envelope is sent.
type AMQPStamp struct {
	RoutingKey string         `json:"routingKey"`
	Flags      int            `json:"flags"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func (AMQPStamp) LocalOnly() {}
