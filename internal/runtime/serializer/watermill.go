package serializer

import (
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/portable/internal/runtime/envelope"
	"github.com/drblury/portable/internal/runtime/ids"
	"github.com/drblury/portable/internal/runtime/metadata"
)

// ToMessage wraps the payload in a Watermill message with a fresh ULID.
func (p WirePayload) ToMessage() *message.Message {
	msg := message.NewMessage(ids.CreateULID(), p.Body)
	msg.Metadata = metadata.ToWatermill(p.Headers)
	return msg
}

// PayloadFromMessage extracts the wire payload carried by a Watermill message.
func PayloadFromMessage(msg *message.Message) WirePayload {
	if msg == nil {
		return WirePayload{Headers: metadata.Metadata{}}
	}
	return WirePayload{
		Headers: metadata.FromWatermill(msg.Metadata),
		Body:    msg.Payload,
	}
}

// Marshal encodes env straight into a Watermill message.
func (s *Serializer) Marshal(env envelope.Envelope) (*message.Message, error) {
	p, err := s.Encode(env)
	if err != nil {
		return nil, err
	}
	return p.ToMessage(), nil
}

// Unmarshal decodes a Watermill message. The transport message UUID is kept
// as a TransportMessageIDStamp.
func (s *Serializer) Unmarshal(msg *message.Message) (envelope.Envelope, error) {
	env, err := s.Decode(PayloadFromMessage(msg))
	if err != nil {
		return envelope.Envelope{}, err
	}
	if msg.UUID != "" {
		env = env.With(envelope.TransportMessageIDStamp{ID: msg.UUID})
	}
	return env, nil
}
