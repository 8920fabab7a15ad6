package rabbitmq

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	amqp091 "github.com/rabbitmq/amqp091-go"
)

const (
	contentTypeHeader = "Content-Type"
	uuidHeader        = "X-Message-Uuid"
)

// Marshaler maps Watermill metadata onto native AMQP properties: the message
// UUID becomes MessageId, Content-Type becomes ContentType and every other
// entry is sent as an AMQP header.
type Marshaler struct {
	// NotPersistent publishes with transient delivery mode.
	NotPersistent bool
}

func (m Marshaler) Marshal(msg *message.Message) (amqp091.Publishing, error) {
	headers := make(amqp091.Table, len(msg.Metadata))
	for key, value := range msg.Metadata {
		if key == contentTypeHeader {
			continue
		}
		headers[key] = value
	}
	headers[uuidHeader] = msg.UUID

	publishing := amqp091.Publishing{
		MessageId:   msg.UUID,
		ContentType: msg.Metadata.Get(contentTypeHeader),
		Headers:     headers,
		Body:        msg.Payload,
	}
	if !m.NotPersistent {
		publishing.DeliveryMode = amqp091.Persistent
	}
	return publishing, nil
}

func (m Marshaler) Unmarshal(delivery amqp091.Delivery) (*message.Message, error) {
	uuid := delivery.MessageId
	if uuid == "" {
		raw, ok := delivery.Headers[uuidHeader]
		if !ok {
			return nil, fmt.Errorf("delivery %d carries no message id", delivery.DeliveryTag)
		}
		uuid = fmt.Sprint(raw)
	}

	msg := message.NewMessage(uuid, delivery.Body)
	for key, value := range delivery.Headers {
		if key == uuidHeader {
			continue
		}
		msg.Metadata.Set(key, headerString(value))
	}
	if delivery.ContentType != "" {
		msg.Metadata.Set(contentTypeHeader, delivery.ContentType)
	}
	return msg, nil
}

func headerString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
