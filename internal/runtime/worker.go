package runtime

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/portable/internal/runtime/envelope"
	errspkg "github.com/drblury/portable/internal/runtime/errors"
	loggingpkg "github.com/drblury/portable/internal/runtime/logging"
	"github.com/drblury/portable/internal/runtime/serializer"
)

// Consume subscribes the inbound bus to topic. Registering the same topic
// twice is a no-op.
func (s *Service) Consume(topic string) error {
	if topic == "" {
		return errspkg.ErrTopicRequired
	}

	s.consumedMu.Lock()
	defer s.consumedMu.Unlock()
	if _, ok := s.consumed[topic]; ok {
		return nil
	}
	s.consumed[topic] = struct{}{}

	s.router.AddNoPublisherHandler(
		fmt.Sprintf("portable-%s", topic),
		topic,
		s.subscriber,
		s.consume,
	)
	return nil
}

// consume decodes msg and hands it to the inbound bus. Returning an error
// nacks the message. Malformed payloads are not redelivered: without a
// failure topic they are logged and acknowledged.
func (s *Service) consume(msg *message.Message) error {
	env, err := s.serializer.Unmarshal(msg)
	if err != nil {
		if errspkg.IsMalformedPayload(err) && s.Conf.FailureTopic == "" {
			s.Logger.Error("Dropping malformed payload", err, loggingpkg.LogFields{
				"message_uuid": msg.UUID,
				"message_type": msg.Metadata.Get(serializer.HeaderMessageType),
			})
			return nil
		}
		return err
	}

	env = env.With(envelope.ReceivedStamp{TransportName: s.Conf.PubSubSystem})
	_, err = s.inbound.Dispatch(msg.Context(), env)
	return err
}
