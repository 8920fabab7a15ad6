// Package http provides an HTTP transport. Publishing POSTs each message to
// the publisher base URL joined with the topic; consuming serves the topic as
// a path on the subscriber address.
package http

import (
	"context"
	nethttp "net/http"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/portable/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "http"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(config http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return http.NewPublisher(config, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(addr string, config http.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return http.NewSubscriber(addr, config, logger)
}

func init() {
	transport.Register(TransportName, Build)
}

// Build creates the HTTP publisher and subscriber. The subscriber's server is
// started after the first Subscribe so routes exist before it accepts requests.
func Build(_ context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	publisherURL := cfg.GetHTTPPublisherURL()

	publisher, err := PublisherFactory(
		http.PublisherConfig{
			MarshalMessageFunc: func(topic string, msg *message.Message) (*nethttp.Request, error) {
				return http.DefaultMarshalMessageFunc(TopicURL(publisherURL, topic), msg)
			},
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(
		cfg.GetHTTPServerAddress(),
		http.SubscriberConfig{
			UnmarshalMessageFunc: http.DefaultUnmarshalMessageFunc,
		},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: &pathSubscriber{Subscriber: subscriber, logger: logger},
	}, nil
}

// TopicURL joins base and topic with exactly one slash.
func TopicURL(base, topic string) string {
	return strings.TrimSuffix(base, "/") + TopicPath(topic)
}

// TopicPath returns topic as an absolute URL path.
func TopicPath(topic string) string {
	return "/" + strings.TrimPrefix(topic, "/")
}

type serverStarter interface {
	StartHTTPServer() error
}

type pathSubscriber struct {
	message.Subscriber
	logger watermill.LoggerAdapter
	start  sync.Once
}

func (s *pathSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	messages, err := s.Subscriber.Subscribe(ctx, TopicPath(topic))
	if err != nil {
		return nil, err
	}

	if starter, ok := s.Subscriber.(serverStarter); ok {
		s.start.Do(func() {
			go func() {
				if err := starter.StartHTTPServer(); err != nil && err != nethttp.ErrServerClosed {
					s.logger.Error("HTTP subscriber server stopped", err, nil)
				}
			}()
		})
	}
	return messages, nil
}
