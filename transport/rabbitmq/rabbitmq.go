// Package rabbitmq provides a RabbitMQ transport. Messages are published to a
// single topic exchange and the Watermill topic is used as the AMQP routing
// key, so bindings may use wildcards such as "orders.#".
package rabbitmq

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/portable/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "rabbitmq"

// DefaultExchange is used when the config names no exchange.
const DefaultExchange = "portable"

// ConnectionFactory allows overriding the connection creation for testing.
var ConnectionFactory = func(cfg amqp.ConnectionConfig, logger watermill.LoggerAdapter) (*amqp.ConnectionWrapper, error) {
	return amqp.NewConnection(cfg, logger)
}

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Publisher, error) {
	return amqp.NewPublisherWithConnection(cfg, logger, conn)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Subscriber, error) {
	return amqp.NewSubscriberWithConnection(cfg, logger, conn)
}

// CloseConnection closes the shared connection when Build fails after dialing.
var CloseConnection = func(conn *amqp.ConnectionWrapper) error {
	return conn.Close()
}

func init() {
	transport.Register(TransportName, Build)
}

// NewConfig returns a durable topic-exchange configuration. Each subscribed
// topic gets its own durable queue bound with the topic as binding key.
func NewConfig(url, exchange string) amqp.Config {
	if exchange == "" {
		exchange = DefaultExchange
	}
	routingKey := func(topic string) string { return topic }

	cfg := amqp.NewDurablePubSubConfig(url, amqp.GenerateQueueNameTopicName)
	cfg.Exchange = amqp.ExchangeConfig{
		GenerateName: func(string) string { return exchange },
		Type:         "topic",
		Durable:      true,
	}
	cfg.Publish.GenerateRoutingKey = routingKey
	cfg.QueueBind.GenerateRoutingKey = routingKey
	cfg.Marshaler = Marshaler{}
	return cfg
}

// Build connects once and shares the connection between publisher and
// subscriber.
func Build(_ context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	url := cfg.GetRabbitMQURL()
	amqpConfig := NewConfig(url, cfg.GetRabbitMQExchange())

	conn, err := ConnectionFactory(amqp.ConnectionConfig{
		AmqpURI:   url,
		Reconnect: amqp.DefaultReconnectConfig(),
	}, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	publisher, err := PublisherFactory(amqpConfig, logger, conn)
	if err != nil {
		_ = CloseConnection(conn)
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(amqpConfig, logger, conn)
	if err != nil {
		_ = publisher.Close()
		_ = CloseConnection(conn)
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}
