// Package portable moves typed messages between services over a message
// broker without tying either side to a language-specific wire format.
//
// A message travels inside an Envelope together with Stamps: small metadata
// values such as the bus name, a delivery delay or the transport message id.
// The Serializer turns an envelope into headers plus a JSON body:
//
//	X-Message-Type:          user.created
//	Content-Type:            application/json
//	X-Message-Stamp-BusName: [{"busName":"event.bus"}]
//
// Both message and stamp names come from a TypeRegistry, so a consumer written
// against the same names can decode what a producer encoded, whatever it runs
// on. The body is produced by an ordered set of Normalizers; register custom
// normalizers through ServiceDependencies.Normalizers for value types the
// defaults cannot express.
//
// # Routing
//
// The routing key middleware derives the broker routing key from the message
// wire type and a pattern such as "accounts.{messageType}". An explicit
// AMQPStamp routing key is never overwritten.
//
// # Service
//
// Service assembles the pieces on a Watermill router: an outbound bus that
// stamps routing keys, logs, traces and publishes, and an inbound bus that
// decodes consumed messages and calls the Handlers registered with On.
// Malformed payloads are never retried; they go to Config.FailureTopic when one
// is configured and are acknowledged otherwise.
//
// # Transports
//
// Transports are selected by Config.PubSubSystem and registered in the
// transport registry:
//   - channel: in-memory Go channels for tests and single-process use
//   - rabbitmq: topic exchange with the routing key as binding key
//   - kafka: one Kafka topic per routing key
//   - nats, nats-jetstream: NATS core subjects or JetStream streams
//   - http: POST to a base URL, serve topics as paths
//   - aws: SNS topics with SQS subscriptions, LocalStack aware
//   - dummy: accepts publishes and drops them
package portable
