/*
Package runtime wires the portable envelope layer onto Watermill.

# Package Structure

## Core Service (service.go)

Service owns the router, the publisher and subscriber pair built by the
transport factory, the serializer and the two buses:
  - outbound: routing keys, logging, tracing, metrics, send
  - inbound: logging, tracing, metrics, handle

## Worker (worker.go)

Consume subscribes a topic. Every message is decoded, stamped with a
ReceivedStamp naming the transport and dispatched on the inbound bus.

## Middleware (middleware.go)

Router middleware registered by default: correlation ID, message logging,
Prometheus metrics, poison queue forwarding of malformed payloads, panic
recovery.

# Sub-packages

  - bus/: envelope middleware chain, senders, handler table, observability
  - config/: service configuration with validation
  - envelope/: envelope and built-in stamps
  - errors/: sentinel errors and error types
  - ids/: ULID generation for message IDs
  - jsoncodec/: JSON marshaling over sonic
  - logging/: logger interface and adapters
  - metadata/: wire header maps
  - normalizer/: value to JSON-ready data conversion
  - routing/: routing key middleware
  - serializer/: portable envelope codec
  - transport/: resolves the configured transport
  - typeregistry/: message and stamp wire type registry
*/
package runtime
