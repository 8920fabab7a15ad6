// Package transports imports all built-in transports for auto-registration.
// Import this package to have all transports registered with the default registry.
package transports

import (
	_ "github.com/drblury/portable/transport/aws"
	_ "github.com/drblury/portable/transport/channel"
	_ "github.com/drblury/portable/transport/dummy"
	_ "github.com/drblury/portable/transport/http"
	_ "github.com/drblury/portable/transport/kafka"
	_ "github.com/drblury/portable/transport/nats"
	_ "github.com/drblury/portable/transport/rabbitmq"
)
