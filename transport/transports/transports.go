// Package transports imports all built-in backends for side-effect
// registration. Import this package to have every backend available in the
// default registry.
package transports

import (
	_ "github.com/drblury/actionflow/transport/aws"
	_ "github.com/drblury/actionflow/transport/channel"
	_ "github.com/drblury/actionflow/transport/http"
	_ "github.com/drblury/actionflow/transport/io"
	_ "github.com/drblury/actionflow/transport/jetstream"
	_ "github.com/drblury/actionflow/transport/kafka"
	_ "github.com/drblury/actionflow/transport/nats"
	_ "github.com/drblury/actionflow/transport/rabbitmq"
)
