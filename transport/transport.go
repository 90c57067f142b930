// Package transport defines the interfaces and types shared by actionflow
// broker backends. Each backend (kafka, rabbitmq, aws, etc.) lives in its own
// sub-package and registers itself with the transport registry, so the bridge
// can pick one by name at startup.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport combines the publisher and subscriber pair a backend produces.
// The bridge subscribes to the actions topic through Subscriber and publishes
// forwarded actions and fault notices through Publisher.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Builder is the function signature for creating a transport from config.
// Each backend package provides a Builder that can be registered.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config provides the configuration values needed by backends.
// The interface keeps backend packages from depending on the full
// config package; each backend reads only the getters it needs.
type Config interface {
	// GetPubSubSystem returns the backend name to build.
	GetPubSubSystem() string

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaConsumerGroup() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS (core and JetStream)
	GetNATSURL() string

	// HTTP
	GetHTTPServerAddress() string
	GetHTTPPublisherURL() string

	// IO
	GetIOFile() string

	// AWS
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// CapabilitiesProvider is implemented by backends that can report their
// capabilities at runtime.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}
