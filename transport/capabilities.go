package transport

// Capabilities describes the delivery guarantees of a backend.
// The bridge inspects these at runtime, mostly to decide whether
// arrival order on the actions topic can be trusted.
type Capabilities struct {
	// SupportsOrdering indicates the backend guarantees message ordering.
	// When true, actions within a partition/stream arrive at the engine
	// in publish order.
	SupportsOrdering bool

	// SupportsTracing indicates the backend propagates tracing headers natively.
	SupportsTracing bool

	// SupportsBatching indicates the backend can batch multiple messages.
	SupportsBatching bool

	// SupportsAck indicates the backend supports explicit acknowledgment.
	SupportsAck bool

	// SupportsNack indicates the backend supports negative acknowledgment
	// (redelivery).
	SupportsNack bool

	// SupportsPartitioning indicates the backend supports message partitioning.
	SupportsPartitioning bool

	// MaxMessageSize is the maximum message size in bytes (0 = unlimited/unknown).
	MaxMessageSize int64

	// Name is the backend name as registered.
	Name string

	// Version is the backend/driver version.
	Version string
}

// SupportsReliableDelivery returns true if the backend supports at-least-once
// delivery semantics (ack + nack).
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

// Predefined capability sets for the built-in backends.
var (
	// ChannelCapabilities for the in-memory Go channel backend.
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	// KafkaCapabilities for the Apache Kafka backend.
	KafkaCapabilities = Capabilities{
		Name:                 "kafka",
		SupportsOrdering:     true,
		SupportsTracing:      true,
		SupportsBatching:     true,
		SupportsAck:          true,
		SupportsPartitioning: true,
		MaxMessageSize:       1048576, // Default 1MB
	}

	// RabbitMQCapabilities for the RabbitMQ/AMQP backend.
	RabbitMQCapabilities = Capabilities{
		Name:             "rabbitmq",
		SupportsOrdering: true,
		SupportsTracing:  true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	// NATSCapabilities for the NATS Core backend.
	NATSCapabilities = Capabilities{
		Name:            "nats",
		SupportsTracing: true,
		MaxMessageSize:  1048576, // Default 1MB
	}

	// NATSJetStreamCapabilities for the NATS JetStream backend.
	NATSJetStreamCapabilities = Capabilities{
		Name:             "nats-jetstream",
		SupportsOrdering: true,
		SupportsTracing:  true,
		SupportsBatching: true,
		SupportsAck:      true,
		SupportsNack:     true,
		MaxMessageSize:   1048576, // Default 1MB
	}

	// AWSCapabilities for the AWS SNS/SQS backend.
	AWSCapabilities = Capabilities{
		Name:             "aws",
		SupportsOrdering: true,
		SupportsTracing:  true,
		SupportsBatching: true,
		SupportsAck:      true,
		SupportsNack:     true,
		MaxMessageSize:   262144, // 256KB
	}

	// HTTPCapabilities for the HTTP backend.
	HTTPCapabilities = Capabilities{
		Name:            "http",
		SupportsTracing: true,
	}

	// IOCapabilities for the file-based I/O backend.
	IOCapabilities = Capabilities{
		Name:             "io",
		SupportsOrdering: true,
	}
)

// GetCapabilities returns the capabilities for a backend by name, as
// registered with the default registry. Returns a zero Capabilities carrying
// only the name if the backend is unknown.
func GetCapabilities(name string) Capabilities {
	return DefaultRegistry.GetCapabilities(name)
}
