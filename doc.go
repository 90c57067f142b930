// Package actionflow intercepts typed actions before they reach their
// destination and runs matching business logic against them. Each piece of
// logic declares a matcher and up to three stages: validate decides whether
// the triggering action may pass, transform rewrites what flows downstream,
// and process runs side effects that may dispatch new actions back into the
// engine. Actions nothing matches are forwarded downstream unchanged.
//
// The Engine is usable entirely in-process: create it with NewEngine, hand it
// a Downstream callback, register Definitions with AddLogic, and feed it with
// Submit. Cancel matchers raise a cancellation signal on running executions,
// and per-logic limits (latest, debounce, throttle) bound how many executions
// a burst of actions starts. ReplaceLogic swaps the whole logic set atomically
// without disturbing in-flight executions.
//
// Service wraps the engine in a Watermill bridge: it consumes action
// envelopes from the configured actions topic, submits them to the engine,
// and publishes everything the engine forwards to the downstream topic.
// Stage faults can additionally be published as fault notices. A minimal
// setup fills Config, creates a Service with the logic definitions, and calls
// Start.
//
// # Transports
//
// The bridge supports 8 broker backends out of the box:
//   - channel: In-memory Go channels for testing
//   - kafka: High-throughput streaming with consumer groups
//   - rabbitmq: AMQP-based durable queues
//   - aws: AWS SNS/SQS with LocalStack support
//   - nats: High-performance messaging
//   - nats-jetstream: NATS with durable consumers and explicit acks
//   - http: Request/response messaging
//   - io: File-based action journal
//
// # Middleware
//
// The default bridge middleware chain includes correlation ID injection,
// structured logging, OpenTelemetry tracing, Prometheus metrics, and panic
// recovery. Custom middleware can be added via ServiceDependencies.
//
// # Hooks
//
// ExecutionHooks provide OnStart, OnComplete, OnCancel, and OnFault callbacks
// around each logic execution for custom logging, metrics collection, and
// alerting. LoggingHooks is a ready-made set that logs lifecycle events.
//
// Logic definitions can also be loaded from YAML with the builder package,
// which binds handler names from the file to registered Go functions.
package actionflow
