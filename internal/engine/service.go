package engine

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"
	"github.com/prometheus/client_golang/prometheus"

	configpkg "github.com/drblury/actionflow/internal/engine/config"
	loggingpkg "github.com/drblury/actionflow/internal/engine/logging"
	transportpkg "github.com/drblury/actionflow/transport"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// FaultActionType is the type of the fault-notice actions the bridge
// publishes to the configured fault topic.
const FaultActionType = "actionflow.fault"

// ServiceDependencies holds the optional collaborators of the bridge.
// Leave fields zero to skip the related wiring.
type ServiceDependencies struct {
	// Deps is the dependency map injected into every stage invocation.
	Deps Deps
	// State reads the application state for stage callbacks.
	State StateAccessor
	// Hooks observe execution lifecycle events.
	Hooks ExecutionHooks
	// Logic is the initial set of logic definitions. More can be added or
	// replaced at runtime through the service.
	Logic []Definition
	// Middlewares are appended after the default middleware chain.
	Middlewares []MiddlewareRegistration
	// DisableDefaultMiddlewares skips registering the default chain.
	DisableDefaultMiddlewares bool
	// TransportFactory overrides how the broker transport is built.
	TransportFactory transportpkg.Builder
	// MetricsRegisterer receives the engine collectors when metrics are
	// enabled. Defaults to prometheus.DefaultRegisterer.
	MetricsRegisterer prometheus.Registerer
}

// Service is the broker bridge: it consumes action envelopes from the
// actions topic, submits them to the embedded Engine, and publishes every
// action the engine forwards downstream to the downstream topic.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger
	Engine *Engine

	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex
}

// NewService constructs a bridge for the supplied configuration, panicking
// on construction failure. Register logic on the returned Service before
// calling Start, or pass it via deps.Logic.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) *Service {
	s, err := TryNewService(conf, log, ctx, deps)
	if err != nil {
		panic(err)
	}
	return s
}

// TryNewService is NewService returning construction errors instead of
// panicking.
func TryNewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, fmt.Errorf("actionflow: config is required")
	}
	if log == nil {
		return nil, fmt.Errorf("actionflow: logger is required")
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	wmLogger := loggingpkg.NewWatermillAdapter(log)
	log.Info("Creating action bridge",
		loggingpkg.LogFields{
			"pubsub_system": conf.PubSubSystem,
			"config":        conf,
		})

	s := &Service{
		Conf:   conf,
		Logger: log,
	}

	build := deps.TransportFactory
	if build == nil {
		build = transportpkg.Build
	}
	transport, err := build(ctx, conf, wmLogger)
	if err != nil {
		return nil, err
	}
	s.publisher = transport.Publisher
	s.subscriber = transport.Subscriber

	var engineMetrics *Metrics
	if conf.MetricsEnabled {
		registerer := deps.MetricsRegisterer
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}
		engineMetrics = NewMetrics(registerer)
	}

	s.Engine = New(Options{
		Logger:      log,
		Downstream:  s.publishDownstream,
		Deps:        deps.Deps,
		State:       deps.State,
		Hooks:       deps.Hooks,
		Metrics:     engineMetrics,
		FaultSink:   s.publishFault,
		BaseContext: ctx,
	})

	if len(deps.Logic) > 0 {
		if err := s.Engine.AddLogic(deps.Logic...); err != nil {
			return nil, err
		}
	}

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, err
	}
	s.router = router
	s.router.AddPlugin(plugin.SignalsHandler)

	if err := s.registerConfiguredMiddlewares(deps); err != nil {
		return nil, err
	}

	s.router.AddNoPublisherHandler(
		"actionflow_ingress",
		conf.ActionsTopic,
		s.subscriber,
		s.ingressHandler,
	)

	return s, nil
}

// Start runs the bridge router until the provided context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.StartIntrospectionServer()
	s.startHTTPServers()
	return routerRun(s.router, ctx)
}

// AddLogic appends logic definitions to the engine's live registry.
func (s *Service) AddLogic(defs ...Definition) error {
	return s.Engine.AddLogic(defs...)
}

// ReplaceLogic atomically swaps the engine's live registry.
func (s *Service) ReplaceLogic(defs ...Definition) error {
	return s.Engine.ReplaceLogic(defs...)
}

// Submit feeds an action into the engine directly, bypassing the broker.
func (s *Service) Submit(action Action) {
	s.Engine.Submit(action)
}

// ingressHandler decodes one envelope and submits it. Undecodable envelopes
// are acked and reported: redelivery cannot repair them.
func (s *Service) ingressHandler(msg *message.Message) error {
	action, err := DecodeAction(msg)
	if err != nil {
		s.Logger.Error("Dropping undecodable action envelope", err, loggingpkg.LogFields{
			"message_uuid": msg.UUID,
		})
		s.publishFault(Fault{Stage: "decode", ExecutionID: msg.UUID, Err: err})
		return nil
	}

	s.Engine.Submit(action)
	return nil
}

func (s *Service) publishDownstream(action Action) {
	msg, err := EncodeAction(action)
	if err != nil {
		s.Logger.Error("Failed to encode downstream action", err, loggingpkg.LogFields{
			"action_type": action.Type,
		})
		return
	}
	if err := s.publisher.Publish(s.Conf.DownstreamTopic, msg); err != nil {
		s.Logger.Error("Failed to publish downstream action", err, loggingpkg.LogFields{
			"action_type": action.Type,
			"topic":       s.Conf.DownstreamTopic,
		})
	}
}

// publishFault publishes a fault notice to the fault topic, when configured.
func (s *Service) publishFault(fault Fault) {
	if s.Conf.FaultTopic == "" {
		return
	}

	errText := ""
	if fault.Err != nil {
		errText = fault.Err.Error()
	}
	notice := Action{
		Type: FaultActionType,
		Payload: map[string]any{
			"logic":        fault.Logic,
			"stage":        fault.Stage,
			"execution_id": fault.ExecutionID,
			"action_type":  fault.Action.Type,
			"error":        errText,
		},
	}

	msg, err := EncodeAction(notice)
	if err != nil {
		s.Logger.Error("Failed to encode fault notice", err, nil)
		return
	}
	if err := s.publisher.Publish(s.Conf.FaultTopic, msg); err != nil {
		s.Logger.Error("Failed to publish fault notice", err, loggingpkg.LogFields{
			"topic": s.Conf.FaultTopic,
		})
	}
}

func (s *Service) registerConfiguredMiddlewares(deps ServiceDependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("failed to register middleware %s: %w", name, err)
		}
	}
	return nil
}

// RegisterHTTPHandler mounts a handler on the mux for the given port. The
// server starts with the bridge.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		addr := fmt.Sprintf(":%d", port)
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": addr})
		go func(addr string, handler http.Handler) {
			if err := http.ListenAndServe(addr, handler); err != nil {
				s.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": addr})
			}
		}(addr, mux)
	}
}
