package engine

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	loggingpkg "github.com/drblury/actionflow/internal/engine/logging"
)

// Fault describes a stage failure or stage-protocol misuse, reported to the
// configured fault sink. Faults are isolated per execution and never abort
// the engine's matching loop.
type Fault struct {
	Logic       string `json:"logic"`
	Stage       string `json:"stage"`
	ExecutionID string `json:"execution_id"`
	Action      Action `json:"action"`
	Err         error  `json:"-"`
}

// Options configures an Engine. Only Downstream is usually interesting;
// every other field has a working zero value.
type Options struct {
	// Logger receives engine and execution logs. Defaults to a nop logger.
	Logger loggingpkg.ServiceLogger
	// Downstream delivers actions past the logic layer toward reducers and
	// other middleware. It is the sole channel by which allowed,
	// transformed, and rejection-notice actions leave the engine. A nil
	// Downstream discards forwarded actions.
	Downstream func(Action)
	// Deps is the read-only dependency map exposed to every stage.
	Deps Deps
	// State reads the current application state for stage callbacks.
	State StateAccessor
	// Hooks observe execution lifecycle events.
	Hooks ExecutionHooks
	// Metrics enables Prometheus instrumentation when non-nil.
	Metrics *Metrics
	// FaultSink receives stage faults in addition to the log. The bridge
	// uses this to publish fault notices to the fault topic.
	FaultSink func(Fault)
	// BaseContext is the parent context of every execution. Defaults to
	// context.Background().
	BaseContext context.Context
}

// Engine is the orchestrator: it matches every submitted action against the
// live registry, drives pipeline executions through their limit operators,
// and forwards allowed actions downstream. Matching and limiting decisions
// are serialized in arrival order; stage execution runs concurrently.
type Engine struct {
	logger     loggingpkg.ServiceLogger
	downstream func(Action)
	deps       Deps
	state      StateAccessor
	hooks      ExecutionHooks
	metrics    *Metrics
	faultSink  func(Fault)
	tracer     trace.Tracer
	baseCtx    context.Context

	mu  sync.Mutex
	reg *registrySnapshot
	wg  sync.WaitGroup
}

// New constructs an Engine. Register logic with AddLogic before or after
// submitting actions; an empty registry forwards everything unchanged.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = loggingpkg.Nop()
	}
	baseCtx := opts.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	return &Engine{
		logger:     logger,
		downstream: opts.Downstream,
		deps:       opts.Deps,
		state:      opts.State,
		hooks:      opts.Hooks,
		metrics:    opts.Metrics,
		faultSink:  opts.FaultSink,
		tracer:     otel.Tracer("actionflow-engine"),
		baseCtx:    baseCtx,
		reg:        &registrySnapshot{},
	}
}

// Submit routes one action through the logic layer. It is safe for
// concurrent use; decisions for concurrently submitted actions are made in
// lock-acquisition order. Actions dispatched from process stages re-enter
// here.
func (e *Engine) Submit(action Action) {
	e.metrics.onSubmit()

	e.mu.Lock()
	snap := e.reg
	matched := 0
	for _, u := range snap.units {
		if u.def.Cancel != nil && u.def.Cancel.Matches(action) {
			u.raiseActive()
		}
		if u.def.Match.Matches(action) {
			matched++
			u.operator.admit(action)
		}
	}
	e.mu.Unlock()

	if matched == 0 {
		e.forward(action)
	}
}

// forward delivers an action downstream.
func (e *Engine) forward(action Action) {
	e.metrics.onForward()
	e.logger.Trace("Forwarding action downstream", loggingpkg.LogFields{
		"action_type": action.Type,
	})
	if e.downstream != nil {
		e.downstream(action)
	}
}

func (e *Engine) reportFault(x *Execution, stage string, err error) {
	x.unit.stats.onFault()
	e.metrics.onFault(x.unit.name, stage)
	e.logger.Error("Logic stage fault", err, loggingpkg.LogFields{
		"logic":        x.unit.name,
		"stage":        stage,
		"execution_id": x.ID,
		"action_type":  x.action.Type,
	})

	if e.hooks.OnFault != nil {
		e.hooks.OnFault(x.executionContext(), err)
	}
	if e.faultSink != nil {
		e.faultSink(Fault{
			Logic:       x.unit.name,
			Stage:       stage,
			ExecutionID: x.ID,
			Action:      x.action,
			Err:         err,
		})
	}
}

// Drain blocks until every in-flight execution finishes or ctx expires.
// Long-running process stages must observe their cancellation signal for
// Drain to return early.
func (e *Engine) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
