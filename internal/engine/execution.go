package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	loggingpkg "github.com/drblury/actionflow/internal/engine/logging"
)

// ExecutionState names the phases of a pipeline execution.
type ExecutionState int32

const (
	StateValidating ExecutionState = iota
	StateTransforming
	StateProcessing
	StateCancelled
	StateCompleted
)

func (s ExecutionState) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateTransforming:
		return "transforming"
	case StateProcessing:
		return "processing"
	case StateCancelled:
		return "cancelled"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Stage names used in fault reports and trace events.
const (
	StageValidate  = "validate"
	StageTransform = "transform"
	StageProcess   = "process"
)

// Execution is the per-trigger state machine driving one logic unit's
// validate → transform → process pipeline. It is created when a trigger is
// admitted by the unit's limit operator and owns its own cancellation
// signal for its whole lifetime.
type Execution struct {
	// ID is a ULID assigned at admission.
	ID string

	unit      *logicUnit
	action    Action
	signal    *CancelSignal
	state     atomic.Int32
	startedAt time.Time
	logger    loggingpkg.ServiceLogger
}

// State returns the execution's current phase.
func (x *Execution) State() ExecutionState {
	return ExecutionState(x.state.Load())
}

// Signal returns the execution's cancellation signal.
func (x *Execution) Signal() *CancelSignal {
	return x.signal
}

// TriggeringAction returns the action that started this execution.
func (x *Execution) TriggeringAction() Action {
	return x.action
}

func (x *Execution) setState(s ExecutionState) {
	x.state.Store(int32(s))
}

// observeCancel is the checkpoint run before every stage transition. It
// moves the execution to Cancelled when the signal has been raised.
func (x *Execution) observeCancel() bool {
	if x.signal.Raised() {
		x.setState(StateCancelled)
		return true
	}
	return false
}

func (x *Execution) run(parent context.Context) {
	e := x.unit.engine
	defer e.wg.Done()

	ctx, stop := x.signal.bindContext(parent)
	defer stop()

	ctx, span := e.tracer.Start(ctx, "Execution",
		trace.WithAttributes(
			attribute.String("logic.name", x.unit.name),
			attribute.String("execution.id", x.ID),
			attribute.String("action.type", x.action.Type),
		))
	defer span.End()

	defer x.finish(span)

	if x.observeCancel() {
		return
	}
	allowed, proceed := x.runValidate(ctx, span)
	if !proceed {
		return
	}

	x.setState(StateTransforming)
	if x.observeCancel() {
		return
	}
	forwarded, proceed := x.runTransform(ctx, span, allowed)
	if !proceed {
		return
	}

	x.setState(StateProcessing)
	if x.observeCancel() {
		return
	}
	x.runProcess(ctx, span, forwarded)
}

// runValidate drives the validate stage. The second return value reports
// whether the pipeline should continue into transform.
func (x *Execution) runValidate(ctx context.Context, span trace.Span) (Action, bool) {
	if x.unit.def.Validate == nil {
		return x.action, true
	}

	span.AddEvent(StageValidate)
	decision := &Decision{
		action: x.action,
		report: func(err error) { x.fault(StageValidate, err) },
	}
	stageCtx := x.stageContext(ctx, x.action)

	if err := x.callStage(StageValidate, func() error {
		return x.unit.def.Validate(stageCtx, decision)
	}); err != nil {
		x.fault(StageValidate, err)
		return Action{}, false
	}

	outcome, action, notice := decision.result()
	switch outcome {
	case decisionAllowed:
		return action, true
	case decisionRejected:
		// A rejection notice is the only thing a rejected execution may
		// still forward.
		if notice && !x.signal.Raised() {
			x.unit.engine.forward(action)
		}
		return Action{}, false
	default:
		// Validate settled nothing: terminal no-op.
		return Action{}, false
	}
}

// runTransform drives the transform stage. It returns the forwarded action
// and whether the pipeline should continue into process.
func (x *Execution) runTransform(ctx context.Context, span trace.Span, allowed Action) (Action, bool) {
	e := x.unit.engine

	if x.unit.def.Transform == nil {
		if x.signal.Raised() {
			x.setState(StateCancelled)
			return Action{}, false
		}
		e.forward(allowed)
		return allowed, true
	}

	span.AddEvent(StageTransform)
	forwarder := &Forwarder{
		action: allowed,
		signal: x.signal,
		emit:   e.forward,
		report: func(err error) { x.fault(StageTransform, err) },
	}
	stageCtx := x.stageContext(ctx, allowed)

	if err := x.callStage(StageTransform, func() error {
		return x.unit.def.Transform(stageCtx, forwarder)
	}); err != nil {
		x.fault(StageTransform, err)
		return Action{}, false
	}

	action, forwarded := forwarder.result()
	if !forwarded {
		// Transform swallowed the action: nothing downstream, no process.
		return Action{}, false
	}
	return action, true
}

func (x *Execution) runProcess(ctx context.Context, span trace.Span, forwarded Action) {
	if x.unit.def.Process == nil {
		return
	}

	span.AddEvent(StageProcess)
	dispatcher := &Dispatcher{
		signal: x.signal,
		submit: x.unit.engine.Submit,
	}
	stageCtx := x.stageContext(ctx, forwarded)

	if err := x.callStage(StageProcess, func() error {
		return x.unit.def.Process(stageCtx, dispatcher)
	}); err != nil {
		x.fault(StageProcess, err)
	}
}

func (x *Execution) stageContext(ctx context.Context, action Action) *StageContext {
	e := x.unit.engine
	return &StageContext{
		Action: action,
		Logger: x.logger,
		ctx:    ctx,
		deps:   e.deps,
		state:  e.state,
		signal: x.signal,
	}
}

// callStage invokes a user stage, converting panics into stage faults so a
// misbehaving unit never takes down the engine.
func (x *Execution) callStage(stage string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s stage: %v", stage, r)
		}
	}()
	return fn()
}

// fault records a stage failure. Faulted executions end Completed, not
// Cancelled: abortion and failure stay distinguishable.
func (x *Execution) fault(stage string, err error) {
	x.unit.engine.reportFault(x, stage, err)
}

func (x *Execution) executionContext() ExecutionContext {
	return ExecutionContext{
		Logic:       x.unit.name,
		ExecutionID: x.ID,
		Action:      x.action,
		StartedAt:   x.startedAt,
	}
}

func (x *Execution) finish(span trace.Span) {
	if x.State() != StateCancelled {
		if x.signal.Raised() {
			x.setState(StateCancelled)
		} else {
			x.setState(StateCompleted)
		}
	}

	final := x.State()
	duration := time.Since(x.startedAt)
	span.SetAttributes(attribute.String("execution.state", final.String()))

	x.unit.executionDone(x, final, duration)
}
