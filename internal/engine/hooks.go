package engine

import (
	"time"

	loggingpkg "github.com/drblury/actionflow/internal/engine/logging"
)

// ExecutionContext describes one execution to lifecycle hooks.
type ExecutionContext struct {
	// Logic is the name of the owning logic unit.
	Logic string
	// ExecutionID is the execution's ULID.
	ExecutionID string
	// Action is the triggering action.
	Action Action
	// StartedAt is when the execution was admitted.
	StartedAt time.Time
	// Duration is how long the execution ran (only set on finish hooks).
	Duration time.Duration
	// State is the final state (only set on finish hooks).
	State ExecutionState
}

// ExecutionHooks defines callbacks for execution lifecycle events. All hooks
// are optional - nil hooks are simply not called.
type ExecutionHooks struct {
	// OnStart is called when an execution is admitted, before validate runs.
	OnStart func(ctx ExecutionContext)

	// OnComplete is called when an execution reaches Completed, including
	// faulted executions.
	OnComplete func(ctx ExecutionContext)

	// OnCancel is called when an execution reaches Cancelled. Cancellation
	// is a normal outcome, not a fault.
	OnCancel func(ctx ExecutionContext)

	// OnFault is called when a stage fails or misuses the stage protocol.
	OnFault func(ctx ExecutionContext, err error)
}

// Merge combines two ExecutionHooks, creating a new ExecutionHooks that
// calls both. The hooks from 'other' are called after the hooks from 'h'.
func (h ExecutionHooks) Merge(other ExecutionHooks) ExecutionHooks {
	return ExecutionHooks{
		OnStart:    chainHooks(h.OnStart, other.OnStart),
		OnComplete: chainHooks(h.OnComplete, other.OnComplete),
		OnCancel:   chainHooks(h.OnCancel, other.OnCancel),
		OnFault:    chainFaultHooks(h.OnFault, other.OnFault),
	}
}

func chainHooks(a, b func(ExecutionContext)) func(ExecutionContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx ExecutionContext) {
		a(ctx)
		b(ctx)
	}
}

func chainFaultHooks(a, b func(ExecutionContext, error)) func(ExecutionContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx ExecutionContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

// LoggingHooks returns hooks that log every lifecycle event through the
// supplied logger.
func LoggingHooks(logger loggingpkg.ServiceLogger) ExecutionHooks {
	fields := func(ctx ExecutionContext) loggingpkg.LogFields {
		return loggingpkg.LogFields{
			"logic":        ctx.Logic,
			"execution_id": ctx.ExecutionID,
			"action_type":  ctx.Action.Type,
		}
	}

	return ExecutionHooks{
		OnStart: func(ctx ExecutionContext) {
			logger.Debug("Execution started", fields(ctx))
		},
		OnComplete: func(ctx ExecutionContext) {
			f := fields(ctx)
			f["duration_ms"] = ctx.Duration.Milliseconds()
			logger.Debug("Execution completed", f)
		},
		OnCancel: func(ctx ExecutionContext) {
			f := fields(ctx)
			f["duration_ms"] = ctx.Duration.Milliseconds()
			logger.Debug("Execution cancelled", f)
		},
		OnFault: func(ctx ExecutionContext, err error) {
			logger.Error("Execution fault", err, fields(ctx))
		},
	}
}
