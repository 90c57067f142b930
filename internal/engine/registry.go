package engine

import (
	"fmt"
	"sync"
	"time"

	errspkg "github.com/drblury/actionflow/internal/engine/errors"
	idspkg "github.com/drblury/actionflow/internal/engine/ids"
	loggingpkg "github.com/drblury/actionflow/internal/engine/logging"
)

// logicUnit pairs a registered definition with its limit operator, active
// execution set, and counters. A unit lives for as long as the definition
// is part of the live registry; replace discards units wholesale.
type logicUnit struct {
	engine   *Engine
	def      Definition
	name     string
	operator limitOperator
	stats    *LogicStats

	mu     sync.Mutex
	active map[*Execution]struct{}
}

func newLogicUnit(e *Engine, def Definition, name string) *logicUnit {
	u := &logicUnit{
		engine: e,
		def:    def,
		name:   name,
		stats:  &LogicStats{},
		active: make(map[*Execution]struct{}),
	}
	u.operator = newLimitOperator(def.Limit, u.startExecution, u.onDropped)
	return u
}

// startExecution admits a trigger: it creates the execution, registers it
// as active, and launches the pipeline goroutine. Called by the unit's
// limit operator.
func (u *logicUnit) startExecution(action Action) *Execution {
	e := u.engine

	x := &Execution{
		ID:        idspkg.CreateULID(),
		unit:      u,
		action:    action,
		signal:    NewCancelSignal(),
		startedAt: time.Now(),
	}
	x.logger = e.logger.With(loggingpkg.LogFields{
		"logic":        u.name,
		"execution_id": x.ID,
	})
	x.setState(StateValidating)

	u.mu.Lock()
	u.active[x] = struct{}{}
	u.mu.Unlock()

	u.stats.onStart()
	e.metrics.onExecutionStart(u.name)
	if e.hooks.OnStart != nil {
		e.hooks.OnStart(x.executionContext())
	}

	e.wg.Add(1)
	go x.run(e.baseCtx)

	return x
}

// raiseActive raises the cancellation signal of every in-flight execution
// of this unit. Triggered by actions matching the unit's cancel matcher.
func (u *logicUnit) raiseActive() {
	u.mu.Lock()
	executions := make([]*Execution, 0, len(u.active))
	for x := range u.active {
		executions = append(executions, x)
	}
	u.mu.Unlock()

	for _, x := range executions {
		x.signal.Raise()
	}
}

func (u *logicUnit) executionDone(x *Execution, final ExecutionState, duration time.Duration) {
	e := u.engine

	u.mu.Lock()
	delete(u.active, x)
	u.mu.Unlock()

	u.operator.executionDone(x)
	u.stats.onFinish(final, duration)
	e.metrics.onExecutionFinish(u.name, final)

	ctx := x.executionContext()
	ctx.Duration = duration
	ctx.State = final
	if final == StateCancelled {
		if e.hooks.OnCancel != nil {
			e.hooks.OnCancel(ctx)
		}
		return
	}
	if e.hooks.OnComplete != nil {
		e.hooks.OnComplete(ctx)
	}
}

func (u *logicUnit) onDropped() {
	u.stats.onDropped()
	u.engine.metrics.onDropped(u.name)
}

func (u *logicUnit) activeCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.active)
}

// registrySnapshot is the immutable ordered view of the live registry. The
// engine reads a single snapshot per submitted action; add and replace
// install a new snapshot atomically, so no action ever observes a mixed
// old/new set.
type registrySnapshot struct {
	units []*logicUnit
}

func (s *registrySnapshot) names() map[string]struct{} {
	names := make(map[string]struct{}, len(s.units))
	for _, u := range s.units {
		names[u.name] = struct{}{}
	}
	return names
}

// buildUnits validates the batch and constructs fresh units. Any
// configuration error rejects the whole batch, leaving the registry
// unchanged.
func (e *Engine) buildUnits(defs []Definition, taken map[string]struct{}, offset int) ([]*logicUnit, error) {
	units := make([]*logicUnit, 0, len(defs))
	for i, def := range defs {
		if err := def.validate(); err != nil {
			return nil, fmt.Errorf("logic %q: %w", defName(def, offset+i), err)
		}
		name := defName(def, offset+i)
		if _, dup := taken[name]; dup {
			return nil, fmt.Errorf("%w: %q", errspkg.ErrDuplicateName, name)
		}
		taken[name] = struct{}{}
		units = append(units, newLogicUnit(e, def, name))
	}
	return units, nil
}

func defName(def Definition, position int) string {
	if def.Name != "" {
		return def.Name
	}
	return fmt.Sprintf("logic_%d", position)
}

// AddLogic appends definitions to the live registry. Newly added units
// apply to subsequently submitted actions; in-flight executions and the
// operators of already-registered units are untouched.
func (e *Engine) AddLogic(defs ...Definition) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	units, err := e.buildUnits(defs, e.reg.names(), len(e.reg.units))
	if err != nil {
		return err
	}

	merged := make([]*logicUnit, 0, len(e.reg.units)+len(units))
	merged = append(merged, e.reg.units...)
	merged = append(merged, units...)
	e.reg = &registrySnapshot{units: merged}

	e.logger.Info("Logic added", loggingpkg.LogFields{
		"added": len(units),
		"total": len(merged),
	})
	return nil
}

// ReplaceLogic atomically swaps the entire live registry. Every limit
// operator is discarded and recreated fresh: pending debounce timers and
// throttle windows reset. Executions already running keep their original
// signal and operator snapshot and are not cancelled.
func (e *Engine) ReplaceLogic(defs ...Definition) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	units, err := e.buildUnits(defs, make(map[string]struct{}, len(defs)), 0)
	if err != nil {
		return err
	}

	for _, u := range e.reg.units {
		u.operator.retire()
	}
	e.reg = &registrySnapshot{units: units}

	e.logger.Info("Logic replaced", loggingpkg.LogFields{"total": len(units)})
	return nil
}

// Logic returns a description of every registered unit, in registry order.
func (e *Engine) Logic() []LogicInfo {
	e.mu.Lock()
	snap := e.reg
	e.mu.Unlock()

	infos := make([]LogicInfo, 0, len(snap.units))
	for _, u := range snap.units {
		stats := u.stats.Snapshot()
		infos = append(infos, LogicInfo{
			Name:   u.name,
			Limit:  u.def.Limit.String(),
			Active: u.activeCount(),
			Stats:  &stats,
		})
	}
	return infos
}
