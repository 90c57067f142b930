package engine

import (
	"context"
	"sync"

	errspkg "github.com/drblury/actionflow/internal/engine/errors"
	loggingpkg "github.com/drblury/actionflow/internal/engine/logging"
)

// Deps holds the named values injected into every stage invocation. The map
// is supplied at engine construction and exposed read-only to user code.
type Deps map[string]any

// StateAccessor reads the current application state for stage callbacks. The
// engine never interprets the returned value.
type StateAccessor func() any

// ValidateFunc inspects a triggering action and settles exactly one of
// Decision.Allow or Decision.Reject. Settling neither is a valid terminal
// no-op: nothing is forwarded and the execution completes.
type ValidateFunc func(ctx *StageContext, d *Decision) error

// TransformFunc may rewrite the action before it is forwarded downstream.
// Calling next.Next forwards the action and gates the process stage;
// returning without calling it swallows the action.
type TransformFunc func(ctx *StageContext, next *Forwarder) error

// ProcessFunc runs the unit's side effects. It may call d.Dispatch any
// number of times over an unbounded duration; each dispatch re-enters the
// engine as a fresh incoming action.
type ProcessFunc func(ctx *StageContext, d *Dispatcher) error

// Definition declares one logic unit: which actions trigger it, what cancels
// it, how its executions are limited, and the three optional stages.
// Definitions are immutable once registered.
type Definition struct {
	// Name identifies the unit in logs, metrics, and the introspection API.
	Name string
	// Match selects triggering actions. Required.
	Match Matcher
	// Cancel optionally selects actions that raise the cancellation signal
	// of the unit's in-flight executions.
	Cancel Matcher
	// Limit selects the concurrency-limiting behaviour. Zero value runs
	// every trigger concurrently.
	Limit LimitSpec

	Validate  ValidateFunc
	Transform TransformFunc
	Process   ProcessFunc
}

func (d Definition) validate() error {
	if d.Match == nil {
		return errspkg.ErrMatcherRequired
	}
	return d.Limit.Validate()
}

// StageContext is handed to every validate/transform/process invocation. The
// embedded context is cancelled when the execution's signal is raised.
type StageContext struct {
	// Action is the triggering action for this stage: the original trigger
	// in validate, the allowed action in transform, and the forwarded
	// action in process.
	Action Action
	// Logger is scoped to the logic unit and execution.
	Logger loggingpkg.ServiceLogger

	ctx    context.Context
	deps   Deps
	state  StateAccessor
	signal *CancelSignal
}

// Context returns a context cancelled when the execution is cancelled.
func (c *StageContext) Context() context.Context {
	return c.ctx
}

// Cancelled reports whether the execution's cancellation signal is raised.
func (c *StageContext) Cancelled() bool {
	return c.signal.Raised()
}

// Dep returns the injected dependency registered under name.
func (c *StageContext) Dep(name string) (any, bool) {
	v, ok := c.deps[name]
	return v, ok
}

// State reads the current application state, or nil when no accessor was
// configured.
func (c *StageContext) State() any {
	if c.state == nil {
		return nil
	}
	return c.state()
}

type decisionOutcome int

const (
	decisionPending decisionOutcome = iota
	decisionAllowed
	decisionRejected
)

// Decision collects the single allow/reject verdict of a validate stage.
// Exactly one of Allow or Reject may be invoked, at most once; a second
// settlement is a protocol fault, reported without disturbing the first.
type Decision struct {
	mu      sync.Mutex
	outcome decisionOutcome
	action  Action
	notice  bool
	report  func(error)
}

// Allow admits the action into the transform stage. An optional replacement
// action may be supplied; by default the triggering action carries on.
func (d *Decision) Allow(action ...Action) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.outcome != decisionPending {
		d.reportLocked(errspkg.ErrDecisionSettled)
		return
	}
	d.outcome = decisionAllowed
	if len(action) > 0 {
		d.action = action[0]
	}
}

// Reject terminates the execution without running transform or process.
// When a notice action is supplied it is forwarded downstream in place of
// the original action; with no argument the rejection is silent.
func (d *Decision) Reject(notice ...Action) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.outcome != decisionPending {
		d.reportLocked(errspkg.ErrDecisionSettled)
		return
	}
	d.outcome = decisionRejected
	if len(notice) > 0 {
		d.action = notice[0]
		d.notice = true
	}
}

func (d *Decision) reportLocked(err error) {
	if d.report != nil {
		d.report(err)
	}
}

func (d *Decision) result() (decisionOutcome, Action, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outcome, d.action, d.notice
}

// Forwarder carries a transform stage's single permitted forward. Calling
// Next delivers the action downstream immediately, before the process stage
// begins; a second call is a protocol fault and is discarded.
type Forwarder struct {
	mu        sync.Mutex
	forwarded bool
	action    Action
	signal    *CancelSignal
	emit      func(Action)
	report    func(error)
}

// Next forwards the action downstream. An optional replacement action may
// be supplied; by default the validated action is forwarded unchanged.
// Forwards after cancellation are discarded.
func (f *Forwarder) Next(action ...Action) {
	f.mu.Lock()
	if f.forwarded {
		report := f.report
		f.mu.Unlock()
		if report != nil {
			report(errspkg.ErrAlreadyForwarded)
		}
		return
	}
	f.forwarded = true
	if len(action) > 0 {
		f.action = action[0]
	}
	out := f.action
	f.mu.Unlock()

	if f.signal.Raised() {
		return
	}
	f.emit(out)
}

func (f *Forwarder) result() (Action, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.action, f.forwarded
}

// Dispatcher lets a process stage feed new actions back into the engine.
// Dispatch may be called any number of times; each call is an independent
// re-entry subject to full matching and limiting. Dispatches issued after
// the execution's signal is raised are discarded.
type Dispatcher struct {
	signal *CancelSignal
	submit func(Action)
}

// Dispatch re-injects the action into the engine's incoming path. Calling
// it with no argument is the explicit "no further action" signal.
func (d *Dispatcher) Dispatch(action ...Action) {
	if len(action) == 0 {
		return
	}
	if d.signal.Raised() {
		return
	}
	d.submit(action[0])
}
