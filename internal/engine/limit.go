package engine

import (
	"fmt"
	"sync"
	"time"

	errspkg "github.com/drblury/actionflow/internal/engine/errors"
)

// LimitSpec declares the concurrency-limiting behaviour wrapping a logic
// unit's executions. At most one of Latest, Debounce, or Throttle may be
// set; the zero value admits every trigger immediately.
type LimitSpec struct {
	// Latest admits every trigger but raises the cancellation signal of the
	// previous still-running execution before starting the new one.
	Latest bool
	// Debounce delays execution until the window elapses without a further
	// trigger; superseded pending triggers are discarded, never started.
	Debounce time.Duration
	// Throttle starts the first trigger immediately and drops triggers for
	// the rest of the window (leading edge only).
	Throttle time.Duration
}

// Validate rejects specs with more than one mode or a non-positive window.
func (s LimitSpec) Validate() error {
	modes := 0
	if s.Latest {
		modes++
	}
	if s.Debounce != 0 {
		if s.Debounce < 0 {
			return errspkg.ErrNonPositiveWindow
		}
		modes++
	}
	if s.Throttle != 0 {
		if s.Throttle < 0 {
			return errspkg.ErrNonPositiveWindow
		}
		modes++
	}
	if modes > 1 {
		return errspkg.ErrConflictingLimits
	}
	return nil
}

func (s LimitSpec) String() string {
	switch {
	case s.Latest:
		return "latest"
	case s.Debounce > 0:
		return fmt.Sprintf("debounce(%s)", s.Debounce)
	case s.Throttle > 0:
		return fmt.Sprintf("throttle(%s)", s.Throttle)
	default:
		return "none"
	}
}

// limitOperator decides, per logic unit, which matched triggers actually
// start an execution. One instance exists per registered unit; instances
// are recreated on registry replace and preserved across add. admit is
// always called from the engine's serialized decision loop.
type limitOperator interface {
	admit(action Action)
	// executionDone releases any handle the operator keeps on a finished
	// execution.
	executionDone(x *Execution)
	// retire stops timers and drops pending triggers. Called when the
	// owning snapshot is replaced.
	retire()
}

// newLimitOperator builds the operator for spec. start launches an
// execution for the triggering action and returns its handle; dropped is
// invoked for triggers the operator discards.
func newLimitOperator(spec LimitSpec, start func(Action) *Execution, dropped func()) limitOperator {
	switch {
	case spec.Latest:
		return &latestOperator{start: start}
	case spec.Debounce > 0:
		return &debounceOperator{window: spec.Debounce, start: start, dropped: dropped}
	case spec.Throttle > 0:
		return &throttleOperator{window: spec.Throttle, start: start, dropped: dropped}
	default:
		return passOperator{start: start}
	}
}

// passOperator starts every trigger immediately, fully concurrent.
type passOperator struct {
	start func(Action) *Execution
}

func (p passOperator) admit(action Action)    { p.start(action) }
func (passOperator) executionDone(*Execution) {}
func (passOperator) retire()                  {}

// latestOperator keeps at most one live execution: a new trigger raises the
// previous execution's signal strictly before the new execution starts.
type latestOperator struct {
	mu      sync.Mutex
	start   func(Action) *Execution
	current *Execution
}

func (l *latestOperator) admit(action Action) {
	l.mu.Lock()
	prev := l.current
	l.mu.Unlock()

	if prev != nil {
		prev.signal.Raise()
	}

	// Hold the lock across start so the new execution's executionDone
	// (which runs on the execution goroutine) cannot observe the slot
	// before the handle is installed and leave a stale handle behind.
	l.mu.Lock()
	l.current = l.start(action)
	l.mu.Unlock()
}

func (l *latestOperator) executionDone(x *Execution) {
	l.mu.Lock()
	if l.current == x {
		l.current = nil
	}
	l.mu.Unlock()
}

func (l *latestOperator) retire() {}

// debounceOperator starts the last trigger of a burst once the window
// elapses quietly. Earlier triggers of the burst never start, so no
// cancellation is involved.
type debounceOperator struct {
	mu      sync.Mutex
	window  time.Duration
	start   func(Action) *Execution
	dropped func()

	timer   *time.Timer
	pending Action
	armed   bool
	retired bool
}

func (d *debounceOperator) admit(action Action) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.retired {
		return
	}
	if d.armed {
		d.timer.Stop()
		if d.dropped != nil {
			d.dropped()
		}
	}
	d.pending = action
	d.armed = true
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *debounceOperator) fire() {
	d.mu.Lock()
	if d.retired || !d.armed {
		d.mu.Unlock()
		return
	}
	action := d.pending
	d.armed = false
	d.pending = Action{}
	d.mu.Unlock()

	d.start(action)
}

func (d *debounceOperator) executionDone(*Execution) {}

func (d *debounceOperator) retire() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.retired = true
	if d.armed {
		d.timer.Stop()
		d.armed = false
		d.pending = Action{}
	}
}

// throttleOperator starts the first trigger of a window and drops the rest.
// The window is leading-edge only: a trigger arriving at the boundary opens
// a fresh window, and no trailing execution fires for dropped triggers.
type throttleOperator struct {
	mu      sync.Mutex
	window  time.Duration
	start   func(Action) *Execution
	dropped func()

	windowStart time.Time
	open        bool
}

func (t *throttleOperator) admit(action Action) {
	now := time.Now()

	t.mu.Lock()
	if t.open && now.Sub(t.windowStart) < t.window {
		t.mu.Unlock()
		if t.dropped != nil {
			t.dropped()
		}
		return
	}
	t.open = true
	t.windowStart = now
	t.mu.Unlock()

	t.start(action)
}

func (t *throttleOperator) executionDone(*Execution) {}

func (t *throttleOperator) retire() {}
