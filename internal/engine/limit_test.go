package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	errspkg "github.com/drblury/actionflow/internal/engine/errors"
)

func TestLimitSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    LimitSpec
		wantErr error
	}{
		{"zero value", LimitSpec{}, nil},
		{"latest", LimitSpec{Latest: true}, nil},
		{"debounce", LimitSpec{Debounce: time.Second}, nil},
		{"throttle", LimitSpec{Throttle: time.Second}, nil},
		{"latest and debounce", LimitSpec{Latest: true, Debounce: time.Second}, errspkg.ErrConflictingLimits},
		{"debounce and throttle", LimitSpec{Debounce: time.Second, Throttle: time.Second}, errspkg.ErrConflictingLimits},
		{"negative debounce", LimitSpec{Debounce: -time.Second}, errspkg.ErrNonPositiveWindow},
		{"negative throttle", LimitSpec{Throttle: -time.Second}, errspkg.ErrNonPositiveWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLimitSpecString(t *testing.T) {
	tests := []struct {
		spec LimitSpec
		want string
	}{
		{LimitSpec{}, "none"},
		{LimitSpec{Latest: true}, "latest"},
		{LimitSpec{Debounce: 250 * time.Millisecond}, "debounce(250ms)"},
		{LimitSpec{Throttle: time.Second}, "throttle(1s)"},
	}
	for _, tt := range tests {
		if got := tt.spec.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

// operatorRecorder captures the triggers an operator actually starts.
type operatorRecorder struct {
	mu      sync.Mutex
	started []Action
	dropped int
}

func (r *operatorRecorder) start(action Action) *Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, action)
	return &Execution{signal: NewCancelSignal()}
}

func (r *operatorRecorder) drop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped++
}

func (r *operatorRecorder) startedTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.started))
	for i, a := range r.started {
		types[i] = a.Type
	}
	return types
}

func (r *operatorRecorder) droppedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func TestPassOperatorStartsEverything(t *testing.T) {
	rec := &operatorRecorder{}
	op := newLimitOperator(LimitSpec{}, rec.start, rec.drop)

	op.admit(NewAction("a", nil))
	op.admit(NewAction("b", nil))

	types := rec.startedTypes()
	if len(types) != 2 || types[0] != "a" || types[1] != "b" {
		t.Fatalf("unexpected started triggers: %v", types)
	}
}

func TestLatestOperatorRaisesPrevious(t *testing.T) {
	var mu sync.Mutex
	var executions []*Execution
	start := func(action Action) *Execution {
		x := &Execution{action: action, signal: NewCancelSignal()}
		mu.Lock()
		executions = append(executions, x)
		mu.Unlock()
		return x
	}

	op := newLimitOperator(LimitSpec{Latest: true}, start, nil)

	op.admit(NewAction("first", nil))
	op.admit(NewAction("second", nil))

	mu.Lock()
	defer mu.Unlock()
	if len(executions) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(executions))
	}
	if !executions[0].signal.Raised() {
		t.Error("expected first execution's signal to be raised")
	}
	if executions[1].signal.Raised() {
		t.Error("expected second execution's signal to stay unraised")
	}
}

func TestLatestOperatorDoneClearsCurrent(t *testing.T) {
	var mu sync.Mutex
	var executions []*Execution
	start := func(action Action) *Execution {
		x := &Execution{action: action, signal: NewCancelSignal()}
		mu.Lock()
		executions = append(executions, x)
		mu.Unlock()
		return x
	}

	op := newLimitOperator(LimitSpec{Latest: true}, start, nil)
	op.admit(NewAction("first", nil))

	mu.Lock()
	first := executions[0]
	mu.Unlock()
	op.executionDone(first)

	op.admit(NewAction("second", nil))
	if first.signal.Raised() {
		t.Error("finished execution must not be raised by a later trigger")
	}
}

func TestLatestOperatorInstantCompletionLeavesNoStaleHandle(t *testing.T) {
	var mu sync.Mutex
	var executions []*Execution
	done := make(chan struct{}, 2)

	op := &latestOperator{}
	// Simulate an execution that finishes on its own goroutine before admit
	// returns: executionDone must still see the installed handle and clear it.
	op.start = func(action Action) *Execution {
		x := &Execution{action: action, signal: NewCancelSignal()}
		mu.Lock()
		executions = append(executions, x)
		mu.Unlock()
		go func() {
			op.executionDone(x)
			done <- struct{}{}
		}()
		return x
	}

	op.admit(NewAction("first", nil))
	<-done

	op.mu.Lock()
	stale := op.current
	op.mu.Unlock()
	if stale != nil {
		t.Fatal("expected no live handle after the execution finished")
	}

	op.admit(NewAction("second", nil))
	<-done

	mu.Lock()
	first := executions[0]
	mu.Unlock()
	if first.signal.Raised() {
		t.Error("finished execution must not be raised by a later trigger")
	}
}

func TestDebounceOperatorStartsLastTrigger(t *testing.T) {
	rec := &operatorRecorder{}
	op := newLimitOperator(LimitSpec{Debounce: 50 * time.Millisecond}, rec.start, rec.drop)

	op.admit(NewAction("first", nil))
	op.admit(NewAction("second", nil))
	op.admit(NewAction("third", nil))

	waitFor(t, 2*time.Second, func() bool {
		return len(rec.startedTypes()) == 1
	}, "debounced trigger never started")

	types := rec.startedTypes()
	if types[0] != "third" {
		t.Fatalf("expected last trigger of the burst, got %q", types[0])
	}
	if got := rec.droppedCount(); got != 2 {
		t.Fatalf("expected 2 dropped triggers, got %d", got)
	}

	// A quiet window later, nothing further fires.
	time.Sleep(120 * time.Millisecond)
	if got := len(rec.startedTypes()); got != 1 {
		t.Fatalf("expected exactly one start, got %d", got)
	}
}

func TestDebounceOperatorRetireDropsPending(t *testing.T) {
	rec := &operatorRecorder{}
	op := newLimitOperator(LimitSpec{Debounce: 50 * time.Millisecond}, rec.start, rec.drop)

	op.admit(NewAction("pending", nil))
	op.retire()

	time.Sleep(120 * time.Millisecond)
	if got := len(rec.startedTypes()); got != 0 {
		t.Fatalf("expected retired operator to start nothing, got %d", got)
	}

	op.admit(NewAction("late", nil))
	time.Sleep(120 * time.Millisecond)
	if got := len(rec.startedTypes()); got != 0 {
		t.Fatalf("expected triggers after retire to be ignored, got %d", got)
	}
}

func TestThrottleOperatorLeadingEdge(t *testing.T) {
	rec := &operatorRecorder{}
	op := newLimitOperator(LimitSpec{Throttle: 100 * time.Millisecond}, rec.start, rec.drop)

	op.admit(NewAction("first", nil))
	op.admit(NewAction("second", nil))
	op.admit(NewAction("third", nil))

	types := rec.startedTypes()
	if len(types) != 1 || types[0] != "first" {
		t.Fatalf("expected only the first trigger to start, got %v", types)
	}
	if got := rec.droppedCount(); got != 2 {
		t.Fatalf("expected 2 dropped triggers, got %d", got)
	}
}

func TestThrottleOperatorReopensWindow(t *testing.T) {
	rec := &operatorRecorder{}
	op := newLimitOperator(LimitSpec{Throttle: 40 * time.Millisecond}, rec.start, rec.drop)

	op.admit(NewAction("first", nil))
	time.Sleep(80 * time.Millisecond)
	op.admit(NewAction("second", nil))

	types := rec.startedTypes()
	if len(types) != 2 {
		t.Fatalf("expected a fresh window to admit the trigger, got %v", types)
	}
	if got := rec.droppedCount(); got != 0 {
		t.Fatalf("expected no dropped triggers, got %d", got)
	}
}
