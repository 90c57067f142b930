package engine

import (
	"errors"
	"testing"
	"time"

	errspkg "github.com/drblury/actionflow/internal/engine/errors"
)

func TestAddLogicRejectsInvalidDefinition(t *testing.T) {
	e := New(Options{})

	err := e.AddLogic(Definition{Name: "no-matcher"})
	if !errors.Is(err, errspkg.ErrMatcherRequired) {
		t.Fatalf("expected matcher-required error, got %v", err)
	}
}

func TestAddLogicRejectsDuplicateNames(t *testing.T) {
	e := New(Options{})

	if err := e.AddLogic(Definition{Name: "fetch", Match: MatchAll()}); err != nil {
		t.Fatalf("add logic: %v", err)
	}
	err := e.AddLogic(Definition{Name: "fetch", Match: MatchAll()})
	if !errors.Is(err, errspkg.ErrDuplicateName) {
		t.Fatalf("expected duplicate-name error, got %v", err)
	}
}

func TestAddLogicRejectsWholeBatch(t *testing.T) {
	e := New(Options{})

	err := e.AddLogic(
		Definition{Name: "good", Match: MatchAll()},
		Definition{Name: "bad"},
	)
	if err == nil {
		t.Fatal("expected batch to be rejected")
	}
	if len(e.Logic()) != 0 {
		t.Fatal("expected registry to stay unchanged after a rejected batch")
	}
}

func TestAddLogicGeneratesPositionalNames(t *testing.T) {
	e := New(Options{})

	if err := e.AddLogic(Definition{Match: MatchAll()}, Definition{Match: MatchAll()}); err != nil {
		t.Fatalf("add logic: %v", err)
	}

	infos := e.Logic()
	if len(infos) != 2 {
		t.Fatalf("expected 2 units, got %d", len(infos))
	}
	if infos[0].Name != "logic_0" || infos[1].Name != "logic_1" {
		t.Fatalf("unexpected generated names: %q, %q", infos[0].Name, infos[1].Name)
	}
}

func TestAddLogicPositionalNamesContinueAcrossBatches(t *testing.T) {
	e := New(Options{})

	if err := e.AddLogic(Definition{Match: MatchAll()}); err != nil {
		t.Fatalf("add logic: %v", err)
	}
	if err := e.AddLogic(Definition{Match: MatchAll()}); err != nil {
		t.Fatalf("add logic: %v", err)
	}

	infos := e.Logic()
	if infos[1].Name != "logic_1" {
		t.Fatalf("expected positional name by registry offset, got %q", infos[1].Name)
	}
}

func TestAddLogicAppliesToSubsequentActions(t *testing.T) {
	out := &collector{}
	e := New(Options{Downstream: out.forward})

	e.Submit(NewAction("users/fetch", nil))
	if out.count() != 1 {
		t.Fatal("expected unmatched forward before registration")
	}

	if err := e.AddLogic(Definition{
		Name:  "swallow",
		Match: MatchType("users/fetch"),
		Transform: func(ctx *StageContext, next *Forwarder) error {
			return nil
		},
	}); err != nil {
		t.Fatalf("add logic: %v", err)
	}

	e.Submit(NewAction("users/fetch", nil))
	drain(t, e)
	if out.count() != 1 {
		t.Fatal("expected the new unit to intercept subsequent actions")
	}
}

func TestReplaceLogicSwapsRegistry(t *testing.T) {
	e := New(Options{})

	if err := e.AddLogic(
		Definition{Name: "a", Match: MatchAll()},
		Definition{Name: "b", Match: MatchAll()},
	); err != nil {
		t.Fatalf("add logic: %v", err)
	}

	if err := e.ReplaceLogic(Definition{Name: "c", Match: MatchAll()}); err != nil {
		t.Fatalf("replace logic: %v", err)
	}

	infos := e.Logic()
	if len(infos) != 1 || infos[0].Name != "c" {
		t.Fatalf("expected registry to hold only the replacement, got %v", infos)
	}
}

func TestReplaceLogicRejectionLeavesRegistry(t *testing.T) {
	e := New(Options{})

	if err := e.AddLogic(Definition{Name: "a", Match: MatchAll()}); err != nil {
		t.Fatalf("add logic: %v", err)
	}
	if err := e.ReplaceLogic(Definition{Name: "bad"}); err == nil {
		t.Fatal("expected replace to be rejected")
	}

	infos := e.Logic()
	if len(infos) != 1 || infos[0].Name != "a" {
		t.Fatalf("expected old registry to survive, got %v", infos)
	}
}

func TestReplaceLogicRetiresPendingDebounce(t *testing.T) {
	started := make(chan struct{}, 1)
	e := New(Options{})

	if err := e.AddLogic(Definition{
		Name:  "debounced",
		Match: MatchType("search/query"),
		Limit: LimitSpec{Debounce: 50 * time.Millisecond},
		Process: func(ctx *StageContext, d *Dispatcher) error {
			started <- struct{}{}
			return nil
		},
	}); err != nil {
		t.Fatalf("add logic: %v", err)
	}

	e.Submit(NewAction("search/query", nil))
	if err := e.ReplaceLogic(); err != nil {
		t.Fatalf("replace logic: %v", err)
	}

	select {
	case <-started:
		t.Fatal("expected replace to discard the pending debounce trigger")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestReplaceLogicDoesNotCancelInFlight(t *testing.T) {
	completed := make(chan ExecutionContext, 1)
	running := make(chan struct{})
	release := make(chan struct{})
	e := New(Options{
		Hooks: ExecutionHooks{
			OnComplete: func(ctx ExecutionContext) { completed <- ctx },
		},
	})

	if err := e.AddLogic(Definition{
		Name:  "fetch",
		Match: MatchType("users/fetch"),
		Process: func(ctx *StageContext, d *Dispatcher) error {
			close(running)
			<-release
			return nil
		},
	}); err != nil {
		t.Fatalf("add logic: %v", err)
	}

	e.Submit(NewAction("users/fetch", nil))
	select {
	case <-running:
	case <-time.After(2 * time.Second):
		t.Fatal("execution never started")
	}

	if err := e.ReplaceLogic(); err != nil {
		t.Fatalf("replace logic: %v", err)
	}
	close(release)
	drain(t, e)

	select {
	case ctx := <-completed:
		if ctx.State != StateCompleted {
			t.Fatalf("expected in-flight execution to complete, got %v", ctx.State)
		}
	default:
		t.Fatal("expected the in-flight execution to finish normally")
	}
}

func TestLogicReportsStats(t *testing.T) {
	e := New(Options{})

	if err := e.AddLogic(Definition{
		Name:  "fetch",
		Match: MatchType("users/fetch"),
		Limit: LimitSpec{Latest: true},
	}); err != nil {
		t.Fatalf("add logic: %v", err)
	}

	e.Submit(NewAction("users/fetch", nil))
	e.Submit(NewAction("users/fetch", nil))
	drain(t, e)

	infos := e.Logic()
	if len(infos) != 1 {
		t.Fatalf("expected one unit, got %d", len(infos))
	}
	info := infos[0]
	if info.Limit != "latest" {
		t.Fatalf("unexpected limit description: %q", info.Limit)
	}
	if info.Stats.Started != 2 {
		t.Fatalf("expected 2 started, got %d", info.Stats.Started)
	}
	if info.Stats.Completed+info.Stats.Cancelled != 2 {
		t.Fatalf("expected 2 finished, got completed=%d cancelled=%d",
			info.Stats.Completed, info.Stats.Cancelled)
	}
	if info.Active != 0 {
		t.Fatalf("expected no active executions after drain, got %d", info.Active)
	}
}
