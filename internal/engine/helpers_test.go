package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	loggingpkg "github.com/drblury/actionflow/internal/engine/logging"
)

func newTestSlogLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NewSlogServiceLogger(newTestSlogLogger())
}

// collector gathers forwarded actions for assertions.
type collector struct {
	mu      sync.Mutex
	actions []Action
}

func (c *collector) forward(action Action) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = append(c.actions, action)
}

func (c *collector) snapshot() []Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	clone := make([]Action, len(c.actions))
	copy(clone, c.actions)
	return clone
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.actions)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s: %s", timeout, msg)
}

func drain(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

type testPublisher struct {
	mu        sync.Mutex
	published []string
	messages  []*message.Message
	err       error
}

func (p *testPublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	for range messages {
		p.published = append(p.published, topic)
	}
	p.messages = append(p.messages, messages...)
	return nil
}

func (p *testPublisher) Close() error { return nil }

func (p *testPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := make([]string, len(p.published))
	copy(clone, p.published)
	return clone
}

func (p *testPublisher) Messages() []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := make([]*message.Message, len(p.messages))
	copy(clone, p.messages)
	return clone
}

type testSubscriber struct {
	mu  sync.Mutex
	ch  chan *message.Message
	err error
}

func (s *testSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.ch == nil {
		s.ch = make(chan *message.Message)
	}
	return s.ch, nil
}

func (s *testSubscriber) Close() error { return nil }
