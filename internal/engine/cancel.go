package engine

import (
	"context"
	"sync"
)

// CancelSignal is a broadcastable, one-shot token. Raising is monotonic:
// once raised it never resets, and every registered callback fires exactly
// once. A raised signal is how supersession, cancel actions, and shutdown
// reach in-flight executions.
type CancelSignal struct {
	mu        sync.Mutex
	raised    bool
	done      chan struct{}
	callbacks []func()
}

// NewCancelSignal returns an unraised signal.
func NewCancelSignal() *CancelSignal {
	return &CancelSignal{done: make(chan struct{})}
}

// Raise marks the signal as raised. Raising an already-raised signal is a
// no-op.
func (s *CancelSignal) Raise() {
	s.mu.Lock()
	if s.raised {
		s.mu.Unlock()
		return
	}
	s.raised = true
	callbacks := s.callbacks
	s.callbacks = nil
	close(s.done)
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// Raised reports whether the signal has been raised.
func (s *CancelSignal) Raised() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raised
}

// Done returns a channel closed when the signal is raised. It lets user
// stages select on cancellation alongside their own work.
func (s *CancelSignal) Done() <-chan struct{} {
	return s.done
}

// OnRaise registers a callback fired at most once when the signal is raised.
// If the signal is already raised the callback fires immediately.
func (s *CancelSignal) OnRaise(cb func()) {
	if cb == nil {
		return
	}
	s.mu.Lock()
	if !s.raised {
		s.callbacks = append(s.callbacks, cb)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	cb()
}

// bindContext derives a context from parent that is cancelled when the
// signal is raised. The returned stop func releases the binding.
func (s *CancelSignal) bindContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	s.OnRaise(cancel)
	return ctx, cancel
}
