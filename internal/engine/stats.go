package engine

import (
	"sync"
	"time"
)

// LogicStats aggregates per-unit execution counters for the introspection
// API. All counters are monotonically increasing for the lifetime of the
// unit's registration; replace resets them along with the operator.
type LogicStats struct {
	mu sync.Mutex

	Started   uint64 `json:"started"`
	Completed uint64 `json:"completed"`
	Cancelled uint64 `json:"cancelled"`
	Faulted   uint64 `json:"faulted"`
	// Dropped counts triggers discarded by the unit's limit operator
	// (throttle window hits and superseded debounce triggers).
	Dropped uint64 `json:"dropped"`

	LastDurationNs  int64     `json:"last_duration_ns"`
	TotalDurationNs int64     `json:"total_duration_ns"`
	LastFinishedAt  time.Time `json:"last_finished_at"`
}

// LogicInfo describes one registered logic unit.
type LogicInfo struct {
	Name   string      `json:"name"`
	Limit  string      `json:"limit"`
	Active int         `json:"active_executions"`
	Stats  *LogicStats `json:"stats"`
}

func (s *LogicStats) onStart() {
	s.mu.Lock()
	s.Started++
	s.mu.Unlock()
}

func (s *LogicStats) onDropped() {
	s.mu.Lock()
	s.Dropped++
	s.mu.Unlock()
}

func (s *LogicStats) onFault() {
	s.mu.Lock()
	s.Faulted++
	s.mu.Unlock()
}

func (s *LogicStats) onFinish(state ExecutionState, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state == StateCancelled {
		s.Cancelled++
	} else {
		s.Completed++
	}
	s.LastDurationNs = duration.Nanoseconds()
	s.TotalDurationNs += duration.Nanoseconds()
	s.LastFinishedAt = time.Now()
}

// Snapshot returns a copy safe for JSON encoding.
func (s *LogicStats) Snapshot() LogicStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return LogicStats{
		Started:         s.Started,
		Completed:       s.Completed,
		Cancelled:       s.Cancelled,
		Faulted:         s.Faulted,
		Dropped:         s.Dropped,
		LastDurationNs:  s.LastDurationNs,
		TotalDurationNs: s.TotalDurationNs,
		LastFinishedAt:  s.LastFinishedAt,
	}
}
