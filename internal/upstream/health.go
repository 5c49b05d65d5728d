package upstream

import (
	"sync"
	"time"
)

// HealthState is the observed condition of the upstream API.
type HealthState int

const (
	StateHealthy  HealthState = iota // last calls succeeded
	StateDegraded                    // consecutive failures reached the threshold
)

func (s HealthState) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Health counts consecutive upstream failures. It only reports; requests
// are never short-circuited on its state.
type Health struct {
	mu sync.Mutex

	failures    int
	lastFailure time.Time
	lastError   string

	degradedAfter int
}

// HealthSnapshot is the JSON view served on the health endpoint.
type HealthSnapshot struct {
	Status              string     `json:"status"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastFailure         *time.Time `json:"last_failure,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
}

// NewHealth creates an indicator that reports degraded after degradedAfter
// consecutive failures. Values below 1 are treated as 1.
func NewHealth(degradedAfter int) *Health {
	if degradedAfter < 1 {
		degradedAfter = 1
	}
	return &Health{degradedAfter: degradedAfter}
}

func (h *Health) State() HealthState {
	if h == nil {
		return StateHealthy
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentState()
}

// currentState must be called with mu held.
func (h *Health) currentState() HealthState {
	if h.failures >= h.degradedAfter {
		return StateDegraded
	}
	return StateHealthy
}

func (h *Health) RecordSuccess() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures = 0
}

func (h *Health) RecordFailure(err error) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures++
	h.lastFailure = time.Now()
	if err != nil {
		h.lastError = err.Error()
	}
}

func (h *Health) Snapshot() HealthSnapshot {
	if h == nil {
		return HealthSnapshot{Status: StateHealthy.String()}
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := HealthSnapshot{
		Status:              h.currentState().String(),
		ConsecutiveFailures: h.failures,
	}
	if !h.lastFailure.IsZero() {
		t := h.lastFailure
		snap.LastFailure = &t
		snap.LastError = h.lastError
	}
	return snap
}
