package upstream

import (
	"errors"
	"testing"
)

func TestHealth_DegradesAfterThreshold(t *testing.T) {
	h := NewHealth(3)

	for i := 0; i < 2; i++ {
		h.RecordFailure(errors.New("boom"))
	}
	if h.State() != StateHealthy {
		t.Errorf("expected healthy below threshold, got %s", h.State())
	}

	h.RecordFailure(errors.New("boom"))
	if h.State() != StateDegraded {
		t.Errorf("expected degraded at threshold, got %s", h.State())
	}

	snap := h.Snapshot()
	if snap.Status != "degraded" {
		t.Errorf("expected degraded status, got %s", snap.Status)
	}
	if snap.ConsecutiveFailures != 3 {
		t.Errorf("expected 3 failures, got %d", snap.ConsecutiveFailures)
	}
	if snap.LastFailure == nil || snap.LastError != "boom" {
		t.Errorf("expected last failure details, got %+v", snap)
	}
}

func TestHealth_SuccessResets(t *testing.T) {
	h := NewHealth(1)
	h.RecordFailure(errors.New("boom"))
	h.RecordSuccess()

	if h.State() != StateHealthy {
		t.Errorf("expected healthy after success, got %s", h.State())
	}
	if h.Snapshot().ConsecutiveFailures != 0 {
		t.Errorf("expected failures reset, got %d", h.Snapshot().ConsecutiveFailures)
	}
}

func TestHealth_Nil(t *testing.T) {
	var h *Health
	h.RecordFailure(errors.New("boom"))
	h.RecordSuccess()
	if h.State() != StateHealthy {
		t.Errorf("expected nil indicator to report healthy, got %s", h.State())
	}
	if h.Snapshot().Status != "healthy" {
		t.Errorf("expected healthy snapshot, got %s", h.Snapshot().Status)
	}
}

func TestHealth_MinimumThreshold(t *testing.T) {
	h := NewHealth(0)
	h.RecordFailure(nil)
	if h.State() != StateDegraded {
		t.Errorf("expected degraded after one failure, got %s", h.State())
	}
}
