package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(limit int64, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(NewMemoryStore(), limit, window)
	l.now = clock.Now
	return l, clock
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Time, time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestLimiter_NilStore_FailOpen(t *testing.T) {
	l := NewLimiter(nil, 60, time.Minute)
	result, err := l.Check(context.Background(), "203.0.113.7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Allowed {
		t.Error("expected allowed when store is nil")
	}
	if result.Remaining != 59 {
		t.Errorf("expected remaining=59, got %d", result.Remaining)
	}
}

func TestLimiter_NilStore_MultipleChecks(t *testing.T) {
	l := NewLimiter(nil, 10, time.Minute)
	for i := 0; i < 100; i++ {
		result, _ := l.Check(context.Background(), "203.0.113.7")
		if !result.Allowed {
			t.Fatalf("expected allowed on check %d", i)
		}
	}
}

func TestLimiter_StoreError_FailOpen(t *testing.T) {
	l := NewLimiter(failingStore{}, 1, time.Minute)
	result, err := l.Check(context.Background(), "203.0.113.7")
	if err == nil {
		t.Error("expected store error to be reported")
	}
	if !result.Allowed {
		t.Error("expected allowed when store fails")
	}
}

func TestLimiter_NilRedisClient_FailOpen(t *testing.T) {
	l := NewLimiter(NewRedisStore(nil, "test:"), 1, time.Minute)
	for i := 0; i < 5; i++ {
		result, err := l.Check(context.Background(), "203.0.113.7")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("expected allowed on check %d", i)
		}
	}
}

func TestLimiter_DeniesAfterThreshold(t *testing.T) {
	l, clock := newTestLimiter(30, 60*time.Second)
	ctx := context.Background()

	for i := 1; i <= 30; i++ {
		result, err := l.Check(ctx, "203.0.113.7")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("expected call %d to be allowed", i)
		}
		if result.Remaining != int64(30-i) {
			t.Errorf("call %d: expected remaining=%d, got %d", i, 30-i, result.Remaining)
		}
		clock.Advance(30 * time.Millisecond)
	}

	result, _ := l.Check(ctx, "203.0.113.7")
	if result.Allowed {
		t.Fatal("expected 31st call within the window to be denied")
	}
	if result.Remaining != 0 {
		t.Errorf("expected remaining=0, got %d", result.Remaining)
	}
	if result.RetryAfter != 60*time.Second {
		t.Errorf("expected retry after 60s, got %v", result.RetryAfter)
	}

	clock.Advance(60*time.Second + time.Millisecond)

	result, _ = l.Check(ctx, "203.0.113.7")
	if !result.Allowed {
		t.Error("expected a call after a quiet window to be allowed")
	}
	if result.Count != 1 {
		t.Errorf("expected window to hold only the new hit, got %d", result.Count)
	}
}

func TestLimiter_DeniedHitsCount(t *testing.T) {
	l, clock := newTestLimiter(2, 10*time.Second)
	ctx := context.Background()

	l.Check(ctx, "k")
	l.Check(ctx, "k")
	// Hammering while denied keeps the window full.
	for i := 0; i < 5; i++ {
		clock.Advance(4 * time.Second)
		if result, _ := l.Check(ctx, "k"); result.Allowed {
			t.Fatalf("expected denial while hits keep arriving (iteration %d)", i)
		}
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)
	ctx := context.Background()

	if result, _ := l.Check(ctx, "198.51.100.1"); !result.Allowed {
		t.Error("expected first key allowed")
	}
	if result, _ := l.Check(ctx, "198.51.100.2"); !result.Allowed {
		t.Error("expected second key allowed")
	}
	if result, _ := l.Check(ctx, "198.51.100.1"); result.Allowed {
		t.Error("expected first key denied on its second call")
	}
}

func TestLimiter_SetPolicy(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)
	ctx := context.Background()

	l.Check(ctx, "k")
	if result, _ := l.Check(ctx, "k"); result.Allowed {
		t.Fatal("expected denial at limit 1")
	}

	l.SetPolicy(5, time.Minute)
	limit, window := l.Policy()
	if limit != 5 || window != time.Minute {
		t.Errorf("expected policy 5/1m, got %d/%v", limit, window)
	}
	if result, _ := l.Check(ctx, "k"); !result.Allowed {
		t.Error("expected allowed after raising the limit")
	}
}

func TestMemoryStore_PrunesExpired(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.Hit(ctx, "k", start, time.Second)
	s.Hit(ctx, "k", start.Add(500*time.Millisecond), time.Second)

	count, err := s.Hit(ctx, "k", start.Add(time.Second), time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The first hit is exactly one window old and has expired.
	if count != 2 {
		t.Errorf("expected 2 hits in window, got %d", count)
	}
	if s.Keys() != 1 {
		t.Errorf("expected 1 tracked key, got %d", s.Keys())
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Hit(context.Background(), "k", now, time.Minute)
		}()
	}
	wg.Wait()

	count, _ := s.Hit(context.Background(), "k", now, time.Minute)
	if count != 51 {
		t.Errorf("expected 51 hits, got %d", count)
	}
}
