package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Store keeps per-key hit timestamps for a sliding window. Hit prunes
// entries older than window, records now (whether or not the caller will
// be admitted) and returns the number of hits inside the window including
// this one.
type Store interface {
	Hit(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error)
}

// LimitResult is the outcome of a rate limit check.
type LimitResult struct {
	Allowed    bool
	Count      int64
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter admits at most limit requests per key within a trailing window.
// It is a best-effort, per-store control: with the memory store every
// process instance counts on its own.
type Limiter struct {
	store Store
	now   func() time.Time

	mu     sync.RWMutex
	limit  int64
	window time.Duration
}

// NewLimiter creates a limiter over store. If store is nil, all checks pass (fail open).
func NewLimiter(store Store, limit int64, window time.Duration) *Limiter {
	return &Limiter{
		store:  store,
		now:    time.Now,
		limit:  limit,
		window: window,
	}
}

// SetPolicy replaces the threshold and window, e.g. after a config reload.
func (l *Limiter) SetPolicy(limit int64, window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limit = limit
	l.window = window
}

// Policy returns the current threshold and window.
func (l *Limiter) Policy() (int64, time.Duration) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limit, l.window
}

// Check records a hit for key and reports whether it is admitted. Store
// failures fail open; the error is returned for logging only.
func (l *Limiter) Check(ctx context.Context, key string) (LimitResult, error) {
	limit, window := l.Policy()

	if l.store == nil {
		return LimitResult{Allowed: true, Count: 1, Limit: limit, Remaining: limit - 1}, nil
	}

	count, err := l.store.Hit(ctx, key, l.now(), window)
	if err != nil {
		return LimitResult{Allowed: true, Limit: limit, Remaining: limit}, fmt.Errorf("rate limit store hit: %w", err)
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	result := LimitResult{
		Allowed:   count <= limit,
		Count:     count,
		Limit:     limit,
		Remaining: remaining,
	}
	if !result.Allowed {
		// Denied hits are recorded too, so only a full quiet window
		// guarantees admission.
		result.RetryAfter = window
	}
	return result, nil
}
