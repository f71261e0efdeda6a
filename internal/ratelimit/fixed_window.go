package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/transcriptgw/transcriptgw/internal/observability"
)

// FixedWindowLimiter implements fixed window rate limiting with windows
// anchored at each key's first request. The counter keeps incrementing
// past the limit; a request is admitted only when the incremented count
// is still within the limit. Expired entries are removed by a background
// sweep.
type FixedWindowLimiter struct {
	limit  int
	window time.Duration
	logger observability.Logger

	mu      sync.Mutex
	entries map[string]*windowEntry

	now      func() time.Time
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// windowEntry tracks the request count for one key's current window.
type windowEntry struct {
	windowStart time.Time
	count       int
}

// NewFixedWindowLimiter creates a new fixed window rate limiter and
// starts its sweep goroutine. Callers must call Stop when done.
func NewFixedWindowLimiter(limit int, window time.Duration, logger observability.Logger) *FixedWindowLimiter {
	if logger == nil {
		logger = observability.NopLogger()
	}

	l := &FixedWindowLimiter{
		limit:   limit,
		window:  window,
		logger:  logger,
		entries: make(map[string]*windowEntry),
		now:     time.Now,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}

	go l.sweepLoop()

	return l
}

// Allow implements Limiter.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	return l.AllowN(ctx, key, 1)
}

// AllowN implements Limiter.
func (l *FixedWindowLimiter) AllowN(ctx context.Context, key string, n int) (*Result, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok || now.Sub(entry.windowStart) > l.window {
		entry = &windowEntry{windowStart: now}
		l.entries[key] = entry
	}

	// The count is incremented even when the request is rejected, so a
	// caller that keeps hammering never rolls back under the limit
	// mid-window.
	entry.count += n
	allowed := entry.count <= l.limit

	remaining := l.limit - entry.count
	if remaining < 0 {
		remaining = 0
	}

	resetAfter := entry.windowStart.Add(l.window).Sub(now)
	if resetAfter < 0 {
		resetAfter = 0
	}

	var retryAfter time.Duration
	if !allowed {
		retryAfter = resetAfter
	}

	return &Result{
		Allowed:    allowed,
		Limit:      l.limit,
		Remaining:  remaining,
		ResetAfter: resetAfter,
		RetryAfter: retryAfter,
	}, nil
}

// GetLimit implements Limiter.
func (l *FixedWindowLimiter) GetLimit(key string) *Limit {
	return &Limit{
		Requests: l.limit,
		Window:   l.window,
		Burst:    l.limit,
	}
}

// Reset implements Limiter.
func (l *FixedWindowLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	return nil
}

// Stop stops the sweep goroutine and waits for it to exit.
func (l *FixedWindowLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
	<-l.done
}

// sweepLoop periodically removes expired entries.
func (l *FixedWindowLimiter) sweepLoop() {
	defer close(l.done)

	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stopCh:
			return
		}
	}
}

// sweep removes entries whose window has elapsed.
func (l *FixedWindowLimiter) sweep() {
	now := l.now()

	l.mu.Lock()
	removed := 0
	for key, entry := range l.entries {
		if now.Sub(entry.windowStart) > l.window {
			delete(l.entries, key)
			removed++
		}
	}
	size := len(l.entries)
	l.mu.Unlock()

	if removed > 0 {
		l.logger.Debug("swept expired rate limit entries",
			observability.Int("removed", removed),
			observability.Int("remaining", size),
		)
	}
}

// size returns the number of tracked keys.
func (l *FixedWindowLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
