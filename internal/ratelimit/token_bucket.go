package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/transcriptgw/transcriptgw/internal/observability"
)

// TokenBucketLimiter implements token bucket rate limiting backed by
// golang.org/x/time/rate, one bucket per key. Buckets idle long enough
// to refill completely are removed by a background sweep.
type TokenBucketLimiter struct {
	limit  int
	window time.Duration
	burst  int
	logger observability.Logger

	mu      sync.Mutex
	buckets map[string]*bucketEntry

	now      func() time.Time
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// bucketEntry tracks one key's bucket and when it was last used.
type bucketEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// NewTokenBucketLimiter creates a new token bucket rate limiter and
// starts its sweep goroutine. Callers must call Stop when done.
func NewTokenBucketLimiter(limit int, window time.Duration, burst int, logger observability.Logger) *TokenBucketLimiter {
	if burst <= 0 {
		burst = limit
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	l := &TokenBucketLimiter{
		limit:   limit,
		window:  window,
		burst:   burst,
		logger:  logger,
		buckets: make(map[string]*bucketEntry),
		now:     time.Now,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}

	go l.sweepLoop()

	return l
}

// getBucket returns the bucket for a key, creating it on first use, and
// stamps the entry's last use.
func (l *TokenBucketLimiter) getBucket(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.buckets[key]
	if !ok {
		entry = &bucketEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(l.limit)/l.window.Seconds()), l.burst),
		}
		l.buckets[key] = entry
	}
	entry.lastUse = now
	return entry.limiter
}

// Allow implements Limiter.
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	return l.AllowN(ctx, key, 1)
}

// AllowN implements Limiter.
func (l *TokenBucketLimiter) AllowN(ctx context.Context, key string, n int) (*Result, error) {
	now := l.now()
	bucket := l.getBucket(key, now)

	allowed := bucket.AllowN(now, n)

	remaining := int(bucket.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}

	var retryAfter time.Duration
	if !allowed {
		// Time until one token becomes available.
		retryAfter = time.Duration(float64(time.Second) / float64(bucket.Limit()))
	}

	return &Result{
		Allowed:    allowed,
		Limit:      l.limit,
		Remaining:  remaining,
		ResetAfter: l.window,
		RetryAfter: retryAfter,
	}, nil
}

// GetLimit implements Limiter.
func (l *TokenBucketLimiter) GetLimit(key string) *Limit {
	return &Limit{
		Requests: l.limit,
		Window:   l.window,
		Burst:    l.burst,
	}
}

// Reset implements Limiter.
func (l *TokenBucketLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
	return nil
}

// Stop stops the sweep goroutine and waits for it to exit.
func (l *TokenBucketLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
	<-l.done
}

// sweepLoop periodically removes idle buckets.
func (l *TokenBucketLimiter) sweepLoop() {
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

// sweep removes buckets idle long enough to have refilled completely.
// A full bucket is indistinguishable from a fresh one, so dropping the
// entry changes no admission decision.
func (l *TokenBucketLimiter) sweep() {
	now := l.now()
	ttl := l.refillDuration()

	l.mu.Lock()
	removed := 0
	for key, entry := range l.buckets {
		if now.Sub(entry.lastUse) > ttl {
			delete(l.buckets, key)
			removed++
		}
	}
	size := len(l.buckets)
	l.mu.Unlock()

	if removed > 0 {
		l.logger.Debug("swept idle token buckets",
			observability.Int("removed", removed),
			observability.Int("remaining", size),
		)
	}
}

// refillDuration is how long an empty bucket takes to fill to burst.
func (l *TokenBucketLimiter) refillDuration() time.Duration {
	return time.Duration(float64(l.window) * float64(l.burst) / float64(l.limit))
}

// size returns the number of tracked keys.
func (l *TokenBucketLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
