package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenBucket(t *testing.T, limit int, window time.Duration, burst int) *TokenBucketLimiter {
	t.Helper()
	l := NewTokenBucketLimiter(limit, window, burst, nil)
	t.Cleanup(l.Stop)
	return l
}

func TestTokenBucketLimiter_AllowsUpToBurst(t *testing.T) {
	l := newTestTokenBucket(t, 10, time.Minute, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 10, result.Limit)
	}

	// Burst exhausted, refill is too slow to matter here.
	result, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Greater(t, result.RetryAfter, time.Duration(0))
}

func TestTokenBucketLimiter_RefillsOverTime(t *testing.T) {
	// 60 per minute is one token per second.
	l := newTestTokenBucket(t, 60, time.Minute, 2)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		result, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}

	result, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	require.False(t, result.Allowed)

	// One second refills one token.
	now = now.Add(time.Second)
	result, err = l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestTokenBucketLimiter_IndependentKeys(t *testing.T) {
	l := newTestTokenBucket(t, 10, time.Minute, 1)
	ctx := context.Background()

	result, err := l.Allow(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = l.Allow(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	result, err = l.Allow(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, result.Allowed, "other keys are unaffected")
}

func TestTokenBucketLimiter_Reset(t *testing.T) {
	l := newTestTokenBucket(t, 10, time.Minute, 1)
	ctx := context.Background()

	_, err := l.Allow(ctx, "k")
	require.NoError(t, err)

	result, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	require.False(t, result.Allowed)

	require.NoError(t, l.Reset(ctx, "k"))

	result, err = l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestTokenBucketLimiter_SweepRemovesOnlyIdle(t *testing.T) {
	// Refilling two tokens at one per second takes two seconds.
	l := newTestTokenBucket(t, 60, time.Minute, 2)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	_, err := l.Allow(ctx, "stale")
	require.NoError(t, err)

	// Long enough for the stale bucket to refill completely.
	now = now.Add(3 * time.Second)
	_, err = l.Allow(ctx, "fresh")
	require.NoError(t, err)

	l.sweep()

	assert.Equal(t, 1, l.size())

	// The live bucket keeps its consumed state across the sweep.
	_, err = l.Allow(ctx, "fresh")
	require.NoError(t, err)
	result, err := l.Allow(ctx, "fresh")
	require.NoError(t, err)
	assert.False(t, result.Allowed, "sweep must not reset live buckets")
}

func TestTokenBucketLimiter_SweepBoundsTrackedKeys(t *testing.T) {
	l := newTestTokenBucket(t, 60, time.Minute, 2)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 1000; i++ {
		_, err := l.Allow(ctx, fmt.Sprintf("caller-%d", i))
		require.NoError(t, err)
	}
	require.Equal(t, 1000, l.size())

	// Every bucket is idle past the refill horizon, so the table drains
	// instead of growing with each distinct caller ever seen.
	now = now.Add(l.refillDuration() + time.Second)
	l.sweep()

	assert.Equal(t, 0, l.size())
}

func TestTokenBucketLimiter_StopIsIdempotent(t *testing.T) {
	l := NewTokenBucketLimiter(10, time.Minute, 2, nil)
	l.Stop()
	l.Stop()
}
