package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) *FixedWindowLimiter {
	t.Helper()
	l := NewFixedWindowLimiter(limit, window, nil)
	t.Cleanup(l.Stop)
	return l
}

func TestFixedWindowLimiter_AllowsUpToLimit(t *testing.T) {
	l := newTestLimiter(t, 20, time.Minute)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		result, err := l.Allow(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 20, result.Limit)
		assert.Equal(t, 20-(i+1), result.Remaining)
	}

	result, err := l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, result.Allowed, "21st request should be rejected")
	assert.Equal(t, 0, result.Remaining)
	assert.Greater(t, result.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, result.RetryAfter, time.Minute)
}

func TestFixedWindowLimiter_CountsPastLimit(t *testing.T) {
	l := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := l.Allow(ctx, "k")
		require.NoError(t, err)
	}

	// Rejections keep incrementing the counter, so the key never rolls
	// back under the limit mid-window.
	result, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
}

func TestFixedWindowLimiter_WindowAnchoredAtFirstRequest(t *testing.T) {
	l := newTestLimiter(t, 2, time.Minute)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		result, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}

	// Still inside the window anchored at the first request.
	now = now.Add(59 * time.Second)
	result, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, time.Second, result.ResetAfter)

	// Past the window, the entry is replaced and counting restarts.
	now = now.Add(2 * time.Second)
	result, err = l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 1, result.Remaining)
}

func TestFixedWindowLimiter_IndependentKeys(t *testing.T) {
	l := newTestLimiter(t, 1, time.Minute)
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

func TestFixedWindowLimiter_Reset(t *testing.T) {
	l := newTestLimiter(t, 1, time.Minute)
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

func TestFixedWindowLimiter_SweepRemovesOnlyExpired(t *testing.T) {
	l := newTestLimiter(t, 20, time.Minute)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	_, err := l.Allow(ctx, "stale")
	require.NoError(t, err)

	now = now.Add(61 * time.Second)
	_, err = l.Allow(ctx, "fresh")
	require.NoError(t, err)

	// "stale" was created before the window elapsed, "fresh" just now.
	l.sweep()

	assert.Equal(t, 1, l.size())

	result, err := l.Allow(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 18, result.Remaining, "sweep must not reset live windows")
}

func TestFixedWindowLimiter_GetLimit(t *testing.T) {
	l := newTestLimiter(t, 20, time.Minute)

	limit := l.GetLimit("any")
	require.NotNil(t, limit)
	assert.Equal(t, 20, limit.Requests)
	assert.Equal(t, time.Minute, limit.Window)
}

func TestFixedWindowLimiter_StopIsIdempotent(t *testing.T) {
	l := NewFixedWindowLimiter(20, time.Minute, nil)
	l.Stop()
	l.Stop()
}

func TestNoopLimiter(t *testing.T) {
	l := NewNoopLimiter()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		result, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}
}
