package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwappable(t *testing.T) {
	ctx := context.Background()

	strict := NewFixedWindowLimiter(1, time.Minute, nil)
	defer strict.Stop()

	s := NewSwappable(strict)

	result, err := s.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = s.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	// Swapping in a fresh limiter takes effect immediately.
	relaxed := NewFixedWindowLimiter(100, time.Minute, nil)
	defer relaxed.Stop()

	prev := s.Swap(relaxed)
	assert.Same(t, strict, prev)

	result, err = s.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestSwappable_NilDefaultsToNoop(t *testing.T) {
	s := NewSwappable(nil)

	result, err := s.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestStopIfStoppable(t *testing.T) {
	l := NewFixedWindowLimiter(1, time.Minute, nil)
	StopIfStoppable(l)

	// Noop limiters have nothing to stop.
	StopIfStoppable(NewNoopLimiter())
}
