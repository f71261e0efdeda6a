package ratelimit

import (
	"context"
	"sync/atomic"
)

// Swappable is a Limiter whose backing limiter can be replaced at
// runtime, for applying reloaded rate limit settings without restarting
// the server.
type Swappable struct {
	current atomic.Value
}

// NewSwappable creates a swappable limiter with an initial backing
// limiter.
func NewSwappable(l Limiter) *Swappable {
	s := &Swappable{}
	if l == nil {
		l = NewNoopLimiter()
	}
	s.current.Store(&l)
	return s
}

// Swap replaces the backing limiter and returns the previous one so the
// caller can stop it.
func (s *Swappable) Swap(l Limiter) Limiter {
	if l == nil {
		l = NewNoopLimiter()
	}
	prev := s.current.Swap(&l)
	return *prev.(*Limiter)
}

func (s *Swappable) get() Limiter {
	return *s.current.Load().(*Limiter)
}

// Allow implements Limiter.
func (s *Swappable) Allow(ctx context.Context, key string) (*Result, error) {
	return s.get().Allow(ctx, key)
}

// AllowN implements Limiter.
func (s *Swappable) AllowN(ctx context.Context, key string, n int) (*Result, error) {
	return s.get().AllowN(ctx, key, n)
}

// GetLimit implements Limiter.
func (s *Swappable) GetLimit(key string) *Limit {
	return s.get().GetLimit(key)
}

// Reset implements Limiter.
func (s *Swappable) Reset(ctx context.Context, key string) error {
	return s.get().Reset(ctx, key)
}

// Stopper is implemented by limiters that own background tasks.
type Stopper interface {
	Stop()
}

// StopIfStoppable stops the limiter when it owns background tasks.
func StopIfStoppable(l Limiter) {
	if stopper, ok := l.(Stopper); ok {
		stopper.Stop()
	}
}

// Ensure Swappable implements Limiter.
var _ Limiter = (*Swappable)(nil)
