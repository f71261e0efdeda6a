package ratelimit

import (
	"fmt"

	"github.com/transcriptgw/transcriptgw/internal/observability"
)

// New creates a rate limiter from the given configuration.
func New(cfg *Config, logger observability.Logger) (Limiter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if cfg.Requests <= 0 {
		return nil, fmt.Errorf("ratelimit: requests must be positive, got %d", cfg.Requests)
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("ratelimit: window must be positive, got %s", cfg.Window)
	}

	switch cfg.Algorithm {
	case AlgorithmFixedWindow, "":
		return NewFixedWindowLimiter(cfg.Requests, cfg.Window, logger), nil
	case AlgorithmTokenBucket:
		return NewTokenBucketLimiter(cfg.Requests, cfg.Window, cfg.Burst, logger), nil
	default:
		return nil, fmt.Errorf("ratelimit: unknown algorithm %q", cfg.Algorithm)
	}
}
