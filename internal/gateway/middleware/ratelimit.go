package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/transcriptgw/transcriptgw/internal/observability"
	"github.com/transcriptgw/transcriptgw/internal/ratelimit"
)

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	// Limiter is the rate limiter to use.
	Limiter ratelimit.Limiter

	// KeyFunc extracts the rate limit key from the request.
	KeyFunc ratelimit.KeyFunc

	// Logger for rate limit events.
	Logger observability.Logger

	// Metrics records rejections.
	Metrics *observability.Metrics

	// SkipPaths lists paths exempt from rate limiting.
	SkipPaths []string

	// IncludeHeaders determines whether to emit X-RateLimit-* headers.
	IncludeHeaders bool
}

// DefaultRateLimitConfig returns a RateLimitConfig with default values.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		KeyFunc:        ratelimit.IPKeyFunc,
		IncludeHeaders: true,
	}
}

// RateLimitMiddleware returns a rate limit middleware with defaults.
func RateLimitMiddleware(limiter ratelimit.Limiter) gin.HandlerFunc {
	cfg := DefaultRateLimitConfig()
	cfg.Limiter = limiter
	return RateLimitMiddlewareWithConfig(cfg)
}

// RateLimitMiddlewareWithConfig returns a rate limit middleware with
// custom configuration.
func RateLimitMiddlewareWithConfig(config RateLimitConfig) gin.HandlerFunc {
	if config.Limiter == nil {
		config.Limiter = ratelimit.NewNoopLimiter()
	}
	if config.KeyFunc == nil {
		config.KeyFunc = ratelimit.IPKeyFunc
	}
	if config.Logger == nil {
		config.Logger = observability.NopLogger()
	}

	skipPaths := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *gin.Context) {
		if skipPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		key := config.KeyFunc(c.Request)

		result, err := config.Limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// A broken limiter must not take the gateway down with it.
			config.Logger.Error("rate limit check failed",
				observability.String("key", key),
				observability.Error(err),
			)
			c.Next()
			return
		}

		if config.IncludeHeaders {
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(result.ResetAfter).Unix(), 10))
		}

		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds())
			if config.IncludeHeaders {
				c.Header("Retry-After", strconv.Itoa(retryAfter))
			}
			if config.Metrics != nil {
				route := c.FullPath()
				if route == "" {
					route = c.Request.URL.Path
				}
				config.Metrics.RecordRateLimitHit(route)
			}

			config.Logger.Debug("rate limit exceeded",
				observability.String("key", key),
				observability.Int("limit", result.Limit),
			)

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "Too many requests. Please try again later.",
				"retryAfter": retryAfter,
			})
			return
		}

		c.Next()
	}
}
