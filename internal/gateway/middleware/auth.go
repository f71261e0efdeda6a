package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/transcriptgw/transcriptgw/internal/auth/apikey"
	"github.com/transcriptgw/transcriptgw/internal/observability"
)

// AuthConfig holds configuration for the API key middleware.
type AuthConfig struct {
	// Validator checks presented keys against the configured secret.
	Validator apikey.Validator

	// Extractor pulls the presented key out of the request. Defaults to
	// the header-then-query extractor.
	Extractor apikey.Extractor

	// Logger for authentication events.
	Logger observability.Logger

	// SkipPaths lists paths exempt from authentication.
	SkipPaths []string
}

// AuthMiddleware returns an API key middleware with default extraction.
func AuthMiddleware(validator apikey.Validator) gin.HandlerFunc {
	return AuthMiddlewareWithConfig(AuthConfig{Validator: validator})
}

// AuthMiddlewareWithConfig returns an API key middleware. A missing
// server secret is reported as a server error before the presented key
// is considered, so misconfiguration never masquerades as a caller
// mistake.
func AuthMiddlewareWithConfig(config AuthConfig) gin.HandlerFunc {
	if config.Extractor == nil {
		config.Extractor = apikey.DefaultExtractor()
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

		// Extraction failures surface as an empty key. The validator
		// decides the outcome, secret check first.
		key, _ := config.Extractor.Extract(c.Request)

		err := config.Validator.Validate(c.Request.Context(), key)
		if err == nil {
			c.Next()
			return
		}

		if errors.Is(err, apikey.ErrSecretNotConfigured) {
			config.Logger.Error("API key secret not configured")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Server misconfigured",
			})
			return
		}

		config.Logger.Warn("authentication failed",
			observability.String("client_ip", c.ClientIP()),
			observability.Error(err),
		)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "Unauthorized",
		})
	}
}
