package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/transcriptgw/transcriptgw/internal/auth/apikey"
	"github.com/transcriptgw/transcriptgw/internal/gateway/middleware"
	"github.com/transcriptgw/transcriptgw/internal/observability"
	"github.com/transcriptgw/transcriptgw/internal/ratelimit"
)

// ginModeOnce ensures gin.SetMode is only called once.
var ginModeOnce sync.Once

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns a ServerConfig with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ListenAddr:      ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Options bundles the collaborators the server composes per request.
type Options struct {
	Config    *ServerConfig
	Handler   *Handler
	Validator apikey.Validator
	Limiter   ratelimit.Limiter
	Logger    observability.Logger
	Metrics   *observability.Metrics
}

// Server is the gateway HTTP server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	config     *ServerConfig
	logger     observability.Logger

	mu      sync.Mutex
	running bool
}

// NewServer creates the gateway server and registers its routes. The
// middleware order is fixed: recovery, request ID, logging, method
// filter, then auth, with rate limiting applied to the transcript
// route.
func NewServer(opts Options) *Server {
	if opts.Config == nil {
		opts.Config = DefaultServerConfig()
	}
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}

	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(middleware.RecoveryMiddleware(opts.Logger))
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(middleware.LoggingMiddleware(opts.Logger, opts.Metrics))
	engine.Use(middleware.MethodFilterMiddleware(http.MethodGet))
	engine.Use(middleware.AuthMiddlewareWithConfig(middleware.AuthConfig{
		Validator: opts.Validator,
		Logger:    opts.Logger,
	}))

	rateLimited := middleware.RateLimitMiddlewareWithConfig(middleware.RateLimitConfig{
		Limiter:        opts.Limiter,
		KeyFunc:        ratelimit.IPKeyFunc,
		Logger:         opts.Logger,
		Metrics:        opts.Metrics,
		IncludeHeaders: true,
	})

	engine.GET("/transcript", rateLimited, opts.Handler.Transcript)
	engine.GET("/proxy-check", opts.Handler.ProxyCheck)

	engine.NoMethod(MethodNotAllowed)
	engine.NoRoute(NotFound)

	return &Server{
		engine: engine,
		config: opts.Config,
		logger: opts.Logger,
	}
}

// Engine returns the underlying gin engine, for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting HTTP server",
		observability.String("address", s.config.ListenAddr),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.httpServer == nil {
		return nil
	}
	s.running = false

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("stopping HTTP server")
	return s.httpServer.Shutdown(shutdownCtx)
}
