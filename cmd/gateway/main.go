// Command gateway runs the transcript gateway HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/transcriptgw/transcriptgw/internal/auth/apikey"
	"github.com/transcriptgw/transcriptgw/internal/config"
	"github.com/transcriptgw/transcriptgw/internal/diag"
	"github.com/transcriptgw/transcriptgw/internal/gateway"
	"github.com/transcriptgw/transcriptgw/internal/health"
	"github.com/transcriptgw/transcriptgw/internal/observability"
	"github.com/transcriptgw/transcriptgw/internal/outbound"
	"github.com/transcriptgw/transcriptgw/internal/ratelimit"
	"github.com/transcriptgw/transcriptgw/internal/transcript"
)

// Build information, set via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", getEnvOrDefault("GATEWAY_CONFIG", "configs/gateway.yaml"), "path to configuration file")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("transcriptgw %s (commit %s, built %s)\n", version, commit, buildTime)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	observability.SetGlobalLogger(logger)

	logger.Info("starting transcript gateway",
		observability.String("version", version),
		observability.String("commit", commit),
	)

	metrics := observability.NewMetrics(cfg.Metrics.Namespace)
	metrics.SetBuildInfo(version, commit, buildTime)

	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Enabled:      cfg.Tracing.Enabled,
	})
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}

	factory, err := outbound.NewFactory(outbound.Config{
		ProxyURL:     cfg.Outbound.ProxyURL,
		FetchTimeout: cfg.Outbound.FetchTimeout.Duration(),
		ProbeTimeout: cfg.Outbound.ProbeTimeout.Duration(),
	})
	if err != nil {
		return err
	}
	if factory.ProxyConfigured() {
		logger.Info("outbound proxy configured",
			observability.String("proxy_url", factory.MaskedProxyURL()),
		)
	}

	collector := diag.NewCollector(factory,
		diag.WithEchoEndpoint(cfg.Diag.EchoEndpoint),
		diag.WithCollectorLogger(logger),
		diag.WithCollectorMetrics(metrics),
	)

	fetcher := transcript.NewYouTubeFetcher(
		transcript.WithWatchBaseURL(cfg.Transcript.WatchBaseURL),
		transcript.WithFetcherLogger(logger),
		transcript.WithFetcherMetrics(metrics),
	)

	validator, err := apikey.NewValidator(&apikey.Config{
		Secret:        cfg.Auth.Secret,
		HashAlgorithm: cfg.Auth.HashAlgorithm,
	},
		apikey.WithValidatorLogger(logger),
		apikey.WithValidatorMetrics(metrics),
	)
	if err != nil {
		return fmt.Errorf("failed to create validator: %w", err)
	}
	if cfg.Auth.Secret == "" {
		logger.Warn("no API key secret configured, all requests will be rejected")
	}

	limiter, err := newLimiter(&cfg.RateLimit, logger)
	if err != nil {
		return err
	}
	swappable := ratelimit.NewSwappable(limiter)
	defer func() {
		ratelimit.StopIfStoppable(swappable.Swap(nil))
	}()

	server := gateway.NewServer(gateway.Options{
		Config: &gateway.ServerConfig{
			ListenAddr:      cfg.Server.ListenAddr,
			ReadTimeout:     cfg.Server.ReadTimeout.Duration(),
			WriteTimeout:    cfg.Server.WriteTimeout.Duration(),
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
		},
		Handler:   gateway.NewHandler(fetcher, factory, collector, cfg.Transcript.Languages, logger),
		Validator: validator,
		Limiter:   swappable,
		Logger:    logger,
		Metrics:   metrics,
	})

	checker := health.NewChecker(version)
	checker.RegisterCheck("secret", func() health.Check {
		if cfg.Auth.Secret == "" {
			return health.Check{Status: health.StatusDegraded, Message: "no API key secret configured"}
		}
		return health.Check{Status: health.StatusHealthy}
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = newMetricsServer(cfg.Metrics.ListenAddr, metrics, checker)
		go func() {
			logger.Info("starting metrics server",
				observability.String("address", cfg.Metrics.ListenAddr),
			)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", observability.Error(err))
			}
		}()
	}

	if watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
		applyTunables(cfg, next, swappable, logger)
	}, logger); err == nil {
		defer watcher.Close()
		go watcher.Start(ctx)
	} else {
		logger.Warn("config watching disabled", observability.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("server shutdown error", observability.Error(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", observability.Error(err))
		}
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracer shutdown error", observability.Error(err))
	}
	factory.CloseIdleConnections()

	logger.Info("gateway stopped")
	return nil
}

// loadConfig loads the config file, falling back to defaults plus
// environment overrides when no file exists.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		config.ApplyEnvOverrides(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.Load(path)
}

// newLimiter builds the configured rate limiter.
func newLimiter(cfg *config.RateLimitConfig, logger observability.Logger) (ratelimit.Limiter, error) {
	if !cfg.Enabled {
		return ratelimit.NewNoopLimiter(), nil
	}
	return ratelimit.New(&ratelimit.Config{
		Algorithm: ratelimit.Algorithm(cfg.Algorithm),
		Requests:  cfg.Requests,
		Window:    cfg.Window.Duration(),
		Burst:     cfg.Burst,
	}, logger)
}

// applyTunables applies reloadable settings from a new configuration.
// The API key secret and proxy URL stay fixed for the process lifetime.
func applyTunables(current *config.Config, next *config.Config, swappable *ratelimit.Swappable, logger observability.Logger) {
	if next.RateLimit == current.RateLimit {
		return
	}

	limiter, err := newLimiter(&next.RateLimit, logger)
	if err != nil {
		logger.Warn("ignoring reloaded rate limit settings", observability.Error(err))
		return
	}

	ratelimit.StopIfStoppable(swappable.Swap(limiter))
	current.RateLimit = next.RateLimit

	logger.Info("rate limit settings applied",
		observability.Int("requests", next.RateLimit.Requests),
		observability.Duration("window", next.RateLimit.Window.Duration()),
	)
}

// newMetricsServer serves metrics and health probes on a separate
// listener.
func newMetricsServer(addr string, metrics *observability.Metrics, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", checker.HealthHandler())
	mux.HandleFunc("/ready", checker.ReadinessHandler())
	mux.HandleFunc("/live", checker.LivenessHandler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
