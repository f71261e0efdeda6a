// Package config defines the gateway configuration model and loading.
package config

import (
	"time"

	"github.com/transcriptgw/transcriptgw/internal/util"
)

// Config is the root gateway configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" json:"server"`
	Auth       AuthConfig       `yaml:"auth" json:"auth"`
	RateLimit  RateLimitConfig  `yaml:"rateLimit" json:"rateLimit"`
	Outbound   OutboundConfig   `yaml:"outbound" json:"outbound"`
	Diag       DiagConfig       `yaml:"diag" json:"diag"`
	Transcript TranscriptConfig `yaml:"transcript" json:"transcript"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
	Tracing    TracingConfig    `yaml:"tracing" json:"tracing"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr      string   `yaml:"listenAddr" json:"listenAddr"`
	ReadTimeout     Duration `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout" json:"writeTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
}

// AuthConfig configures API key authentication. The secret is fixed at
// startup and never reloaded.
type AuthConfig struct {
	Secret        string `yaml:"secret" json:"secret"`
	HashAlgorithm string `yaml:"hashAlgorithm" json:"hashAlgorithm"`
}

// RateLimitConfig configures the per-caller rate limiter.
type RateLimitConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	Algorithm string   `yaml:"algorithm" json:"algorithm"`
	Requests  int      `yaml:"requests" json:"requests"`
	Window    Duration `yaml:"window" json:"window"`
	Burst     int      `yaml:"burst" json:"burst"`
}

// OutboundConfig configures upstream HTTP clients. The proxy URL is
// fixed at startup and never reloaded.
type OutboundConfig struct {
	ProxyURL     string   `yaml:"proxyUrl" json:"proxyUrl"`
	FetchTimeout Duration `yaml:"fetchTimeout" json:"fetchTimeout"`
	ProbeTimeout Duration `yaml:"probeTimeout" json:"probeTimeout"`
}

// DiagConfig configures outbound identity probing.
type DiagConfig struct {
	EchoEndpoint string `yaml:"echoEndpoint" json:"echoEndpoint"`
}

// TranscriptConfig configures the transcript fetcher.
type TranscriptConfig struct {
	WatchBaseURL string   `yaml:"watchBaseUrl" json:"watchBaseUrl"`
	Languages    []string `yaml:"languages" json:"languages"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig configures the Prometheus metrics listener.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ListenAddr string `yaml:"listenAddr" json:"listenAddr"`
	Namespace  string `yaml:"namespace" json:"namespace"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint" json:"otlpEndpoint"`
	SamplingRate float64 `yaml:"samplingRate" json:"samplingRate"`
	ServiceName  string  `yaml:"serviceName" json:"serviceName"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Auth: AuthConfig{
			HashAlgorithm: "plaintext",
		},
		RateLimit: RateLimitConfig{
			Enabled:   true,
			Algorithm: "fixed_window",
			Requests:  20,
			Window:    Duration(time.Minute),
		},
		Outbound: OutboundConfig{
			FetchTimeout: Duration(25 * time.Second),
			ProbeTimeout: Duration(8 * time.Second),
		},
		Transcript: TranscriptConfig{
			Languages: []string{"en"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: ":9090",
			Namespace:  "transcriptgw",
		},
		Tracing: TracingConfig{
			SamplingRate: 1.0,
			ServiceName:  "transcriptgw",
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return util.NewConfigError("server.listenAddr", "must not be empty")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 {
			return util.NewConfigError("rateLimit.requests", "must be positive")
		}
		if c.RateLimit.Window.Duration() <= 0 {
			return util.NewConfigError("rateLimit.window", "must be positive")
		}
	}

	if c.Outbound.FetchTimeout.Duration() < 0 {
		return util.NewConfigError("outbound.fetchTimeout", "must not be negative")
	}
	if c.Outbound.ProbeTimeout.Duration() < 0 {
		return util.NewConfigError("outbound.probeTimeout", "must not be negative")
	}

	switch c.Auth.HashAlgorithm {
	case "", "plaintext", "sha256", "bcrypt":
	default:
		return util.NewConfigError("auth.hashAlgorithm", "must be one of plaintext, sha256, bcrypt")
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		return util.NewConfigError("metrics.listenAddr", "must not be empty when metrics are enabled")
	}

	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return util.NewConfigError("tracing.samplingRate", "must be between 0 and 1")
	}

	return nil
}
