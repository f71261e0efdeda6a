// Package diag probes the gateway's outbound identity, reporting which
// egress addresses direct and proxied traffic appear from.
package diag

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/transcriptgw/transcriptgw/internal/observability"
	"github.com/transcriptgw/transcriptgw/internal/outbound"
)

// DefaultEchoEndpoint is the IP echo service probes hit by default.
const DefaultEchoEndpoint = "https://api.ipify.org"

// maxEchoBody caps how much of an echo response is read. The body is a
// bare IP address; anything bigger is a broken or hostile endpoint.
const maxEchoBody = 256

// Report describes the gateway's outbound identity. Probe failures are
// carried as errors and rendered only when the report is serialized.
type Report struct {
	ProxyConfigured bool
	ProxyURL        string
	DirectIP        string
	DirectErr       error
	ProxyIP         string
	ProxyErr        error
}

// ProxyWorking reports whether proxied traffic demonstrably leaves from
// a different address than direct traffic. Either probe failing means
// the proxy cannot be shown to work.
func (r *Report) ProxyWorking() bool {
	if !r.ProxyConfigured || r.DirectErr != nil || r.ProxyErr != nil {
		return false
	}
	return r.DirectIP != r.ProxyIP
}

// Collector runs identity probes using the outbound client factory.
type Collector struct {
	factory  *outbound.Factory
	endpoint string
	logger   observability.Logger
	metrics  *observability.Metrics
}

// CollectorOption is a functional option for the collector.
type CollectorOption func(*Collector)

// WithEchoEndpoint overrides the IP echo endpoint.
func WithEchoEndpoint(endpoint string) CollectorOption {
	return func(c *Collector) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithCollectorLogger sets the logger for the collector.
func WithCollectorLogger(logger observability.Logger) CollectorOption {
	return func(c *Collector) {
		c.logger = logger
	}
}

// WithCollectorMetrics sets the metrics for the collector.
func WithCollectorMetrics(metrics *observability.Metrics) CollectorOption {
	return func(c *Collector) {
		c.metrics = metrics
	}
}

// NewCollector creates a new collector.
func NewCollector(factory *outbound.Factory, opts ...CollectorOption) *Collector {
	c := &Collector{
		factory:  factory,
		endpoint: DefaultEchoEndpoint,
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect probes the direct egress address and, when a proxy is
// configured, the proxied one. A failed probe never fails the report.
func (c *Collector) Collect(ctx context.Context) *Report {
	report := &Report{
		ProxyConfigured: c.factory.ProxyConfigured(),
		ProxyURL:        c.factory.MaskedProxyURL(),
	}

	report.DirectIP, report.DirectErr = c.probe(ctx, "direct", c.factory.DirectProbeClient())

	if report.ProxyConfigured {
		report.ProxyIP, report.ProxyErr = c.probe(ctx, "proxy", c.factory.ProbeClient())
	}

	return report
}

// ProbeEgressIP probes the configured client's egress address. This is
// what a transcript request runs before fetching, so debug payloads can
// say which address the upstream saw.
func (c *Collector) ProbeEgressIP(ctx context.Context) (string, error) {
	return c.probe(ctx, "egress", c.factory.ProbeClient())
}

// probe asks the echo endpoint what address the client appears from.
func (c *Collector) probe(ctx context.Context, kind string, client *http.Client) (string, error) {
	start := time.Now()

	ip, err := probeIdentity(ctx, client, c.endpoint)
	if err != nil {
		c.recordProbe(kind, "error")
		c.logger.Debug("identity probe failed",
			observability.String("kind", kind),
			observability.Duration("elapsed", time.Since(start)),
			observability.Error(err),
		)
		return "", err
	}

	c.recordProbe(kind, "success")
	return ip, nil
}

func (c *Collector) recordProbe(kind, result string) {
	if c.metrics != nil {
		c.metrics.RecordProbe(kind, result)
	}
}

// probeIdentity performs one echo request and returns the reported address.
func probeIdentity(ctx context.Context, client *http.Client, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("diag: build probe request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("diag: probe request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("diag: echo endpoint returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEchoBody))
	if err != nil {
		return "", fmt.Errorf("diag: read probe response: %w", err)
	}

	ip := strings.TrimSpace(string(body))
	if ip == "" {
		return "", fmt.Errorf("diag: echo endpoint returned empty body")
	}

	return ip, nil
}
