// Package outbound builds the HTTP clients the gateway uses to reach
// upstream services, optionally through a forward proxy.
package outbound

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Client timeouts. Fetches carry a generous budget for slow upstreams,
// probes fail fast so diagnostics stay responsive.
const (
	// DefaultFetchTimeout bounds a transcript fetch end to end.
	DefaultFetchTimeout = 25 * time.Second

	// DefaultProbeTimeout bounds an identity probe end to end.
	DefaultProbeTimeout = 8 * time.Second
)

// Browser identity headers attached to every outbound request. Upstreams
// serve different content to clients that do not look like a browser.
const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	defaultAcceptLanguage = "en-US,en;q=0.9"
	defaultAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// Config holds outbound client configuration.
type Config struct {
	// ProxyURL routes all outbound traffic through a forward proxy when
	// set. Both http and https URLs are supported. Empty means direct.
	ProxyURL string

	// FetchTimeout overrides DefaultFetchTimeout when positive.
	FetchTimeout time.Duration

	// ProbeTimeout overrides DefaultProbeTimeout when positive.
	ProbeTimeout time.Duration
}

// Factory builds HTTP clients that share one transport, so connection
// pools and the proxy decision are established once per process. When a
// proxy is configured a second transport carries proxy-bypassing probes.
type Factory struct {
	transport       *http.Transport
	directTransport *http.Transport
	proxyURL        *url.URL
	fetch           *http.Client
	probe           *http.Client
	directProbe     *http.Client
}

// NewFactory creates a client factory. The proxy URL is parsed once and
// fixed for the lifetime of the factory.
func NewFactory(cfg Config) (*Factory, error) {
	var proxyURL *url.URL
	if cfg.ProxyURL != "" {
		parsed, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("outbound: invalid proxy url: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return nil, fmt.Errorf("outbound: unsupported proxy scheme %q", parsed.Scheme)
		}
		proxyURL = parsed
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	directTransport := transport
	if proxyURL != nil {
		directTransport = transport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}

	rt := &identityRoundTripper{next: transport}
	probe := &http.Client{Transport: rt, Timeout: probeTimeout}

	directProbe := probe
	if proxyURL != nil {
		directProbe = &http.Client{
			Transport: &identityRoundTripper{next: directTransport},
			Timeout:   probeTimeout,
		}
	}

	return &Factory{
		transport:       transport,
		directTransport: directTransport,
		proxyURL:        proxyURL,
		fetch:           &http.Client{Transport: rt, Timeout: fetchTimeout},
		probe:           probe,
		directProbe:     directProbe,
	}, nil
}

// FetchClient returns the client for upstream transcript fetches.
func (f *Factory) FetchClient() *http.Client {
	return f.fetch
}

// ProbeClient returns the client for identity probes.
func (f *Factory) ProbeClient() *http.Client {
	return f.probe
}

// DirectProbeClient returns the probe client that bypasses the proxy,
// for comparing direct and proxied egress addresses. The client is built
// once so repeated proxy checks reuse one connection pool.
func (f *Factory) DirectProbeClient() *http.Client {
	return f.directProbe
}

// ProxyConfigured reports whether a proxy is in use.
func (f *Factory) ProxyConfigured() bool {
	return f.proxyURL != nil
}

// MaskedProxyURL returns the proxy URL safe for logs and responses, or
// an empty string when no proxy is configured.
func (f *Factory) MaskedProxyURL() string {
	if f.proxyURL == nil {
		return ""
	}
	return MaskProxyURL(f.proxyURL)
}

// CloseIdleConnections drops pooled connections.
func (f *Factory) CloseIdleConnections() {
	f.transport.CloseIdleConnections()
	if f.directTransport != f.transport {
		f.directTransport.CloseIdleConnections()
	}
}

// identityRoundTripper attaches browser identity headers to requests
// that do not already set them.
type identityRoundTripper struct {
	next http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (rt *identityRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", defaultUserAgent)
	}
	if clone.Header.Get("Accept-Language") == "" {
		clone.Header.Set("Accept-Language", defaultAcceptLanguage)
	}
	if clone.Header.Get("Accept") == "" {
		clone.Header.Set("Accept", defaultAccept)
	}
	return rt.next.RoundTrip(clone)
}

// MaskProxyURL renders a proxy URL with any password replaced by a fixed
// mask. The username survives so operators can tell accounts apart.
func MaskProxyURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	if u.User == nil {
		return u.String()
	}

	masked := *u
	if _, hasPassword := u.User.Password(); hasPassword {
		masked.User = url.UserPassword(u.User.Username(), "****")
	}

	return masked.String()
}
