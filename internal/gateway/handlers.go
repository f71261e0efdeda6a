// Package gateway wires authentication, rate limiting, and the
// transcript fetch pipeline into an HTTP server.
package gateway

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/transcriptgw/transcriptgw/internal/diag"
	"github.com/transcriptgw/transcriptgw/internal/observability"
	"github.com/transcriptgw/transcriptgw/internal/outbound"
	"github.com/transcriptgw/transcriptgw/internal/transcript"
	"github.com/transcriptgw/transcriptgw/internal/util"
)

// noProxyText is what /proxy-check reports for proxyIp when no proxy is
// configured.
const noProxyText = "No proxy configured"

// Handler serves the transcript and proxy-check endpoints.
type Handler struct {
	fetcher   transcript.Fetcher
	factory   *outbound.Factory
	collector *diag.Collector
	languages []string
	logger    observability.Logger
}

// NewHandler creates a new handler.
func NewHandler(fetcher transcript.Fetcher, factory *outbound.Factory, collector *diag.Collector, languages []string, logger observability.Logger) *Handler {
	if len(languages) == 0 {
		languages = transcript.DefaultLanguages
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Handler{
		fetcher:   fetcher,
		factory:   factory,
		collector: collector,
		languages: languages,
		logger:    logger,
	}
}

// Transcript handles GET /transcript?videoId=<id>.
func (h *Handler) Transcript(c *gin.Context) {
	videoID := c.Query("videoId")

	if err := util.ValidateVideoID(videoID); err != nil {
		switch {
		case errors.Is(err, util.ErrMissingVideoID):
			c.JSON(http.StatusBadRequest, gin.H{"error": "videoId parameter is required"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid videoId format"})
		}
		return
	}

	ctx := c.Request.Context()

	// Probe the egress identity before fetching. When the fetch fails,
	// which address the upstream saw is the most useful debugging fact.
	egressIP, probeErr := h.collector.ProbeEgressIP(ctx)

	segments, err := h.fetcher.Fetch(ctx, h.factory.FetchClient(), videoID, h.languages)
	if err != nil {
		h.logger.Warn("transcript fetch failed",
			observability.String("video_id", videoID),
			observability.Error(err),
		)
		c.JSON(http.StatusInternalServerError, h.debugPayload(err, egressIP, probeErr))
		return
	}

	c.JSON(http.StatusOK, gin.H{"transcript": segments})
}

// debugPayload renders an upstream failure with diagnostic context.
// Probe outcomes are formatted to text only here, at the serialization
// edge.
func (h *Handler) debugPayload(err error, egressIP string, probeErr error) gin.H {
	payload := gin.H{
		"error":           "Failed to fetch transcript",
		"outgoingIp":      renderProbe(egressIP, probeErr),
		"proxyConfigured": h.factory.ProxyConfigured(),
	}

	var ue *transcript.UpstreamError
	if errors.As(err, &ue) {
		payload["errorName"] = ue.Name
		payload["errorMessage"] = ue.Message
		if ue.StatusCode != 0 {
			payload["httpStatus"] = ue.StatusCode
			payload["httpStatusText"] = ue.Status
		}
		if ue.ResponseURL != "" {
			payload["responseUrl"] = ue.ResponseURL
		}
		if ue.Body != "" {
			payload["responseBody"] = ue.Body
		}
		if len(ue.Headers) > 0 {
			payload["responseHeaders"] = ue.Headers
		}
	} else {
		payload["errorName"] = "Error"
		payload["errorMessage"] = err.Error()
	}

	return payload
}

// ProxyCheck handles GET /proxy-check.
func (h *Handler) ProxyCheck(c *gin.Context) {
	report := h.collector.Collect(c.Request.Context())

	proxyIP := noProxyText
	if report.ProxyConfigured {
		proxyIP = renderProbe(report.ProxyIP, report.ProxyErr)
	}

	c.JSON(http.StatusOK, gin.H{
		"proxyConfigured": report.ProxyConfigured,
		"proxyUrl":        report.ProxyURL,
		"directIp":        renderProbe(report.DirectIP, report.DirectErr),
		"proxyIp":         proxyIP,
		"proxyWorking":    report.ProxyWorking(),
	})
}

// renderProbe formats a probe outcome as the address or an error text.
func renderProbe(ip string, err error) string {
	if err != nil {
		return "Error: " + err.Error()
	}
	return ip
}

// MethodNotAllowed responds to unsupported methods on known routes.
func MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
}

// NotFound responds to unknown routes.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
}
