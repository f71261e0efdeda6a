package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findMetricFamily(t *testing.T, families []*dto.MetricFamily, name string) *dto.MetricFamily {
	t.Helper()
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestNewMetrics_DefaultNamespace(t *testing.T) {
	m := NewMetrics("")
	require.NotNil(t, m)

	m.RecordRequest("GET", "/transcript", 200, 50*time.Millisecond)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	mf := findMetricFamily(t, families, "transcriptgw_requests_total")
	require.NotNil(t, mf, "expected requests_total under default namespace")
	require.Len(t, mf.Metric, 1)
	assert.Equal(t, float64(1), mf.Metric[0].GetCounter().GetValue())
}

func TestMetrics_RecordRateLimitHit(t *testing.T) {
	m := NewMetrics("test")

	m.RecordRateLimitHit("/transcript")
	m.RecordRateLimitHit("/transcript")

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	mf := findMetricFamily(t, families, "test_rate_limit_hits_total")
	require.NotNil(t, mf)
	require.Len(t, mf.Metric, 1)
	assert.Equal(t, float64(2), mf.Metric[0].GetCounter().GetValue())
	require.Len(t, mf.Metric[0].Label, 1)
	assert.Equal(t, "route", mf.Metric[0].Label[0].GetName())
	assert.Equal(t, "/transcript", mf.Metric[0].Label[0].GetValue())
}

func TestMetrics_RecordUpstreamFetch(t *testing.T) {
	m := NewMetrics("test")

	m.RecordUpstreamFetch("success", true, 2*time.Second)
	m.RecordUpstreamFetch("error", false, 100*time.Millisecond)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	mf := findMetricFamily(t, families, "test_upstream_fetches_total")
	require.NotNil(t, mf)
	assert.Len(t, mf.Metric, 2)

	hist := findMetricFamily(t, families, "test_upstream_fetch_duration_seconds")
	require.NotNil(t, hist)
	assert.Len(t, hist.Metric, 2)
}

func TestMetrics_RecordProbe(t *testing.T) {
	m := NewMetrics("test")

	m.RecordProbe("direct", "success")
	m.RecordProbe("proxy", "error")

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	mf := findMetricFamily(t, families, "test_identity_probes_total")
	require.NotNil(t, mf)
	assert.Len(t, mf.Metric, 2)
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("test")
	m.SetBuildInfo("1.0.0", "abc123", "2026-01-01")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()

	m.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_build_info")
	assert.Contains(t, rec.Body.String(), "test_start_time_seconds")
}
