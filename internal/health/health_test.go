package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_Health(t *testing.T) {
	c := NewChecker("1.2.3")

	resp := c.Health()
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.NotEmpty(t, resp.Uptime)
}

func TestChecker_Readiness(t *testing.T) {
	c := NewChecker("1.2.3")

	c.RegisterCheck("upstream", func() Check {
		return Check{Status: StatusHealthy}
	})

	resp := c.Readiness()
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Len(t, resp.Checks, 1)

	c.RegisterCheck("proxy", func() Check {
		return Check{Status: StatusDegraded, Message: "probe slow"}
	})
	assert.Equal(t, StatusDegraded, c.Readiness().Status)

	c.RegisterCheck("limiter", func() Check {
		return Check{Status: StatusUnhealthy, Message: errors.New("stopped").Error()}
	})
	assert.Equal(t, StatusUnhealthy, c.Readiness().Status)
}

func TestChecker_Handlers(t *testing.T) {
	c := NewChecker("1.2.3")
	c.RegisterCheck("failing", func() Check {
		return Check{Status: StatusUnhealthy, Message: "down"}
	})

	rec := httptest.NewRecorder()
	c.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var healthResp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &healthResp))
	assert.Equal(t, StatusHealthy, healthResp.Status)

	rec = httptest.NewRecorder()
	c.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	c.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
