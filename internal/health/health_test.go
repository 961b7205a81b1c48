package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckerAggregates(t *testing.T) {
	c := NewChecker("test")
	c.Register("worker", true, func(context.Context) error { return nil })
	assert.Equal(t, StatusHealthy, c.Run(context.Background()).Status)

	c.Register("journal", false, func(context.Context) error { return errors.New("locked") })
	resp := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, "locked", resp.Components["journal"].Error)

	c.Register("input", true, func(context.Context) error { return errors.New("device gone") })
	assert.Equal(t, StatusUnhealthy, c.Run(context.Background()).Status)
}

func TestHealthHandler(t *testing.T) {
	c := NewChecker("1.0")
	c.Register("input", true, func(context.Context) error { return errors.New("device gone") })

	rec := httptest.NewRecorder()
	c.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "1.0", resp.Version)
}

func TestReadinessHandler(t *testing.T) {
	c := NewChecker("")
	rec := httptest.NewRecorder()
	c.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	c.SetReady(true)
	rec = httptest.NewRecorder()
	c.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
