package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(m *Monitor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.Middleware())
	m.Register(r)
	r.GET("/api/tasks/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/broken", func(c *gin.Context) { c.Status(http.StatusBadGateway) })
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

func TestMiddlewareCountsRequests(t *testing.T) {
	m := New()
	r := newTestRouter(m)

	get(r, "/api/tasks/1")
	get(r, "/api/tasks/2")
	get(r, "/api/broken")
	get(r, "/nowhere")

	snap := m.Snapshot()
	assert.Equal(t, int64(4), snap.RequestCount)
	assert.Equal(t, int64(0), snap.ActiveRequests)
	assert.Equal(t, int64(2), snap.ErrorCount)
	assert.Equal(t, int64(2), snap.Endpoints["GET /api/tasks/:id"])
	assert.Equal(t, int64(1), snap.Endpoints["GET unmatched"])
	assert.Equal(t, int64(2), snap.StatusCodes["OK"])
	assert.Equal(t, int64(1), snap.StatusCodes["Bad Gateway"])
}

func TestHealthChecksRunOnEachRequest(t *testing.T) {
	m := New()
	var failing error
	m.RegisterHealthCheck("database", func(context.Context) error { return nil })
	m.RegisterHealthCheck("redis", func(context.Context) error { return failing })
	r := newTestRouter(m)

	w := get(r, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, get(r, "/ready").Code)

	failing = errors.New("connection refused")
	w = get(r, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status string                 `json:"status"`
		Checks map[string]HealthCheck `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "healthy", body.Checks["database"].Status)
	assert.Equal(t, "connection refused", body.Checks["redis"].Message)

	assert.Equal(t, http.StatusServiceUnavailable, get(r, "/ready").Code)
	assert.Equal(t, http.StatusOK, get(r, "/live").Code)
}

func TestMetricsEndpointIncludesStats(t *testing.T) {
	m := New()
	m.RegisterStats("cache", func() any { return map[string]int{"hits": 3} })
	r := newTestRouter(m)

	get(r, "/api/tasks/1")
	w := get(r, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "application")
	assert.Contains(t, body, "system")
	assert.JSONEq(t, `{"hits":3}`, string(body["cache"]))
}
