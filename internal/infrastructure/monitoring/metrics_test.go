package monitoring

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsIndependentRegistries(t *testing.T) {
	// two collectors in one process must not collide
	a := NewMetrics()
	b := NewMetrics()

	a.RecordServiceCall("documents", "read", "success", 10*time.Millisecond)

	assert.Contains(t, scrape(t, a), `filedeck_service_calls_total{service="documents",status="success",tool="read"} 1`)
	assert.NotContains(t, scrape(t, b), `filedeck_service_calls_total{`)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/documents/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	for _, path := range []string{"/documents/1", "/documents/2", "/missing"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := scrape(t, m)
	assert.Contains(t, out, `filedeck_http_requests_total{method="GET",path="/documents/:id",status="200"} 2`)
	assert.Contains(t, out, `filedeck_http_requests_total{method="GET",path="unmatched",status="404"} 1`)

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)
}

func TestMiddlewareSkipsUpgrades(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/stream", func(c *gin.Context) { c.Status(http.StatusSwitchingProtocols) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stream", nil))

	assert.Equal(t, int64(0), m.Snapshot().TotalRequests)
	assert.NotContains(t, scrape(t, m), `path="/stream"`)
}

func TestSnapshotGauges(t *testing.T) {
	m := NewMetrics()
	m.SetEditSessionsActive(4)
	m.IncWSConnections()
	m.IncWSConnections()
	m.DecWSConnections()

	snap := m.Snapshot()
	assert.Equal(t, int64(4), snap.ActiveEditSessions)
	assert.Equal(t, int64(1), snap.ActiveConnections)
	assert.Zero(t, snap.AverageLatencyMs)
}

func TestTimer(t *testing.T) {
	m := NewMetrics()
	d := NewTimer(m, "editor", "undo").Stop("success")
	assert.GreaterOrEqual(t, d, time.Duration(0))
	assert.Contains(t, scrape(t, m), `filedeck_service_duration_seconds_count{service="editor",tool="undo"} 1`)

	// nil collector is tolerated
	assert.NotPanics(t, func() { NewTimer(nil, "x", "y").Stop("success") })
}

func TestCloudTransfer(t *testing.T) {
	m := NewMetrics()
	m.RecordCloudTransfer("upload", "success", 2048)
	m.RecordCloudTransfer("upload", "error", 0)

	out := scrape(t, m)
	assert.Contains(t, out, `filedeck_cloud_transfer_bytes_total{direction="upload"} 2048`)
	assert.Contains(t, out, `filedeck_cloud_transfers_total{direction="upload",status="error"} 1`)
}
