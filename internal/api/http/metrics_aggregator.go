package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/filedeck/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/resilience"
)

// Counter reports a live count, such as open edit sessions or stream clients
type Counter interface {
	Count() int
}

// MetricsAggregator collects a JSON view of process metrics and component state
type MetricsAggregator struct {
	metrics   *monitoring.Metrics
	workspace Counter
	stream    Counter
	breaker   *resilience.Breaker // nil when cloud storage is disabled
}

// NewMetricsAggregator creates a metrics aggregator. Any component may be nil.
func NewMetricsAggregator(metrics *monitoring.Metrics, workspace, stream Counter, breaker *resilience.Breaker) *MetricsAggregator {
	return &MetricsAggregator{
		metrics:   metrics,
		workspace: workspace,
		stream:    stream,
		breaker:   breaker,
	}
}

// MetricsSnapshot represents a snapshot of all system metrics
type MetricsSnapshot struct {
	Timestamp time.Time              `json:"timestamp"`
	Backend   map[string]interface{} `json:"backend"`
	Editor    map[string]interface{} `json:"editor"`
	Cloud     map[string]interface{} `json:"cloud"`
	Stream    map[string]interface{} `json:"stream"`
	Summary   MetricsSummary         `json:"summary"`
}

// MetricsSummary provides high-level metrics
type MetricsSummary struct {
	TotalRequests     int64   `json:"total_requests"`
	AverageLatencyMs  float64 `json:"average_latency_ms"`
	ErrorRate         float64 `json:"error_rate"`
	ActiveConnections int64   `json:"active_connections"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// GetAggregatedMetrics returns the JSON metrics snapshot
func (ma *MetricsAggregator) GetAggregatedMetrics(c *gin.Context) {
	snap := ma.metrics.Snapshot()

	c.JSON(http.StatusOK, MetricsSnapshot{
		Timestamp: time.Now().UTC(),
		Backend: map[string]interface{}{
			"status":         "operational",
			"total_requests": snap.TotalRequests,
			"total_errors":   snap.TotalErrors,
			"uptime_seconds": snap.UptimeSeconds,
		},
		Editor: map[string]interface{}{
			"active_sessions": count(ma.workspace),
		},
		Cloud: ma.cloudStatus(),
		Stream: map[string]interface{}{
			"clients": count(ma.stream),
		},
		Summary: summarize(snap),
	})
}

func (ma *MetricsAggregator) cloudStatus() map[string]interface{} {
	if ma.breaker == nil {
		return map[string]interface{}{"enabled": false}
	}
	status := ma.breaker.Snapshot()
	return map[string]interface{}{
		"enabled":              true,
		"breaker":              status.State,
		"consecutive_failures": status.Counts.ConsecutiveFailures,
	}
}

func count(c Counter) int {
	if c == nil {
		return 0
	}
	return c.Count()
}

func summarize(snap monitoring.MetricsSnapshot) MetricsSummary {
	var errorRate float64
	if snap.TotalRequests > 0 {
		errorRate = float64(snap.TotalErrors) / float64(snap.TotalRequests)
	}
	return MetricsSummary{
		TotalRequests:     snap.TotalRequests,
		AverageLatencyMs:  snap.AverageLatencyMs,
		ErrorRate:         errorRate,
		ActiveConnections: snap.ActiveConnections,
		UptimeSeconds:     snap.UptimeSeconds,
	}
}
