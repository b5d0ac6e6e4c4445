package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "filedeck"

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Service metrics
	ServiceCalls    *prometheus.CounterVec
	ServiceDuration *prometheus.HistogramVec
	ServiceErrors   *prometheus.CounterVec

	// Editor metrics
	EditSessionsActive  prometheus.Gauge
	EditSessionsOpened  prometheus.Counter
	EditSessionsExpired prometheus.Counter
	EditOperations      *prometheus.CounterVec

	// Document metrics
	DocumentBytesRead    prometheus.Counter
	DocumentBytesWritten prometheus.Counter

	// Cloud metrics
	CloudTransfers     *prometheus.CounterVec
	CloudTransferBytes *prometheus.CounterVec
	CloudBreakerState  prometheus.Gauge

	// Auth metrics
	AuthSessionsActive prometheus.Gauge
	AuthAttempts       *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for the JSON health endpoint
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests      int64   `json:"total_requests"`
	TotalErrors        int64   `json:"total_errors"`
	ActiveEditSessions int64   `json:"active_edit_sessions"`
	ActiveConnections  int64   `json:"active_connections"`
	AverageLatencyMs   float64 `json:"average_latency_ms"`
	UptimeSeconds      float64 `json:"uptime_seconds"`

	totalDuration float64
}

// NewMetrics creates a metrics collector with its own registry, so several
// servers (and tests) can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_size_bytes",
				Help:      "HTTP request size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		ServiceCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "service_calls_total",
				Help:      "Total number of service tool calls",
			},
			[]string{"service", "tool", "status"},
		),
		ServiceDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "service_duration_seconds",
				Help:      "Service tool call duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 30},
			},
			[]string{"service", "tool"},
		),
		ServiceErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "service_errors_total",
				Help:      "Total number of service tool errors",
			},
			[]string{"service", "tool", "error_type"},
		),

		EditSessionsActive: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "edit_sessions_active",
				Help:      "Number of open editor sessions",
			},
		),
		EditSessionsOpened: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "edit_sessions_opened_total",
				Help:      "Total number of editor sessions opened",
			},
		),
		EditSessionsExpired: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "edit_sessions_expired_total",
				Help:      "Total number of idle editor sessions closed",
			},
		),
		EditOperations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "edit_operations_total",
				Help:      "Total number of editor operations",
			},
			[]string{"operation"},
		),

		DocumentBytesRead: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "document_read_bytes_total",
				Help:      "Bytes read from granted document roots",
			},
		),
		DocumentBytesWritten: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "document_written_bytes_total",
				Help:      "Bytes written to granted document roots",
			},
		),

		CloudTransfers: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cloud_transfers_total",
				Help:      "Total number of cloud object transfers",
			},
			[]string{"direction", "status"},
		),
		CloudTransferBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cloud_transfer_bytes_total",
				Help:      "Bytes moved to or from cloud storage",
			},
			[]string{"direction"},
		),
		CloudBreakerState: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cloud_breaker_state",
				Help:      "Cloud circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
		),

		AuthSessionsActive: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "auth_sessions_active",
				Help:      "Number of live login sessions",
			},
		),
		AuthAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_attempts_total",
				Help:      "Login attempts by result",
			},
			[]string{"result"},
		),

		WSConnections: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_connections",
				Help:      "Number of active WebSocket connections",
			},
		),
		WSMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_messages_total",
				Help:      "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	f.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Backend uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordServiceCall records a service call
func (m *Metrics) RecordServiceCall(service, tool, status string, duration time.Duration) {
	m.ServiceCalls.WithLabelValues(service, tool, status).Inc()
	m.ServiceDuration.WithLabelValues(service, tool).Observe(duration.Seconds())
}

// RecordServiceError records a service error
func (m *Metrics) RecordServiceError(service, tool, errorType string) {
	m.ServiceErrors.WithLabelValues(service, tool, errorType).Inc()
}

// RecordEditOperation counts one editor operation
func (m *Metrics) RecordEditOperation(op string) {
	m.EditOperations.WithLabelValues(op).Inc()
}

// SetEditSessionsActive sets the number of open editor sessions
func (m *Metrics) SetEditSessionsActive(count int) {
	m.EditSessionsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveEditSessions = int64(count)
	m.mu.Unlock()
}

// IncEditSessionsOpened increments the opened sessions counter
func (m *Metrics) IncEditSessionsOpened() {
	m.EditSessionsOpened.Inc()
}

// AddEditSessionsExpired adds to the expired sessions counter
func (m *Metrics) AddEditSessionsExpired(n int) {
	m.EditSessionsExpired.Add(float64(n))
}

// RecordDocumentRead adds bytes read from a document root
func (m *Metrics) RecordDocumentRead(n int64) {
	m.DocumentBytesRead.Add(float64(n))
}

// RecordDocumentWrite adds bytes written to a document root
func (m *Metrics) RecordDocumentWrite(n int64) {
	m.DocumentBytesWritten.Add(float64(n))
}

// RecordCloudTransfer records one object transfer
func (m *Metrics) RecordCloudTransfer(direction, status string, bytes int64) {
	m.CloudTransfers.WithLabelValues(direction, status).Inc()
	if bytes > 0 {
		m.CloudTransferBytes.WithLabelValues(direction).Add(float64(bytes))
	}
}

// SetCloudBreakerState records the breaker state as a number
func (m *Metrics) SetCloudBreakerState(state int) {
	m.CloudBreakerState.Set(float64(state))
}

// SetAuthSessionsActive sets the number of live login sessions
func (m *Metrics) SetAuthSessionsActive(count int) {
	m.AuthSessionsActive.Set(float64(count))
}

// RecordAuthAttempt counts a login attempt
func (m *Metrics) RecordAuthAttempt(result string) {
	m.AuthAttempts.WithLabelValues(result).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns current values for the JSON health endpoint
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	if s.TotalRequests > 0 {
		s.AverageLatencyMs = s.totalDuration / float64(s.TotalRequests) * 1000
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
