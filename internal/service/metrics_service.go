package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Export outcomes recorded by RecordExport.
const (
	ExportOutcomeSuccess = "success"
	ExportOutcomeFailed  = "failed"
)

// MetricsSnapshot is a compact view of counters served on /health.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	RemoteFetches            uint64    `json:"remoteFetches"`
	RemoteFetchErrors        uint64    `json:"remoteFetchErrors"`
	ExportsSucceeded         uint64    `json:"exportsSucceeded"`
	ExportsFailed            uint64    `json:"exportsFailed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	remoteDuration  *prometheus.HistogramVec
	exportsTotal    *prometheus.CounterVec
	exportDuration  prometheus.Histogram
	exportEntries   prometheus.Histogram
	commandsTotal   *prometheus.CounterVec
	sessionOps      *prometheus.CounterVec
	deliveries      *prometheus.CounterVec

	requestCount         uint64
	requestDurationTotal uint64
	remoteCount          uint64
	remoteErrorCount     uint64
	exportOKCount        uint64
	exportFailCount      uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	remoteDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "course_api_request_duration_seconds",
		Help:    "Latency of course API calls by endpoint and outcome",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "outcome"})

	exportsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "batch_exports_total",
		Help: "Batch exports by format and outcome",
	}, []string{"format", "outcome"})

	exportDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "batch_export_duration_seconds",
		Help:    "End-to-end duration of batch exports",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	exportEntries := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "batch_export_entries",
		Help:    "Resolved video entries per successful export",
		Buckets: prometheus.ExponentialBuckets(1, 4, 7),
	})

	commandsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_commands_total",
		Help: "Inbound chat messages by routed command",
	}, []string{"command"})

	sessionOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_store_operations_total",
		Help: "Session store operations by kind and result",
	}, []string{"op", "result"})

	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "export_deliveries_total",
		Help: "Report files served and cleaned up",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, remoteDuration, exportsTotal, exportDuration, exportEntries, commandsTotal, sessionOps, deliveries, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		remoteDuration:  remoteDuration,
		exportsTotal:    exportsTotal,
		exportDuration:  exportDuration,
		exportEntries:   exportEntries,
		commandsTotal:   commandsTotal,
		sessionOps:      sessionOps,
		deliveries:      deliveries,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveRemoteFetch satisfies courseapi.Observer.
func (m *MetricsService) ObserveRemoteFetch(endpoint, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.remoteDuration.WithLabelValues(endpoint, outcome).Observe(duration.Seconds())
	atomic.AddUint64(&m.remoteCount, 1)
	if outcome == "error" {
		atomic.AddUint64(&m.remoteErrorCount, 1)
	}
}

// RecordExport tracks one export attempt. entries is ignored for failures.
func (m *MetricsService) RecordExport(format, outcome string, entries int, duration time.Duration) {
	if m == nil {
		return
	}
	m.exportsTotal.WithLabelValues(format, outcome).Inc()
	m.exportDuration.Observe(duration.Seconds())
	if outcome == ExportOutcomeSuccess {
		m.exportEntries.Observe(float64(entries))
		atomic.AddUint64(&m.exportOKCount, 1)
		return
	}
	atomic.AddUint64(&m.exportFailCount, 1)
}

// RecordCommand counts a routed chat message.
func (m *MetricsService) RecordCommand(command string) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(command).Inc()
}

// RecordSessionOp counts session store reads and writes.
func (m *MetricsService) RecordSessionOp(op, result string) {
	if m == nil {
		return
	}
	m.sessionOps.WithLabelValues(op, result).Inc()
}

// RecordDelivery counts served or cleaned up report files.
func (m *MetricsService) RecordDelivery(outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(outcome).Inc()
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		RemoteFetches:            atomic.LoadUint64(&m.remoteCount),
		RemoteFetchErrors:        atomic.LoadUint64(&m.remoteErrorCount),
		ExportsSucceeded:         atomic.LoadUint64(&m.exportOKCount),
		ExportsFailed:            atomic.LoadUint64(&m.exportFailCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
