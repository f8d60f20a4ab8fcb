// Package metrics provides Prometheus metrics for the tenure analysis service.
package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the tenure service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Analysis Metrics
	analysesTotal        *prometheus.CounterVec
	analysisLatency      prometheus.Histogram
	observationsTotal    prometheus.Counter
	comparablePairsTotal prometheus.Counter
	lastConcordance      prometheus.Gauge
	strataCurves         prometheus.Counter

	// Queue Metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker Metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository Metrics
	repositoryLatency *prometheus.HistogramVec
	repositoryErrors  *prometheus.CounterVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tenure",
		subsystem:        "analysis",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)

	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		})
	}
	histogram := func(name, help string) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
			Buckets: m.histogramBuckets,
		})
	}

	// Analysis Metrics
	m.analysesTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "analyses_total",
		Help:      "Total number of analyses by terminal status",
	}, []string{"status"})
	m.analysisLatency = histogram("analysis_latency_milliseconds", "Histogram of end-to-end analysis latency in milliseconds")
	m.observationsTotal = counter("observations_total", "Total number of observations analysed")
	m.comparablePairsTotal = counter("comparable_pairs_total", "Total number of comparable pairs scored by the concordance index")
	m.lastConcordance = gauge("last_concordance_index", "Concordance index of the most recent analysis with a defined index")
	m.strataCurves = counter("strata_curves_total", "Total number of per-stratum survival curves estimated")

	// Queue Metrics
	m.queueSize = gauge("queue_size", "Current number of analyses waiting in the queue")
	m.queueCapacity = gauge("queue_capacity", "Maximum number of analyses the queue can hold")
	m.queueEnqueueRate = counter("queue_enqueue_total", "Total number of analyses enqueued")
	m.queueDequeueRate = counter("queue_dequeue_total", "Total number of analyses dequeued")
	m.queueEnqueueErrors = counter("queue_enqueue_errors_total", "Total number of rejected enqueue attempts")

	// Worker Metrics
	m.workerCount = gauge("worker_count", "Configured number of analysis workers")
	m.workerActiveCount = gauge("worker_active_count", "Number of workers currently running an analysis")
	m.workerProcessingLatency = histogram("worker_processing_latency_milliseconds", "Histogram of worker processing latency in milliseconds")
	m.workerErrorRate = counter("worker_errors_total", "Total number of failed analyses seen by workers")

	// HTTP Performance Metrics
	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	// Repository Metrics
	m.repositoryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "repository_latency_milliseconds",
		Help:      "Repository operation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"operation"})
	m.repositoryErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "repository_errors_total",
		Help:      "Total number of failed repository operations",
	}, []string{"operation"})

	// Error Metrics
	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_component_total",
		Help:      "Total number of errors by component and type",
	}, []string{"component", "error_type"})

	// System Performance Metrics
	m.systemMemoryUsage = gauge("system_memory_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = gauge("system_goroutines", "Number of goroutines")
}

// RecordAnalysis records one finished analysis.
func (m *Manager) RecordAnalysis(status string, latencyMs float64, observations int, comparable int64) {
	if !m.enabled {
		return
	}
	m.analysesTotal.WithLabelValues(status).Inc()
	m.analysisLatency.Observe(latencyMs)
	m.observationsTotal.Add(float64(observations))
	m.comparablePairsTotal.Add(float64(comparable))
}

// SetConcordance sets the most recent defined concordance index.
func (m *Manager) SetConcordance(v float64) {
	if m.enabled {
		m.lastConcordance.Set(v)
	}
}

// AddStrataCurves counts estimated per-stratum curves.
func (m *Manager) AddStrataCurves(n int) {
	if m.enabled {
		m.strataCurves.Add(float64(n))
	}
}

// UpdateQueue sets the queue size and capacity gauges.
func (m *Manager) UpdateQueue(size, capacity int) {
	if !m.enabled {
		return
	}
	m.queueSize.Set(float64(size))
	m.queueCapacity.Set(float64(capacity))
}

// RecordEnqueue counts an enqueue attempt.
func (m *Manager) RecordEnqueue(ok bool) {
	if !m.enabled {
		return
	}
	if ok {
		m.queueEnqueueRate.Inc()
		return
	}
	m.queueEnqueueErrors.Inc()
}

// RecordDequeue counts a dequeued task.
func (m *Manager) RecordDequeue() {
	if m.enabled {
		m.queueDequeueRate.Inc()
	}
}

// UpdateWorkers sets the configured and active worker gauges.
func (m *Manager) UpdateWorkers(count, active int) {
	if !m.enabled {
		return
	}
	m.workerCount.Set(float64(count))
	m.workerActiveCount.Set(float64(active))
}

// RecordWorkerTask records one processed task.
func (m *Manager) RecordWorkerTask(latencyMs float64, failed bool) {
	if !m.enabled {
		return
	}
	m.workerProcessingLatency.Observe(latencyMs)
	if failed {
		m.workerErrorRate.Inc()
	}
}

// RecordHTTPRequest records an HTTP request and its duration.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordRepository records a repository operation.
func (m *Manager) RecordRepository(operation string, latencyMs float64, err error) {
	if !m.enabled {
		return
	}
	m.repositoryLatency.WithLabelValues(operation).Observe(latencyMs)
	if err != nil {
		m.repositoryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordError records an error with component and type labels.
func (m *Manager) RecordError(component, errorType string) {
	if m.enabled {
		m.errorRateByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// RefreshSystem samples memory and goroutine gauges once.
func (m *Manager) RefreshSystem() {
	if !m.enabled {
		return
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.systemMemoryUsage.Set(float64(ms.HeapInuse))
	m.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
}

// RunSystemCollector refreshes the system gauges every refresh interval until
// ctx is done.
func (m *Manager) RunSystemCollector(ctx context.Context) {
	ticker := time.NewTicker(m.refreshInterval)
	defer ticker.Stop()
	m.RefreshSystem()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RefreshSystem()
		}
	}
}

// Package-level helpers forward to the global manager.

// RecordAnalysis records one finished analysis.
func RecordAnalysis(status string, latencyMs float64, observations int, comparable int64) {
	globalManager.RecordAnalysis(status, latencyMs, observations, comparable)
}

// SetConcordance sets the most recent defined concordance index.
func SetConcordance(v float64) { globalManager.SetConcordance(v) }

// AddStrataCurves counts estimated per-stratum curves.
func AddStrataCurves(n int) { globalManager.AddStrataCurves(n) }

// UpdateQueue sets the queue size and capacity gauges.
func UpdateQueue(size, capacity int) { globalManager.UpdateQueue(size, capacity) }

// RecordEnqueue counts an enqueue attempt.
func RecordEnqueue(ok bool) { globalManager.RecordEnqueue(ok) }

// RecordDequeue counts a dequeued task.
func RecordDequeue() { globalManager.RecordDequeue() }

// UpdateWorkers sets the configured and active worker gauges.
func UpdateWorkers(count, active int) { globalManager.UpdateWorkers(count, active) }

// RecordWorkerTask records one processed task.
func RecordWorkerTask(latencyMs float64, failed bool) { globalManager.RecordWorkerTask(latencyMs, failed) }

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

// RecordRepository records a repository operation.
func RecordRepository(operation string, latencyMs float64, err error) {
	globalManager.RecordRepository(operation, latencyMs, err)
}

// RecordError records an error with component and type labels.
func RecordError(component, errorType string) { globalManager.RecordError(component, errorType) }

// RunSystemCollector refreshes the global system gauges until ctx is done.
func RunSystemCollector(ctx context.Context) { globalManager.RunSystemCollector(ctx) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
