// Package metrics provides Prometheus metrics for the tierboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ingestion
	checkinsRecorded  prometheus.Counter
	checkinsDuplicate prometheus.Counter
	checkinsRejected  *prometheus.CounterVec
	dedupeSize        prometheus.Gauge

	// Scoring
	scoreLatency   prometheus.Histogram
	heatMapLatency prometheus.Histogram

	// Inbound message queue
	queueDepth        prometheus.Gauge
	queueRejected     *prometheus.CounterVec
	messagesProcessed *prometheus.CounterVec
	workerLatency     prometheus.Histogram

	// Weekly jobs
	greenDecisions   *prometheus.CounterVec
	mulligansGranted prometheus.Counter
	jobRuns          *prometheus.CounterVec
	jobErrors        *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tierboard",
		subsystem:        "challenge",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.checkinsRecorded = m.counter("checkins_recorded_total", "Check-ins stored")
	m.checkinsDuplicate = m.counter("checkins_duplicate_total", "Check-ins dropped as replays")
	m.checkinsRejected = m.counterVec("checkins_rejected_total", "Check-ins refused before storage", "reason")
	m.dedupeSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dedupe_entries",
		Help:      "Keys held by the idempotency cache",
	})

	m.scoreLatency = m.histogram("score_latency_milliseconds", "Cumulative score computation latency in milliseconds")
	m.heatMapLatency = m.histogram("heatmap_latency_milliseconds", "Week heat map computation latency in milliseconds")

	m.queueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_depth",
		Help:      "Inbound messages waiting for a worker",
	})
	m.queueRejected = m.counterVec("queue_rejected_total", "Inbound messages refused by the queue", "reason")
	m.messagesProcessed = m.counterVec("messages_processed_total", "Inbound messages handled by workers", "outcome")
	m.workerLatency = m.histogram("worker_latency_milliseconds", "Inbound message processing latency in milliseconds")

	m.greenDecisions = m.counterVec("green_decisions_total", "Green week decisions by outcome", "outcome")
	m.mulligansGranted = m.counter("mulligans_granted_total", "Mulligan check-ins inserted")
	m.jobRuns = m.counterVec("job_runs_total", "Scheduled job runs", "job")
	m.jobErrors = m.counterVec("job_errors_total", "Scheduled job failures", "job")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")
}

// RecordCheckin counts a stored check-in.
func RecordCheckin() {
	globalManager.checkinsRecorded.Inc()
}

// RecordCheckinDuplicate counts a replayed check-in.
func RecordCheckinDuplicate() {
	globalManager.checkinsDuplicate.Inc()
}

// RecordCheckinRejected counts a check-in refused for reason.
func RecordCheckinRejected(reason string) {
	globalManager.checkinsRejected.WithLabelValues(reason).Inc()
}

// UpdateDedupeSize sets the idempotency cache size.
func UpdateDedupeSize(n int64) {
	globalManager.dedupeSize.Set(float64(n))
}

// RecordScoreLatency records cumulative score latency in milliseconds.
func RecordScoreLatency(latencyMs float64) {
	globalManager.scoreLatency.Observe(latencyMs)
}

// RecordHeatMapLatency records heat map latency in milliseconds.
func RecordHeatMapLatency(latencyMs float64) {
	globalManager.heatMapLatency.Observe(latencyMs)
}

// UpdateQueueDepth sets the number of queued inbound messages.
func UpdateQueueDepth(n int) {
	globalManager.queueDepth.Set(float64(n))
}

// RecordQueueRejected counts an inbound message the queue refused.
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// RecordMessageProcessed counts a handled inbound message by outcome.
func RecordMessageProcessed(outcome string) {
	globalManager.messagesProcessed.WithLabelValues(outcome).Inc()
}

// RecordWorkerLatency records inbound message processing latency in milliseconds.
func RecordWorkerLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordGreenDecision counts a green decision.
func RecordGreenDecision(green bool) {
	outcome := "not_green"
	if green {
		outcome = "green"
	}
	globalManager.greenDecisions.WithLabelValues(outcome).Inc()
}

// RecordMulliganGranted counts an inserted mulligan.
func RecordMulliganGranted() {
	globalManager.mulligansGranted.Inc()
}

// RecordJobRun counts a scheduled job run.
func RecordJobRun(job string) {
	globalManager.jobRuns.WithLabelValues(job).Inc()
}

// RecordJobError counts a failed scheduled job run.
func RecordJobError(job string) {
	globalManager.jobErrors.WithLabelValues(job).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent counts an error raised by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
