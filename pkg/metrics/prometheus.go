// Package metrics provides Prometheus metrics for the tally judging service.
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
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Judging
	scoreWrites        prometheus.Counter
	scoreRejections    *prometheus.CounterVec
	submissionsSealed  prometheus.Counter
	duplicateBatches   prometheus.Counter
	clockOperations    *prometheus.CounterVec
	leaderboardReads   prometheus.Counter
	leaderboardLatency prometheus.Histogram

	// Ceremony
	ceremoniesStarted prometheus.Counter
	reveals           prometheus.Counter

	// Notifications
	notificationsPublished *prometheus.CounterVec
	notificationsDropped   prometheus.Counter
	notificationsFailed    *prometheus.CounterVec
	websocketClients       prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimited         prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
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
		namespace:        "tally",
		subsystem:        "judging",
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() {
	m.scoreWrites = m.counter("score_writes_total", "Score batches written")
	m.scoreRejections = m.counterVec("score_rejections_total", "Score batches rejected before write", "reason")
	m.submissionsSealed = m.counter("submissions_sealed_total", "Team/stage submissions sealed on quorum")
	m.duplicateBatches = m.counter("duplicate_batches_total", "Replayed score batches answered without writing")
	m.clockOperations = m.counterVec("clock_operations_total", "Stage clock operations", "op", "result")
	m.leaderboardReads = m.counter("leaderboard_reads_total", "Leaderboard computations")
	m.leaderboardLatency = m.histogram("leaderboard_build_latency_milliseconds", "Leaderboard computation latency in milliseconds", m.histogramBuckets)

	m.ceremoniesStarted = m.counter("ceremonies_started_total", "Reveal ceremonies started")
	m.reveals = m.counter("reveals_total", "Winners revealed")

	m.notificationsPublished = m.counterVec("notifications_published_total", "Notifications delivered per sink", "sink")
	m.notificationsDropped = m.counter("notifications_dropped_total", "Notifications dropped because the queue was full")
	m.notificationsFailed = m.counterVec("notifications_failed_total", "Notification deliveries that failed per sink", "sink")
	m.websocketClients = m.gauge("websocket_clients", "Connected websocket subscribers")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.rateLimited = m.counter("rate_limited_total", "Requests rejected by the rate limiter")

	m.queueSize = m.gauge("queue_size", "Current notification queue backlog")
	m.queueCapacity = m.gauge("queue_capacity", "Notification queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (size / capacity)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Notifications enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Notifications dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Enqueue attempts that failed")

	m.workerCount = m.gauge("worker_count", "Running notification workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Notification delivery latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Worker delivery errors")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordScoreWrite counts a written score batch.
func RecordScoreWrite() { globalManager.scoreWrites.Inc() }

// RecordScoreRejection counts a rejected score batch by reason.
func RecordScoreRejection(reason string) { globalManager.scoreRejections.WithLabelValues(reason).Inc() }

// RecordSubmissionSealed counts a sealed submission.
func RecordSubmissionSealed() { globalManager.submissionsSealed.Inc() }

// RecordDuplicateBatch counts a replayed batch.
func RecordDuplicateBatch() { globalManager.duplicateBatches.Inc() }

// RecordClockOperation counts a stage clock operation and its result.
func RecordClockOperation(op, result string) {
	globalManager.clockOperations.WithLabelValues(op, result).Inc()
}

// RecordLeaderboardRead records one leaderboard computation.
func RecordLeaderboardRead(latencyMs float64) {
	globalManager.leaderboardReads.Inc()
	globalManager.leaderboardLatency.Observe(latencyMs)
}

// RecordCeremonyStarted counts a started ceremony.
func RecordCeremonyStarted() { globalManager.ceremoniesStarted.Inc() }

// RecordReveal counts a revealed winner.
func RecordReveal() { globalManager.reveals.Inc() }

// RecordNotificationPublished counts a delivered notification.
func RecordNotificationPublished(sink string) {
	globalManager.notificationsPublished.WithLabelValues(sink).Inc()
}

// RecordNotificationDropped counts a notification dropped on a full queue.
func RecordNotificationDropped() { globalManager.notificationsDropped.Inc() }

// RecordNotificationFailed counts a failed delivery.
func RecordNotificationFailed(sink string) {
	globalManager.notificationsFailed.WithLabelValues(sink).Inc()
}

// UpdateWebsocketClients sets the connected subscriber count.
func UpdateWebsocketClients(count int) { globalManager.websocketClients.Set(float64(count)) }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRateLimited counts a request rejected by the limiter.
func RecordRateLimited() { globalManager.rateLimited.Inc() }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueueRate.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeueRate.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
