// Package metrics provides Prometheus metrics for the matchpulse live service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the matchpulse service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Scheduler Metrics - Progression of live matches
	ticksTotal       prometheus.Counter
	tickDuration     prometheus.Histogram
	goalsTotal       *prometheus.CounterVec
	matchesStarted   prometheus.Counter
	matchesCompleted prometheus.Counter
	liveMatches      prometheus.Gauge
	registryEntries  prometheus.Gauge

	// Distribution Metrics - Event fan-out to subscribers
	eventsPublished    *prometheus.CounterVec
	eventsDelivered    prometheus.Counter
	deliveryErrors     prometheus.Counter
	broadcastQueueSize prometheus.Gauge
	broadcastDropped   prometheus.Counter
	sessionCount       prometheus.Gauge
	topicCount         prometheus.Gauge

	// Store Metrics - Match store health
	storeErrors       prometheus.Counter
	storeOpLatency    prometheus.Histogram
	storeMatchesTotal prometheus.Gauge

	// Feed Metrics - External authoritative feed
	feedFetches   prometheus.Counter
	feedThrottled prometheus.Counter
	feedErrors    prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Enhanced Error Metrics - Detailed error tracking
	errorRateByComponent *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "matchpulse",
		subsystem:        "live",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Scheduler metrics
	m.ticksTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ticks_total",
		Help:      "Total number of scheduler ticks executed",
	})

	m.tickDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tick_duration_milliseconds",
		Help:      "Histogram of full-tick durations in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.goalsTotal = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "goals_total",
			Help:      "Total number of simulated goals by side",
		},
		[]string{"side"},
	)

	m.matchesStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_started_total",
		Help:      "Total number of matches that entered LIVE status",
	})

	m.matchesCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_completed_total",
		Help:      "Total number of matches driven to COMPLETED status",
	})

	m.liveMatches = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "live_matches",
		Help:      "Current number of matches in LIVE status",
	})

	m.registryEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "registry_entries",
		Help:      "Current number of progression entries tracked by the scheduler",
	})

	// Distribution metrics
	m.eventsPublished = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_published_total",
			Help:      "Total number of domain events published by kind",
		},
		[]string{"kind"},
	)

	m.eventsDelivered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_delivered_total",
		Help:      "Total number of per-session event deliveries",
	})

	m.deliveryErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "delivery_errors_total",
		Help:      "Total number of failed per-session deliveries",
	})

	m.broadcastQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "broadcast_queue_size",
		Help:      "Current size of the broadcast event queue (backlog indicator)",
	})

	m.broadcastDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "broadcast_dropped_total",
		Help:      "Total number of events dropped because the broadcast queue was full",
	})

	m.sessionCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions",
		Help:      "Current number of connected subscriber sessions",
	})

	m.topicCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "topics",
		Help:      "Current number of topics with at least one subscriber",
	})

	// Store metrics
	m.storeErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_errors_total",
		Help:      "Total number of match store operation failures",
	})

	m.storeOpLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_op_latency_milliseconds",
		Help:      "Histogram of match store operation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeMatchesTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_matches",
		Help:      "Total number of matches currently held by the store",
	})

	// Feed metrics
	m.feedFetches = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "feed_fetches_total",
		Help:      "Total number of external feed fetches attempted",
	})

	m.feedThrottled = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "feed_throttled_total",
		Help:      "Total number of feed fetches suppressed by the rate limit",
	})

	m.feedErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "feed_errors_total",
		Help:      "Total number of external feed failures",
	})

	// HTTP metrics
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

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

	// Error metrics
	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component and type",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_bytes",
		Help:      "Current heap allocation in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutines",
		Help:      "Current number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_milliseconds",
		Help:      "Histogram of average GC pause times in milliseconds",
		Buckets:   m.histogramBuckets,
	})
}

// Package-level helpers recording onto the global manager.

// RecordTick records one completed scheduler tick and its duration.
func RecordTick(durationMs float64) {
	globalManager.ticksTotal.Inc()
	globalManager.tickDuration.Observe(durationMs)
}

// RecordGoal records a simulated goal for "home" or "away".
func RecordGoal(side string) {
	globalManager.goalsTotal.WithLabelValues(side).Inc()
}

// RecordMatchStarted records a SCHEDULED to LIVE transition.
func RecordMatchStarted() {
	globalManager.matchesStarted.Inc()
}

// RecordMatchCompleted records a LIVE to COMPLETED transition.
func RecordMatchCompleted() {
	globalManager.matchesCompleted.Inc()
}

// UpdateLiveMatches sets the current LIVE match gauge.
func UpdateLiveMatches(count int) {
	globalManager.liveMatches.Set(float64(count))
}

// UpdateRegistryEntries sets the progression registry size gauge.
func UpdateRegistryEntries(count int) {
	globalManager.registryEntries.Set(float64(count))
}

// RecordEventPublished records a published domain event by kind.
func RecordEventPublished(kind string) {
	globalManager.eventsPublished.WithLabelValues(kind).Inc()
}

// RecordEventDelivered records one successful per-session delivery.
func RecordEventDelivered() {
	globalManager.eventsDelivered.Inc()
}

// RecordDeliveryError records one failed per-session delivery.
func RecordDeliveryError() {
	globalManager.deliveryErrors.Inc()
}

// UpdateBroadcastQueueSize sets the broadcast queue backlog gauge.
func UpdateBroadcastQueueSize(size int) {
	globalManager.broadcastQueueSize.Set(float64(size))
}

// RecordBroadcastDropped records an event dropped on a full queue.
func RecordBroadcastDropped() {
	globalManager.broadcastDropped.Inc()
}

// UpdateSessionCount sets the connected session gauge.
func UpdateSessionCount(count int) {
	globalManager.sessionCount.Set(float64(count))
}

// UpdateTopicCount sets the populated topic gauge.
func UpdateTopicCount(count int) {
	globalManager.topicCount.Set(float64(count))
}

// RecordStoreError records a match store operation failure.
func RecordStoreError() {
	globalManager.storeErrors.Inc()
}

// RecordStoreOpLatency records a match store operation latency.
func RecordStoreOpLatency(latencyMs float64) {
	globalManager.storeOpLatency.Observe(latencyMs)
}

// UpdateStoreMatches sets the total stored match gauge.
func UpdateStoreMatches(count int) {
	globalManager.storeMatchesTotal.Set(float64(count))
}

// RecordFeedFetch records an external feed fetch attempt.
func RecordFeedFetch() {
	globalManager.feedFetches.Inc()
}

// RecordFeedThrottled records a feed call suppressed by rate limiting.
func RecordFeedThrottled() {
	globalManager.feedThrottled.Inc()
}

// RecordFeedError records an external feed failure.
func RecordFeedError() {
	globalManager.feedErrors.Inc()
}

// RecordHTTPRequest records an HTTP request by endpoint, method, status.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error by component and type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap allocation gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records an average GC pause observation.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by the service.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
