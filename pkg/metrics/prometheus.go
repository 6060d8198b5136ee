// Package metrics provides Prometheus metrics for the goal progress engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns the engine's Prometheus collectors.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Engine
	advancements     *prometheus.CounterVec
	evaluations      *prometheus.CounterVec
	evaluationErrors prometheus.Counter
	computedTotals   prometheus.Counter
	summaryLatency   prometheus.Histogram
	unitsTracked     prometheus.Gauge
	ladderWarnings   *prometheus.CounterVec
	ingested         *prometheus.CounterVec

	// Repository
	repositoryLatency *prometheus.HistogramVec
	repositoryErrors  *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorRateByComponent *prometheus.CounterVec
}

//nolint:gochecknoglobals // singleton manager and its registry
var (
	mu             sync.RWMutex
	customRegistry = prometheus.NewRegistry()
	globalManager  = NewManager(WithPrometheusRegistry(customRegistry))
)

// Init replaces the global manager with one built from opts on a fresh registry.
// It is meant to be called once at startup, before any metric is recorded.
func Init(opts ...Option) *Manager {
	reg := prometheus.NewRegistry()
	m := NewManager(append([]Option{WithPrometheusRegistry(reg)}, opts...)...)

	mu.Lock()
	customRegistry, globalManager = reg, m
	mu.Unlock()
	return m
}

func get() *Manager {
	mu.RLock()
	defer mu.RUnlock()
	return globalManager
}

// NewManager creates a manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "metas",
		subsystem:        "engine",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	auto := promauto.With(m.registry)

	m.advancements = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "advancements_total",
		Help:        "Tier completions by scope (total, unit) and outcome (advanced, retired, not_found, error)",
		ConstLabels: m.constLabels,
	}, []string{"scope", "outcome"})

	m.evaluations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "evaluations_total",
		Help:        "Metric progress evaluations by metric",
		ConstLabels: m.constLabels,
	}, []string{"metric"})

	m.evaluationErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "evaluation_errors_total",
		Help:        "Evaluations rejected because of invalid input",
		ConstLabels: m.constLabels,
	})

	m.computedTotals = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "computed_totals_total",
		Help:        "Summaries where the Total record was synthesized from unit records",
		ConstLabels: m.constLabels,
	})

	m.summaryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "summary_latency_milliseconds",
		Help:        "Time to build a period progress summary in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.unitsTracked = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "units_tracked",
		Help:        "Units present in the last progress summary",
		ConstLabels: m.constLabels,
	})

	m.ladderWarnings = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "ladder_warnings_total",
		Help:        "Tier writes that left a ladder non-monotonic, by target field",
		ConstLabels: m.constLabels,
	}, []string{"field"})

	m.ingested = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "ingested_total",
		Help:        "Administrative writes by kind (tier, record)",
		ConstLabels: m.constLabels,
	}, []string{"kind"})

	m.repositoryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "repository",
		Name:        "operation_latency_milliseconds",
		Help:        "Repository operation latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"backend", "operation"})

	m.repositoryErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "repository",
		Name:        "errors_total",
		Help:        "Repository errors by backend and operation",
		ConstLabels: m.constLabels,
	}, []string{"backend", "operation"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "requests_total",
		Help:        "HTTP requests by route, method and status code",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "request_duration_seconds",
		Help:        "HTTP request duration in seconds",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_component_total",
		Help:        "Errors by component and kind",
		ConstLabels: m.constLabels,
	}, []string{"component", "error_type"})
}

// RecordAdvancement counts a tier completion.
func RecordAdvancement(scope, outcome string) {
	get().advancements.WithLabelValues(scope, outcome).Inc()
}

// RecordEvaluation counts one metric evaluation.
func RecordEvaluation(metric string) {
	get().evaluations.WithLabelValues(metric).Inc()
}

// RecordEvaluationError counts a rejected evaluation.
func RecordEvaluationError() {
	get().evaluationErrors.Inc()
}

// RecordComputedTotal counts a synthesized Total record.
func RecordComputedTotal() {
	get().computedTotals.Inc()
}

// RecordSummaryLatency records summary build time in milliseconds.
func RecordSummaryLatency(latencyMs float64) {
	get().summaryLatency.Observe(latencyMs)
}

// UpdateUnitsTracked sets the number of units in the last summary.
func UpdateUnitsTracked(count int) {
	get().unitsTracked.Set(float64(count))
}

// RecordLadderWarning counts a non-monotonic target field.
func RecordLadderWarning(field string) {
	get().ladderWarnings.WithLabelValues(field).Inc()
}

// RecordIngested counts an administrative write.
func RecordIngested(kind string) {
	get().ingested.WithLabelValues(kind).Inc()
}

// RecordRepositoryLatency records repository latency in milliseconds.
func RecordRepositoryLatency(backend, operation string, latencyMs float64) {
	get().repositoryLatency.WithLabelValues(backend, operation).Observe(latencyMs)
}

// RecordRepositoryError counts a failed repository call.
func RecordRepositoryError(backend, operation string) {
	get().repositoryErrors.WithLabelValues(backend, operation).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	get().httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in seconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	get().httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	get().errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return customRegistry
}
