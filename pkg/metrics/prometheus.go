// Package metrics provides Prometheus metrics for the COREP reporting service.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the reporting service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Pipeline metrics
	reportsAssembled   *prometheus.CounterVec
	derivationFailures prometheus.Counter
	unmappedRows       prometheus.Counter
	validationResults  *prometheus.CounterVec
	auditEntries       prometheus.Counter
	unresolvedSources  prometheus.Counter
	pipelineLatency    prometheus.Histogram

	// Collaborator metrics
	retrievalLatency    prometheus.Histogram
	retrievedDocuments  prometheus.Histogram
	extractionLatency   prometheus.Histogram
	extractedFields     prometheus.Histogram
	retrievalCacheHits  prometheus.Counter
	retrievalCacheMiss  prometheus.Counter
	corpusPassages      prometheus.Gauge
	storedReports       prometheus.Gauge
	rateLimitedRequests prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
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
		namespace:        "corep",
		subsystem:        "reporting",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	countBuckets := []float64{0, 1, 2, 5, 10, 20, 50}

	m.reportsAssembled = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("reports_assembled_total"),
			Help:        "Total number of reports assembled by template type and blocking status",
			ConstLabels: m.customLabels,
		},
		[]string{"template_type", "blocking"},
	)
	m.derivationFailures = m.counter("derivation_failures_total", "Total number of rejected derivations")
	m.unmappedRows = m.counter("unmapped_rows_total", "Total number of extracted fields naming rows outside the template")

	m.validationResults = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("validation_results_total"),
			Help:        "Validation rule outcomes by rule, severity and outcome",
			ConstLabels: m.customLabels,
		},
		[]string{"rule_id", "severity", "outcome"},
	)

	m.auditEntries = m.counter("audit_entries_total", "Total number of field audit entries built")
	m.unresolvedSources = m.counter("audit_unresolved_sources_total", "Total number of citations that matched no retrieved source")
	m.pipelineLatency = m.histogram("pipeline_latency_milliseconds", "End-to-end report assembly latency in milliseconds", m.histogramBuckets)

	m.retrievalLatency = m.histogram("retrieval_latency_milliseconds", "Regulatory text retrieval latency in milliseconds", m.histogramBuckets)
	m.retrievedDocuments = m.histogram("retrieved_documents", "Number of documents returned per retrieval", countBuckets)
	m.extractionLatency = m.histogram("extraction_latency_milliseconds", "Field extraction latency in milliseconds", m.histogramBuckets)
	m.extractedFields = m.histogram("extracted_fields", "Number of fields returned per extraction", countBuckets)
	m.retrievalCacheHits = m.counter("retrieval_cache_hits_total", "Total number of retrieval cache hits")
	m.retrievalCacheMiss = m.counter("retrieval_cache_misses_total", "Total number of retrieval cache misses")
	m.corpusPassages = m.gauge("corpus_passages", "Number of regulatory passages indexed")
	m.storedReports = m.gauge("stored_reports", "Number of reports held in the report history")
	m.rateLimitedRequests = m.counter("rate_limited_requests_total", "Total number of requests rejected by the rate limiter")

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_requests_total"),
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: m.customLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_request_duration_milliseconds"),
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: m.customLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("errors_by_component_total"),
			Help:        "Total number of errors by component",
			ConstLabels: m.customLabels,
		},
		[]string{"component", "error_type"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("errors_by_endpoint_total"),
			Help:        "Total number of errors by endpoint",
			ConstLabels: m.customLabels,
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// Enabled reports whether recording is enabled.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// RefreshInterval is how often gauges are expected to be refreshed.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

// GaugeRefreshInterval is the refresh interval of the global manager.
func GaugeRefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

func on() bool {
	return globalManager.enabled
}

// Pipeline Metrics Functions.

// RecordReportAssembled counts an assembled report.
func RecordReportAssembled(templateType string, blocking bool) {
	if !on() {
		return
	}
	b := "false"
	if blocking {
		b = "true"
	}
	globalManager.reportsAssembled.WithLabelValues(templateType, b).Inc()
}

// RecordDerivationFailure counts a rejected derivation.
func RecordDerivationFailure() {
	if on() {
		globalManager.derivationFailures.Inc()
	}
}

// RecordUnmappedRows adds n ignored rows.
func RecordUnmappedRows(n int) {
	if on() && n > 0 {
		globalManager.unmappedRows.Add(float64(n))
	}
}

// RecordValidationResult counts one rule outcome.
func RecordValidationResult(ruleID, severity string, passed bool) {
	if !on() {
		return
	}
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	globalManager.validationResults.WithLabelValues(ruleID, severity, outcome).Inc()
}

// RecordAuditEntries adds built field entries and unresolved citations.
func RecordAuditEntries(entries, unresolved int) {
	if !on() {
		return
	}
	globalManager.auditEntries.Add(float64(entries))
	globalManager.unresolvedSources.Add(float64(unresolved))
}

// RecordPipelineLatency records report assembly latency in milliseconds.
func RecordPipelineLatency(latencyMs float64) {
	if on() {
		globalManager.pipelineLatency.Observe(latencyMs)
	}
}

// Collaborator Metrics Functions.

// RecordRetrieval records a retrieval's latency and result size.
func RecordRetrieval(latencyMs float64, documents int) {
	if !on() {
		return
	}
	globalManager.retrievalLatency.Observe(latencyMs)
	globalManager.retrievedDocuments.Observe(float64(documents))
}

// RecordExtraction records an extraction's latency and field count.
func RecordExtraction(latencyMs float64, fields int) {
	if !on() {
		return
	}
	globalManager.extractionLatency.Observe(latencyMs)
	globalManager.extractedFields.Observe(float64(fields))
}

// RecordRetrievalCacheHit increments the cache hit counter.
func RecordRetrievalCacheHit() {
	if on() {
		globalManager.retrievalCacheHits.Inc()
	}
}

// RecordRetrievalCacheMiss increments the cache miss counter.
func RecordRetrievalCacheMiss() {
	if on() {
		globalManager.retrievalCacheMiss.Inc()
	}
}

// UpdateCorpusPassages sets the indexed passage count.
func UpdateCorpusPassages(count int) {
	if on() {
		globalManager.corpusPassages.Set(float64(count))
	}
}

// UpdateStoredReports sets the number of reports held in history.
func UpdateStoredReports(count int) {
	if on() {
		globalManager.storedReports.Set(float64(count))
	}
}

// RecordRateLimited increments the rate limited counter.
func RecordRateLimited() {
	if on() {
		globalManager.rateLimitedRequests.Inc()
	}
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if on() {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if on() {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if on() {
		globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if on() {
		globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	if on() {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	if on() {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// SetEnabled toggles recording on the global manager.
func SetEnabled(enabled bool) {
	globalManager.enabled = enabled
}

// Configure rebuilds the global manager from opts on a fresh registry and
// returns that registry. It must run before handlers capture GetRegistry.
func Configure(opts ...Option) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithPrometheusRegistry(registry))...)
	customRegistry = registry
	return registry
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Total sums every sample of the named counter or gauge family in the
// custom registry, across label values.
func Total(name string) (float64, error) {
	families, err := customRegistry.Gather()
	if err != nil {
		return 0, err
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		var sum float64
		for _, mt := range f.GetMetric() {
			switch {
			case mt.GetCounter() != nil:
				sum += mt.GetCounter().GetValue()
			case mt.GetGauge() != nil:
				sum += mt.GetGauge().GetValue()
			}
		}
		return sum, nil
	}
	return 0, fmt.Errorf("metrics.total %q: %w", name, ErrUnknownMetric)
}
