// Package metrics provides Prometheus metrics for the grosoq score service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for analyses.
const (
	OutcomeSuccess         = "success"
	OutcomeCached          = "cached"
	OutcomeBusy            = "busy"
	OutcomeNotResultScreen = "not_result_screen"
	OutcomeMalformed       = "malformed"
	OutcomeTransport       = "transport"
	OutcomeError           = "error"
)

// Manager owns every Prometheus collector used by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Analysis pipeline
	analyses       *prometheus.CounterVec
	busyRejections prometheus.Counter
	cacheHits      prometheus.Counter
	ocrLatency     prometheus.Histogram
	playersPerRace prometheus.Histogram

	// Identity resolution
	mappingEntries prometheus.Gauge
	mappingWrites  prometheus.Counter
	selfPlayerSeen prometheus.Counter

	// Score ledger
	ledgerTeams prometheus.Gauge
	ledgerSaves *prometheus.CounterVec
	teamMerges  prometheus.Counter

	// Storage
	storeErrors *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "grosoq",
		subsystem:        "",
		histogramBuckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 20000, 45000},
		constLabels:      prometheus.Labels{},
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
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.analyses = m.counterVec("analyses_total", "Screenshot analyses by outcome", "mode", "outcome")
	m.busyRejections = m.counter("busy_rejections_total", "Analyses rejected because another one was in flight")
	m.cacheHits = m.counter("cache_hits_total", "Race-mode analyses served from the last-result cache")
	m.ocrLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "ocr_latency_milliseconds",
		Help:        "Latency of the vision model call in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})
	m.playersPerRace = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "players_per_result",
		Help:        "Number of player rows extracted per screenshot",
		Buckets:     prometheus.LinearBuckets(1, 1, 12),
		ConstLabels: m.constLabels,
	})

	m.mappingEntries = m.gauge("mapping_entries", "Number of player names in the mapping store")
	m.mappingWrites = m.counter("mapping_writes_total", "Times the mapping store was persisted after a change")
	m.selfPlayerSeen = m.counter("self_player_detected_total", "Batches in which the highlighted self row was detected")

	m.ledgerTeams = m.gauge("ledger_teams", "Number of teams in the score ledger")
	m.ledgerSaves = m.counterVec("ledger_saves_total", "Score ledger saves by mode", "mode")
	m.teamMerges = m.counter("team_merges_total", "Ledger entries folded into another by the first-letter merge")

	m.storeErrors = m.counterVec("store_errors_total", "Store read/write failures", "store", "op")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordAnalysis counts a finished analysis for mode with the given outcome.
func RecordAnalysis(mode, outcome string) {
	globalManager.analyses.WithLabelValues(mode, outcome).Inc()
}

// RecordBusyRejection counts an analysis refused by the busy guard.
func RecordBusyRejection() {
	globalManager.busyRejections.Inc()
}

// RecordCacheHit counts a cache-served analysis.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordOCRLatency records the vision model latency in milliseconds.
func RecordOCRLatency(latencyMs float64) {
	globalManager.ocrLatency.Observe(latencyMs)
}

// RecordPlayersPerResult records how many rows a screenshot yielded.
func RecordPlayersPerResult(n int) {
	globalManager.playersPerRace.Observe(float64(n))
}

// UpdateMappingEntries sets the mapping store size.
func UpdateMappingEntries(n int) {
	globalManager.mappingEntries.Set(float64(n))
}

// RecordMappingWrite counts a persisted mapping update.
func RecordMappingWrite() {
	globalManager.mappingWrites.Inc()
}

// RecordSelfPlayerDetected counts a batch with a highlighted row.
func RecordSelfPlayerDetected() {
	globalManager.selfPlayerSeen.Inc()
}

// UpdateLedgerTeams sets the number of teams in the ledger.
func UpdateLedgerTeams(n int) {
	globalManager.ledgerTeams.Set(float64(n))
}

// RecordLedgerSave counts a ledger save for mode.
func RecordLedgerSave(mode string) {
	globalManager.ledgerSaves.WithLabelValues(mode).Inc()
}

// RecordTeamMerges adds n merged-away ledger entries.
func RecordTeamMerges(n int) {
	if n > 0 {
		globalManager.teamMerges.Add(float64(n))
	}
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(store, op string) {
	globalManager.storeErrors.WithLabelValues(store, op).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
