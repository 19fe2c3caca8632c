package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for consent operations.
type Metrics struct {
	Decisions            *prometheus.CounterVec
	CategoryChecks       *prometheus.CounterVec
	StorageWriteFailures *prometheus.CounterVec
	SchemaInvalidLoads   prometheus.Counter
	RecordsCleared       prometheus.Counter
	Broadcasts           prometheus.Counter

	// Performance metrics
	StoreOperationLatency *prometheus.HistogramVec
	ScopeLockWait         prometheus.Histogram
}

// New registers consent collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consentd_decisions_total",
			Help: "Total number of consent decisions, labeled by source and action",
		}, []string{"source", "action"}),
		CategoryChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consentd_category_checks_total",
			Help: "Total number of category checks, labeled by category and outcome",
		}, []string{"category", "outcome"}),
		StorageWriteFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consentd_storage_write_failures_total",
			Help: "Writes to the consent slot that were rejected, labeled by failure kind",
		}, []string{"kind"}),
		SchemaInvalidLoads: factory.NewCounter(prometheus.CounterOpts{
			Name: "consentd_schema_invalid_loads_total",
			Help: "Stored consent values discarded because they failed schema validation",
		}),
		RecordsCleared: factory.NewCounter(prometheus.CounterOpts{
			Name: "consentd_records_cleared_total",
			Help: "Total number of consent records cleared",
		}),
		Broadcasts: factory.NewCounter(prometheus.CounterOpts{
			Name: "consentd_broadcasts_total",
			Help: "Total number of consent change notifications published",
		}),
		StoreOperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consentd_store_operation_latency_seconds",
			Help:    "Latency of consent store operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"operation"}),
		ScopeLockWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "consentd_scope_lock_wait_seconds",
			Help:    "Time spent waiting to acquire a visitor scope's write lock",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementDecision(source, action string) {
	m.Decisions.WithLabelValues(source, action).Inc()
}

func (m *Metrics) IncrementCategoryCheck(category string, allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.CategoryChecks.WithLabelValues(category, outcome).Inc()
}

func (m *Metrics) IncrementStorageWriteFailure(kind string) {
	m.StorageWriteFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementSchemaInvalid() {
	m.SchemaInvalidLoads.Inc()
}

func (m *Metrics) IncrementRecordsCleared() {
	m.RecordsCleared.Inc()
}

func (m *Metrics) IncrementBroadcasts() {
	m.Broadcasts.Inc()
}

// ObserveStoreOperationLatency records the latency of a store operation.
func (m *Metrics) ObserveStoreOperationLatency(operation string, durationSeconds float64) {
	m.StoreOperationLatency.WithLabelValues(operation).Observe(durationSeconds)
}

// ObserveScopeLockWait records how long a writer waited for its scope lock.
func (m *Metrics) ObserveScopeLockWait(durationSeconds float64) {
	m.ScopeLockWait.Observe(durationSeconds)
}
