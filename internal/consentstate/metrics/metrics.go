package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for consent state operations.
type Metrics struct {
	Resolutions     *prometheus.CounterVec
	StatesSaved     prometheus.Counter
	StatesCleared   prometheus.Counter
	ResolveLatency  prometheus.Histogram
	ConsentsPerSave prometheus.Histogram

	// Performance metrics
	StoreOperationLatency *prometheus.HistogramVec
	StoreFailures         *prometheus.CounterVec
	CircuitStateChanges   *prometheus.CounterVec
}

// New registers and returns consent state collectors on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers collectors on reg. Tests pass a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consentstate_resolutions_total",
			Help: "Total number of banner state resolutions, labeled by outcome",
		}, []string{"outcome"}),
		StatesSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "consentstate_saves_total",
			Help: "Total number of consent records saved",
		}),
		StatesCleared: factory.NewCounter(prometheus.CounterOpts{
			Name: "consentstate_clears_total",
			Help: "Total number of consent records cleared",
		}),
		ResolveLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "consentstate_resolve_latency_seconds",
			Help:    "Latency of banner state resolutions in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		ConsentsPerSave: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "consentstate_consents_per_save",
			Help:    "Distribution of consent entry counts per saved record",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 256},
		}),

		// Performance metrics
		StoreOperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consentstate_store_operation_latency_seconds",
			Help:    "Latency of consent store operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"backend", "operation"}),
		StoreFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consentstate_store_failures_total",
			Help: "Total number of failed consent store operations",
		}, []string{"backend", "operation"}),
		CircuitStateChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consentstate_store_circuit_transitions_total",
			Help: "Total number of store circuit breaker transitions, labeled by new state",
		}, []string{"backend", "state"}),
	}
}

func (m *Metrics) IncrementResolutions(outcome string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementStatesSaved() {
	if m == nil {
		return
	}
	m.StatesSaved.Inc()
}

func (m *Metrics) IncrementStatesCleared() {
	if m == nil {
		return
	}
	m.StatesCleared.Inc()
}

func (m *Metrics) ObserveResolveLatency(durationSeconds float64) {
	if m == nil {
		return
	}
	m.ResolveLatency.Observe(durationSeconds)
}

// ObserveConsentsPerSave records how many consent entries a saved record carried.
func (m *Metrics) ObserveConsentsPerSave(count int) {
	if m == nil {
		return
	}
	m.ConsentsPerSave.Observe(float64(count))
}

// ObserveStoreOperationLatency records the latency of a store operation.
func (m *Metrics) ObserveStoreOperationLatency(backend, operation string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.StoreOperationLatency.WithLabelValues(backend, operation).Observe(durationSeconds)
}

// IncrementStoreFailures counts a store operation that returned an infrastructure error.
func (m *Metrics) IncrementStoreFailures(backend, operation string) {
	if m == nil {
		return
	}
	m.StoreFailures.WithLabelValues(backend, operation).Inc()
}

// IncrementCircuitTransition counts a breaker moving to state.
func (m *Metrics) IncrementCircuitTransition(backend, state string) {
	if m == nil {
		return
	}
	m.CircuitStateChanges.WithLabelValues(backend, state).Inc()
}
