package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.IncrementResolutions("malformed")
	m.IncrementResolutions("malformed")
	m.IncrementResolutions("current")
	m.IncrementStatesSaved()
	m.IncrementStatesCleared()
	m.IncrementStoreFailures("redis", "get")
	m.IncrementCircuitTransition("redis", "open")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("current")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatesSaved))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatesCleared))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreFailures.WithLabelValues("redis", "get")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitStateChanges.WithLabelValues("redis", "open")))
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementResolutions("absent")
		m.IncrementStatesSaved()
		m.IncrementStatesCleared()
		m.ObserveResolveLatency(0.1)
		m.ObserveConsentsPerSave(2)
		m.ObserveStoreOperationLatency("memory", "get", 0.001)
		m.IncrementStoreFailures("memory", "get")
		m.IncrementCircuitTransition("memory", "open")
	})
}
