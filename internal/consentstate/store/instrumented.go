package store

import (
	"context"
	"errors"
	"time"

	"consentstate/internal/consentstate/metrics"
	"consentstate/pkg/platform/sentinel"
)

// InstrumentedStore records latency and failures for every operation.
type InstrumentedStore struct {
	inner   Store
	backend string
	metrics *metrics.Metrics
}

// NewInstrumented wraps inner; metrics may be nil.
func NewInstrumented(inner Store, backend string, m *metrics.Metrics) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, backend: backend, metrics: m}
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	value, err := s.inner.Get(ctx, key)
	s.observe("get", start, err)
	return value, err
}

func (s *InstrumentedStore) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	err := s.inner.Set(ctx, key, value)
	s.observe("set", start, err)
	return err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.inner.Delete(ctx, key)
	s.observe("delete", start, err)
	return err
}

func (s *InstrumentedStore) observe(operation string, start time.Time, err error) {
	s.metrics.ObserveStoreOperationLatency(s.backend, operation, time.Since(start).Seconds())
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.metrics.IncrementStoreFailures(s.backend, operation)
	}
}
