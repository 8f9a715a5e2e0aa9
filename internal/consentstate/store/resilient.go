package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"consentstate/internal/consentstate/metrics"
	"consentstate/pkg/platform/circuit"
	"consentstate/pkg/platform/sentinel"
)

// ResilientStore guards a backend with a circuit breaker. While the circuit is
// open every call fails fast with sentinel.ErrUnavailable instead of waiting
// on a backend that is known to be down.
type ResilientStore struct {
	inner   Store
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// ResilientOption configures a ResilientStore.
type ResilientOption func(*ResilientStore)

// WithResilientLogger sets the logger for circuit transitions.
func WithResilientLogger(logger *slog.Logger) ResilientOption {
	return func(s *ResilientStore) {
		s.logger = logger
	}
}

// WithResilientMetrics sets the metrics for circuit transitions.
func WithResilientMetrics(m *metrics.Metrics) ResilientOption {
	return func(s *ResilientStore) {
		s.metrics = m
	}
}

// NewResilient wraps inner with breaker.
func NewResilient(inner Store, breaker *circuit.Breaker, opts ...ResilientOption) *ResilientStore {
	s := &ResilientStore{inner: inner, breaker: breaker}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ResilientStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.call(ctx, "get", func() error {
		var err error
		value, err = s.inner.Get(ctx, key)
		return err
	})
	return value, err
}

func (s *ResilientStore) Set(ctx context.Context, key, value string) error {
	return s.call(ctx, "set", func() error {
		return s.inner.Set(ctx, key, value)
	})
}

func (s *ResilientStore) Delete(ctx context.Context, key string) error {
	return s.call(ctx, "delete", func() error {
		return s.inner.Delete(ctx, key)
	})
}

func (s *ResilientStore) call(ctx context.Context, operation string, fn func() error) error {
	if !s.breaker.Allow() {
		return fmt.Errorf("%s consent record: %s circuit open: %w", operation, s.breaker.Name(), sentinel.ErrUnavailable)
	}

	err := fn()
	switch {
	case err == nil, errors.Is(err, sentinel.ErrNotFound):
		if s.breaker.RecordSuccess().Closed {
			s.transition(ctx, circuit.StateClosed)
		}
	case errors.Is(err, context.Canceled):
		// The caller went away; says nothing about backend health.
	default:
		if s.breaker.RecordFailure().Opened {
			s.transition(ctx, circuit.StateOpen)
		}
	}
	return err
}

func (s *ResilientStore) transition(ctx context.Context, state circuit.State) {
	s.metrics.IncrementCircuitTransition(s.breaker.Name(), state.String())
	if s.logger == nil {
		return
	}
	if state == circuit.StateOpen {
		s.logger.WarnContext(ctx, "consent store circuit opened", "backend", s.breaker.Name())
		return
	}
	s.logger.InfoContext(ctx, "consent store circuit closed", "backend", s.breaker.Name())
}
