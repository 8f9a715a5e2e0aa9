package store

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"consentstate/internal/consentstate/metrics"
	"consentstate/pkg/platform/circuit"
	"consentstate/pkg/platform/sentinel"
)

// flakyStore fails every call while down is set.
type flakyStore struct {
	mu    sync.Mutex
	inner *InMemoryStore
	down  bool
	calls int
}

func (f *flakyStore) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.down {
		return errors.New("connection refused")
	}
	return nil
}

func (f *flakyStore) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *flakyStore) Get(ctx context.Context, key string) (string, error) {
	if err := f.fail(); err != nil {
		return "", err
	}
	return f.inner.Get(ctx, key)
}

func (f *flakyStore) Set(ctx context.Context, key, value string) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.inner.Set(ctx, key, value)
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.inner.Delete(ctx, key)
}

type ResilientStoreSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	backend *flakyStore
	metrics *metrics.Metrics
	logs    *bytes.Buffer
	store   *ResilientStore
}

func TestResilientStoreSuite(t *testing.T) {
	suite.Run(t, new(ResilientStoreSuite))
}

func (s *ResilientStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Unix(1_700_000_000, 0)
	s.backend = &flakyStore{inner: NewInMemory()}
	s.metrics = metrics.NewWithRegistry(prometheus.NewRegistry())
	s.logs = &bytes.Buffer{}
	breaker := circuit.New(BackendRedis,
		circuit.WithFailureThreshold(2),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(time.Second),
		circuit.WithClock(func() time.Time { return s.now }),
	)
	s.store = NewResilient(s.backend, breaker,
		WithResilientLogger(slog.New(slog.NewJSONHandler(s.logs, nil))),
		WithResilientMetrics(s.metrics),
	)
}

func (s *ResilientStoreSuite) TestPassesThroughWhenHealthy() {
	s.Require().NoError(s.store.Set(s.ctx, "k", "v"))
	got, err := s.store.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.Equal("v", got)
	s.Require().NoError(s.store.Delete(s.ctx, "k"))
}

func (s *ResilientStoreSuite) TestNotFoundDoesNotTrip() {
	for range 5 {
		_, err := s.store.Get(s.ctx, "missing")
		s.ErrorIs(err, sentinel.ErrNotFound)
	}
	s.Equal(5, s.backend.calls)
}

func (s *ResilientStoreSuite) TestOpensAndFailsFast() {
	s.backend.setDown(true)

	for range 2 {
		_, err := s.store.Get(s.ctx, "k")
		s.Require().Error(err)
		s.NotErrorIs(err, sentinel.ErrUnavailable)
	}

	_, err := s.store.Get(s.ctx, "k")
	s.ErrorIs(err, sentinel.ErrUnavailable)
	s.ErrorIs(s.store.Set(s.ctx, "k", "v"), sentinel.ErrUnavailable)
	s.Equal(2, s.backend.calls, "open circuit must not reach the backend")

	s.Equal(1.0, testutil.ToFloat64(s.metrics.CircuitStateChanges.WithLabelValues(BackendRedis, "open")))
	s.Contains(s.logs.String(), "consent store circuit opened")
}

func (s *ResilientStoreSuite) TestRecoversAfterCooldown() {
	s.backend.setDown(true)
	for range 2 {
		_, _ = s.store.Get(s.ctx, "k")
	}

	s.backend.setDown(false)
	s.now = s.now.Add(time.Second)

	s.Require().NoError(s.store.Set(s.ctx, "k", "v"))
	got, err := s.store.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.Equal("v", got)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.CircuitStateChanges.WithLabelValues(BackendRedis, "closed")))
	s.Contains(s.logs.String(), "consent store circuit closed")
}

func (s *ResilientStoreSuite) TestCanceledContextDoesNotTrip() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	canceling := NewResilient(cancelingStore{}, circuit.New("test", circuit.WithFailureThreshold(1)))

	for range 3 {
		_, err := canceling.Get(ctx, "k")
		s.ErrorIs(err, context.Canceled)
	}
}

type cancelingStore struct{}

func (cancelingStore) Get(ctx context.Context, _ string) (string, error) { return "", ctx.Err() }
func (cancelingStore) Set(ctx context.Context, _, _ string) error        { return ctx.Err() }
func (cancelingStore) Delete(ctx context.Context, _ string) error        { return ctx.Err() }
