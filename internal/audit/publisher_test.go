package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentstate/internal/platform/kafka/producer"
)

func TestPublisher_SyncEmitStampsTimestamp(t *testing.T) {
	store := NewInMemoryStore()
	p := NewPublisher(store)

	require.NoError(t, p.Emit(context.Background(), Event{VisitorID: "v1", Action: "consent_state_saved"}))

	events, err := store.ListByVisitor(context.Background(), "v1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := NewInMemoryStore()
	p := NewPublisher(store, WithAsyncBuffer(16))

	for range 5 {
		require.NoError(t, p.Emit(context.Background(), Event{VisitorID: "v1", Action: "consent_state_cleared"}))
	}
	p.Close()
	p.Close()

	events, err := store.ListByVisitor(context.Background(), "v1")
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

type failingStore struct{}

func (failingStore) Append(context.Context, Event) error { return errors.New("sink down") }

func TestPublisher_SyncPropagatesStoreError(t *testing.T) {
	p := NewPublisher(failingStore{})
	assert.Error(t, p.Emit(context.Background(), Event{VisitorID: "v1"}))
}

func TestPublisher_AsyncLogsStoreError(t *testing.T) {
	var buf bytes.Buffer
	p := NewPublisher(failingStore{},
		WithAsyncBuffer(1),
		WithPublisherLogger(slog.New(slog.NewJSONHandler(&buf, nil))),
	)
	require.NoError(t, p.Emit(context.Background(), Event{VisitorID: "v1", Action: "consent_state_saved"}))
	p.Close()

	assert.Contains(t, buf.String(), "failed to persist audit event")
}

func TestLogStore_WritesEvent(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogStore(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, s.Append(context.Background(), Event{VisitorID: "v1", Action: "consent_state_malformed", Timestamp: time.Now()}))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "consent_state_malformed", entry["action"])
	assert.Equal(t, "v1", entry["visitor_id"])
}

type recordingProducer struct {
	msgs []*producer.Message
	err  error
}

func (r *recordingProducer) Produce(_ context.Context, msg *producer.Message) error {
	r.msgs = append(r.msgs, msg)
	return r.err
}

func TestKafkaSink_PublishesJSONKeyedByVisitor(t *testing.T) {
	prod := &recordingProducer{}
	sink := NewKafkaSink(prod, "consentstate.audit")
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, sink.Append(context.Background(), Event{
		Timestamp:  ts,
		VisitorID:  "v1",
		Action:     "consent_state_saved",
		Outcome:    "stored",
		PolicyHash: "v2",
	}))

	require.Len(t, prod.msgs, 1)
	msg := prod.msgs[0]
	assert.Equal(t, "consentstate.audit", msg.Topic)
	assert.Equal(t, "v1", string(msg.Key))
	assert.Equal(t, "consent_state_saved", msg.Headers["action"])
	assert.JSONEq(t, `{"timestamp":"2026-01-02T03:04:05Z","visitor_id":"v1","action":"consent_state_saved","outcome":"stored","policy_hash":"v2"}`, string(msg.Value))
}

func TestKafkaSink_WrapsProducerError(t *testing.T) {
	cause := errors.New("broker unreachable")
	sink := NewKafkaSink(&recordingProducer{err: cause}, "t")

	err := sink.Append(context.Background(), Event{VisitorID: "v1"})
	assert.ErrorIs(t, err, cause)
}
