//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"consentstate/internal/audit"
	"consentstate/internal/platform/kafka/producer"
	"consentstate/pkg/testutil/containers"
)

type KafkaSinkSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
}

func TestKafkaSinkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSinkSuite))
}

func (s *KafkaSinkSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())

	cfg := producer.DefaultConfig()
	cfg.Brokers = []string{s.kafka.Brokers}
	cfg.DeliveryTimeout = 10 * time.Second
	prod, err := producer.New(cfg, nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *KafkaSinkSuite) TearDownSuite() {
	if s.producer != nil {
		_ = s.producer.Close()
	}
}

func (s *KafkaSinkSuite) TestAppendDeliversEvent() {
	ctx := context.Background()
	topic := "consentstate-audit-test"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1, 1))

	sink := audit.NewKafkaSink(s.producer, topic)
	s.Require().NoError(sink.Append(ctx, audit.Event{
		VisitorID:  "visitor-kafka",
		Action:     "consent_state_saved",
		PolicyHash: "v2",
		Timestamp:  time.Now().UTC(),
	}))

	consumer, err := s.kafka.NewConsumer("audit-sink-test", topic)
	s.Require().NoError(err)
	defer consumer.Close()

	record := s.kafka.WaitForMessage(ctx, consumer, 10*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == "visitor-kafka"
	})
	s.Require().NotNil(record)

	var event audit.Event
	s.Require().NoError(json.Unmarshal(record.Value, &event))
	s.Equal("consent_state_saved", event.Action)
	s.Equal("v2", event.PolicyHash)
}

func (s *KafkaSinkSuite) TestProducerHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.NoError(s.producer.Health(ctx))
}
