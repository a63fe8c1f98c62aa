// Package kafka publishes authflow audit events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/rentoapp/authflow"
)

// DefaultTopic receives events when Config.Topic is empty.
const DefaultTopic = "authflow.audit"

// Config configures a [Sink].
type Config struct {
	Brokers []string
	Topic   string
}

// Sink is an [authflow.AuditSink] over a sarama SyncProducer. Emit runs on
// the audit dispatcher goroutine, so a slow broker delays later events but
// never a flow step.
type Sink struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
	failures atomic.Uint64
}

var _ authflow.AuditSink = (*Sink)(nil)

// NewProducerConfig returns the producer settings used by [Dial].
func NewProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	return config
}

// Dial connects a producer to cfg.Brokers.
func Dial(cfg Config, logger *zap.Logger) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka audit sink: no brokers")
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("kafka audit sink: create producer: %w", err)
	}
	return New(producer, cfg.Topic, logger), nil
}

// New wraps an existing producer.
func New(producer sarama.SyncProducer, topic string, logger *zap.Logger) *Sink {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{producer: producer, topic: topic, logger: logger.Named("audit.kafka")}
}

// Emit publishes event as JSON, keyed by user id or, failing that, by the
// masked identifier so one account's events stay on one partition.
func (s *Sink) Emit(_ context.Context, event authflow.AuditEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		s.failures.Add(1)
		s.logger.Error("marshal audit event", zap.String("event_id", event.ID), zap.Error(err))
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.EventType)},
		},
	}
	if key := partitionKey(event); key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	if _, _, err := s.producer.SendMessage(msg); err != nil {
		s.failures.Add(1)
		s.logger.Warn("publish audit event",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	}
}

// Failures returns how many events could not be published.
func (s *Sink) Failures() uint64 {
	return s.failures.Load()
}

// Close closes the producer.
func (s *Sink) Close() error {
	return s.producer.Close()
}

func partitionKey(event authflow.AuditEvent) string {
	if event.UserID != "" {
		return event.UserID
	}
	return event.Identifier
}
