package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ driven.EventPublisher = (*KafkaPublisher)(nil)

// KafkaPublisher writes one message per event. Messages are keyed by
// source and external account, so one account's events stay ordered.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// NewKafkaPublisher creates a synchronous producer for topic.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(writer, topic, logger)
}

func newKafkaPublisher(w messageWriter, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{writer: w, topic: topic, logger: logger}
}

// Publish writes all events in one batch.
func (p *KafkaPublisher) Publish(ctx context.Context, events []domain.WebhookEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for i := range events {
		evt := &events[i]
		data, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshalling event %s: %w", evt.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(MessageKey(evt)),
			Value: data,
			Headers: []kafka.Header{
				{Key: "source", Value: []byte(evt.Source)},
				{Key: "event_type", Value: []byte(evt.EventType)},
				{Key: "event_id", Value: []byte(evt.ID)},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("failed to publish webhook events",
			zap.String("topic", p.topic), zap.Int("count", len(msgs)), zap.Error(err))
		return fmt.Errorf("publishing to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// MessageKey is "<source>:<external account id>".
func MessageKey(evt *domain.WebhookEvent) string {
	return string(evt.Source) + ":" + evt.ExternalAccountID
}
