package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

var _ driven.EventPublisher = (*LogPublisher)(nil)

// LogPublisher logs events instead of delivering them.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a log-only publisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs one line per event. Payloads are logged by size only.
func (p *LogPublisher) Publish(_ context.Context, events []domain.WebhookEvent) error {
	for i := range events {
		evt := &events[i]
		p.logger.Info("webhook event",
			zap.String("event_id", evt.ID),
			zap.String("source", evt.Source.String()),
			zap.String("event_type", evt.EventType),
			zap.String("external_account_id", evt.ExternalAccountID),
			zap.Int("payload_bytes", len(evt.Payload)),
		)
	}
	return nil
}

// Close does nothing.
func (p *LogPublisher) Close() error {
	return nil
}
