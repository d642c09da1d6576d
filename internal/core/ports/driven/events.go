package driven

import (
	"context"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

// EventPublisher hands verified webhook events to the background job system.
type EventPublisher interface {
	Publish(ctx context.Context, events []domain.WebhookEvent) error
	Close() error
}
