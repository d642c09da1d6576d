package driving

import (
	"context"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

// WebhookService accepts inbound provider notifications.
type WebhookService interface {
	// Handle answers handshakes, verifies signatures and publishes events.
	// Returns domain.ErrNotFound when no handler exists for source and
	// domain.ErrInvalidSignature when verification fails.
	Handle(ctx context.Context, source domain.Source, req *domain.WebhookRequest) (*domain.WebhookResult, error)

	// Challenge answers a handshake only; it never verifies or publishes.
	// Returns domain.ErrNotFound when no handler exists for source or req
	// is not a handshake.
	Challenge(ctx context.Context, source domain.Source, req *domain.WebhookRequest) (*domain.ChallengeResponse, error)
}
