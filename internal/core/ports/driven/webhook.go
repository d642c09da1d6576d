package driven

import "github.com/custodia-labs/sweep/internal/core/domain"

// WebhookHandler authenticates and parses one provider's webhooks.
// All methods receive the same captured request.
type WebhookHandler interface {
	Source() domain.Source

	// Challenge answers an unauthenticated handshake. It runs before Verify
	// and the second return value reports whether req was a handshake.
	Challenge(req *domain.WebhookRequest) (*domain.ChallengeResponse, bool)

	// Verify checks the signature over the raw body.
	Verify(req *domain.WebhookRequest) bool

	// Normalize parses the raw body into events. Only called after Verify.
	Normalize(req *domain.WebhookRequest) ([]domain.WebhookEvent, error)
}

// WebhookRegistry maps sources to handlers.
type WebhookRegistry interface {
	Get(source domain.Source) (WebhookHandler, bool)
	Register(handler WebhookHandler)
}
