package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
	"github.com/custodia-labs/sweep/internal/core/ports/driving"
	"github.com/custodia-labs/sweep/internal/metrics"
)

// Ensure WebhookService implements the interface.
var _ driving.WebhookService = (*WebhookService)(nil)

// Webhook outcome labels.
const (
	webhookAccepted  = "accepted"
	webhookChallenge = "challenge"
	webhookRejected  = "rejected"
	webhookUnknown   = "unknown"
	webhookError     = "error"
)

// WebhookService verifies inbound notifications and publishes them.
type WebhookService struct {
	registry  driven.WebhookRegistry
	publisher driven.EventPublisher
	logger    *zap.Logger
}

// NewWebhookService creates the webhook service.
func NewWebhookService(registry driven.WebhookRegistry, publisher driven.EventPublisher, logger *zap.Logger) *WebhookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookService{
		registry:  registry,
		publisher: publisher,
		logger:    logger.Named("webhooks"),
	}
}

// Handle answers a handshake, or verifies req and publishes its events.
// The same captured body is verified and then parsed.
func (s *WebhookService) Handle(ctx context.Context, source domain.Source, req *domain.WebhookRequest) (*domain.WebhookResult, error) {
	label := source.String()
	handler, err := s.handler(source, req)
	if err != nil {
		return nil, err
	}
	if challenge, ok := s.challenge(handler, req); ok {
		return &domain.WebhookResult{Challenge: challenge}, nil
	}

	if !handler.Verify(req) {
		metrics.RecordWebhook(label, webhookRejected)
		s.logger.Warn("webhook signature rejected", zap.String("source", label))
		return nil, domain.ErrInvalidSignature
	}

	events, err := handler.Normalize(req)
	if err != nil {
		metrics.RecordWebhook(label, webhookError)
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	if len(events) > 0 {
		if err := s.publisher.Publish(ctx, events); err != nil {
			metrics.RecordWebhook(label, webhookError)
			return nil, fmt.Errorf("publishing webhook events: %w", err)
		}
	}

	metrics.RecordWebhook(label, webhookAccepted)
	s.logger.Debug("webhook accepted", zap.String("source", label), zap.Int("events", len(events)))
	return &domain.WebhookResult{Events: len(events)}, nil
}

// Challenge answers the GET handshakes (Dropbox challenge, Microsoft
// validationToken).
func (s *WebhookService) Challenge(_ context.Context, source domain.Source, req *domain.WebhookRequest) (*domain.ChallengeResponse, error) {
	handler, err := s.handler(source, req)
	if err != nil {
		return nil, err
	}
	challenge, ok := s.challenge(handler, req)
	if !ok {
		return nil, fmt.Errorf("%w: no %s webhook handshake in request", domain.ErrNotFound, source)
	}
	return challenge, nil
}

func (s *WebhookService) handler(source domain.Source, req *domain.WebhookRequest) (driven.WebhookHandler, error) {
	label := source.String()
	handler, ok := s.registry.Get(source)
	if !ok || !source.IsValid() {
		metrics.RecordWebhook(label, webhookUnknown)
		return nil, fmt.Errorf("%w: no webhook handler for %q", domain.ErrNotFound, source)
	}
	if req == nil {
		metrics.RecordWebhook(label, webhookError)
		return nil, fmt.Errorf("%w: empty webhook request", domain.ErrInvalidInput)
	}
	return handler, nil
}

func (s *WebhookService) challenge(handler driven.WebhookHandler, req *domain.WebhookRequest) (*domain.ChallengeResponse, bool) {
	challenge, ok := handler.Challenge(req)
	if !ok {
		return nil, false
	}
	label := handler.Source().String()
	if challenge.VerificationToken != "" {
		s.logger.Info("webhook verification token received; configure it as the webhook secret",
			zap.String("source", label),
			zap.String("verification_token", challenge.VerificationToken))
	}
	metrics.RecordWebhook(label, webhookChallenge)
	return challenge, true
}
