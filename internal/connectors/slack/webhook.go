package slack

import (
	"encoding/json"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.WebhookHandler = (*WebhookHandler)(nil)

// WebhookHandler verifies Events API requests with the signing secret.
type WebhookHandler struct {
	signingSecret string
}

// NewWebhookHandler creates the handler for a signing secret.
func NewWebhookHandler(signingSecret string) *WebhookHandler {
	return &WebhookHandler{signingSecret: signingSecret}
}

// Source returns SLACK.
func (h *WebhookHandler) Source() domain.Source { return domain.SourceSlack }

// Challenge answers url_verification with the literal challenge.
func (h *WebhookHandler) Challenge(req *domain.WebhookRequest) (*domain.ChallengeResponse, bool) {
	var v slackevents.EventsAPIURLVerificationEvent
	if err := json.Unmarshal(req.Body, &v); err != nil {
		return nil, false
	}
	if v.Type != slackevents.URLVerification || v.Challenge == "" {
		return nil, false
	}
	return domain.PlainChallenge(v.Challenge), true
}

// Verify checks the v0 signature and the five minute timestamp window.
func (h *WebhookHandler) Verify(req *domain.WebhookRequest) bool {
	if h.signingSecret == "" || req.Headers == nil {
		return false
	}
	sv, err := slack.NewSecretsVerifier(req.Headers, h.signingSecret)
	if err != nil {
		return false
	}
	if _, err := sv.Write(req.Body); err != nil {
		return false
	}
	return sv.Ensure() == nil
}

type innerEvent struct {
	Type string `json:"type"`
}

// Normalize forwards event_callback envelopes; other types carry no
// workspace change.
func (h *WebhookHandler) Normalize(req *domain.WebhookRequest) ([]domain.WebhookEvent, error) {
	var outer slackevents.EventsAPICallbackEvent
	if err := json.Unmarshal(req.Body, &outer); err != nil {
		return nil, err
	}
	if outer.Type != slackevents.CallbackEvent {
		return nil, nil
	}

	eventType := "event_callback"
	if outer.InnerEvent != nil {
		var inner innerEvent
		if err := json.Unmarshal(*outer.InnerEvent, &inner); err != nil {
			return nil, err
		}
		if inner.Type != "" {
			eventType = inner.Type
		}
	}
	event := connectors.NewEvent(domain.SourceSlack, eventType, outer.TeamID,
		json.RawMessage(req.Body), req.ReceivedAt)
	return []domain.WebhookEvent{event}, nil
}
