package figma

import (
	"encoding/json"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// eventPing is sent once when a webhook is created.
const eventPing = "PING"

// Verify interface compliance.
var _ driven.WebhookHandler = (*WebhookHandler)(nil)

// WebhookHandler verifies Figma webhooks by passcode.
type WebhookHandler struct {
	passcode string
}

// NewWebhookHandler creates the handler for webhooks created with passcode.
func NewWebhookHandler(passcode string) *WebhookHandler {
	return &WebhookHandler{passcode: passcode}
}

// Source returns FIGMA.
func (h *WebhookHandler) Source() domain.Source { return domain.SourceFigma }

// Challenge never applies; the PING event is acknowledged instead.
func (h *WebhookHandler) Challenge(*domain.WebhookRequest) (*domain.ChallengeResponse, bool) {
	return nil, false
}

type payload struct {
	EventType string `json:"event_type"`
	Passcode  string `json:"passcode"`
	WebhookID string `json:"webhook_id"`
	FileKey   string `json:"file_key"`
}

// Verify compares the passcode in the body in constant time.
func (h *WebhookHandler) Verify(req *domain.WebhookRequest) bool {
	var p payload
	if err := json.Unmarshal(req.Body, &p); err != nil {
		return false
	}
	return connectors.EqualSecret(h.passcode, p.Passcode)
}

// Normalize emits one event, none for PING. The passcode is stripped.
func (h *WebhookHandler) Normalize(req *domain.WebhookRequest) ([]domain.WebhookEvent, error) {
	var p payload
	if err := json.Unmarshal(req.Body, &p); err != nil {
		return nil, err
	}
	if p.EventType == eventPing {
		return nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(req.Body, &fields); err != nil {
		return nil, err
	}
	delete(fields, "passcode")
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return []domain.WebhookEvent{
		connectors.NewEvent(domain.SourceFigma, p.EventType, p.WebhookID, body, req.ReceivedAt),
	}, nil
}
