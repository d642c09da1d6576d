package google

import (
	"encoding/json"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// Drive push notification headers.
const (
	HeaderChannelID     = "X-Goog-Channel-ID"
	HeaderChannelToken  = "X-Goog-Channel-Token"
	HeaderResourceID    = "X-Goog-Resource-ID"
	HeaderResourceState = "X-Goog-Resource-State"
	HeaderMessageNumber = "X-Goog-Message-Number"
	HeaderChanged       = "X-Goog-Changed"

	// stateSync is sent once when a channel is created.
	stateSync = "sync"
)

// Verify interface compliance.
var _ driven.WebhookHandler = (*WebhookHandler)(nil)

// WebhookHandler verifies Drive push notifications by channel token.
type WebhookHandler struct {
	secret string
}

// NewWebhookHandler creates the handler for channels created with secret.
func NewWebhookHandler(secret string) *WebhookHandler {
	return &WebhookHandler{secret: secret}
}

// Source returns GOOGLE.
func (h *WebhookHandler) Source() domain.Source { return domain.SourceGoogle }

// Challenge never applies; Drive has no handshake.
func (h *WebhookHandler) Challenge(*domain.WebhookRequest) (*domain.ChallengeResponse, bool) {
	return nil, false
}

// Verify compares the channel token in constant time.
func (h *WebhookHandler) Verify(req *domain.WebhookRequest) bool {
	return connectors.EqualSecret(h.secret, req.Header(HeaderChannelToken))
}

type notification struct {
	ChannelID     string `json:"channel_id"`
	ResourceID    string `json:"resource_id"`
	ResourceState string `json:"resource_state"`
	MessageNumber string `json:"message_number,omitempty"`
	Changed       string `json:"changed,omitempty"`
}

// Normalize turns the notification headers into one event. The initial
// sync message is acknowledged without an event.
func (h *WebhookHandler) Normalize(req *domain.WebhookRequest) ([]domain.WebhookEvent, error) {
	n := notification{
		ChannelID:     req.Header(HeaderChannelID),
		ResourceID:    req.Header(HeaderResourceID),
		ResourceState: req.Header(HeaderResourceState),
		MessageNumber: req.Header(HeaderMessageNumber),
		Changed:       req.Header(HeaderChanged),
	}
	if n.ResourceState == stateSync {
		return nil, nil
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	event := connectors.NewEvent(domain.SourceGoogle, "drive."+n.ResourceState,
		n.ChannelID, payload, req.ReceivedAt)
	return []domain.WebhookEvent{event}, nil
}
