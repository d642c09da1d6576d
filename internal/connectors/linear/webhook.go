package linear

import (
	"encoding/json"
	"time"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

const (
	// HeaderSignature carries the hex HMAC-SHA256 of the body.
	HeaderSignature = "Linear-Signature"

	// MaxTimestampSkew bounds webhookTimestamp against the local clock.
	MaxTimestampSkew = time.Minute
)

// Verify interface compliance.
var _ driven.WebhookHandler = (*WebhookHandler)(nil)

// WebhookHandler verifies Linear webhooks.
type WebhookHandler struct {
	secret string
	now    func() time.Time
}

// NewWebhookHandler creates the handler for webhooks signed with secret.
func NewWebhookHandler(secret string) *WebhookHandler {
	return &WebhookHandler{secret: secret, now: time.Now}
}

// Source returns LINEAR.
func (h *WebhookHandler) Source() domain.Source { return domain.SourceLinear }

// Challenge never applies.
func (h *WebhookHandler) Challenge(*domain.WebhookRequest) (*domain.ChallengeResponse, bool) {
	return nil, false
}

type payload struct {
	Action           string `json:"action"`
	Type             string `json:"type"`
	OrganizationID   string `json:"organizationId"`
	WebhookTimestamp int64  `json:"webhookTimestamp"`
}

// Verify checks the signature and that webhookTimestamp is fresh.
func (h *WebhookHandler) Verify(req *domain.WebhookRequest) bool {
	if !connectors.VerifyHex(h.secret, req.Body, req.Header(HeaderSignature), "") {
		return false
	}
	var p payload
	if err := json.Unmarshal(req.Body, &p); err != nil || p.WebhookTimestamp == 0 {
		return false
	}
	skew := h.now().Sub(time.UnixMilli(p.WebhookTimestamp))
	if skew < 0 {
		skew = -skew
	}
	return skew <= MaxTimestampSkew
}

// Normalize emits one event typed "<Entity>.<action>".
func (h *WebhookHandler) Normalize(req *domain.WebhookRequest) ([]domain.WebhookEvent, error) {
	var p payload
	if err := json.Unmarshal(req.Body, &p); err != nil {
		return nil, err
	}
	return []domain.WebhookEvent{
		connectors.NewEvent(domain.SourceLinear, p.Type+"."+p.Action, p.OrganizationID,
			json.RawMessage(req.Body), req.ReceivedAt),
	}, nil
}
