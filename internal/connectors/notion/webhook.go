package notion

import (
	"encoding/json"
	"net/http"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// HeaderSignature carries "sha256=" followed by the hex HMAC of the body.
const HeaderSignature = "X-Notion-Signature"

// Verify interface compliance.
var _ driven.WebhookHandler = (*WebhookHandler)(nil)

// WebhookHandler verifies Notion integration webhooks.
type WebhookHandler struct {
	secret string
}

// NewWebhookHandler creates the handler for the integration's secret.
func NewWebhookHandler(secret string) *WebhookHandler {
	return &WebhookHandler{secret: secret}
}

// Source returns NOTION.
func (h *WebhookHandler) Source() domain.Source { return domain.SourceNotion }

// Challenge acknowledges the one-time subscription verification request.
// The token is surfaced for the operator rather than echoed.
func (h *WebhookHandler) Challenge(req *domain.WebhookRequest) (*domain.ChallengeResponse, bool) {
	var v struct {
		VerificationToken string `json:"verification_token"`
	}
	if err := json.Unmarshal(req.Body, &v); err != nil || v.VerificationToken == "" {
		return nil, false
	}
	return &domain.ChallengeResponse{
		Status:            http.StatusOK,
		ContentType:       "application/json",
		Body:              `{"success":true}`,
		VerificationToken: v.VerificationToken,
	}, true
}

// Verify checks X-Notion-Signature.
func (h *WebhookHandler) Verify(req *domain.WebhookRequest) bool {
	return connectors.VerifyHex(h.secret, req.Body, req.Header(HeaderSignature), "sha256=")
}

type payload struct {
	Type        string `json:"type"`
	WorkspaceID string `json:"workspace_id"`
}

// Normalize emits one event per delivery.
func (h *WebhookHandler) Normalize(req *domain.WebhookRequest) ([]domain.WebhookEvent, error) {
	var p payload
	if err := json.Unmarshal(req.Body, &p); err != nil {
		return nil, err
	}
	return []domain.WebhookEvent{
		connectors.NewEvent(domain.SourceNotion, p.Type, p.WorkspaceID,
			json.RawMessage(req.Body), req.ReceivedAt),
	}, nil
}
