package microsoft

import (
	"encoding/json"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.WebhookHandler = (*WebhookHandler)(nil)

// WebhookHandler verifies Graph change notifications by clientState.
type WebhookHandler struct {
	secret string
}

// NewWebhookHandler creates the handler for subscriptions created with secret.
func NewWebhookHandler(secret string) *WebhookHandler {
	return &WebhookHandler{secret: secret}
}

// Source returns MICROSOFT.
func (h *WebhookHandler) Source() domain.Source { return domain.SourceMicrosoft }

// Challenge echoes the validationToken Graph sends when a subscription is
// created.
func (h *WebhookHandler) Challenge(req *domain.WebhookRequest) (*domain.ChallengeResponse, bool) {
	token := req.QueryParam("validationToken")
	if token == "" {
		return nil, false
	}
	return domain.PlainChallenge(token), true
}

type notification struct {
	SubscriptionID string `json:"subscriptionId"`
	ClientState    string `json:"clientState"`
	ChangeType     string `json:"changeType"`
	Resource       string `json:"resource"`
	TenantID       string `json:"tenantId"`
}

type notificationBatch struct {
	Value []json.RawMessage `json:"value"`
}

func parse(body []byte) ([]notification, []json.RawMessage, error) {
	var batch notificationBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, nil, err
	}
	out := make([]notification, 0, len(batch.Value))
	for _, raw := range batch.Value {
		var n notification
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, nil, err
		}
		out = append(out, n)
	}
	return out, batch.Value, nil
}

// Verify requires every notification in the batch to carry the secret.
func (h *WebhookHandler) Verify(req *domain.WebhookRequest) bool {
	notes, _, err := parse(req.Body)
	if err != nil || len(notes) == 0 {
		return false
	}
	for _, n := range notes {
		if !connectors.EqualSecret(h.secret, n.ClientState) {
			return false
		}
	}
	return true
}

// Normalize emits one event per notification.
func (h *WebhookHandler) Normalize(req *domain.WebhookRequest) ([]domain.WebhookEvent, error) {
	notes, raws, err := parse(req.Body)
	if err != nil {
		return nil, err
	}
	events := make([]domain.WebhookEvent, 0, len(notes))
	for i, n := range notes {
		payload, err := withoutClientState(raws[i])
		if err != nil {
			return nil, err
		}
		events = append(events, connectors.NewEvent(domain.SourceMicrosoft,
			"drive."+n.ChangeType, n.SubscriptionID, payload, req.ReceivedAt))
	}
	return events, nil
}

// withoutClientState drops the shared secret before the payload leaves
// the service.
func withoutClientState(raw json.RawMessage) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	delete(fields, "clientState")
	return json.Marshal(fields)
}
