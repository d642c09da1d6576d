package dropbox

import (
	"encoding/json"
	"net/http"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// HeaderSignature carries the hex HMAC-SHA256 of the body.
const HeaderSignature = "X-Dropbox-Signature"

// Verify interface compliance.
var _ driven.WebhookHandler = (*WebhookHandler)(nil)

// WebhookHandler verifies Dropbox notifications signed with the app secret.
type WebhookHandler struct {
	appSecret string
}

// NewWebhookHandler creates the handler for an app secret.
func NewWebhookHandler(appSecret string) *WebhookHandler {
	return &WebhookHandler{appSecret: appSecret}
}

// Source returns DROPBOX.
func (h *WebhookHandler) Source() domain.Source { return domain.SourceDropbox }

// Challenge echoes the GET verification request sent when the webhook URI
// is configured.
func (h *WebhookHandler) Challenge(req *domain.WebhookRequest) (*domain.ChallengeResponse, bool) {
	challenge := req.QueryParam("challenge")
	if req.Method != http.MethodGet || challenge == "" {
		return nil, false
	}
	return domain.PlainChallenge(challenge), true
}

// Verify checks X-Dropbox-Signature.
func (h *WebhookHandler) Verify(req *domain.WebhookRequest) bool {
	return connectors.VerifyHex(h.appSecret, req.Body, req.Header(HeaderSignature), "")
}

type notification struct {
	ListFolder struct {
		Accounts []string `json:"accounts"`
	} `json:"list_folder"`
}

// Normalize emits one event per changed account.
func (h *WebhookHandler) Normalize(req *domain.WebhookRequest) ([]domain.WebhookEvent, error) {
	var n notification
	if err := json.Unmarshal(req.Body, &n); err != nil {
		return nil, err
	}
	events := make([]domain.WebhookEvent, 0, len(n.ListFolder.Accounts))
	for _, account := range n.ListFolder.Accounts {
		payload, err := json.Marshal(map[string]string{"account_id": account})
		if err != nil {
			return nil, err
		}
		events = append(events, connectors.NewEvent(domain.SourceDropbox,
			"files.changed", account, payload, req.ReceivedAt))
	}
	return events, nil
}
