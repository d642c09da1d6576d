package jira

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// HeaderSignature carries "sha256=" followed by the hex HMAC of the body.
// Jira sends it for webhooks an admin created with a secret.
const HeaderSignature = "X-Hub-Signature"

// HeaderAuthorization carries the bearer JWT Jira attaches to deliveries
// of webhooks registered by an OAuth 2.0 app. It is signed HS256 with the
// app's client secret.
const HeaderAuthorization = "Authorization"

// TokenLeeway is the clock skew tolerated on the JWT time claims.
const TokenLeeway = time.Minute

// Verify interface compliance.
var _ driven.WebhookHandler = (*WebhookHandler)(nil)

// WebhookHandler verifies Jira deliveries.
type WebhookHandler struct {
	secret       string
	clientSecret string
	now          func() time.Time
}

// NewWebhookHandler creates the handler. secret verifies admin webhooks,
// clientSecret verifies the JWT on dynamically registered ones. Either
// may be empty, which disables that scheme.
func NewWebhookHandler(secret, clientSecret string) *WebhookHandler {
	return &WebhookHandler{secret: secret, clientSecret: clientSecret, now: time.Now}
}

// Source returns JIRA.
func (h *WebhookHandler) Source() domain.Source { return domain.SourceJira }

// Challenge never applies.
func (h *WebhookHandler) Challenge(*domain.WebhookRequest) (*domain.ChallengeResponse, bool) {
	return nil, false
}

// Verify accepts a valid bearer JWT, or failing that a valid
// X-Hub-Signature. The JWT does not cover the body.
func (h *WebhookHandler) Verify(req *domain.WebhookRequest) bool {
	if raw, ok := bearer(req.Header(HeaderAuthorization)); ok {
		return h.verifyToken(raw)
	}
	return connectors.VerifyHex(h.secret, req.Body, req.Header(HeaderSignature), "sha256=")
}

func bearer(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

func (h *WebhookHandler) verifyToken(raw string) bool {
	if h.clientSecret == "" {
		return false
	}
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return false
	}
	var claims jwt.Claims
	if err := tok.Claims([]byte(h.clientSecret), &claims); err != nil {
		return false
	}
	if claims.Expiry == nil {
		return false
	}
	return claims.ValidateWithLeeway(jwt.Expected{Time: h.now()}, TokenLeeway) == nil
}

type payload struct {
	WebhookEvent      string  `json:"webhookEvent"`
	MatchedWebhookIDs []int64 `json:"matchedWebhookIds"`
}

// Normalize emits one event keyed by the matched webhook id.
func (h *WebhookHandler) Normalize(req *domain.WebhookRequest) ([]domain.WebhookEvent, error) {
	var p payload
	if err := json.Unmarshal(req.Body, &p); err != nil {
		return nil, err
	}
	var account string
	if len(p.MatchedWebhookIDs) > 0 {
		account = strconv.FormatInt(p.MatchedWebhookIDs[0], 10)
	}
	return []domain.WebhookEvent{
		connectors.NewEvent(domain.SourceJira, p.WebhookEvent, account,
			json.RawMessage(req.Body), req.ReceivedAt),
	}, nil
}
