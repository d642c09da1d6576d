package domain

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"
)

// WebhookRequest is an inbound webhook captured once from the wire.
// Body holds the exact bytes that are verified and then parsed.
type WebhookRequest struct {
	Method     string
	Headers    http.Header
	Query      url.Values
	Body       []byte
	ReceivedAt time.Time
}

// Header returns the first value for key.
func (r *WebhookRequest) Header(key string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(key)
}

// QueryParam returns the first query value for key.
func (r *WebhookRequest) QueryParam(key string) string {
	if r.Query == nil {
		return ""
	}
	return r.Query.Get(key)
}

// ChallengeResponse answers an unauthenticated provider handshake.
type ChallengeResponse struct {
	Status      int
	ContentType string
	Body        string
	// VerificationToken is a value the operator must copy into the
	// provider console. It is logged, never echoed.
	VerificationToken string
}

// PlainChallenge echoes value as text/plain with status 200.
func PlainChallenge(value string) *ChallengeResponse {
	return &ChallengeResponse{
		Status:      http.StatusOK,
		ContentType: "text/plain; charset=utf-8",
		Body:        value,
	}
}

// WebhookEvent is a verified notification forwarded to the job system.
type WebhookEvent struct {
	ID                string          `json:"id"`
	Source            Source          `json:"source"`
	EventType         string          `json:"event_type"`
	ExternalAccountID string          `json:"external_account_id,omitempty"`
	Payload           json.RawMessage `json:"payload"`
	ReceivedAt        time.Time       `json:"received_at"`
}

// WebhookResult is what the webhook endpoint reports back.
type WebhookResult struct {
	Challenge *ChallengeResponse
	Events    int
}
