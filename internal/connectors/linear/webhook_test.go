package linear

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
)

func linearRequest(secret string, ts time.Time) *domain.WebhookRequest {
	body := fmt.Sprintf(`{"action":"remove","type":"Issue","organizationId":"org-1","data":{"id":"i1"},"webhookTimestamp":%d}`,
		ts.UnixMilli())
	h := http.Header{}
	h.Set(HeaderSignature, connectors.SignHex(secret, []byte(body)))
	return &domain.WebhookRequest{Method: http.MethodPost, Headers: h, Body: []byte(body)}
}

func TestWebhookHandler_Verify(t *testing.T) {
	now := time.Now()
	h := NewWebhookHandler("whsec")
	h.now = func() time.Time { return now }

	assert.True(t, h.Verify(linearRequest("whsec", now)))
	assert.True(t, h.Verify(linearRequest("whsec", now.Add(-30*time.Second))))
	assert.False(t, h.Verify(linearRequest("whsec", now.Add(-2*time.Minute))), "replayed outside window")
	assert.False(t, h.Verify(linearRequest("wrong", now)))

	_, ok := h.Challenge(linearRequest("whsec", now))
	assert.False(t, ok)
}

func TestWebhookHandler_Normalize(t *testing.T) {
	events, err := NewWebhookHandler("whsec").Normalize(linearRequest("whsec", time.Now()))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Issue.remove", events[0].EventType)
	assert.Equal(t, "org-1", events[0].ExternalAccountID)
}
