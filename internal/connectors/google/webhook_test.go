package google

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

func driveRequest(token, state string) *domain.WebhookRequest {
	h := http.Header{}
	h.Set(HeaderChannelID, "ch-1")
	h.Set(HeaderChannelToken, token)
	h.Set(HeaderResourceID, "res-1")
	h.Set(HeaderResourceState, state)
	h.Set(HeaderMessageNumber, "7")
	return &domain.WebhookRequest{Method: http.MethodPost, Headers: h, ReceivedAt: time.Now()}
}

func TestWebhookHandler_Verify(t *testing.T) {
	h := NewWebhookHandler("secret")

	assert.True(t, h.Verify(driveRequest("secret", "change")))
	assert.False(t, h.Verify(driveRequest("wrong", "change")))
	assert.False(t, h.Verify(driveRequest("", "change")))
	assert.False(t, NewWebhookHandler("").Verify(driveRequest("", "change")))
}

func TestWebhookHandler_NoChallenge(t *testing.T) {
	_, ok := NewWebhookHandler("secret").Challenge(driveRequest("secret", "sync"))
	assert.False(t, ok)
}

func TestWebhookHandler_Normalize(t *testing.T) {
	h := NewWebhookHandler("secret")

	events, err := h.Normalize(driveRequest("secret", "sync"))
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = h.Normalize(driveRequest("secret", "change"))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.SourceGoogle, events[0].Source)
	assert.Equal(t, "drive.change", events[0].EventType)
	assert.Equal(t, "ch-1", events[0].ExternalAccountID)

	var n notification
	require.NoError(t, json.Unmarshal(events[0].Payload, &n))
	assert.Equal(t, "res-1", n.ResourceID)
	assert.Equal(t, "7", n.MessageNumber)
}
