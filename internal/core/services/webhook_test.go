package services

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
)

// fakeWebhookHandler accepts requests whose X-Test-Signature is "valid".
type fakeWebhookHandler struct {
	source domain.Source
	token  string
	bodies [][]byte
}

func (h *fakeWebhookHandler) Source() domain.Source { return h.source }

func (h *fakeWebhookHandler) Challenge(req *domain.WebhookRequest) (*domain.ChallengeResponse, bool) {
	var body struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
	}
	if json.Unmarshal(req.Body, &body) != nil || body.Type != "url_verification" {
		return nil, false
	}
	resp := domain.PlainChallenge(body.Challenge)
	resp.VerificationToken = h.token
	return resp, true
}

func (h *fakeWebhookHandler) Verify(req *domain.WebhookRequest) bool {
	h.bodies = append(h.bodies, req.Body)
	return req.Header("X-Test-Signature") == "valid"
}

func (h *fakeWebhookHandler) Normalize(req *domain.WebhookRequest) ([]domain.WebhookEvent, error) {
	var body struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return nil, err
	}
	return []domain.WebhookEvent{
		connectors.NewEvent(h.source, body.Event, "T1", req.Body, req.ReceivedAt),
	}, nil
}

func webhookRequest(signature, body string) *domain.WebhookRequest {
	headers := http.Header{}
	if signature != "" {
		headers.Set("X-Test-Signature", signature)
	}
	return &domain.WebhookRequest{Method: http.MethodPost, Headers: headers, Body: []byte(body)}
}

func newWebhookFixture(handler *fakeWebhookHandler, logger *zap.Logger) (*WebhookService, *fakePublisher) {
	pub := &fakePublisher{}
	return NewWebhookService(connectors.NewWebhookRegistry(handler), pub, logger), pub
}

func TestWebhookService_UnknownSource(t *testing.T) {
	svc, pub := newWebhookFixture(&fakeWebhookHandler{source: domain.SourceSlack}, nil)

	_, err := svc.Handle(context.Background(), domain.SourceFigma, webhookRequest("valid", `{}`))

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, pub.published())
}

func TestWebhookService_Challenge(t *testing.T) {
	svc, pub := newWebhookFixture(&fakeWebhookHandler{source: domain.SourceSlack}, nil)

	res, err := svc.Handle(context.Background(), domain.SourceSlack,
		webhookRequest("", `{"type":"url_verification","challenge":"abc"}`))

	require.NoError(t, err)
	require.NotNil(t, res.Challenge)
	assert.Equal(t, "abc", res.Challenge.Body)
	assert.Equal(t, "text/plain; charset=utf-8", res.Challenge.ContentType)
	assert.Empty(t, pub.published())
}

func TestWebhookService_ChallengeLogsVerificationToken(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := &fakeWebhookHandler{source: domain.SourceNotion, token: "secret_verify"}
	svc, _ := newWebhookFixture(handler, zap.New(core))

	_, err := svc.Handle(context.Background(), domain.SourceNotion,
		webhookRequest("", `{"type":"url_verification","challenge":""}`))
	require.NoError(t, err)

	entries := logs.FilterField(zap.String("verification_token", "secret_verify")).All()
	assert.Len(t, entries, 1)
}

func TestWebhookService_InvalidSignature(t *testing.T) {
	svc, pub := newWebhookFixture(&fakeWebhookHandler{source: domain.SourceLinear}, nil)

	_, err := svc.Handle(context.Background(), domain.SourceLinear, webhookRequest("forged", `{"event":"Issue"}`))

	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	assert.Empty(t, pub.published())
}

func TestWebhookService_PublishesVerifiedEvents(t *testing.T) {
	handler := &fakeWebhookHandler{source: domain.SourceLinear}
	svc, pub := newWebhookFixture(handler, nil)
	body := `{"event":"Issue"}`

	res, err := svc.Handle(context.Background(), domain.SourceLinear, webhookRequest("valid", body))

	require.NoError(t, err)
	assert.Nil(t, res.Challenge)
	assert.Equal(t, 1, res.Events)

	events := pub.published()
	require.Len(t, events, 1)
	assert.Equal(t, domain.SourceLinear, events[0].Source)
	assert.Equal(t, "Issue", events[0].EventType)
	assert.JSONEq(t, body, string(events[0].Payload))
	require.Len(t, handler.bodies, 1)
	assert.Equal(t, body, string(handler.bodies[0]), "verifier saw the same bytes")
}

func TestWebhookService_MalformedBody(t *testing.T) {
	svc, pub := newWebhookFixture(&fakeWebhookHandler{source: domain.SourceJira}, nil)

	_, err := svc.Handle(context.Background(), domain.SourceJira, webhookRequest("valid", `not json`))

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, pub.published())
}

func TestWebhookService_PublishFailure(t *testing.T) {
	svc, pub := newWebhookFixture(&fakeWebhookHandler{source: domain.SourceJira}, nil)
	pub.err = errProvider

	_, err := svc.Handle(context.Background(), domain.SourceJira, webhookRequest("valid", `{"event":"jira:issue_updated"}`))

	assert.ErrorIs(t, err, errProvider)
}

func TestWebhookService_ChallengeOnly(t *testing.T) {
	handler := &fakeWebhookHandler{source: domain.SourceSlack}
	svc, pub := newWebhookFixture(handler, nil)

	ch, err := svc.Challenge(context.Background(), domain.SourceSlack,
		webhookRequest("", `{"type":"url_verification","challenge":"abc"}`))

	require.NoError(t, err)
	assert.Equal(t, "abc", ch.Body)
	assert.Empty(t, pub.published())
}

func TestWebhookService_ChallengeNeverDelivers(t *testing.T) {
	handler := &fakeWebhookHandler{source: domain.SourceGoogle}
	svc, pub := newWebhookFixture(handler, nil)
	req := webhookRequest("valid", `{"event":"sync"}`)
	req.Method = http.MethodGet

	_, err := svc.Challenge(context.Background(), domain.SourceGoogle, req)

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, handler.bodies, "signature is never checked")
	assert.Empty(t, pub.published())
}

func TestWebhookService_ChallengeUnknownSource(t *testing.T) {
	svc, _ := newWebhookFixture(&fakeWebhookHandler{source: domain.SourceSlack}, nil)

	_, err := svc.Challenge(context.Background(), domain.SourceDropbox, webhookRequest("", ""))

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
