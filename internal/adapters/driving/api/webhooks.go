package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

const defaultMaxWebhookBytes = 1 << 20

// webhook runs the inbound notification flow. The body is read once and the
// same bytes are verified and parsed.
func (s *Server) webhook(c echo.Context) error {
	source, err := sourceParam(c)
	if err != nil {
		return err
	}
	req, err := s.captureRequest(c)
	if err != nil {
		return err
	}

	res, err := s.services.Webhooks.Handle(c.Request().Context(), source, req)
	if err != nil {
		return err
	}
	if res.Challenge != nil {
		return writeChallenge(c, res.Challenge)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// webhookChallenge answers GET handshakes (Dropbox challenge, Microsoft
// validationToken). GET never delivers events; anything else is not found.
func (s *Server) webhookChallenge(c echo.Context) error {
	source, err := sourceParam(c)
	if err != nil {
		return err
	}
	req := &domain.WebhookRequest{
		Method:     http.MethodGet,
		Headers:    c.Request().Header.Clone(),
		Query:      c.QueryParams(),
		ReceivedAt: s.now(),
	}

	challenge, err := s.services.Webhooks.Challenge(c.Request().Context(), source, req)
	if errors.Is(err, domain.ErrNotFound) {
		return httperror.NewHTTPError(http.StatusNotFound, "no webhook handshake for this request")
	}
	if err != nil {
		return err
	}
	return writeChallenge(c, challenge)
}

func (s *Server) captureRequest(c echo.Context) (*domain.WebhookRequest, error) {
	limit := s.settings.MaxWebhookBytes
	if limit <= 0 {
		limit = defaultMaxWebhookBytes
	}
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading webhook body: %w", domain.ErrInvalidInput, err)
	}
	if int64(len(body)) > limit {
		return nil, httperror.NewHTTPError(http.StatusRequestEntityTooLarge, "webhook body too large")
	}
	return &domain.WebhookRequest{
		Method:     c.Request().Method,
		Headers:    c.Request().Header.Clone(),
		Query:      c.QueryParams(),
		Body:       body,
		ReceivedAt: s.now(),
	}, nil
}

func writeChallenge(c echo.Context, ch *domain.ChallengeResponse) error {
	status := ch.Status
	if status == 0 {
		status = http.StatusOK
	}
	contentType := ch.ContentType
	if contentType == "" {
		contentType = echo.MIMETextPlainCharsetUTF8
	}
	return c.Blob(status, contentType, []byte(ch.Body))
}
