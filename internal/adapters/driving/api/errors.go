package api

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Message   string `json:"message"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

// errorMapping is checked in order; the first sentinel matched wins.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrUnsupportedSource, http.StatusNotFound, "unsupported_source"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{domain.ErrUnsupportedOperation, http.StatusBadRequest, "unsupported_operation"},
	{domain.ErrInvalidState, http.StatusBadRequest, "invalid_state"},
	{domain.ErrInvalidSignature, http.StatusUnauthorized, "invalid_signature"},
	{domain.ErrAuth, http.StatusUnauthorized, "auth"},
	{domain.ErrAlreadyRestored, http.StatusConflict, "already_restored"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{domain.ErrNotImplemented, http.StatusNotImplemented, "not_implemented"},
	{domain.ErrConfiguration, http.StatusInternalServerError, "configuration"},
}

// classify returns the HTTP status and error code for err.
func classify(err error) (int, string) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusBadGateway, "provider"
}

// errorHandler renders errors returned by handlers as ErrorResponse.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, code := classify(err)
		message := err.Error()

		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			status = he.Code
			code = codeForStatus(he.Code)
			if msg, ok := he.Message.(string); ok {
				message = msg
			} else {
				message = http.StatusText(he.Code)
			}
		case httperror.IsHTTPError(err):
			status = httperror.GetStatusCode(err)
			code = codeForStatus(status)
			message = httperror.ToHTTPError(err).Error()
		}

		fields := []zap.Field{
			zap.String("request_id", requestID(c)),
			zap.String("route", c.Path()),
			zap.Int("status", status),
			zap.Error(err),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", fields...)
		} else {
			logger.Debug("request rejected", fields...)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, ErrorResponse{
			Message:   message,
			Code:      code,
			RequestID: requestID(c),
		})
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_input"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	default:
		return "error"
	}
}
