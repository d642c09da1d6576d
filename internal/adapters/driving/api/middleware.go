package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Identity headers forwarded by the upstream session layer.
const (
	HeaderOrganizationID = "X-Organization-ID"
	HeaderUserID         = "X-User-ID"
)

const (
	ctxRequestID = "request_id"
	ctxOrgID     = "org_id"
	ctxUserID    = "user_id"
)

// requestContext assigns a request id and echoes it on the response.
func requestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.New().String()
			}
			c.Set(ctxRequestID, id)
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(c)
		}
	}
}

// accessLog logs one line per request after the handler has run.
func accessLog(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			req := c.Request()
			res := c.Response()
			logger.Info("request",
				zap.String("request_id", requestID(c)),
				zap.String("method", req.Method),
				zap.String("route", c.Path()),
				zap.Int("status", res.Status),
				zap.String("remote_ip", c.RealIP()),
				zap.Duration("latency", time.Since(start)),
				zap.Int64("response_size", res.Size),
			)
			return nil
		}
	}
}

// requireIdentity rejects callers without an organization and user, and
// checks the bearer token when one is configured.
func requireIdentity(apiToken string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if apiToken != "" {
				token, ok := strings.CutPrefix(req.Header.Get(echo.HeaderAuthorization), "Bearer ")
				if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(apiToken)) != 1 {
					return httperror.NewHTTPError(http.StatusUnauthorized, "invalid api token")
				}
			}
			orgID := strings.TrimSpace(req.Header.Get(HeaderOrganizationID))
			userID := strings.TrimSpace(req.Header.Get(HeaderUserID))
			if orgID == "" || userID == "" {
				return httperror.NewHTTPError(http.StatusUnauthorized, "missing caller identity")
			}
			c.Set(ctxOrgID, orgID)
			c.Set(ctxUserID, userID)
			return next(c)
		}
	}
}

func requestID(c echo.Context) string {
	id, _ := c.Get(ctxRequestID).(string)
	return id
}

func orgID(c echo.Context) string {
	id, _ := c.Get(ctxOrgID).(string)
	return id
}

func userID(c echo.Context) string {
	id, _ := c.Get(ctxUserID).(string)
	return id
}
