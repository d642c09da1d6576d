package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

func sourceParam(c echo.Context) (domain.Source, error) {
	return domain.ParseSource(c.Param("source"))
}

func (s *Server) listSources(c echo.Context) error {
	return c.JSON(http.StatusOK, s.services.Sources.Sources())
}

// authorize redirects the browser to the provider. Failures land on the
// settings page rather than a JSON body.
func (s *Server) authorize(c echo.Context) error {
	source, err := sourceParam(c)
	if err != nil {
		return s.settingsRedirect(c, url.Values{"error": {err.Error()}})
	}
	redirect, err := s.services.OAuth.Authorize(c.Request().Context(), source, orgID(c), userID(c), authorizeParams(c))
	if err != nil {
		s.logger.Warn("authorize failed", zap.String("source", source.String()), zap.Error(err))
		return s.settingsRedirect(c, url.Values{"error": {err.Error()}})
	}
	return c.Redirect(http.StatusFound, redirect)
}

// authorizeParams picks the known provider hints off the query string.
func authorizeParams(c echo.Context) map[string]string {
	var params map[string]string
	for _, name := range domain.AuthorizeParams {
		if v := strings.TrimSpace(c.QueryParam(name)); v != "" {
			if params == nil {
				params = make(map[string]string)
			}
			params[name] = v
		}
	}
	return params
}

func (s *Server) callback(c echo.Context) error {
	source, err := sourceParam(c)
	if err != nil {
		return s.settingsRedirect(c, url.Values{"error": {err.Error()}})
	}

	query := c.QueryParams()
	if providerErr := query.Get("error"); providerErr != "" {
		msg := providerErr
		if desc := query.Get("error_description"); desc != "" {
			msg += ": " + desc
		}
		return s.settingsRedirect(c, url.Values{"error": {msg}})
	}

	if _, err := s.services.OAuth.Callback(c.Request().Context(), source, query.Get("code"), query.Get("state")); err != nil {
		s.logger.Warn("oauth callback failed", zap.String("source", source.String()), zap.Error(err))
		return s.settingsRedirect(c, url.Values{"error": {err.Error()}})
	}
	return s.settingsRedirect(c, url.Values{"connected": {source.Slug()}})
}

// settingsRedirect sends the browser to the settings page with params merged
// into its query string.
func (s *Server) settingsRedirect(c echo.Context, params url.Values) error {
	target, err := url.Parse(s.settings.SettingsURL)
	if err != nil || s.settings.SettingsURL == "" {
		return httperror.NewHTTPError(http.StatusInternalServerError, "settings url is not configured")
	}
	q := target.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	target.RawQuery = q.Encode()
	return c.Redirect(http.StatusFound, target.String())
}

func (s *Server) listIntegrations(c echo.Context) error {
	creds, err := s.services.Integrations.List(c.Request().Context(), orgID(c))
	if err != nil {
		return err
	}
	if creds == nil {
		creds = []domain.IntegrationCredential{}
	}
	return c.JSON(http.StatusOK, creds)
}

func (s *Server) refresh(c echo.Context) error {
	source, err := sourceParam(c)
	if err != nil {
		return err
	}
	cred, err := s.services.Integrations.Refresh(c.Request().Context(), orgID(c), source)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cred)
}

func (s *Server) testConnection(c echo.Context) error {
	source, err := sourceParam(c)
	if err != nil {
		return err
	}
	ok, err := s.services.Integrations.TestConnection(c.Request().Context(), orgID(c), source)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"connected": ok})
}

func (s *Server) disconnect(c echo.Context) error {
	source, err := sourceParam(c)
	if err != nil {
		return err
	}
	if err := s.services.Integrations.Disconnect(c.Request().Context(), orgID(c), source); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) restore(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "archive id is required")
	}
	item, err := s.services.Integrations.Restore(c.Request().Context(), orgID(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}
