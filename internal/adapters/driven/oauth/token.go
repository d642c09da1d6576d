// Package oauth performs OAuth 2.0 token exchange and refresh against
// provider token endpoints.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// extraKeys are token response fields carried into domain.OAuthToken.Extra.
var extraKeys = []string{
	"team",           // slack
	"bot_user_id",    // slack
	"authed_user",    // slack
	"workspace_id",   // notion
	"workspace_name", // notion
	"bot_id",         // notion
	"account_id",     // dropbox
	"user_id",        // figma
}

// Client exchanges codes and refreshes tokens.
type Client struct {
	httpClient *http.Client
}

var _ driven.TokenExchanger = (*Client)(nil)

// NewClient creates a token client. A nil httpClient gets a 30 second timeout.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{httpClient: httpClient}
}

// Config converts domain configuration into an oauth2.Config.
func Config(cfg *domain.OAuthConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.AuthorizationURL,
			TokenURL:  cfg.TokenURL,
			AuthStyle: authStyle(cfg.Source),
		},
	}
}

// authStyle returns how client credentials are sent to the token endpoint.
// Notion only accepts HTTP Basic; the rest take form parameters.
func authStyle(source domain.Source) oauth2.AuthStyle {
	if source == domain.SourceNotion {
		return oauth2.AuthStyleInHeader
	}
	return oauth2.AuthStyleInParams
}

// Exchange trades an authorization code for tokens.
func (c *Client) Exchange(ctx context.Context, cfg *domain.OAuthConfig, code string) (*domain.OAuthToken, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code is empty", domain.ErrInvalidInput)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := Config(cfg).Exchange(ctx, code)
	if err != nil {
		return nil, mapError(cfg.Source, "exchange code", err)
	}
	return toDomain(tok), nil
}

// Refresh exchanges a refresh token for a new access token.
// Returns domain.ErrAuth when the refresh token is absent or rejected.
func (c *Client) Refresh(ctx context.Context, cfg *domain.OAuthConfig, refreshToken string) (*domain.OAuthToken, error) {
	if refreshToken == "" {
		return nil, domain.NewConnectorError(cfg.Source, "refresh token",
			fmt.Errorf("%w: no refresh token stored", domain.ErrAuth))
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	// An empty access token is never valid, so Token() always hits the endpoint.
	src := Config(cfg).TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, mapError(cfg.Source, "refresh token", err)
	}
	return toDomain(tok), nil
}

func toDomain(tok *oauth2.Token) *domain.OAuthToken {
	out := &domain.OAuthToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		Extra:        map[string]any{},
	}
	for _, key := range extraKeys {
		if v := tok.Extra(key); v != nil {
			out.Extra[key] = v
		}
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		out.Scopes = splitScopes(scope)
	}
	return out
}

// splitScopes handles both space- and comma-delimited scope strings.
func splitScopes(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ','
	})
}

// mapError classifies token endpoint failures.
func mapError(source domain.Source, op string, err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		switch rerr.ErrorCode {
		case "invalid_client", "unauthorized_client":
			return domain.NewConnectorError(source, op, fmt.Errorf("%w: %s", domain.ErrConfiguration, rerr.ErrorCode))
		case "invalid_grant", "invalid_token", "invalid_request", "access_denied", "invalid_refresh_token":
			return domain.NewConnectorError(source, op, fmt.Errorf("%w: %s", domain.ErrAuth, rerr.ErrorCode))
		}
		if rerr.Response != nil {
			status := rerr.Response.StatusCode
			if status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden {
				return domain.NewConnectorError(source, op, fmt.Errorf("%w: status %d", domain.ErrAuth, status))
			}
		}
		return domain.NewConnectorError(source, op, err)
	}
	// Providers that answer 200 with an error body (Slack) surface as a
	// missing access token.
	if strings.Contains(err.Error(), "missing access_token") {
		return domain.NewConnectorError(source, op, fmt.Errorf("%w: provider returned no access token", domain.ErrAuth))
	}
	return domain.NewConnectorError(source, op, err)
}
