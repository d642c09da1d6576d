package connectors

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

// scopeStyle says how a provider wants scopes in the authorize URL.
type scopeStyle int

const (
	scopeSpace scopeStyle = iota
	scopeComma
	scopeOmit
)

// authStrategy is one row of the authorization URL table.
type authStrategy struct {
	scopes scopeStyle
	extra  func(cfg *domain.OAuthConfig) map[string]string
}

func fixed(params map[string]string) func(*domain.OAuthConfig) map[string]string {
	return func(*domain.OAuthConfig) map[string]string { return params }
}

var authStrategies = map[domain.Source]authStrategy{
	domain.SourceGoogle: {
		scopes: scopeSpace,
		extra: fixed(map[string]string{
			"access_type":            "offline",
			"prompt":                 "consent",
			"include_granted_scopes": "true",
		}),
	},
	domain.SourceMicrosoft: {
		scopes: scopeSpace,
		extra:  fixed(map[string]string{"response_mode": "query", "prompt": "consent"}),
	},
	domain.SourceDropbox: {
		scopes: scopeOmit,
		extra:  fixed(map[string]string{"token_access_type": "offline"}),
	},
	domain.SourceSlack: {
		scopes: scopeComma,
		extra: func(cfg *domain.OAuthConfig) map[string]string {
			return map[string]string{"user_scope": strings.Join(cfg.UserScopes, ",")}
		},
	},
	domain.SourceFigma: {
		scopes: scopeComma,
	},
	domain.SourceLinear: {
		scopes: scopeComma,
		extra:  fixed(map[string]string{"actor": "application", "prompt": "consent"}),
	},
	domain.SourceJira: {
		scopes: scopeSpace,
		extra:  fixed(map[string]string{"audience": "api.atlassian.com", "prompt": "consent"}),
	},
	domain.SourceNotion: {
		scopes: scopeOmit,
		extra:  fixed(map[string]string{"owner": "user"}),
	},
}

// BuildAuthURL returns the provider consent URL for cfg carrying state.
// Empty parameters are left out and keys are encoded in sorted order.
func BuildAuthURL(cfg *domain.OAuthConfig, state string) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("%w: missing OAuth config", domain.ErrConfiguration)
	}
	if state == "" {
		return "", fmt.Errorf("%w: empty state", domain.ErrInvalidInput)
	}
	strategy, ok := authStrategies[cfg.Source]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedSource, cfg.Source)
	}
	if cfg.AuthorizationURL == "" || cfg.ClientID == "" {
		return "", fmt.Errorf("%w: %s authorization URL or client id is not set",
			domain.ErrConfiguration, cfg.Source)
	}

	u, err := url.Parse(cfg.AuthorizationURL)
	if err != nil {
		return "", fmt.Errorf("%w: parse authorization URL: %w", domain.ErrConfiguration, err)
	}

	q := u.Query()
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("client_id", cfg.ClientID)
	set("redirect_uri", cfg.RedirectURI)
	set("state", state)
	set("response_type", "code")

	switch strategy.scopes {
	case scopeSpace:
		set("scope", strings.Join(cfg.Scopes, " "))
	case scopeComma:
		set("scope", strings.Join(cfg.Scopes, ","))
	}
	if strategy.extra != nil {
		for k, v := range strategy.extra(cfg) {
			set(k, v)
		}
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}
