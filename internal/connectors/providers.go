package connectors

import "github.com/custodia-labs/sweep/internal/core/domain"

// ProviderDefaults are the endpoints and scopes used when settings do not
// override them.
type ProviderDefaults struct {
	AuthURL    string
	TokenURL   string
	APIBase    string
	Scopes     []string
	UserScopes []string
}

var providerDefaults = map[domain.Source]ProviderDefaults{
	domain.SourceGoogle: {
		AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL: "https://oauth2.googleapis.com/token",
		APIBase:  "https://www.googleapis.com/drive/v3/",
		Scopes: []string{
			"https://www.googleapis.com/auth/drive",
			"https://www.googleapis.com/auth/userinfo.email",
		},
	},
	domain.SourceMicrosoft: {
		AuthURL:  "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
		TokenURL: "https://login.microsoftonline.com/common/oauth2/v2.0/token",
		APIBase:  "https://graph.microsoft.com/v1.0",
		Scopes:   []string{"offline_access", "User.Read", "Files.ReadWrite.All"},
	},
	domain.SourceDropbox: {
		AuthURL:  "https://www.dropbox.com/oauth2/authorize",
		TokenURL: "https://api.dropboxapi.com/oauth2/token",
		Scopes:   []string{"account_info.read", "files.metadata.read", "files.content.write"},
	},
	domain.SourceSlack: {
		AuthURL:    "https://slack.com/oauth/v2/authorize",
		TokenURL:   "https://slack.com/api/oauth.v2.access",
		APIBase:    "https://slack.com/api",
		Scopes:     []string{"channels:read", "channels:manage", "groups:read", "groups:write", "team:read"},
		UserScopes: []string{"channels:write", "groups:write"},
	},
	domain.SourceFigma: {
		AuthURL:  "https://www.figma.com/oauth",
		TokenURL: "https://api.figma.com/v1/oauth/token",
		APIBase:  "https://api.figma.com",
		Scopes:   []string{"files:read", "webhooks:write"},
	},
	domain.SourceLinear: {
		AuthURL:  "https://linear.app/oauth/authorize",
		TokenURL: "https://api.linear.app/oauth/token",
		APIBase:  "https://api.linear.app",
		Scopes:   []string{"read", "write", "admin"},
	},
	domain.SourceJira: {
		AuthURL:  "https://auth.atlassian.com/authorize",
		TokenURL: "https://auth.atlassian.com/oauth/token",
		APIBase:  "https://api.atlassian.com",
		Scopes: []string{
			"read:jira-work", "write:jira-work", "read:jira-user",
			"manage:jira-webhook", "offline_access",
		},
	},
	domain.SourceNotion: {
		AuthURL:  "https://api.notion.com/v1/oauth/authorize",
		TokenURL: "https://api.notion.com/v1/oauth/token",
		APIBase:  "https://api.notion.com",
	},
}

// Defaults returns the built-in endpoints for source.
func Defaults(source domain.Source) ProviderDefaults {
	d := providerDefaults[source]
	d.Scopes = append([]string(nil), d.Scopes...)
	d.UserScopes = append([]string(nil), d.UserScopes...)
	return d
}
