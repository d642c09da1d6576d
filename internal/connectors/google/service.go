package google

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// NewTokenSource wraps a stored access token. Refresh is driven by the
// integration service, never by the Google client.
func NewTokenSource(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})
}

// NewDriveService creates a Drive API service for accessToken.
// A non-empty endpoint replaces the default API root.
func NewDriveService(ctx context.Context, base *http.Client, accessToken, endpoint string) (*drive.Service, error) {
	if base == nil {
		base = http.DefaultClient
	}
	client := &http.Client{
		Timeout: base.Timeout,
		Transport: &oauth2.Transport{
			Source: NewTokenSource(accessToken),
			Base:   base.Transport,
		},
	}

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if endpoint != "" {
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return drive.NewService(ctx, opts...)
}
