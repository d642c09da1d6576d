package connectors

import (
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// RewriteTransport sends every request to Target, keeping the path.
// SDKs with hard-coded hosts are pointed at test servers this way.
type RewriteTransport struct {
	Target *url.URL
	Base   http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *RewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.URL.Scheme = t.Target.Scheme
	r.URL.Host = t.Target.Host
	if prefix := strings.TrimRight(t.Target.Path, "/"); prefix != "" {
		r.URL.Path = prefix + r.URL.Path
	}
	r.Host = t.Target.Host

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}

// BearerClient returns a client that authenticates with a static access
// token. When apiBase is set every request is rewritten to it.
func BearerClient(base *http.Client, token, apiBase string) (*http.Client, error) {
	if base == nil {
		base = http.DefaultClient
	}
	rt := base.Transport
	if apiBase != "" {
		target, err := url.Parse(apiBase)
		if err != nil {
			return nil, err
		}
		rt = &RewriteTransport{Target: target, Base: rt}
	}
	return &http.Client{
		Timeout: base.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   rt,
		},
	}, nil
}
