package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4 << 10

// APIError represents an unexpected provider response.
type APIError struct {
	Source     domain.Source
	StatusCode int
	Body       string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API error %d: %s (URL: %s)", e.Source, e.StatusCode, e.Body, e.URL)
}

// StatusCode extracts the HTTP status of an APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// RESTClient is a small JSON client for providers without a Go SDK.
type RESTClient struct {
	source  domain.Source
	base    string
	token   string
	client  *http.Client
	limiter *RateLimiter
	header  http.Header
}

// NewRESTClient creates a client that sends the access token as a bearer.
func NewRESTClient(source domain.Source, base, token string, client *http.Client, limiter *RateLimiter) *RESTClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &RESTClient{
		source:  source,
		base:    strings.TrimRight(base, "/"),
		token:   token,
		client:  client,
		limiter: limiter,
		header:  http.Header{},
	}
}

// SetHeader adds a header to every request.
func (c *RESTClient) SetHeader(key, value string) {
	c.header.Set(key, value)
}

// Base returns the API root.
func (c *RESTClient) Base() string {
	return c.base
}

// Do sends a JSON request and decodes a JSON response into out.
// A nil in or out skips the body in that direction.
func (c *RESTClient) Do(ctx context.Context, method, path string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	url := c.base + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp, url)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError maps a non-2xx response onto the domain taxonomy.
func (c *RESTClient) statusError(resp *http.Response, url string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{
		Source:     c.source,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(raw)),
		URL:        url,
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", domain.ErrAuth, apiErr)
	case http.StatusNotFound, http.StatusGone:
		return fmt.Errorf("%w: %w", domain.ErrNotFound, apiErr)
	case http.StatusTooManyRequests:
		if c.limiter != nil {
			c.limiter.RecordRateLimitError(retryAfter(resp.Header))
		}
		return fmt.Errorf("%w: %w", domain.ErrRateLimited, apiErr)
	default:
		return apiErr
	}
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// IsUnauthorized reports whether err is a credential failure.
// TestConnection uses it to turn 401/403 into (false, nil).
func IsUnauthorized(err error) bool {
	return errors.Is(err, domain.ErrAuth)
}
