package connectors

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

// RateLimitConfig holds rate limiting configuration for a source.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// DefaultRateLimits are conservative per-source defaults, well below the
// providers' published limits.
var DefaultRateLimits = map[domain.Source]RateLimitConfig{
	domain.SourceGoogle:    {RequestsPerSecond: 8.0, BurstSize: 10},
	domain.SourceMicrosoft: {RequestsPerSecond: 10.0, BurstSize: 20},
	domain.SourceDropbox:   {RequestsPerSecond: 10.0, BurstSize: 20},
	domain.SourceSlack:     {RequestsPerSecond: 1.0, BurstSize: 5}, // tier 2 methods
	domain.SourceFigma:     {RequestsPerSecond: 2.0, BurstSize: 5},
	domain.SourceLinear:    {RequestsPerSecond: 5.0, BurstSize: 10},
	domain.SourceJira:      {RequestsPerSecond: 5.0, BurstSize: 10},
	domain.SourceNotion:    {RequestsPerSecond: 3.0, BurstSize: 3}, // notion averages 3 rps
}

// RateLimiter provides rate limiting for provider requests.
// It uses a token bucket with an optional backoff after 429 responses.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewRateLimiter creates a limiter using the defaults for source.
func NewRateLimiter(source domain.Source) *RateLimiter {
	cfg, ok := DefaultRateLimits[source]
	if !ok {
		cfg = RateLimitConfig{RequestsPerSecond: 5.0, BurstSize: 10}
	}
	return NewRateLimiterWithConfig(cfg)
}

// NewRateLimiterWithConfig creates a rate limiter with custom configuration.
func NewRateLimiterWithConfig(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
	}
}

// Wait blocks until a request can be made without exceeding the rate limit.
// It also respects any backoff period set by RecordRateLimitError.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if time.Now().Before(retryAt) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(retryAt)):
		}
	}

	return r.limiter.Wait(ctx)
}

// RecordRateLimitError sets a backoff period after a 429 response.
func (r *RateLimiter) RecordRateLimitError(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if retryAfter <= 0 {
		retryAfter = 60 * time.Second
	}
	r.retryAt = time.Now().Add(retryAfter)
}

// Allow reports whether a request can be made immediately.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if time.Now().Before(retryAt) {
		return false
	}
	return r.limiter.Allow()
}
