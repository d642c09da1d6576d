package dropbox

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

// WrapError converts an SDK error to the domain taxonomy. The SDK reports
// endpoint errors through their error summary ("path/not_found/..").
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	summary := err.Error()
	var apiErr dropbox.APIError
	if errors.As(err, &apiErr) {
		summary = apiErr.ErrorSummary
	}
	switch {
	case strings.Contains(summary, "invalid_access_token"),
		strings.Contains(summary, "expired_access_token"),
		strings.Contains(summary, "missing_scope"):
		return fmt.Errorf("%w: %w", domain.ErrAuth, err)
	case strings.Contains(summary, "not_found"),
		strings.Contains(summary, "invalid_revision"):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case strings.Contains(summary, "too_many_requests"):
		return fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
	default:
		return err
	}
}
