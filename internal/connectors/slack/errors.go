package slack

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/slack-go/slack"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

// authErrors are Slack error codes meaning the token is unusable.
var authErrors = map[string]bool{
	"invalid_auth":     true,
	"not_authed":       true,
	"token_revoked":    true,
	"token_expired":    true,
	"account_inactive": true,
	"missing_scope":    true,
}

// notFoundErrors mean the conversation no longer exists.
var notFoundErrors = map[string]bool{
	"channel_not_found": true,
}

// WrapError converts a slack-go error to the domain taxonomy.
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	var rateErr *slack.RateLimitedError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
	}

	var statusErr slack.StatusCodeError
	if errors.As(err, &statusErr) {
		switch statusErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", domain.ErrAuth, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
		}
		return err
	}

	var apiErr slack.SlackErrorResponse
	if errors.As(err, &apiErr) {
		switch {
		case authErrors[apiErr.Err]:
			return fmt.Errorf("%w: %w", domain.ErrAuth, err)
		case notFoundErrors[apiErr.Err]:
			return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
		}
	}
	return err
}

// isNotArchived reports Slack's answer for a channel that is already active.
func isNotArchived(err error) bool {
	var apiErr slack.SlackErrorResponse
	return errors.As(err, &apiErr) && apiErr.Err == "not_archived"
}
