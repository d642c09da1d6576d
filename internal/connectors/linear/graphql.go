package linear

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
)

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
		Type string `json:"type"`
	} `json:"extensions"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// GraphQLError is an error reported in the GraphQL errors array.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "linear: " + strings.Join(e.Messages, "; ")
}

// query runs a GraphQL operation and decodes data into out.
func query(ctx context.Context, api *connectors.RESTClient, q string, vars map[string]any, out any) error {
	var resp gqlResponse
	if err := api.Do(ctx, http.MethodPost, "/graphql", gqlRequest{Query: q, Variables: vars}, &resp); err != nil {
		return err
	}
	if len(resp.Errors) > 0 {
		return classify(resp.Errors)
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// classify maps GraphQL errors onto the domain taxonomy.
func classify(errs []gqlError) error {
	gerr := &GraphQLError{}
	var auth, notFound bool
	for _, e := range errs {
		gerr.Messages = append(gerr.Messages, e.Message)
		code := strings.ToUpper(e.Extensions.Code + " " + e.Extensions.Type)
		msg := strings.ToLower(e.Message)
		switch {
		case strings.Contains(code, "AUTHENTICATION"), strings.Contains(msg, "authentication required"):
			auth = true
		case strings.Contains(msg, "not found"), strings.Contains(code, "NOT_FOUND"):
			notFound = true
		}
	}
	switch {
	case auth:
		return fmt.Errorf("%w: %w", domain.ErrAuth, gerr)
	case notFound:
		return fmt.Errorf("%w: %w", domain.ErrNotFound, gerr)
	default:
		return gerr
	}
}
