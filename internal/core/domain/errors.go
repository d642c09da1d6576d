package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist,
	// locally or at the provider.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrConfiguration indicates missing or invalid provider configuration.
	// Not retryable; surfaced to an administrator.
	ErrConfiguration = errors.New("configuration error")

	// ErrAuth indicates expired, revoked or absent credentials.
	// The organization must reconnect the source.
	ErrAuth = errors.New("authentication failed")

	// ErrUnsupportedOperation indicates the connector lacks a capability.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrUnsupportedSource indicates an unknown source.
	ErrUnsupportedSource = errors.New("unsupported source")

	// ErrInvalidState indicates an OAuth state that is unknown, consumed or expired.
	ErrInvalidState = errors.New("invalid oauth state")

	// ErrInvalidSignature indicates a webhook failed verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrAlreadyRestored indicates the archived item was restored before.
	ErrAlreadyRestored = errors.New("already restored")

	// ErrRateLimited indicates the provider rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)

// ConnectorError attaches provider context to a failure.
// It unwraps to the underlying sentinel so errors.Is keeps working.
type ConnectorError struct {
	Source Source
	Op     string
	Err    error
}

// NewConnectorError wraps err for the given source and operation.
func NewConnectorError(source Source, op string, err error) *ConnectorError {
	return &ConnectorError{Source: source, Op: op, Err: err}
}

func (e *ConnectorError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Source, e.Op, e.Err)
}

func (e *ConnectorError) Unwrap() error {
	return e.Err
}
