package domain

import "strings"

// Capability represents the operations a connector supports.
// This is a bitfield allowing connectors to declare several operations.
type Capability uint8

const (
	// CapNone indicates no operations are supported.
	CapNone Capability = 0
	// CapRefreshToken indicates the access token can be refreshed.
	CapRefreshToken Capability = 1 << 0
	// CapTestConnection indicates credentials can be checked live.
	CapTestConnection Capability = 1 << 1
	// CapRestoreFile indicates archived items can be restored.
	CapRestoreFile Capability = 1 << 2
	// CapWebhooks indicates webhook (un)registration is supported,
	// including app-level no-op variants.
	CapWebhooks Capability = 1 << 3
)

// Has returns true if every bit in other is set.
func (c Capability) Has(other Capability) bool {
	return c&other == other
}

// SupportsRefresh returns true if token refresh is supported.
func (c Capability) SupportsRefresh() bool {
	return c.Has(CapRefreshToken)
}

// SupportsTest returns true if connection testing is supported.
func (c Capability) SupportsTest() bool {
	return c.Has(CapTestConnection)
}

// SupportsRestore returns true if restore is supported.
func (c Capability) SupportsRestore() bool {
	return c.Has(CapRestoreFile)
}

// SupportsWebhooks returns true if webhook registration is supported.
func (c Capability) SupportsWebhooks() bool {
	return c.Has(CapWebhooks)
}

// String returns a human-readable representation.
func (c Capability) String() string {
	if c == CapNone {
		return "none"
	}
	var parts []string
	if c.SupportsRefresh() {
		parts = append(parts, "refresh")
	}
	if c.SupportsTest() {
		parts = append(parts, "test")
	}
	if c.SupportsRestore() {
		parts = append(parts, "restore")
	}
	if c.SupportsWebhooks() {
		parts = append(parts, "webhooks")
	}
	return strings.Join(parts, ",")
}
