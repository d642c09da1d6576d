// Package domain defines the core entities of the Sweep connector service.
//
// This package is the innermost layer of the hexagon. It holds:
//
//   - Source: the fixed set of SaaS providers
//   - IntegrationCredential: an organization's connection to one source
//   - Metadata: per-source state attached to an integration
//   - OAuthPendingState: a single-use authorization handshake
//   - ArchivedItem: an item that can be restored at its provider
//   - WebhookEvent: a verified, normalized provider notification
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
