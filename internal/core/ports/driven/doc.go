// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
//   - Connector: uniform operations against one provider account
//   - ConnectorFactory: builds a Connector from a source and credentials
//   - OAuthConfigRegistry: static OAuth application configuration
//   - TokenExchanger: authorization code exchange
//   - PendingAuthStateStore: single-use OAuth state storage
//   - WebhookRegistry: verifies and normalizes inbound webhooks
//   - IntegrationStore, ArchiveStore: durable records
//   - SchedulerStore: scheduler task state
//   - RefreshLocker: serialises refreshes across instances
//   - EventPublisher: hands verified events to the job system
package driven
