// Package services implements the driving port interfaces.
// Services hold the connector-layer workflows (authorize, refresh,
// disconnect, restore, webhook intake) and orchestrate calls to driven
// ports (adapters). They never talk to providers directly.
package services
