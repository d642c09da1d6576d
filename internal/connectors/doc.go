// Package connectors holds what every provider adapter shares: the
// capability-checked Base connector, the authorization URL strategy table,
// the OAuth config registry, a rate-limited REST client and webhook
// signature helpers.
//
// Provider adapters live in subpackages (google, microsoft, dropbox, slack,
// figma, linear, jira, notion) and are wired together by the factory
// subpackage.
package connectors
