// Package dropbox implements the Dropbox connector on the official
// unofficial Go SDK. Restores put back the latest revision of a deleted
// file. Webhooks are configured once per app, so registration is a no-op
// and inbound notifications are signed with the app secret.
package dropbox
