// Package slack implements the Slack connector with slack-go. Archived
// channels are restored with conversations.unarchive; events are
// configured per app and verified with the signing secret.
package slack
