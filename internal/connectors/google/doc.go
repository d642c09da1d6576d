// Package google implements the Google Drive connector.
//
// Restores un-trash files, webhooks use Drive changes.watch channels, and
// the account email is read from the about resource. Requests go through
// the generated drive/v3 client with a static bearer token:
//
//	svc, err := google.NewDriveService(ctx, httpClient, accessToken, apiBase)
//
// # OAuth2 Scopes
//
//   - https://www.googleapis.com/auth/drive
//   - https://www.googleapis.com/auth/userinfo.email
package google
