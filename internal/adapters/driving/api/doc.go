// Package api is the HTTP driving adapter. It exposes the OAuth handshake,
// integration management, archive restore and inbound webhooks on echo.
package api
