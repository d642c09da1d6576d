// Package microsoft implements the OneDrive connector on Microsoft Graph.
package microsoft
