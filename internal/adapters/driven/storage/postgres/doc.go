// Package postgres implements the integration and archive stores on
// PostgreSQL for deployments that run several instances.
//
// Queries are built with go-sqlbuilder in the PostgreSQL flavor and run
// through sqlx. The schema is applied from embedded migrations with
// golang-migrate. Provider metadata is stored as JSONB.
package postgres
