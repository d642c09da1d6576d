// Package sqlite provides a SQLite-based implementation of the storage ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. It implements three store interfaces over a single database connection:
//
//   - IntegrationStore: integration records, unique per (organization, source)
//   - ArchiveStore: items archived by the hygiene jobs
//   - SchedulerStore: scheduler task state and run history
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. Applied versions are recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.sweep/data/sweep.db
//
// # Thread Safety
//
// All operations are safe for concurrent use. SQLite runs in WAL mode with a
// busy timeout, which suits a single service instance. Use the postgres
// adapter when several instances share state.
package sqlite
