// Package database manages the SQLite connection for AV Bridge Core.
//
// It wraps database/sql with WAL-mode configuration, connection lifecycle,
// health checks, and an embedded-migration runner. Migration files are
// registered by the top-level migrations package via MigrationsFS.
package database
