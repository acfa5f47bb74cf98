// Package pgstore is the optional managed-mode backend (spec §6.4
// "managed mode"): swaps the filestore/sqlitestore JSON-and-sqlite
// defaults for a shared Postgres database via jackc/pgx/v5's stdlib
// driver, with schema evolution handled by golang-migrate/migrate/v4.
// Grounded on goclaw's internal/store/pg package (NewPGStores wiring,
// ApiKey/session CRUD style) and cmd/migrate.go (driver registration,
// migration runner). goclaw's own OpenDB helper was not present in the
// retrieval pack, so the connection setup here follows
// rakunlabs-at's internal/store/sqlite3.New (ping, pool sizing) adapted
// to Postgres.
package pgstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenDB opens a pooled connection to dsn and verifies connectivity.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	return db, nil
}
