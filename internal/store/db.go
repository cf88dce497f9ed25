// Package store is the relational persistence layer (spec.md §4.7). It
// wraps database/sql over mattn/go-sqlite3, following the teacher's
// tasks.Store and events.SQLiteStore conventions: TEXT primary keys,
// JSON-serialized map/slice columns, sql.NullString/sql.NullTime scan
// targets, and ON CONFLICT upserts.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens the SQLite database at dsn and applies pragmas suited to a
// single-writer, many-reader workload (WAL mode, foreign keys on).
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite allows only one writer; cap the pool so writers serialize
	// through database/sql instead of piling up as busy-retry errors.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}
