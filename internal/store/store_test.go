package store

import (
	"database/sql"
	"testing"
)

// newTestDB opens a fresh in-memory SQLite database with the schema
// applied. Each call gets its own database: the mode=memory&cache=shared
// DSN together with a unique name keeps parallel subtests isolated.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared&_journal_mode=WAL&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}
