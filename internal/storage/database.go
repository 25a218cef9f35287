// Package storage handles persistence: where framed images are written on
// disk, and the SQLite ledger of batch runs.
package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" database/sql driver
)

// schema is applied on every open; CREATE ... IF NOT EXISTS keeps it idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    format      TEXT NOT NULL,
    total       INTEGER NOT NULL DEFAULT 0,
    succeeded   INTEGER NOT NULL DEFAULT 0,
    failed      INTEGER NOT NULL DEFAULT 0,
    canceled    INTEGER NOT NULL DEFAULT 0,
    status      TEXT NOT NULL DEFAULT 'running',
    started_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS image_results (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id        INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    source_path   TEXT NOT NULL,
    output_path   TEXT,
    status        TEXT NOT NULL,
    error_message TEXT,
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_image_results_run ON image_results(run_id);
CREATE INDEX IF NOT EXISTS idx_image_results_status ON image_results(status);
`

// NewDatabase opens (creating if needed) the SQLite ledger at dbPath and
// applies the schema.
//
// Go note: the constructor both creates the resource and proves it works
// (Ping), so a returned *sqlx.DB is always usable.
func NewDatabase(dbPath string) (*sqlx.DB, error) {
	// WAL lets the admin stats endpoint read while a batch writes;
	// busy_timeout waits on lock contention instead of failing.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", dbPath)

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Batch workers record results concurrently; SQLite wants one writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}
