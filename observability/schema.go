// Package observability records what the assistant did to a SQLite audit
// store: one row per handled command (navigation, click, section lookup,
// image description) plus process heartbeats. Writes never propagate
// errors to the caller; a broken audit store must not break navigation.
package observability

import (
	"database/sql"
	"fmt"
)

// Schema contains the DDL for the audit tables.
const Schema = `
-- Navigation events: one row per handled user command.
CREATE TABLE IF NOT EXISTS nav_events (
    event_id      TEXT PRIMARY KEY,
    timestamp     INTEGER NOT NULL,
    channel       TEXT NOT NULL,
    sender_id     TEXT,
    kind          TEXT NOT NULL,
    target        TEXT,
    url           TEXT,
    status        TEXT NOT NULL,
    error_message TEXT,
    duration_ms   INTEGER,
    created_at    INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_nav_events_time ON nav_events(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_nav_events_kind ON nav_events(kind, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_nav_events_status ON nav_events(status);

-- Worker heartbeats: process liveness with runtime stats.
CREATE TABLE IF NOT EXISTS worker_heartbeats (
    heartbeat_id     TEXT PRIMARY KEY DEFAULT ('hb_' || hex(randomblob(16))),
    worker_name      TEXT NOT NULL,
    hostname         TEXT NOT NULL,
    worker_pid       INTEGER NOT NULL,
    timestamp        INTEGER NOT NULL,
    goroutines_count INTEGER,
    memory_alloc_mb  REAL,
    memory_sys_mb    REAL,
    gc_count         INTEGER,
    created_at       INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_heartbeats_worker_time
    ON worker_heartbeats(worker_name, timestamp DESC);
`

// OpenDB opens the audit SQLite database at path with WAL journaling and
// a 5s busy timeout. The caller must blank-import the driver:
//
//	import _ "modernc.org/sqlite"
func OpenDB(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("observability: open %s: %w", path, err)
	}
	// SQLite handles one writer at a time; more connections just queue.
	db.SetMaxOpenConns(1)
	return db, nil
}

// Init applies the audit schema to the given database.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
