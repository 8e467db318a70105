// Package activity provides a WAL-mode SQLite-backed activity log for the
// admin backend. Every operator-visible action (service start and stop,
// test-email dispatch, configuration saves) is appended as one event row,
// and the dashboard reads the most recent events back.
//
// # WAL mode
//
// The database is opened with PRAGMA journal_mode = WAL so that dashboard
// reads and action writes can proceed without blocking each other. Writes
// serialise through a single connection, which avoids "database is locked"
// errors when concurrent HTTP requests record events.
package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver with database/sql
)

// Event kinds recorded by the admin backend.
const (
	KindStarted     = "started"
	KindStopped     = "stopped"
	KindTestEmail   = "test_email"
	KindConfigSaved = "config_saved"
)

// Event is one recorded admin action.
type Event struct {
	ID     string         `json:"id"`
	At     time.Time      `json:"at"`
	Kind   string         `json:"kind"`
	Actor  string         `json:"actor,omitempty"`
	Detail map[string]any `json:"detail,omitempty"`
}

// Log is a WAL-mode SQLite-backed activity log. It is safe for concurrent
// use.
type Log struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path, enables WAL journal
// mode, and applies the schema. If path is ":memory:", an in-memory database
// is used; this is suitable for tests but loses all data when closed.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("activity: open %q: %w", path, err)
	}

	// SQLite allows only one writer at a time. Limiting the pool to a
	// single connection serialises concurrent Record calls through it.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("activity: set WAL mode: %w", err)
	}

	// NORMAL synchronous: durable across application crashes; not OS
	// crashes. Activity events are advisory, so this trade-off is fine.
	if _, err := db.Exec(`PRAGMA synchronous = NORMAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("activity: set synchronous = NORMAL: %w", err)
	}

	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("activity: apply schema: %w", err)
	}

	return &Log{db: db}, nil
}

// ddl is the schema DDL, kept here to keep the package self-contained.
const ddl = `
CREATE TABLE IF NOT EXISTS activity_log (
    id     TEXT    PRIMARY KEY,
    at     TEXT    NOT NULL,
    kind   TEXT    NOT NULL,
    actor  TEXT    NOT NULL DEFAULT '',
    detail TEXT    NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_activity_log_at
    ON activity_log (at DESC);
`

// Record appends one event. The event ID is generated here; detail may be
// nil.
func (l *Log) Record(ctx context.Context, kind, actor string, detail map[string]any) error {
	if detail == nil {
		detail = map[string]any{}
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("activity: marshal detail: %w", err)
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO activity_log (id, at, kind, actor, detail)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(),
		time.Now().UTC().Format(time.RFC3339Nano),
		kind,
		actor,
		string(detailJSON),
	)
	if err != nil {
		return fmt.Errorf("activity: record: %w", err)
	}
	return nil
}

// Recent returns up to n events, newest first. If n ≤ 0 it defaults to 50.
func (l *Log) Recent(ctx context.Context, n int) ([]Event, error) {
	if n <= 0 {
		n = 50
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, at, kind, actor, detail
		 FROM   activity_log
		 ORDER  BY at DESC
		 LIMIT  ?`, n)
	if err != nil {
		return nil, fmt.Errorf("activity: recent query: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e         Event
			atStr     string
			detailStr string
		)
		if err := rows.Scan(&e.ID, &atStr, &e.Kind, &e.Actor, &detailStr); err != nil {
			return nil, fmt.Errorf("activity: recent scan: %w", err)
		}

		e.At, err = time.Parse(time.RFC3339Nano, atStr)
		if err != nil {
			e.At, _ = time.Parse(time.RFC3339, atStr)
		}

		// A malformed detail value produces a nil map rather than an
		// error so that one bad row does not hide the rest of the log.
		if err := json.Unmarshal([]byte(detailStr), &e.Detail); err != nil {
			e.Detail = nil
		}

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("activity: recent rows: %w", err)
	}
	return events, nil
}

// Close closes the underlying database connection. Callers must not use the
// log after Close returns.
func (l *Log) Close() error {
	return l.db.Close()
}
