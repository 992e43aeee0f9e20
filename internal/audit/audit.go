// Package audit records health-state transitions to a SQLite database,
// so an operator can review when and why a source's FIPS/Ent8/Ent16
// judgement changed after the fact. It is transition-only: it does not
// restore pool or accumulator state across restarts.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS health_transitions (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    source_id       TEXT NOT NULL,
    test_name       TEXT NOT NULL,
    timestamp_ns    INTEGER NOT NULL,
    ok_before       INTEGER NOT NULL,
    ok_after        INTEGER NOT NULL,
    detail          TEXT
);

CREATE INDEX IF NOT EXISTS idx_health_transitions_source ON health_transitions(source_id, timestamp_ns);

CREATE TABLE IF NOT EXISTS lifecycle_events (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    event_type      TEXT NOT NULL,
    timestamp_ns    INTEGER NOT NULL,
    detail          TEXT
);
`

// EventType enumerates the daemon lifecycle events audited alongside
// health transitions.
type EventType string

const (
	EventStartup       EventType = "startup"
	EventShutdown      EventType = "shutdown"
	EventConfigReload  EventType = "config_reload"
	EventSourceAdded   EventType = "source_added"
	EventSourceRemoved EventType = "source_removed"
)

// Transition records a single health test's pass/fail flip for a source.
type Transition struct {
	SourceID  string
	TestName  string // "fips", "ent8", "ent16"
	Timestamp time.Time
	OKBefore  bool
	OKAfter   bool
	Detail    string
}

// Log is the audit trail, backed by a SQLite database.
type Log struct {
	db *sql.DB
}

// Open opens or creates the audit database at path.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("audit: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: apply schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Close closes the underlying database connection.
func (l *Log) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// RecordTransition appends a health-state transition. Only real flips
// (OKBefore != OKAfter) are worth recording; callers should filter
// no-op reports before calling this, but a redundant call is harmless.
func (l *Log) RecordTransition(t Transition) error {
	_, err := l.db.Exec(`
		INSERT INTO health_transitions (source_id, test_name, timestamp_ns, ok_before, ok_after, detail)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.SourceID, t.TestName, t.Timestamp.UnixNano(), boolToInt(t.OKBefore), boolToInt(t.OKAfter), t.Detail,
	)
	if err != nil {
		return fmt.Errorf("audit: record transition: %w", err)
	}
	return nil
}

// RecordEvent appends a daemon lifecycle event.
func (l *Log) RecordEvent(typ EventType, when time.Time, detail string) error {
	_, err := l.db.Exec(`
		INSERT INTO lifecycle_events (event_type, timestamp_ns, detail)
		VALUES (?, ?, ?)`,
		string(typ), when.UnixNano(), detail,
	)
	if err != nil {
		return fmt.Errorf("audit: record event: %w", err)
	}
	return nil
}

// RecentTransitions returns the most recent n transitions for sourceID,
// newest first.
func (l *Log) RecentTransitions(sourceID string, n int) ([]Transition, error) {
	rows, err := l.db.Query(`
		SELECT source_id, test_name, timestamp_ns, ok_before, ok_after, detail
		FROM health_transitions
		WHERE source_id = ?
		ORDER BY timestamp_ns DESC
		LIMIT ?`, sourceID, n)
	if err != nil {
		return nil, fmt.Errorf("audit: query transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		var ts int64
		var okBefore, okAfter int
		if err := rows.Scan(&t.SourceID, &t.TestName, &ts, &okBefore, &okAfter, &t.Detail); err != nil {
			return nil, fmt.Errorf("audit: scan transition: %w", err)
		}
		t.Timestamp = time.Unix(0, ts)
		t.OKBefore = okBefore != 0
		t.OKAfter = okAfter != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
