// Package eventlog provides the server's durable append-only event table, the
// catch-up query used after reconnect, and an in-process pub/sub broker that
// fans committed events out to live sessions.
package eventlog

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ledgerline-dev/ledgerline/internal/event"
)

//go:embed schema.sql
var schemaSQL string

// Log is a SQLite-backed append-only event store.
// Uses WAL mode so catch-up reads do not block writers.
type Log struct {
	db *sql.DB

	mu     sync.Mutex
	lastTs float64
	now    func() time.Time
}

// Open creates or opens the event database at path. Idempotent.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to event log: %w", err)
	}

	// SQLite allows one writer at a time; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying event schema: %w", err)
	}

	return &Log{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// DB returns the underlying handle so the domain layer can share one database
// (and one transaction) with the event table.
func (l *Log) DB() *sql.DB {
	return l.db
}

// SetClock overrides the timestamp source. Test hook.
func (l *Log) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Stamp assigns the event's ID (if empty) and CreatedAt. Timestamps are
// wall-clock but strictly increasing per process, so the catch-up cursor never
// sees two events collapse onto one instant.
func (l *Log) Stamp(ev event.Event) event.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := event.Seconds(l.now())
	if ts <= l.lastTs {
		ts = l.lastTs + 1e-6
	}
	l.lastTs = ts

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.CreatedAt = ts
	return ev
}

// AppendTx inserts the stamped event inside an existing transaction, so the
// domain write and the log append commit or roll back together. Duplicate
// event IDs are silently ignored for idempotent redelivery.
func (l *Log) AppendTx(ctx context.Context, tx *sql.Tx, ev event.Event) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO events (id, type, payload, created_at, client_id, user, workspace)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, ev.ID, string(ev.Type), string(ev.Payload), ev.CreatedAt, ev.ClientID, ev.User, ev.Workspace)
	if err != nil {
		return fmt.Errorf("appending event %s: %w", ev.Type, err)
	}
	return nil
}

// Append stamps and inserts a single event in its own transaction.
func (l *Log) Append(ctx context.Context, ev event.Event) (event.Event, error) {
	ev = l.Stamp(ev)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return event.Event{}, fmt.Errorf("beginning append: %w", err)
	}
	if err := l.AppendTx(ctx, tx, ev); err != nil {
		tx.Rollback()
		return event.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return event.Event{}, fmt.Errorf("committing append: %w", err)
	}
	return ev, nil
}

// CatchUp returns the caller's missed events: everything after lastSync for
// their user, excluding the caller's own clientID, ascending by created_at.
func (l *Log) CatchUp(ctx context.Context, lastSync float64, user, clientID string) ([]event.Event, error) {
	return l.query(ctx, `
		SELECT id, type, payload, created_at, client_id, user, workspace
		FROM events
		WHERE created_at > ? AND user = ? AND client_id != ?
		ORDER BY created_at ASC
	`, lastSync, user, clientID)
}

// Replay returns a user's entire history ascending, own events included.
// Used to rebuild a replica from scratch.
func (l *Log) Replay(ctx context.Context, user string) ([]event.Event, error) {
	return l.query(ctx, `
		SELECT id, type, payload, created_at, client_id, user, workspace
		FROM events
		WHERE user = ?
		ORDER BY created_at ASC
	`, user)
}

func (l *Log) query(ctx context.Context, q string, args ...any) ([]event.Event, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var ev event.Event
		var typ, payload string
		if err := rows.Scan(&ev.ID, &typ, &payload, &ev.CreatedAt, &ev.ClientID, &ev.User, &ev.Workspace); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		ev.Type = event.Type(typ)
		ev.Payload = []byte(payload)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}
	return events, nil
}
