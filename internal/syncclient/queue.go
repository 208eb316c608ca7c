package syncclient

import (
	"context"
	"database/sql"
	"encoding/json"
	_ "embed"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ledgerline-dev/ledgerline/internal/event"
	"github.com/ledgerline-dev/ledgerline/internal/ledger"
)

//go:embed schema.sql
var schemaSQL string

const (
	stateKeyClientID = "client_id"
	stateKeyCursor   = "last_event_ts"
)

// Entry is one pending mutation: the command, and the rollback snapshot
// captured when it was applied optimistically.
type Entry struct {
	Seq      int64
	Command  ledger.Command
	Snapshot json.RawMessage
}

// Queue is the client's durable FIFO of pending mutations plus its sync
// state (stable clientId, catch-up cursor). SQLite-backed so intent survives
// process restarts.
type Queue struct {
	db *sql.DB
}

// OpenQueue creates or opens the client state database at path. Idempotent.
func OpenQueue(path string) (*Queue, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sync queue: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sync queue: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying queue schema: %w", err)
	}
	return &Queue{db: db}, nil
}

// Close closes the underlying database.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Push appends an entry. The snapshot must be present: a pending mutation
// without rollback state cannot be compensated, which is a programming error.
func (q *Queue) Push(ctx context.Context, cmd ledger.Command, snapshot json.RawMessage) error {
	if len(snapshot) == 0 {
		return errors.New("refusing to enqueue mutation without rollback snapshot")
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO pending_mutations (name, payload, snapshot) VALUES (?, ?, ?)`,
		string(cmd.Type), string(cmd.Payload), string(snapshot),
	)
	if err != nil {
		return fmt.Errorf("enqueuing %s: %w", cmd.Type, err)
	}
	return nil
}

// Head returns the oldest pending entry without removing it.
func (q *Queue) Head(ctx context.Context) (Entry, bool, error) {
	var e Entry
	var name, payload, snapshot string
	err := q.db.QueryRowContext(ctx,
		`SELECT seq, name, payload, snapshot FROM pending_mutations ORDER BY seq ASC LIMIT 1`,
	).Scan(&e.Seq, &name, &payload, &snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading queue head: %w", err)
	}
	e.Command = ledger.Command{Type: event.Type(name), Payload: []byte(payload)}
	e.Snapshot = []byte(snapshot)
	return e, true, nil
}

// Pop removes an entry by sequence number.
func (q *Queue) Pop(ctx context.Context, seq int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM pending_mutations WHERE seq = ?`, seq); err != nil {
		return fmt.Errorf("removing queue entry %d: %w", seq, err)
	}
	return nil
}

// Len returns the number of pending mutations.
func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_mutations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting queue: %w", err)
	}
	return n, nil
}

// ClientID returns the stable per-installation identifier, generating and
// persisting one on first use.
func (q *Queue) ClientID(ctx context.Context) (string, error) {
	id, ok, err := q.getState(ctx, stateKeyClientID)
	if err != nil {
		return "", err
	}
	if ok {
		return id, nil
	}
	id = uuid.NewString()
	if err := q.setState(ctx, stateKeyClientID, id); err != nil {
		return "", err
	}
	return id, nil
}

// Cursor returns the last seen event timestamp (zero if none).
func (q *Queue) Cursor(ctx context.Context) (float64, error) {
	v, ok, err := q.getState(ctx, stateKeyCursor)
	if err != nil || !ok {
		return 0, err
	}
	ts, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing cursor %q: %w", v, err)
	}
	return ts, nil
}

// SetCursor persists the catch-up cursor.
func (q *Queue) SetCursor(ctx context.Context, ts float64) error {
	return q.setState(ctx, stateKeyCursor, strconv.FormatFloat(ts, 'f', -1, 64))
}

func (q *Queue) getState(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := q.db.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading sync state %s: %w", key, err)
	}
	return v, true, nil
}

func (q *Queue) setState(ctx context.Context, key, value string) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO sync_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("writing sync state %s: %w", key, err)
	}
	return nil
}
