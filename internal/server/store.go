package server

import (
	"context"
	"database/sql"
	"encoding/json"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// Entity kinds in the entities table.
const (
	kindAccount   = "account"
	kindActivity  = "activity"
	kindMovement  = "movement"
	kindLink      = "link"
	kindLiability = "liability"
	kindProject   = "project"
)

const seqActivityNumber = "activity_number"

// errNotFound is internal; Mutate translates it into a RejectedError.
var errNotFound = errors.New("entity not found")

// docStore reads and writes JSON entity docs inside one transaction.
type docStore struct {
	tx        *sql.Tx
	workspace string
}

func (s docStore) get(ctx context.Context, kind, id string, out any) error {
	var doc string
	err := s.tx.QueryRowContext(ctx,
		`SELECT doc FROM entities WHERE workspace = ? AND kind = ? AND id = ?`,
		s.workspace, kind, id,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return errNotFound
	}
	if err != nil {
		return fmt.Errorf("loading %s %s: %w", kind, id, err)
	}
	if err := json.Unmarshal([]byte(doc), out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", kind, id, err)
	}
	return nil
}

func (s docStore) exists(ctx context.Context, kind, id string) (bool, error) {
	var one int
	err := s.tx.QueryRowContext(ctx,
		`SELECT 1 FROM entities WHERE workspace = ? AND kind = ? AND id = ?`,
		s.workspace, kind, id,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking %s %s: %w", kind, id, err)
	}
	return true, nil
}

func (s docStore) put(ctx context.Context, kind, id string, v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s %s: %w", kind, id, err)
	}
	_, err = s.tx.ExecContext(ctx, `
		INSERT INTO entities (workspace, kind, id, doc) VALUES (?, ?, ?, ?)
		ON CONFLICT(workspace, kind, id) DO UPDATE SET doc = excluded.doc
	`, s.workspace, kind, id, string(doc))
	if err != nil {
		return fmt.Errorf("storing %s %s: %w", kind, id, err)
	}
	return nil
}

func (s docStore) delete(ctx context.Context, kind, id string) error {
	_, err := s.tx.ExecContext(ctx,
		`DELETE FROM entities WHERE workspace = ? AND kind = ? AND id = ?`,
		s.workspace, kind, id,
	)
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", kind, id, err)
	}
	return nil
}

// listDocs decodes every doc of one kind. Link and liability cascades scan
// this way; personal books stay small enough that an index per reference is
// not worth the schema.
func listDocs[T any](ctx context.Context, s docStore, kind string) ([]T, error) {
	rows, err := s.tx.QueryContext(ctx,
		`SELECT doc FROM entities WHERE workspace = ? AND kind = ?`,
		s.workspace, kind,
	)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", kind, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning %s doc: %w", kind, err)
		}
		var v T
		if err := json.Unmarshal([]byte(doc), &v); err != nil {
			return nil, fmt.Errorf("decoding %s doc: %w", kind, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// nextSeq increments and returns a per-workspace sequence.
func (s docStore) nextSeq(ctx context.Context, name string) (int64, error) {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO sequences (workspace, name, value) VALUES (?, ?, 1)
		ON CONFLICT(workspace, name) DO UPDATE SET value = value + 1
	`, s.workspace, name)
	if err != nil {
		return 0, fmt.Errorf("bumping sequence %s: %w", name, err)
	}

	var v int64
	err = s.tx.QueryRowContext(ctx,
		`SELECT value FROM sequences WHERE workspace = ? AND name = ?`,
		s.workspace, name,
	).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("reading sequence %s: %w", name, err)
	}
	return v, nil
}
