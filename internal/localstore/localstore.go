// Package localstore is a single-file SQLite document store for running the
// tracker without a database server.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/claude/kanufit/internal/gateway"
)

// Store implements gateway.Gateway on SQLite. Subscriptions only see writes
// made through the same Store.
type Store struct {
	db  *sql.DB
	hub *gateway.Hub
}

var (
	_ gateway.Gateway = (*Store)(nil)
	_ gateway.Batcher = (*Store)(nil)
)

// Open opens (or creates) the database at path.
func Open(path string, onErr func(gateway.Path, error)) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir for %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One writer at a time; readers wait behind an open batch instead of
	// failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		path       TEXT NOT NULL,
		id         TEXT NOT NULL,
		body       TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (path, id)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}

	return &Store{db: db, hub: gateway.NewHub(onErr)}, nil
}

// Close stops subscriptions and closes the database.
func (s *Store) Close() error {
	s.hub.Close()
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func orderClause(o gateway.Order) (string, error) {
	if o.Field == "" {
		return "ORDER BY id", nil
	}
	if !fieldPattern.MatchString(o.Field) {
		return "", fmt.Errorf("invalid order field %q", o.Field)
	}
	dir := "ASC"
	if o.Direction == gateway.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf("ORDER BY json_extract(body, '$.%s') %s, id %s", o.Field, dir, dir), nil
}

// Subscribe implements gateway.Gateway.
func (s *Store) Subscribe(ctx context.Context, path gateway.Path, order gateway.Order, fn func(gateway.Snapshot)) (gateway.Unsubscribe, error) {
	clause, err := orderClause(order)
	if err != nil {
		return nil, err
	}
	query := `SELECT id, body FROM documents WHERE path = ? ` + clause
	load := func(ctx context.Context) (gateway.Snapshot, error) {
		return s.load(ctx, path, query)
	}
	return s.hub.Subscribe(ctx, path, load, fn), nil
}

func (s *Store) load(ctx context.Context, path gateway.Path, query string) (gateway.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, string(path))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", path, err)
	}
	defer rows.Close()

	snap := gateway.Snapshot{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", path, err)
		}
		snap = append(snap, gateway.Document{ID: id, Data: json.RawMessage(body)})
	}
	return snap, rows.Err()
}

// Append implements gateway.Gateway.
func (s *Store) Append(ctx context.Context, path gateway.Path, data json.RawMessage) (string, error) {
	ids, err := s.Batch(ctx, []gateway.Op{{Kind: gateway.OpAppend, Path: path, Data: data}})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// Put implements gateway.Gateway.
func (s *Store) Put(ctx context.Context, path gateway.Path, id string, data json.RawMessage) error {
	_, err := s.Batch(ctx, []gateway.Op{{Kind: gateway.OpPut, Path: path, ID: id, Data: data}})
	return err
}

// Remove implements gateway.Gateway.
func (s *Store) Remove(ctx context.Context, path gateway.Path, id string) error {
	_, err := s.Batch(ctx, []gateway.Op{{Kind: gateway.OpRemove, Path: path, ID: id}})
	return err
}

// Batch implements gateway.Batcher in one transaction.
func (s *Store) Batch(ctx context.Context, ops []gateway.Op) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]string, len(ops))
	touched := make(map[gateway.Path]bool)
	for i, op := range ops {
		id, err := apply(ctx, tx, op)
		if err != nil {
			return nil, err
		}
		ids[i] = id
		touched[op.Path] = true
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	for p := range touched {
		s.hub.Notify(p)
	}
	return ids, nil
}

func apply(ctx context.Context, ex execer, op gateway.Op) (string, error) {
	switch op.Kind {
	case gateway.OpAppend, gateway.OpPut:
		if !json.Valid(op.Data) {
			return "", fmt.Errorf("write %s: invalid JSON document", op.Path)
		}
		id := op.ID
		if op.Kind == gateway.OpAppend {
			id = uuid.NewString()
		} else if id == "" {
			return "", fmt.Errorf("put into %s: empty id", op.Path)
		}
		_, err := ex.ExecContext(ctx,
			`INSERT INTO documents (path, id, body) VALUES (?, ?, ?)
			 ON CONFLICT (path, id) DO UPDATE SET body = excluded.body`,
			string(op.Path), id, string(op.Data))
		if err != nil {
			return "", fmt.Errorf("writing %s/%s: %w", op.Path, id, err)
		}
		return id, nil
	case gateway.OpRemove:
		res, err := ex.ExecContext(ctx, `DELETE FROM documents WHERE path = ? AND id = ?`, string(op.Path), op.ID)
		if err != nil {
			return "", fmt.Errorf("removing %s/%s: %w", op.Path, op.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return "", err
		}
		if n == 0 {
			return "", fmt.Errorf("remove %s/%s: %w", op.Path, op.ID, gateway.ErrNotFound)
		}
		return op.ID, nil
	}
	return "", errors.New("unknown op kind")
}
