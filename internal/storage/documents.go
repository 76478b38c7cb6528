package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/claude/kanufit/internal/gateway"
)

var (
	_ gateway.Gateway = (*DB)(nil)
	_ gateway.Batcher = (*DB)(nil)
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// orderClause renders an ORDER BY for o. Mixed-type fields sort by jsonb rules;
// a missing field sorts first.
func orderClause(o gateway.Order) (string, error) {
	if o.Field == "" {
		return "ORDER BY id", nil
	}
	if !fieldPattern.MatchString(o.Field) {
		return "", fmt.Errorf("invalid order field %q", o.Field)
	}
	dir, nulls := "ASC", "NULLS FIRST"
	if o.Direction == gateway.Desc {
		dir, nulls = "DESC", "NULLS LAST"
	}
	return fmt.Sprintf("ORDER BY body -> '%s' %s %s, id %s", o.Field, dir, nulls, dir), nil
}

// Subscribe implements gateway.Gateway. Snapshots are reloaded whenever the
// listener sees a change on path.
func (db *DB) Subscribe(ctx context.Context, path gateway.Path, order gateway.Order, fn func(gateway.Snapshot)) (gateway.Unsubscribe, error) {
	clause, err := orderClause(order)
	if err != nil {
		return nil, err
	}
	query := `SELECT id, body FROM documents WHERE path = $1 ` + clause
	load := func(ctx context.Context) (gateway.Snapshot, error) {
		return db.load(ctx, path, query)
	}
	return db.hub.Subscribe(ctx, path, load, fn), nil
}

func (db *DB) load(ctx context.Context, path gateway.Path, query string) (gateway.Snapshot, error) {
	rows, err := db.q(ctx).Query(ctx, query, string(path))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", path, err)
	}
	defer rows.Close()

	snap := gateway.Snapshot{}
	for rows.Next() {
		var d gateway.Document
		var body []byte
		if err := rows.Scan(&d.ID, &body); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", path, err)
		}
		d.Data = body
		snap = append(snap, d)
	}
	return snap, rows.Err()
}

// Append implements gateway.Gateway.
func (db *DB) Append(ctx context.Context, path gateway.Path, data json.RawMessage) (string, error) {
	id := uuid.NewString()
	_, err := db.q(ctx).Exec(ctx,
		`INSERT INTO documents (path, id, body) VALUES ($1, $2, $3)`,
		string(path), id, []byte(data))
	if err != nil {
		return "", fmt.Errorf("appending to %s: %w", path, err)
	}
	return id, nil
}

// Put implements gateway.Gateway.
func (db *DB) Put(ctx context.Context, path gateway.Path, id string, data json.RawMessage) error {
	if id == "" {
		return fmt.Errorf("put into %s: empty id", path)
	}
	_, err := db.q(ctx).Exec(ctx,
		`INSERT INTO documents (path, id, body) VALUES ($1, $2, $3)
		 ON CONFLICT (path, id) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()`,
		string(path), id, []byte(data))
	if err != nil {
		return fmt.Errorf("putting %s/%s: %w", path, id, err)
	}
	return nil
}

// Remove implements gateway.Gateway.
func (db *DB) Remove(ctx context.Context, path gateway.Path, id string) error {
	var deleted string
	err := db.q(ctx).QueryRow(ctx,
		`DELETE FROM documents WHERE path = $1 AND id = $2 RETURNING id`,
		string(path), id).Scan(&deleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("remove %s/%s: %w", path, id, gateway.ErrNotFound)
		}
		return fmt.Errorf("removing %s/%s: %w", path, id, err)
	}
	return nil
}

// Batch implements gateway.Batcher inside one transaction.
func (db *DB) Batch(ctx context.Context, ops []gateway.Op) ([]string, error) {
	ids := make([]string, len(ops))
	err := db.RunInTx(ctx, func(ctx context.Context) error {
		for i, op := range ops {
			switch op.Kind {
			case gateway.OpAppend:
				id, err := db.Append(ctx, op.Path, op.Data)
				if err != nil {
					return err
				}
				ids[i] = id
			case gateway.OpPut:
				if err := db.Put(ctx, op.Path, op.ID, op.Data); err != nil {
					return err
				}
				ids[i] = op.ID
			case gateway.OpRemove:
				if err := db.Remove(ctx, op.Path, op.ID); err != nil {
					return err
				}
				ids[i] = op.ID
			default:
				return fmt.Errorf("unknown op kind %d", op.Kind)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
