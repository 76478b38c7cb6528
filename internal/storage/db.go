// Package storage is the PostgreSQL document store. Every collection lives in
// one table keyed by (path, id); a trigger publishes the path of each changed
// row on a NOTIFY channel that drives subscriptions.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/claude/kanufit/internal/gateway"
)

// notifyChannel must match the trigger in migrations/000001_documents.up.sql.
const notifyChannel = "kanufit_documents"

// DB wraps a pgxpool.Pool and implements gateway.Gateway.
type DB struct {
	Pool *pgxpool.Pool
	hub  *gateway.Hub
	log  *slog.Logger
}

// New creates a new DB with a connection pool.
func New(ctx context.Context, dsn string, log *slog.Logger) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	db := &DB{Pool: pool, log: log}
	db.hub = gateway.NewHub(func(p gateway.Path, err error) {
		log.Error("loading snapshot", "path", p, "error", err)
	})
	return db, nil
}

// Close stops subscriptions and closes the connection pool.
func (db *DB) Close() {
	db.hub.Close()
	db.Pool.Close()
}

// RunMigrations applies all pending migrations from the given directory.
func RunMigrations(dsn, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
