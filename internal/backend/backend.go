// Package backend opens the gateway selected by the storage driver in config.
package backend

import (
	"context"
	"log/slog"

	"github.com/claude/kanufit/internal/config"
	"github.com/claude/kanufit/internal/gateway"
	"github.com/claude/kanufit/internal/localstore"
	"github.com/claude/kanufit/internal/storage"
)

// Open connects the configured storage driver. With migrateOnly it
// applies Postgres migrations and returns a nil gateway.
func Open(ctx context.Context, cfg *config.Config, migrateOnly bool, log *slog.Logger) (gateway.Gateway, func(), error) {
	onErr := func(p gateway.Path, err error) {
		log.Error("loading snapshot", "path", p, "error", err)
	}

	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		if migrateOnly {
			return nil, nil, nil
		}
		store, err := localstore.Open(cfg.Storage.SQLitePath, onErr)
		if err != nil {
			return nil, nil, err
		}
		log.Info("sqlite store opened", "path", cfg.Storage.SQLitePath)
		return store, func() { _ = store.Close() }, nil

	case config.DriverMemory:
		if migrateOnly {
			return nil, nil, nil
		}
		log.Warn("using in-memory storage; data is lost on exit")
		mem := gateway.NewMemory()
		return mem, mem.Close, nil
	}

	// Run migrations
	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		return nil, nil, err
	}
	log.Info("migrations applied")
	if migrateOnly {
		return nil, nil, nil
	}

	// Connect database
	db, err := storage.New(ctx, dsn, log)
	if err != nil {
		return nil, nil, err
	}
	log.Info("database connected")

	listenCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		db.Listen(listenCtx)
	}()

	return db, func() {
		cancel()
		<-done
		db.Close()
	}, nil
}
