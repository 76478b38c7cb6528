package storage

import (
	"context"
	"time"

	"github.com/claude/kanufit/internal/gateway"
)

// Listen relays change notifications to subscribers until ctx ends. After a
// dropped connection it reconnects and reloads every subscription, since
// notifications sent while disconnected are lost.
func (db *DB) Listen(ctx context.Context) {
	backoff := time.Second
	for {
		err := db.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		db.log.Warn("notification listener stopped, reconnecting", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
		db.hub.NotifyAll()
	}
}

func (db *DB) listenOnce(ctx context.Context) error {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}
	db.log.Info("listening for document changes", "channel", notifyChannel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		db.hub.Notify(gateway.Path(n.Payload))
	}
}
