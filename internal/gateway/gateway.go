// Package gateway defines the document-store boundary the tracker persists
// through, plus an in-memory implementation and the change fan-out shared by
// every backend.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when removing a document that does not exist.
var ErrNotFound = errors.New("document not found")

// Path addresses a collection.
type Path string

// Collection builds the account-scoped path for a named collection.
func Collection(appID, account, name string) Path {
	return Path(fmt.Sprintf("artifacts/%s/users/%s/%s", appID, account, name))
}

// Direction is a sort direction.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Order sorts a snapshot by a top-level document field.
type Order struct {
	Field     string
	Direction Direction
}

// Document is one stored record.
type Document struct {
	ID   string
	Data json.RawMessage
}

// Snapshot is the full, ordered content of a collection at one moment.
type Snapshot []Document

// Unsubscribe stops a subscription. Calling it more than once is a no-op.
type Unsubscribe func()

// Gateway is the persistence boundary. Writes are independent of each other
// and of any subscription; a subscriber sees a write on some later snapshot.
type Gateway interface {
	// Subscribe delivers the current snapshot, then a fresh one after every
	// change, until ctx ends or the returned func is called. fn runs on a
	// goroutine owned by the gateway.
	Subscribe(ctx context.Context, path Path, order Order, fn func(Snapshot)) (Unsubscribe, error)
	// Append stores data under a generated ID and returns it.
	Append(ctx context.Context, path Path, data json.RawMessage) (string, error)
	// Put upserts data under id.
	Put(ctx context.Context, path Path, id string, data json.RawMessage) error
	// Remove deletes the document with id.
	Remove(ctx context.Context, path Path, id string) error
}

// OpKind identifies a batched write.
type OpKind int

const (
	OpAppend OpKind = iota
	OpPut
	OpRemove
)

// Op is one write inside a Batch.
type Op struct {
	Kind OpKind
	Path Path
	ID   string
	Data json.RawMessage
}

// Batcher is implemented by gateways that can apply several writes atomically.
type Batcher interface {
	// Batch applies all ops or none. The returned slice holds the document ID
	// for each op, generated for appends.
	Batch(ctx context.Context, ops []Op) ([]string, error)
}
