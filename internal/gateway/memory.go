package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Gateway. It backs tests and the "memory" storage
// driver; contents are lost on exit.
type Memory struct {
	mu   sync.RWMutex
	cols map[Path]map[string]json.RawMessage
	hub  *Hub
}

var (
	_ Gateway = (*Memory)(nil)
	_ Batcher = (*Memory)(nil)
)

// NewMemory creates an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{
		cols: make(map[Path]map[string]json.RawMessage),
		hub:  NewHub(nil),
	}
}

// Subscribe implements Gateway.
func (m *Memory) Subscribe(ctx context.Context, path Path, order Order, fn func(Snapshot)) (Unsubscribe, error) {
	load := func(context.Context) (Snapshot, error) {
		return m.snapshot(path, order), nil
	}
	return m.hub.Subscribe(ctx, path, load, fn), nil
}

func (m *Memory) snapshot(path Path, order Order) Snapshot {
	m.mu.RLock()
	docs := make(Snapshot, 0, len(m.cols[path]))
	for id, data := range m.cols[path] {
		docs = append(docs, Document{ID: id, Data: append(json.RawMessage(nil), data...)})
	}
	m.mu.RUnlock()
	SortSnapshot(docs, order)
	return docs
}

// Append implements Gateway.
func (m *Memory) Append(ctx context.Context, path Path, data json.RawMessage) (string, error) {
	ids, err := m.Batch(ctx, []Op{{Kind: OpAppend, Path: path, Data: data}})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// Put implements Gateway.
func (m *Memory) Put(ctx context.Context, path Path, id string, data json.RawMessage) error {
	_, err := m.Batch(ctx, []Op{{Kind: OpPut, Path: path, ID: id, Data: data}})
	return err
}

// Remove implements Gateway.
func (m *Memory) Remove(ctx context.Context, path Path, id string) error {
	_, err := m.Batch(ctx, []Op{{Kind: OpRemove, Path: path, ID: id}})
	return err
}

// Batch implements Batcher. Ops are validated before any is applied.
func (m *Memory) Batch(ctx context.Context, ops []Op) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	ids := make([]string, len(ops))
	for i, op := range ops {
		switch op.Kind {
		case OpAppend:
			ids[i] = uuid.NewString()
		case OpPut:
			if op.ID == "" {
				m.mu.Unlock()
				return nil, fmt.Errorf("put into %s: empty id", op.Path)
			}
			ids[i] = op.ID
		case OpRemove:
			if _, ok := m.cols[op.Path][op.ID]; !ok {
				m.mu.Unlock()
				return nil, fmt.Errorf("remove %s/%s: %w", op.Path, op.ID, ErrNotFound)
			}
			ids[i] = op.ID
		default:
			m.mu.Unlock()
			return nil, fmt.Errorf("unknown op kind %d", op.Kind)
		}
		if op.Kind != OpRemove && !json.Valid(op.Data) {
			m.mu.Unlock()
			return nil, fmt.Errorf("write %s: invalid JSON document", op.Path)
		}
	}

	touched := make(map[Path]bool)
	for i, op := range ops {
		touched[op.Path] = true
		if op.Kind == OpRemove {
			delete(m.cols[op.Path], ids[i])
			continue
		}
		if m.cols[op.Path] == nil {
			m.cols[op.Path] = make(map[string]json.RawMessage)
		}
		m.cols[op.Path][ids[i]] = append(json.RawMessage(nil), op.Data...)
	}
	m.mu.Unlock()

	for p := range touched {
		m.hub.Notify(p)
	}
	return ids, nil
}

// Close stops all subscriptions.
func (m *Memory) Close() {
	m.hub.Close()
}
