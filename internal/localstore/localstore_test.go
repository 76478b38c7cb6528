package localstore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/claude/kanufit/internal/gateway"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "kanufit.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type latest struct {
	mu   sync.Mutex
	snap gateway.Snapshot
	n    int
}

func (l *latest) set(s gateway.Snapshot) {
	l.mu.Lock()
	l.snap, l.n = s, l.n+1
	l.mu.Unlock()
}

func (l *latest) get() (gateway.Snapshot, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap, l.n
}

func ids(s gateway.Snapshot) []string {
	out := make([]string, len(s))
	for i, d := range s {
		out[i] = d.ID
	}
	return out
}

func TestStoreSubscribeOrdered(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	path := gateway.Collection("kanufit", "kanu", "logs")

	for id, date := range map[string]string{"a": "2026-01-02", "b": "2026-03-01", "c": "2025-12-31"} {
		require.NoError(t, s.Put(ctx, path, id, json.RawMessage(`{"date":"`+date+`"}`)))
	}

	var got latest
	unsub, err := s.Subscribe(ctx, path, gateway.Order{Field: "date", Direction: gateway.Desc}, got.set)
	require.NoError(t, err)
	defer unsub()

	require.Eventually(t, func() bool { _, n := got.get(); return n >= 1 }, time.Second, 5*time.Millisecond)
	snap, _ := got.get()
	assert.Equal(t, []string{"b", "a", "c"}, ids(snap))

	id, err := s.Append(ctx, path, json.RawMessage(`{"date":"2026-04-01"}`))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		snap, _ := got.get()
		return len(snap) == 4 && snap[0].ID == id
	}, time.Second, 5*time.Millisecond)
}

func TestStoreRemove(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	path := gateway.Collection("kanufit", "kanu", "weights")

	id, err := s.Append(ctx, path, json.RawMessage(`{"weight":61.2}`))
	require.NoError(t, err)
	require.NoError(t, s.Remove(ctx, path, id))
	assert.ErrorIs(t, s.Remove(ctx, path, id), gateway.ErrNotFound)
}

func TestStoreBatchRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	logs := gateway.Collection("kanufit", "kanu", "logs")
	hist := gateway.Collection("kanufit", "kanu", "exerciseHistory")

	_, err := s.Batch(ctx, []gateway.Op{
		{Kind: gateway.OpAppend, Path: logs, Data: json.RawMessage(`{"date":"x"}`)},
		{Kind: gateway.OpPut, Path: hist, ID: "m_chest", Data: json.RawMessage(`{"lastWeight":"50"}`)},
		{Kind: gateway.OpRemove, Path: hist, ID: "missing"},
	})
	require.ErrorIs(t, err, gateway.ErrNotFound)

	snap, err := s.load(ctx, logs, `SELECT id, body FROM documents WHERE path = ? ORDER BY id`)
	require.NoError(t, err)
	assert.Empty(t, snap)

	_, err = s.Batch(ctx, []gateway.Op{{Kind: gateway.OpPut, Path: hist, ID: "m_chest", Data: json.RawMessage(`not json`)}})
	assert.Error(t, err)
}

func TestStorePersistsAcrossOpen(t *testing.T) {
	file := filepath.Join(t.TempDir(), "kanufit.db")
	ctx := context.Background()
	path := gateway.Collection("kanufit", "kanu", "exerciseHistory")

	s, err := Open(file, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, path, "m_row", json.RawMessage(`{"lastReps":"10"}`)))
	require.NoError(t, s.Put(ctx, path, "m_row", json.RawMessage(`{"lastReps":"12"}`)))
	require.NoError(t, s.Close())

	s, err = Open(file, nil)
	require.NoError(t, err)
	defer s.Close()
	snap, err := s.load(ctx, path, `SELECT id, body FROM documents WHERE path = ? ORDER BY id`)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.JSONEq(t, `{"lastReps":"12"}`, string(snap[0].Data))
}

func TestOrderClauseRejectsBadField(t *testing.T) {
	_, err := orderClause(gateway.Order{Field: "date') --"})
	assert.Error(t, err)
}
