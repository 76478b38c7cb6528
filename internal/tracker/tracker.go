// Package tracker is the application core. It owns the single session slot
// and the screen router, keeps the latest snapshot of every collection, and
// writes committed sessions through the gateway.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/kanufit/internal/catalog"
	"github.com/claude/kanufit/internal/gateway"
	"github.com/claude/kanufit/internal/models"
	"github.com/claude/kanufit/internal/navigation"
	"github.com/claude/kanufit/internal/session"
)

// Collection names under the account path.
const (
	LogsCollection    = "logs"
	WeightsCollection = "weights"
	HistoryCollection = "exerciseHistory"
)

var (
	// ErrPersistence wraps any gateway failure. Local state is never rolled back.
	ErrPersistence     = errors.New("persistence failure")
	ErrInvalidWeight   = errors.New("invalid weight")
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Options configures a Tracker.
type Options struct {
	AppID   string
	Account string
	// ReplaceActive lets StartSession discard an uncommitted draft.
	ReplaceActive bool
	// AtomicCommit writes a finished session in one batch when the gateway
	// supports it.
	AtomicCommit bool
	// Location is the calendar used for monthly grouping. Defaults to time.Local.
	Location *time.Location
	Now      func() time.Time
}

// Tracker serialises all state transitions behind one mutex; gateway I/O
// happens outside it.
type Tracker struct {
	gw     gateway.Gateway
	cat    *catalog.Catalog
	log    *slog.Logger
	atomic bool
	loc    *time.Location
	now    func() time.Time

	logsPath    gateway.Path
	weightsPath gateway.Path
	historyPath gateway.Path

	mu      sync.Mutex
	rec     *session.Recorder
	nav     *navigation.Router
	logs    []models.WorkoutLog
	weights []models.WeightEntry
	history map[string]models.ExerciseHistory
	unsubs  []gateway.Unsubscribe
}

// New creates a Tracker. Call Start to begin receiving snapshots.
func New(gw gateway.Gateway, cat *catalog.Catalog, log *slog.Logger, opts Options) *Tracker {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Tracker{
		gw:          gw,
		cat:         cat,
		log:         log,
		atomic:      opts.AtomicCommit,
		loc:         loc,
		now:         now,
		logsPath:    gateway.Collection(opts.AppID, opts.Account, LogsCollection),
		weightsPath: gateway.Collection(opts.AppID, opts.Account, WeightsCollection),
		historyPath: gateway.Collection(opts.AppID, opts.Account, HistoryCollection),
		rec:         session.NewRecorder(session.WithReplaceActive(opts.ReplaceActive), session.WithClock(now)),
		nav:         navigation.NewRouter(),
		history:     make(map[string]models.ExerciseHistory),
	}
}

// Start subscribes to the logs, weights and exercise-history collections.
func (t *Tracker) Start(ctx context.Context) error {
	subs := []struct {
		path  gateway.Path
		order gateway.Order
		fn    func(gateway.Snapshot)
	}{
		{t.logsPath, gateway.Order{Field: "date", Direction: gateway.Desc}, t.onLogs},
		{t.weightsPath, gateway.Order{Field: "date", Direction: gateway.Desc}, t.onWeights},
		{t.historyPath, gateway.Order{}, t.onHistory},
	}
	for _, s := range subs {
		unsub, err := t.gw.Subscribe(ctx, s.path, s.order, s.fn)
		if err != nil {
			t.Close()
			return fmt.Errorf("subscribing to %s: %w", s.path, err)
		}
		t.mu.Lock()
		t.unsubs = append(t.unsubs, unsub)
		t.mu.Unlock()
	}
	t.log.Info("tracker subscribed", "logs", t.logsPath, "weights", t.weightsPath, "history", t.historyPath)
	return nil
}

// Close cancels all subscriptions.
func (t *Tracker) Close() {
	t.mu.Lock()
	unsubs := t.unsubs
	t.unsubs = nil
	t.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

func (t *Tracker) onLogs(snap gateway.Snapshot) {
	logs := make([]models.WorkoutLog, 0, len(snap))
	for _, d := range snap {
		var l models.WorkoutLog
		if err := json.Unmarshal(d.Data, &l); err != nil {
			t.log.Warn("skipping malformed log", "id", d.ID, "error", err)
			continue
		}
		l.ID = d.ID
		logs = append(logs, l)
	}
	t.mu.Lock()
	t.logs = logs
	t.mu.Unlock()
}

func (t *Tracker) onWeights(snap gateway.Snapshot) {
	weights := make([]models.WeightEntry, 0, len(snap))
	for _, d := range snap {
		var w models.WeightEntry
		if err := json.Unmarshal(d.Data, &w); err != nil {
			t.log.Warn("skipping malformed weight entry", "id", d.ID, "error", err)
			continue
		}
		w.ID = d.ID
		weights = append(weights, w)
	}
	t.mu.Lock()
	t.weights = weights
	t.mu.Unlock()
}

func (t *Tracker) onHistory(snap gateway.Snapshot) {
	history := make(map[string]models.ExerciseHistory, len(snap))
	for _, d := range snap {
		var h models.ExerciseHistory
		if err := json.Unmarshal(d.Data, &h); err != nil {
			t.log.Warn("skipping malformed exercise history", "id", d.ID, "error", err)
			continue
		}
		h.ExerciseID = d.ID
		if ex, ok := t.cat.Exercise(d.ID); ok {
			h.Name = ex.Name
		}
		history[d.ID] = h
	}
	t.mu.Lock()
	t.history = history
	t.mu.Unlock()
}

// Catalog returns the template catalog.
func (t *Tracker) Catalog() *catalog.Catalog {
	return t.cat
}

// persistErr logs a failed gateway call and wraps it in ErrPersistence.
func (t *Tracker) persistErr(op string, err error, attrs ...any) error {
	t.log.Error("persistence failure", append([]any{"op", op, "error", err}, attrs...)...)
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
