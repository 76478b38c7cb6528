// Package importer loads a JSON export of the logs, weights and
// exerciseHistory collections into a gateway.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/claude/kanufit/internal/gateway"
	"github.com/claude/kanufit/internal/models"
	"github.com/claude/kanufit/internal/tracker"
)

// Export is the on-disk shape: one key per collection. Logs and weights are
// lists; exercise history is keyed by exercise ID.
type Export struct {
	Logs            []models.WorkoutLog               `json:"logs"`
	Weights         []models.WeightEntry              `json:"weights"`
	ExerciseHistory map[string]models.ExerciseHistory `json:"exerciseHistory"`
}

const snapshotTimeout = 30 * time.Second

// Stats tracks import progress.
type Stats struct {
	LogsInserted      int
	LogsDuplicated    int
	LogsRejected      int
	WeightsInserted   int
	WeightsDuplicated int
	WeightsRejected   int
	HistoryWritten    int
	HistoryKept       int
	HistoryRejected   int
}

// Importer writes an Export through a gateway. Re-running an import is safe:
// logs and weights already present are skipped, and a stored history entry
// is only replaced by a newer one.
type Importer struct {
	gw     gateway.Gateway
	log    *slog.Logger
	dryRun bool

	logsPath    gateway.Path
	weightsPath gateway.Path
	historyPath gateway.Path
	stats       Stats
}

// New creates a new Importer for the given account.
func New(gw gateway.Gateway, appID, account string, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{
		gw:          gw,
		log:         log,
		dryRun:      dryRun,
		logsPath:    gateway.Collection(appID, account, tracker.LogsCollection),
		weightsPath: gateway.Collection(appID, account, tracker.WeightsCollection),
		historyPath: gateway.Collection(appID, account, tracker.HistoryCollection),
	}
}

// ReadFile decodes an export file.
func ReadFile(path string) (*Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening export: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes an export.
func Read(r io.Reader) (*Export, error) {
	var e Export
	if err := json.NewDecoder(r).Decode(&e); err != nil {
		return nil, fmt.Errorf("decoding export: %w", err)
	}
	return &e, nil
}

// Import writes e and returns the resulting counts.
func (imp *Importer) Import(ctx context.Context, e *Export) (*Stats, error) {
	existing, err := imp.current(ctx)
	if err != nil {
		return &imp.stats, err
	}

	if err := imp.importLogs(ctx, e.Logs, existing.logs); err != nil {
		return &imp.stats, fmt.Errorf("importing logs: %w", err)
	}
	if err := imp.importWeights(ctx, e.Weights, existing.weights); err != nil {
		return &imp.stats, fmt.Errorf("importing weights: %w", err)
	}
	if err := imp.importHistory(ctx, e.ExerciseHistory, existing.history); err != nil {
		return &imp.stats, fmt.Errorf("importing exercise history: %w", err)
	}
	return &imp.stats, nil
}

type snapshot struct {
	logs    map[string]bool
	weights map[string]bool
	history map[string]models.ExerciseHistory
}

// current reads one snapshot of each collection through a short-lived
// subscription.
func (imp *Importer) current(ctx context.Context) (*snapshot, error) {
	s := &snapshot{logs: map[string]bool{}, weights: map[string]bool{}, history: map[string]models.ExerciseHistory{}}

	logs, err := firstSnapshot(ctx, imp.gw, imp.logsPath)
	if err != nil {
		return nil, err
	}
	for _, d := range logs {
		var l models.WorkoutLog
		if json.Unmarshal(d.Data, &l) == nil {
			s.logs[logKey(l)] = true
		}
	}

	weights, err := firstSnapshot(ctx, imp.gw, imp.weightsPath)
	if err != nil {
		return nil, err
	}
	for _, d := range weights {
		var w models.WeightEntry
		if json.Unmarshal(d.Data, &w) == nil {
			s.weights[weightKey(w)] = true
		}
	}

	hist, err := firstSnapshot(ctx, imp.gw, imp.historyPath)
	if err != nil {
		return nil, err
	}
	for _, d := range hist {
		var h models.ExerciseHistory
		if json.Unmarshal(d.Data, &h) == nil {
			s.history[d.ID] = h
		}
	}
	return s, nil
}

func firstSnapshot(ctx context.Context, gw gateway.Gateway, path gateway.Path) (gateway.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	ch := make(chan gateway.Snapshot, 1)
	unsub, err := gw.Subscribe(ctx, path, gateway.Order{}, func(s gateway.Snapshot) {
		select {
		case ch <- s:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer unsub()

	select {
	case s := <-ch:
		return s, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("reading %s: %w", path, ctx.Err())
	}
}

// normalizeDate re-renders a timestamp in the canonical millisecond UTC form
// so stored dates sort chronologically as strings.
func normalizeDate(s string) (string, bool) {
	ts, err := models.ParseTime(s)
	if err != nil {
		return "", false
	}
	return models.FormatTime(ts), true
}

func logKey(l models.WorkoutLog) string {
	date, ok := normalizeDate(l.Date)
	if !ok {
		date = l.Date
	}
	return date + "|" + l.TemplateID
}

func weightKey(w models.WeightEntry) string {
	date, ok := normalizeDate(w.Date)
	if !ok {
		date = w.Date
	}
	return fmt.Sprintf("%s|%g", date, w.Weight)
}

func (imp *Importer) importLogs(ctx context.Context, logs []models.WorkoutLog, seen map[string]bool) error {
	for _, l := range logs {
		date, ok := normalizeDate(l.Date)
		if !ok || l.TemplateID == "" {
			imp.log.Warn("rejecting log", "id", l.ID, "date", l.Date, "template", l.TemplateID)
			imp.stats.LogsRejected++
			continue
		}
		if seen[logKey(l)] {
			imp.stats.LogsDuplicated++
			continue
		}
		seen[logKey(l)] = true
		l.Date = date
		if l.Performance == nil {
			l.Performance = models.Performance{}
		}
		if !imp.dryRun {
			l.ID = ""
			data, err := json.Marshal(l)
			if err != nil {
				return err
			}
			if _, err := imp.gw.Append(ctx, imp.logsPath, data); err != nil {
				return err
			}
		}
		imp.stats.LogsInserted++
	}
	return nil
}

func (imp *Importer) importWeights(ctx context.Context, weights []models.WeightEntry, seen map[string]bool) error {
	for _, w := range weights {
		date, ok := normalizeDate(w.Date)
		if !ok || w.Weight <= 0 {
			imp.log.Warn("rejecting weight entry", "id", w.ID, "date", w.Date, "weight", w.Weight)
			imp.stats.WeightsRejected++
			continue
		}
		if seen[weightKey(w)] {
			imp.stats.WeightsDuplicated++
			continue
		}
		seen[weightKey(w)] = true
		w.Date = date
		if !imp.dryRun {
			w.ID = ""
			data, err := json.Marshal(w)
			if err != nil {
				return err
			}
			if _, err := imp.gw.Append(ctx, imp.weightsPath, data); err != nil {
				return err
			}
		}
		imp.stats.WeightsInserted++
	}
	return nil
}

func (imp *Importer) importHistory(ctx context.Context, hist map[string]models.ExerciseHistory, stored map[string]models.ExerciseHistory) error {
	ids := make([]string, 0, len(hist))
	for id := range hist {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		h := hist[id]
		date, ok := normalizeDate(h.Date)
		if !ok {
			imp.log.Warn("rejecting exercise history", "exercise", id, "date", h.Date)
			imp.stats.HistoryRejected++
			continue
		}
		if cur, ok := stored[id]; ok && !newer(date, cur.Date) {
			imp.stats.HistoryKept++
			continue
		}
		h.Date = date
		if !imp.dryRun {
			h.ExerciseID = ""
			h.Name = ""
			data, err := json.Marshal(h)
			if err != nil {
				return err
			}
			if err := imp.gw.Put(ctx, imp.historyPath, id, data); err != nil {
				return err
			}
		}
		imp.stats.HistoryWritten++
	}
	return nil
}

// newer reports whether date a is after date b. An unparseable b loses.
func newer(a, b string) bool {
	ta, errA := models.ParseTime(a)
	tb, errB := models.ParseTime(b)
	if errB != nil {
		return errA == nil
	}
	return errA == nil && ta.After(tb)
}
