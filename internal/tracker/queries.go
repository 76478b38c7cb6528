package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/claude/kanufit/internal/catalog"
	"github.com/claude/kanufit/internal/gateway"
	"github.com/claude/kanufit/internal/insights"
	"github.com/claude/kanufit/internal/models"
	"github.com/claude/kanufit/internal/navigation"
)

// LogWeight stores a body-weight measurement dated now.
func (t *Tracker) LogWeight(ctx context.Context, weight float64) (models.WeightEntry, error) {
	if weight <= 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return models.WeightEntry{}, fmt.Errorf("%w: %v", ErrInvalidWeight, weight)
	}
	e := models.WeightEntry{Date: models.FormatTime(t.now()), Weight: weight}
	data, err := json.Marshal(e)
	if err != nil {
		return models.WeightEntry{}, fmt.Errorf("encoding weight: %w", err)
	}
	id, err := t.gw.Append(ctx, t.weightsPath, data)
	if err != nil {
		return models.WeightEntry{}, t.persistErr("append weight", err)
	}
	e.ID = id
	t.log.Info("weight logged", "id", id, "weight", weight)
	return e, nil
}

// DeleteLog removes a workout log. Exercise history is left untouched.
func (t *Tracker) DeleteLog(ctx context.Context, id string) error {
	return t.remove(ctx, t.logsPath, id)
}

// DeleteWeight removes a weight entry.
func (t *Tracker) DeleteWeight(ctx context.Context, id string) error {
	return t.remove(ctx, t.weightsPath, id)
}

func (t *Tracker) remove(ctx context.Context, path gateway.Path, id string) error {
	if err := t.gw.Remove(ctx, path, id); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return t.persistErr("remove", err, "path", path, "id", id)
	}
	t.log.Info("document removed", "path", path, "id", id)
	return nil
}

// Logs returns the latest logs snapshot, newest first.
func (t *Tracker) Logs() []models.WorkoutLog {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.WorkoutLog, len(t.logs))
	copy(out, t.logs)
	return out
}

// Weights returns the latest weights snapshot, newest first.
func (t *Tracker) Weights() []models.WeightEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.WeightEntry, len(t.weights))
	copy(out, t.weights)
	return out
}

// History returns a copy of the exercise memory keyed by exercise ID.
func (t *Tracker) History() map[string]models.ExerciseHistory {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]models.ExerciseHistory, len(t.history))
	for id, h := range t.history {
		out[id] = h
	}
	return out
}

// LastPerformance returns the "last time" hint for one exercise.
func (t *Tracker) LastPerformance(exerciseID string) (models.ExerciseHistory, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return insights.LastPerformance(exerciseID, t.history)
}

// Dashboard summarises the current snapshots.
func (t *Tracker) Dashboard() insights.Dashboard {
	return insights.Summarize(t.Logs(), t.Weights(), t.now())
}

// Report builds the insights screen for the given window and month count.
func (t *Tracker) Report(windowDays, months int) insights.Report {
	return insights.BuildReport(t.Logs(), t.History(), windowDays, months, t.now(), t.loc)
}

// View returns the router state.
func (t *Tracker) View() navigation.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nav.State()
}

// Navigate switches screens.
func (t *Tracker) Navigate(screen string) (navigation.State, error) {
	s, err := navigation.ParseScreen(screen)
	if err != nil {
		return navigation.State{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.nav.Go(s); err != nil {
		return navigation.State{}, err
	}
	return t.nav.State(), nil
}

// The methods below take a context so the tracker can serve as a data source
// alongside remote clients.

// ListTemplates returns the catalog in display order.
func (t *Tracker) ListTemplates(_ context.Context) ([]catalog.Template, error) {
	return t.cat.Templates(), nil
}

// QueryLogs returns logs dated within [start, end), newest first. A zero bound
// is open. typeFilter matches the snapshotted category or template name,
// case-insensitively.
func (t *Tracker) QueryLogs(_ context.Context, start, end time.Time, typeFilter string) ([]models.WorkoutLog, error) {
	typeFilter = strings.ToLower(typeFilter)
	var out []models.WorkoutLog
	for _, l := range t.Logs() {
		ts, ok := l.Time()
		if !ok || !inRange(ts, start, end) {
			continue
		}
		if typeFilter != "" && strings.ToLower(l.Type) != typeFilter &&
			!strings.Contains(strings.ToLower(l.TemplateName), typeFilter) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// QueryWeights returns weight entries dated within [start, end), newest first.
func (t *Tracker) QueryWeights(_ context.Context, start, end time.Time) ([]models.WeightEntry, error) {
	var out []models.WeightEntry
	for _, w := range t.Weights() {
		if ts, ok := w.Time(); ok && inRange(ts, start, end) {
			out = append(out, w)
		}
	}
	return out, nil
}

// GetExerciseHistory returns the memory for exerciseID, or every entry sorted
// by exercise ID when exerciseID is empty.
func (t *Tracker) GetExerciseHistory(_ context.Context, exerciseID string) ([]models.ExerciseHistory, error) {
	if exerciseID != "" {
		h, ok := t.LastPerformance(exerciseID)
		if !ok {
			return nil, fmt.Errorf("%w: exercise %s", ErrNotFound, exerciseID)
		}
		return []models.ExerciseHistory{h}, nil
	}
	all := t.History()
	out := make([]models.ExerciseHistory, 0, len(all))
	for _, h := range all {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExerciseID < out[j].ExerciseID })
	return out, nil
}

// GetInsights is Report with context.
func (t *Tracker) GetInsights(_ context.Context, windowDays, months int) (*insights.Report, error) {
	if windowDays <= 0 || months <= 0 {
		return nil, fmt.Errorf("%w: window_days and months must be positive", ErrInvalidArgument)
	}
	if windowDays > insights.MaxWindowDays || months > insights.MaxMonths {
		return nil, fmt.Errorf("%w: window_days is limited to %d and months to %d",
			ErrInvalidArgument, insights.MaxWindowDays, insights.MaxMonths)
	}
	r := t.Report(windowDays, months)
	return &r, nil
}

// GetDashboard is Dashboard with context.
func (t *Tracker) GetDashboard(_ context.Context) (*insights.Dashboard, error) {
	d := t.Dashboard()
	return &d, nil
}

func inRange(ts, start, end time.Time) bool {
	if !start.IsZero() && ts.Before(start) {
		return false
	}
	if !end.IsZero() && !ts.Before(end) {
		return false
	}
	return true
}
