// Package session turns a workout template into a committed log: it allocates
// a per-set draft, applies edits, and derives the per-exercise "last time"
// memory on finish.
package session

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/claude/kanufit/internal/catalog"
	"github.com/claude/kanufit/internal/models"
)

var (
	// ErrInvalidTemplate means the template has neither exercises nor a duration.
	ErrInvalidTemplate = errors.New("invalid template")
	// ErrIndexOutOfRange means a set index outside the allocated range. Set counts
	// are fixed at draft creation, so this is a caller bug.
	ErrIndexOutOfRange = errors.New("set index out of range")
	ErrUnknownExercise = errors.New("exercise not in draft")
	ErrUnknownField    = errors.New("unknown set field")
	// ErrSessionActive is returned by Start when a draft exists and replacement is disabled.
	ErrSessionActive   = errors.New("session already active")
	ErrNoActiveSession = errors.New("no active session")
)

// DefaultDuration is logged for templates that declare no duration.
const DefaultDuration = 45

// Field names a SetEntry value.
type Field string

const (
	FieldWeight Field = "weight"
	FieldReps   Field = "reps"
)

// ParseField validates a field name.
func ParseField(s string) (Field, error) {
	switch f := Field(s); f {
	case FieldWeight, FieldReps:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Draft is the editable capture of an in-progress session.
type Draft struct {
	TemplateID  string             `json:"templateId"`
	StartedAt   time.Time          `json:"startedAt"`
	Performance models.Performance `json:"performance"`
}

// NewDraft allocates one empty SetEntry per target set of every exercise.
func NewDraft(t catalog.Template, now time.Time) (*Draft, error) {
	if len(t.Exercises) == 0 && t.Duration <= 0 {
		return nil, fmt.Errorf("%w: %q has no exercises and no duration", ErrInvalidTemplate, t.ID)
	}
	perf := make(models.Performance, len(t.Exercises))
	for _, ex := range t.Exercises {
		if ex.Sets <= 0 {
			return nil, fmt.Errorf("%w: exercise %q has %d sets", ErrInvalidTemplate, ex.ID, ex.Sets)
		}
		perf[ex.ID] = make([]models.SetEntry, ex.Sets)
	}
	return &Draft{TemplateID: t.ID, StartedAt: now, Performance: perf}, nil
}

// Record stores value verbatim into one field of one set.
func (d *Draft) Record(exerciseID string, setIndex int, field Field, value string) error {
	sets, ok := d.Performance[exerciseID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownExercise, exerciseID)
	}
	if setIndex < 0 || setIndex >= len(sets) {
		return fmt.Errorf("%w: %s[%d], have %d sets", ErrIndexOutOfRange, exerciseID, setIndex, len(sets))
	}
	switch field {
	case FieldWeight:
		sets[setIndex].Weight = value
	case FieldReps:
		sets[setIndex].Reps = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// Clone returns a deep copy.
func (d *Draft) Clone() *Draft {
	cp := *d
	cp.Performance = d.Performance.Clone()
	return &cp
}

// Commit is the output of finishing a draft: one log plus the history
// memory updates it produced.
type Commit struct {
	Log     models.WorkoutLog
	History []models.ExerciseHistory
}

// Finish snapshots t into a log and derives history updates. Template fields
// are read now, not at draft start. Every exercise keeps its full set list,
// empty entries included.
func Finish(d *Draft, t catalog.Template, now time.Time) Commit {
	date := models.FormatTime(now)
	duration := t.Duration
	if duration <= 0 {
		duration = DefaultDuration
	}

	c := Commit{
		Log: models.WorkoutLog{
			Date:         date,
			TemplateID:   t.ID,
			TemplateName: t.Name,
			Type:         string(t.Category),
			Duration:     duration,
			Performance:  d.Performance.Clone(),
		},
	}

	names := make(map[string]string, len(t.Exercises))
	for _, ex := range t.Exercises {
		names[ex.ID] = ex.Name
	}
	for _, id := range exerciseOrder(d, t) {
		last, ok := lastPopulated(d.Performance[id])
		if !ok {
			continue
		}
		c.History = append(c.History, models.ExerciseHistory{
			ExerciseID: id,
			Name:       names[id],
			LastWeight: last.Weight,
			LastReps:   last.Reps,
			Date:       date,
		})
	}
	return c
}

// lastPopulated scans backward so trailing blank sets do not hide the last
// real data point.
func lastPopulated(sets []models.SetEntry) (models.SetEntry, bool) {
	for i := len(sets) - 1; i >= 0; i-- {
		if sets[i].Populated() {
			return sets[i], true
		}
	}
	return models.SetEntry{}, false
}

// exerciseOrder lists draft exercises in template order, then any others sorted.
func exerciseOrder(d *Draft, t catalog.Template) []string {
	ids := make([]string, 0, len(d.Performance))
	seen := make(map[string]bool, len(d.Performance))
	for _, ex := range t.Exercises {
		if _, ok := d.Performance[ex.ID]; ok && !seen[ex.ID] {
			ids = append(ids, ex.ID)
			seen[ex.ID] = true
		}
	}
	var rest []string
	for id := range d.Performance {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(ids, rest...)
}
