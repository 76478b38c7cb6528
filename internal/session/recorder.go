package session

import (
	"time"

	"github.com/claude/kanufit/internal/catalog"
)

// Recorder owns the single active draft slot. It is not safe for concurrent
// use; callers serialise access.
type Recorder struct {
	replaceActive bool
	now           func() time.Time
	draft         *Draft
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithReplaceActive lets Start silently discard an uncommitted draft.
func WithReplaceActive(replace bool) Option {
	return func(r *Recorder) { r.replaceActive = replace }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates a Recorder with no active draft.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Start builds a draft for t and makes it the active one.
func (r *Recorder) Start(t catalog.Template) (*Draft, error) {
	if r.draft != nil && !r.replaceActive {
		return nil, ErrSessionActive
	}
	d, err := NewDraft(t, r.now())
	if err != nil {
		return nil, err
	}
	r.draft = d
	return d.Clone(), nil
}

// Active returns a copy of the active draft.
func (r *Recorder) Active() (*Draft, bool) {
	if r.draft == nil {
		return nil, false
	}
	return r.draft.Clone(), true
}

// Record edits the active draft.
func (r *Recorder) Record(exerciseID string, setIndex int, field Field, value string) error {
	if r.draft == nil {
		return ErrNoActiveSession
	}
	return r.draft.Record(exerciseID, setIndex, field, value)
}

// Finish commits the active draft against t and clears the slot. The slot is
// cleared before any persistence happens, so a failed write never revives it.
func (r *Recorder) Finish(t catalog.Template) (Commit, error) {
	if r.draft == nil {
		return Commit{}, ErrNoActiveSession
	}
	c := Finish(r.draft, t, r.now())
	r.draft = nil
	return c, nil
}

// Cancel discards the active draft. It reports whether one existed.
func (r *Recorder) Cancel() bool {
	had := r.draft != nil
	r.draft = nil
	return had
}
