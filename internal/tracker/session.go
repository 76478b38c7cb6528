package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/claude/kanufit/internal/gateway"
	"github.com/claude/kanufit/internal/models"
	"github.com/claude/kanufit/internal/session"
)

// StartSession builds a draft for templateID and shows the session screen.
func (t *Tracker) StartSession(templateID string) (*session.Draft, error) {
	tpl, err := t.cat.Lookup(templateID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	d, err := t.rec.Start(tpl)
	if err != nil {
		return nil, err
	}
	t.nav.EnterSession(tpl.ID)
	t.log.Info("session started", "template", tpl.ID)
	return d, nil
}

// ActiveSession returns a copy of the draft being recorded.
func (t *Tracker) ActiveSession() (*session.Draft, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rec.Active()
}

// RecordSet stores one field of one set and returns the updated draft.
func (t *Tracker) RecordSet(exerciseID string, setIndex int, field, value string) (*session.Draft, error) {
	f, err := session.ParseField(field)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.rec.Record(exerciseID, setIndex, f, value); err != nil {
		return nil, err
	}
	d, _ := t.rec.Active()
	return d, nil
}

// CancelSession discards the draft and returns to the dashboard.
func (t *Tracker) CancelSession() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	had := t.rec.Cancel()
	t.nav.ExitSession()
	if had {
		t.log.Info("session cancelled")
	}
	return had
}

// FinishResult is a committed session plus what the gateway accepted.
type FinishResult struct {
	Log     models.WorkoutLog        `json:"log"`
	History []models.ExerciseHistory `json:"history"`
	// Written lists the exercise IDs whose memory update was stored.
	Written []string `json:"written"`
}

// FinishSession commits the draft. The draft is cleared and the dashboard
// shown before any write; a write failure returns ErrPersistence alongside a
// result describing what was stored.
func (t *Tracker) FinishSession(ctx context.Context) (*FinishResult, error) {
	t.mu.Lock()
	d, ok := t.rec.Active()
	if !ok {
		t.mu.Unlock()
		return nil, session.ErrNoActiveSession
	}
	tpl, err := t.cat.Lookup(d.TemplateID)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	commit, err := t.rec.Finish(tpl)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	t.nav.ExitSession()
	t.mu.Unlock()

	t.log.Info("session finished", "template", tpl.ID, "history_updates", len(commit.History))

	res := &FinishResult{Log: commit.Log, History: commit.History}
	if b, ok := t.gw.(gateway.Batcher); ok && t.atomic {
		return res, t.commitBatch(ctx, b, commit, res)
	}
	return res, t.commitEach(ctx, commit, res)
}

// commitEach writes the log and each memory update independently. A failed
// write does not stop the others.
func (t *Tracker) commitEach(ctx context.Context, c session.Commit, res *FinishResult) error {
	var errs []error

	data, err := json.Marshal(c.Log)
	if err != nil {
		return fmt.Errorf("encoding log: %w", err)
	}
	id, err := t.gw.Append(ctx, t.logsPath, data)
	if err != nil {
		errs = append(errs, t.persistErr("append log", err, "template", c.Log.TemplateID))
	} else {
		res.Log.ID = id
	}

	for _, h := range c.History {
		data, err := historyDoc(h)
		if err != nil {
			return err
		}
		if err := t.gw.Put(ctx, t.historyPath, h.ExerciseID, data); err != nil {
			errs = append(errs, t.persistErr("put exercise history", err, "exercise", h.ExerciseID))
			continue
		}
		res.Written = append(res.Written, h.ExerciseID)
	}
	return errors.Join(errs...)
}

func (t *Tracker) commitBatch(ctx context.Context, b gateway.Batcher, c session.Commit, res *FinishResult) error {
	data, err := json.Marshal(c.Log)
	if err != nil {
		return fmt.Errorf("encoding log: %w", err)
	}
	ops := []gateway.Op{{Kind: gateway.OpAppend, Path: t.logsPath, Data: data}}
	for _, h := range c.History {
		data, err := historyDoc(h)
		if err != nil {
			return err
		}
		ops = append(ops, gateway.Op{Kind: gateway.OpPut, Path: t.historyPath, ID: h.ExerciseID, Data: data})
	}

	ids, err := b.Batch(ctx, ops)
	if err != nil {
		return t.persistErr("batch commit", err, "template", c.Log.TemplateID)
	}
	res.Log.ID = ids[0]
	for _, h := range c.History {
		res.Written = append(res.Written, h.ExerciseID)
	}
	return nil
}

// historyDoc encodes h without the exercise ID, which is the document ID, or
// the display name.
func historyDoc(h models.ExerciseHistory) ([]byte, error) {
	id := h.ExerciseID
	h.ExerciseID = ""
	h.Name = ""
	data, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("encoding exercise history %s: %w", id, err)
	}
	return data, nil
}
