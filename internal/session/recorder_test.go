package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claude/kanufit/internal/catalog"
)

func newTestRecorder(opts ...Option) *Recorder {
	return NewRecorder(append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

func TestRecorderLifecycle(t *testing.T) {
	r := newTestRecorder()
	_, ok := r.Active()
	assert.False(t, ok)

	_, err := r.Start(machinePower())
	require.NoError(t, err)
	require.NoError(t, r.Record("m_chest", 0, FieldWeight, "50"))

	active, ok := r.Active()
	require.True(t, ok)
	assert.Equal(t, "50", active.Performance["m_chest"][0].Weight)

	c, err := r.Finish(machinePower())
	require.NoError(t, err)
	assert.Equal(t, "50", c.Log.Performance["m_chest"][0].Weight)

	_, ok = r.Active()
	assert.False(t, ok, "finish must clear the draft")
	_, err = r.Finish(machinePower())
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestRecorderActiveReturnsCopy(t *testing.T) {
	r := newTestRecorder()
	_, err := r.Start(machinePower())
	require.NoError(t, err)

	active, _ := r.Active()
	active.Performance["m_chest"][0].Weight = "mutated"

	again, _ := r.Active()
	assert.Equal(t, "", again.Performance["m_chest"][0].Weight)
}

func TestRecorderRejectsSecondSession(t *testing.T) {
	r := newTestRecorder()
	_, err := r.Start(machinePower())
	require.NoError(t, err)

	_, err = r.Start(machinePower())
	assert.ErrorIs(t, err, ErrSessionActive)

	assert.True(t, r.Cancel())
	_, err = r.Start(machinePower())
	assert.NoError(t, err)
}

func TestRecorderReplaceActive(t *testing.T) {
	r := newTestRecorder(WithReplaceActive(true))
	_, err := r.Start(machinePower())
	require.NoError(t, err)
	require.NoError(t, r.Record("m_chest", 0, FieldWeight, "50"))

	_, err = r.Start(machinePower())
	require.NoError(t, err)
	active, _ := r.Active()
	assert.Equal(t, "", active.Performance["m_chest"][0].Weight, "replacement discards prior edits")
}

func TestRecorderInvalidTemplateKeepsSlot(t *testing.T) {
	r := newTestRecorder(WithReplaceActive(true))
	_, err := r.Start(machinePower())
	require.NoError(t, err)

	_, err = r.Start(catalog.Template{ID: "broken", Category: catalog.Cardio})
	require.ErrorIs(t, err, ErrInvalidTemplate)
	_, ok := r.Active()
	assert.True(t, ok, "rejected template must not clear the existing draft")
}

func TestRecorderCancel(t *testing.T) {
	r := newTestRecorder()
	assert.False(t, r.Cancel())

	_, err := r.Start(machinePower())
	require.NoError(t, err)
	assert.True(t, r.Cancel())
	assert.ErrorIs(t, r.Record("m_chest", 0, FieldReps, "1"), ErrNoActiveSession)
}
