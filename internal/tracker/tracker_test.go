package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/claude/kanufit/internal/catalog"
	"github.com/claude/kanufit/internal/gateway"
	"github.com/claude/kanufit/internal/insights"
	"github.com/claude/kanufit/internal/navigation"
	"github.com/claude/kanufit/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// flakyGateway fails selected writes and otherwise delegates to Memory.
type flakyGateway struct {
	*gateway.Memory
	failAppend bool
	failPutIDs map[string]bool
}

func (f *flakyGateway) Append(ctx context.Context, path gateway.Path, data json.RawMessage) (string, error) {
	if f.failAppend {
		return "", errors.New("backend unavailable")
	}
	return f.Memory.Append(ctx, path, data)
}

func (f *flakyGateway) Put(ctx context.Context, path gateway.Path, id string, data json.RawMessage) error {
	if f.failPutIDs[id] {
		return errors.New("backend unavailable")
	}
	return f.Memory.Put(ctx, path, id, data)
}

func newTestTracker(t *testing.T, gw gateway.Gateway, opts Options) *Tracker {
	t.Helper()
	opts.AppID = "kanufit"
	opts.Account = "kanu"
	opts.Now = func() time.Time { return testNow }
	opts.Location = time.UTC
	tr := New(gw, catalog.Default(), slog.New(slog.NewTextHandler(io.Discard, nil)), opts)
	require.NoError(t, tr.Start(context.Background()))
	t.Cleanup(tr.Close)
	return tr
}

func newMemory(t *testing.T) *gateway.Memory {
	t.Helper()
	m := gateway.NewMemory()
	t.Cleanup(m.Close)
	return m
}

func recordMachinePower(t *testing.T, tr *Tracker) {
	t.Helper()
	_, err := tr.StartSession("machine_power")
	require.NoError(t, err)
	_, err = tr.RecordSet("m_chest", 0, "weight", "50")
	require.NoError(t, err)
	_, err = tr.RecordSet("m_chest", 0, "reps", "10")
	require.NoError(t, err)
	_, err = tr.RecordSet("m_chest", 1, "weight", "55")
	require.NoError(t, err)
	_, err = tr.RecordSet("m_chest", 1, "reps", "8")
	require.NoError(t, err)
}

func TestFinishSessionPersistsLogAndHistory(t *testing.T) {
	mem := newMemory(t)
	tr := newTestTracker(t, mem, Options{})
	recordMachinePower(t, tr)
	assert.Equal(t, navigation.ActiveSession, tr.View().Screen)

	res, err := tr.FinishSession(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Log.ID)
	assert.Equal(t, "Machine Power", res.Log.TemplateName)
	assert.Equal(t, []string{"m_chest"}, res.Written)
	assert.Equal(t, navigation.Dashboard, tr.View().Screen)

	_, ok := tr.ActiveSession()
	assert.False(t, ok)

	require.Eventually(t, func() bool {
		return len(tr.Logs()) == 1 && len(tr.History()) == 1
	}, time.Second, 5*time.Millisecond)

	logs := tr.Logs()
	assert.Equal(t, res.Log.ID, logs[0].ID)
	assert.Len(t, logs[0].Performance["m_row"], 3, "empty exercises are kept")

	h, ok := tr.LastPerformance("m_chest")
	require.True(t, ok)
	assert.Equal(t, "55", h.LastWeight)
	assert.Equal(t, "8", h.LastReps)
	assert.Equal(t, "2026-03-14T09:30:00.000Z", h.Date)
	assert.Equal(t, "Chest Press", h.Name)

	hist, err := tr.GetExerciseHistory(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "Chest Press", hist[0].Name)

	stored := make(chan gateway.Snapshot, 1)
	unsub, err := mem.Subscribe(context.Background(), gateway.Collection("kanufit", "kanu", HistoryCollection), gateway.Order{}, func(s gateway.Snapshot) {
		select {
		case stored <- s:
		default:
		}
	})
	require.NoError(t, err)
	defer unsub()
	snap := <-stored
	require.Len(t, snap, 1)
	assert.JSONEq(t, `{"lastWeight":"55","lastReps":"8","date":"2026-03-14T09:30:00.000Z"}`, string(snap[0].Data))
}

func TestFinishSessionAtomicCommit(t *testing.T) {
	tr := newTestTracker(t, newMemory(t), Options{AtomicCommit: true})
	recordMachinePower(t, tr)

	res, err := tr.FinishSession(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Log.ID)
	assert.Equal(t, []string{"m_chest"}, res.Written)

	require.Eventually(t, func() bool {
		return len(tr.Logs()) == 1 && len(tr.History()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestFinishSessionLogFailureStillClearsDraft(t *testing.T) {
	gw := &flakyGateway{Memory: newMemory(t), failAppend: true}
	tr := newTestTracker(t, gw, Options{})
	recordMachinePower(t, tr)

	res, err := tr.FinishSession(context.Background())
	require.ErrorIs(t, err, ErrPersistence)
	require.NotNil(t, res)
	assert.Empty(t, res.Log.ID)
	assert.Equal(t, []string{"m_chest"}, res.Written, "memory writes are independent of the log write")

	_, ok := tr.ActiveSession()
	assert.False(t, ok)
	assert.Equal(t, navigation.Dashboard, tr.View().Screen)

	require.Eventually(t, func() bool { return len(tr.History()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, tr.Logs())
}

func TestFinishSessionPartialHistoryFailure(t *testing.T) {
	gw := &flakyGateway{Memory: newMemory(t), failPutIDs: map[string]bool{"m_chest": true}}
	tr := newTestTracker(t, gw, Options{})
	recordMachinePower(t, tr)
	_, err := tr.RecordSet("m_row", 2, "reps", "12")
	require.NoError(t, err)

	res, err := tr.FinishSession(context.Background())
	require.ErrorIs(t, err, ErrPersistence)
	assert.NotEmpty(t, res.Log.ID)
	assert.Equal(t, []string{"m_row"}, res.Written)
}

func TestFinishSessionWithoutDraft(t *testing.T) {
	tr := newTestTracker(t, newMemory(t), Options{})
	_, err := tr.FinishSession(context.Background())
	assert.ErrorIs(t, err, session.ErrNoActiveSession)
}

func TestStartSessionPolicies(t *testing.T) {
	tr := newTestTracker(t, newMemory(t), Options{})
	_, err := tr.StartSession("nope")
	assert.ErrorIs(t, err, catalog.ErrTemplateNotFound)

	_, err = tr.StartSession("strength_a")
	require.NoError(t, err)
	_, err = tr.StartSession("machine_power")
	assert.ErrorIs(t, err, session.ErrSessionActive)

	replacing := newTestTracker(t, newMemory(t), Options{ReplaceActive: true})
	_, err = replacing.StartSession("strength_a")
	require.NoError(t, err)
	d, err := replacing.StartSession("machine_power")
	require.NoError(t, err)
	assert.Equal(t, "machine_power", d.TemplateID)
	assert.Equal(t, "machine_power", replacing.View().ActiveTemplate)
}

func TestRecordSetErrors(t *testing.T) {
	tr := newTestTracker(t, newMemory(t), Options{})
	_, err := tr.RecordSet("m_chest", 0, "weight", "50")
	assert.ErrorIs(t, err, session.ErrNoActiveSession)

	_, err = tr.StartSession("machine_power")
	require.NoError(t, err)
	_, err = tr.RecordSet("m_chest", 0, "tempo", "3")
	assert.ErrorIs(t, err, session.ErrUnknownField)
	_, err = tr.RecordSet("m_chest", 3, "weight", "50")
	assert.ErrorIs(t, err, session.ErrIndexOutOfRange)
}

func TestCancelSession(t *testing.T) {
	tr := newTestTracker(t, newMemory(t), Options{})
	assert.False(t, tr.CancelSession())

	recordMachinePower(t, tr)
	assert.True(t, tr.CancelSession())
	assert.Equal(t, navigation.Dashboard, tr.View().Screen)

	_, err := tr.Navigate(string(navigation.ActiveSession))
	assert.ErrorIs(t, err, navigation.ErrNoActiveSession)
}

func TestNavigateKeepsDraft(t *testing.T) {
	tr := newTestTracker(t, newMemory(t), Options{})
	recordMachinePower(t, tr)

	st, err := tr.Navigate("history")
	require.NoError(t, err)
	assert.Equal(t, navigation.History, st.Screen)

	st, err = tr.Navigate("activeSession")
	require.NoError(t, err)
	assert.Equal(t, "machine_power", st.ActiveTemplate)

	_, err = tr.Navigate("settings")
	assert.ErrorIs(t, err, navigation.ErrUnknownScreen)
}

func TestLogWeight(t *testing.T) {
	tr := newTestTracker(t, newMemory(t), Options{})
	ctx := context.Background()

	for _, w := range []float64{0, -3} {
		_, err := tr.LogWeight(ctx, w)
		assert.ErrorIs(t, err, ErrInvalidWeight)
	}

	e, err := tr.LogWeight(ctx, 61.4)
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "2026-03-14T09:30:00.000Z", e.Date)

	require.Eventually(t, func() bool { return len(tr.Weights()) == 1 }, time.Second, 5*time.Millisecond)
	d := tr.Dashboard()
	require.NotNil(t, d.LatestWeight)
	assert.Equal(t, 61.4, *d.LatestWeight)

	require.NoError(t, tr.DeleteWeight(ctx, e.ID))
	require.Eventually(t, func() bool { return len(tr.Weights()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestDeleteLogKeepsHistory(t *testing.T) {
	tr := newTestTracker(t, newMemory(t), Options{})
	ctx := context.Background()
	recordMachinePower(t, tr)
	res, err := tr.FinishSession(ctx)
	require.NoError(t, err)

	require.NoError(t, tr.DeleteLog(ctx, res.Log.ID))
	assert.ErrorIs(t, tr.DeleteLog(ctx, res.Log.ID), ErrNotFound)

	require.Eventually(t, func() bool { return len(tr.Logs()) == 0 }, time.Second, 5*time.Millisecond)
	_, ok := tr.LastPerformance("m_chest")
	assert.True(t, ok)
}

func TestQueries(t *testing.T) {
	tr := newTestTracker(t, newMemory(t), Options{})
	ctx := context.Background()
	recordMachinePower(t, tr)
	_, err := tr.FinishSession(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(tr.Logs()) == 1 }, time.Second, 5*time.Millisecond)

	logs, err := tr.QueryLogs(ctx, testNow.Add(-time.Hour), testNow.Add(time.Hour), "")
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	logs, err = tr.QueryLogs(ctx, testNow.Add(time.Minute), time.Time{}, "")
	require.NoError(t, err)
	assert.Empty(t, logs)

	logs, err = tr.QueryLogs(ctx, time.Time{}, time.Time{}, "machine")
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	logs, err = tr.QueryLogs(ctx, time.Time{}, time.Time{}, "yoga")
	require.NoError(t, err)
	assert.Empty(t, logs)

	hist, err := tr.GetExerciseHistory(ctx, "")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "m_chest", hist[0].ExerciseID)

	_, err = tr.GetExerciseHistory(ctx, "m_row")
	assert.ErrorIs(t, err, ErrNotFound)

	rep, err := tr.GetInsights(ctx, 30, 6)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Window.Count)
	assert.Len(t, rep.Months, 6)

	_, err = tr.GetInsights(ctx, 0, 6)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	rep, err = tr.GetInsights(ctx, insights.MaxWindowDays, insights.MaxMonths)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Window.Count)
	assert.Len(t, rep.Months, insights.MaxMonths)

	_, err = tr.GetInsights(ctx, 106752, 6)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = tr.GetInsights(ctx, 30, 2000000000)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	templates, err := tr.ListTemplates(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, templates)
}
