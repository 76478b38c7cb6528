// Package insights derives dashboard and history statistics from collection
// snapshots. Every function is pure; callers pass the latest snapshot.
package insights

import (
	"math"
	"sort"
	"time"

	"github.com/claude/kanufit/internal/models"
)

const day = 24 * time.Hour

// Upper bounds for caller-supplied report parameters. Larger windows overflow
// time.Duration; larger month counts allocate without bound.
const (
	MaxWindowDays = 3650
	MaxMonths     = 120
)

// Rolling holds count and mean duration for a sliding window.
type Rolling struct {
	WindowDays  int `json:"window_days"`
	Count       int `json:"count"`
	AvgDuration int `json:"avg_duration"`
}

// RollingStats counts logs with now - date < windowDays and averages their
// duration, rounded to the nearest minute. An empty window averages to 0.
func RollingStats(logs []models.WorkoutLog, windowDays int, now time.Time) Rolling {
	r := Rolling{WindowDays: windowDays}
	window := time.Duration(windowDays) * day
	total := 0
	for _, l := range logs {
		ts, ok := l.Time()
		if !ok || now.Sub(ts) >= window {
			continue
		}
		r.Count++
		total += l.Duration
	}
	if r.Count > 0 {
		r.AvgDuration = int(math.Round(float64(total) / float64(r.Count)))
	}
	return r
}

// MonthCount is the number of workouts in one calendar month.
type MonthCount struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Label string     `json:"label"`
	Count int        `json:"count"`
}

func (m MonthCount) before(o MonthCount) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// MonthlyHistogram groups logs by calendar month in loc, oldest first. Groups
// are keyed by year and month, so January 2025 and January 2026 stay apart.
func MonthlyHistogram(logs []models.WorkoutLog, loc *time.Location) []MonthCount {
	type key struct {
		year  int
		month time.Month
	}
	counts := make(map[key]int)
	for _, l := range logs {
		ts, ok := l.Time()
		if !ok {
			continue
		}
		ts = ts.In(loc)
		counts[key{ts.Year(), ts.Month()}]++
	}
	out := make([]MonthCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, MonthCount{Year: k.year, Month: k.month, Label: shortMonth(k.month), Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].before(out[j]) })
	return out
}

// LastMonths returns the n most recent groups of a histogram.
func LastMonths(h []MonthCount, n int) []MonthCount {
	if n <= 0 {
		return nil
	}
	if len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}

// RecentMonths returns exactly n calendar months ending with now's month,
// including months without workouts.
func RecentMonths(logs []models.WorkoutLog, n int, now time.Time, loc *time.Location) []MonthCount {
	if n <= 0 {
		return nil
	}
	byMonth := make(map[[2]int]int)
	for _, m := range MonthlyHistogram(logs, loc) {
		byMonth[[2]int{m.Year, int(m.Month)}] = m.Count
	}
	now = now.In(loc)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, -(n - 1), 0)
	out := make([]MonthCount, n)
	for i := range out {
		m := first.AddDate(0, i, 0)
		out[i] = MonthCount{
			Year:  m.Year(),
			Month: m.Month(),
			Label: shortMonth(m.Month()),
			Count: byMonth[[2]int{m.Year(), int(m.Month())}],
		}
	}
	return out
}

func shortMonth(m time.Month) string {
	return m.String()[:3]
}

// LastPerformance looks up the memory for an exercise. ok is false when the
// exercise has never been recorded.
func LastPerformance(exerciseID string, history map[string]models.ExerciseHistory) (models.ExerciseHistory, bool) {
	h, ok := history[exerciseID]
	return h, ok
}

// CountByType counts logs per template type.
func CountByType(logs []models.WorkoutLog) map[string]int {
	out := make(map[string]int)
	for _, l := range logs {
		out[l.Type]++
	}
	return out
}
