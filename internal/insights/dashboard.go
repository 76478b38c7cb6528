package insights

import (
	"time"

	"github.com/claude/kanufit/internal/models"
)

var quotes = []string{
	"Self-care is not selfish. You cannot serve from an empty vessel.",
	"The only bad workout is the one that didn't happen.",
	"Motivation is what gets you started. Habit is what keeps you going.",
	"Strong Mom, strong family.",
	"Do something today that your future self will thank you for.",
	"It's a slow process, but quitting won't speed it up.",
	"Strength doesn't come from what you can do. It comes from overcoming the things you once thought you couldn't.",
	"You are doing a great job, Kanu!",
	"You are getting strong, Dodu!",
	"Every rep is a step closer to your goals.",
}

// DailyQuote rotates through the quote list once per UTC day.
func DailyQuote(now time.Time) string {
	n := int64(len(quotes))
	d := now.Unix() / 86400
	return quotes[((d%n)+n)%n]
}

// Dashboard is the landing-screen summary.
type Dashboard struct {
	TotalWorkouts int      `json:"total_workouts"`
	LatestWeight  *float64 `json:"latest_weight,omitempty"`
	LastSession   string   `json:"last_session,omitempty"`
	Last30Days    Rolling  `json:"last_30_days"`
	Quote         string   `json:"quote"`
}

// Summarize builds the dashboard. It does not rely on snapshot order: the
// newest log and weight are picked by timestamp.
func Summarize(logs []models.WorkoutLog, weights []models.WeightEntry, now time.Time) Dashboard {
	d := Dashboard{
		TotalWorkouts: len(logs),
		Last30Days:    RollingStats(logs, 30, now),
		Quote:         DailyQuote(now),
	}

	var newestLog time.Time
	for _, l := range logs {
		if ts, ok := l.Time(); ok && (d.LastSession == "" || ts.After(newestLog)) {
			newestLog = ts
			d.LastSession = l.TemplateName
		}
	}

	var newestWeight time.Time
	for _, w := range weights {
		ts, ok := w.Time()
		if !ok {
			continue
		}
		if d.LatestWeight == nil || ts.After(newestWeight) {
			v := w.Weight
			d.LatestWeight = &v
			newestWeight = ts
		}
	}
	return d
}
