package insights

import (
	"time"

	"github.com/claude/kanufit/internal/models"
)

// Report is the insights screen: totals, a sliding window, recent months and
// the per-exercise memory.
type Report struct {
	TotalWorkouts int                               `json:"total_workouts"`
	Window        Rolling                           `json:"window"`
	Months        []MonthCount                      `json:"months"`
	ByType        map[string]int                    `json:"by_type"`
	Exercises     map[string]models.ExerciseHistory `json:"exercises"`
}

// BuildReport derives a Report from the latest snapshots.
func BuildReport(logs []models.WorkoutLog, history map[string]models.ExerciseHistory, windowDays, months int, now time.Time, loc *time.Location) Report {
	ex := make(map[string]models.ExerciseHistory, len(history))
	for id, h := range history {
		ex[id] = h
	}
	return Report{
		TotalWorkouts: len(logs),
		Window:        RollingStats(logs, windowDays, now),
		Months:        RecentMonths(logs, months, now, loc),
		ByType:        CountByType(logs),
		Exercises:     ex,
	}
}
