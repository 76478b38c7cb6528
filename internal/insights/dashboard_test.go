package insights

import (
	"testing"
	"time"

	"github.com/claude/kanufit/internal/models"
)

// TestDailyQuoteRotation verifies the quote is stable within a day and
// changes on the next one.
func TestDailyQuoteRotation(t *testing.T) {
	q := DailyQuote(now)
	if q != quotes[6] {
		t.Errorf("DailyQuote = %q, want quotes[6]", q)
	}
	if DailyQuote(now.Add(10*time.Hour)) != q {
		t.Error("quote changed within the same UTC day")
	}
	if DailyQuote(now.Add(24*time.Hour)) == q {
		t.Error("quote did not rotate on the next day")
	}
}

// TestDailyQuoteBeforeEpoch verifies pre-1970 clocks still pick a valid quote.
func TestDailyQuoteBeforeEpoch(t *testing.T) {
	q := DailyQuote(time.Date(1969, 12, 30, 0, 0, 0, 0, time.UTC))
	if q != quotes[8] {
		t.Errorf("DailyQuote(1969-12-30) = %q, want quotes[8]", q)
	}
	for i := 1; i <= len(quotes); i++ {
		DailyQuote(time.Unix(int64(-i)*86400, 0))
	}
}

// TestSummarize verifies newest-by-timestamp selection regardless of input order.
func TestSummarize(t *testing.T) {
	logs := []models.WorkoutLog{
		{Date: models.FormatTime(now.AddDate(0, 0, -40)), TemplateName: "Old", Duration: 30},
		{Date: models.FormatTime(now.AddDate(0, 0, -1)), TemplateName: "Machine Power", Duration: 45},
		{Date: models.FormatTime(now.AddDate(0, 0, -5)), TemplateName: "Restorative Yoga", Duration: 30},
	}
	weights := []models.WeightEntry{
		{Date: models.FormatTime(now.AddDate(0, 0, -7)), Weight: 150.2},
		{Date: models.FormatTime(now.AddDate(0, 0, -1)), Weight: 148.6},
	}

	d := Summarize(logs, weights, now)
	if d.TotalWorkouts != 3 {
		t.Errorf("TotalWorkouts = %d, want 3", d.TotalWorkouts)
	}
	if d.LastSession != "Machine Power" {
		t.Errorf("LastSession = %q, want Machine Power", d.LastSession)
	}
	if d.LatestWeight == nil || *d.LatestWeight != 148.6 {
		t.Errorf("LatestWeight = %v, want 148.6", d.LatestWeight)
	}
	if d.Last30Days.Count != 2 || d.Last30Days.AvgDuration != 38 {
		t.Errorf("Last30Days = %+v, want count=2 avg=38", d.Last30Days)
	}
	if d.Quote == "" {
		t.Error("quote missing")
	}
}

// TestSummarizeEmpty verifies the empty-account dashboard.
func TestSummarizeEmpty(t *testing.T) {
	d := Summarize(nil, nil, now)
	if d.TotalWorkouts != 0 || d.LatestWeight != nil || d.LastSession != "" {
		t.Errorf("empty dashboard = %+v", d)
	}
}
