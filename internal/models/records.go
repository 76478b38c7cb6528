package models

import "time"

// isoLayout matches the millisecond ISO-8601 form already present in stored documents.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t as an ISO-8601 UTC timestamp with millisecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// ParseTime parses an ISO-8601 timestamp as written by FormatTime or any RFC 3339 writer.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// SetEntry is the captured performance of one set. Values are kept verbatim;
// readers treat empty or unparseable values as unset.
type SetEntry struct {
	Weight string `json:"weight"`
	Reps   string `json:"reps"`
}

// Populated reports whether either field carries a value.
func (s SetEntry) Populated() bool {
	return s.Weight != "" || s.Reps != ""
}

// Performance maps an exercise ID to its ordered sets.
type Performance map[string][]SetEntry

// Clone returns a deep copy so committed logs never alias a live draft.
func (p Performance) Clone() Performance {
	out := make(Performance, len(p))
	for id, sets := range p {
		cp := make([]SetEntry, len(sets))
		copy(cp, sets)
		out[id] = cp
	}
	return out
}

// WorkoutLog is a committed session. ID is the document ID and is never
// written into the document body.
type WorkoutLog struct {
	ID           string      `json:"id,omitempty"`
	Date         string      `json:"date"`
	TemplateID   string      `json:"templateId"`
	TemplateName string      `json:"templateName"`
	Type         string      `json:"type"`
	Duration     int         `json:"duration"`
	Performance  Performance `json:"performance"`
}

// Time parses Date. The second return is false for malformed timestamps.
func (l WorkoutLog) Time() (time.Time, bool) {
	t, err := ParseTime(l.Date)
	return t, err == nil
}

// ExerciseHistory is the "last time" memory for one exercise, stored under the
// exercise ID.
type ExerciseHistory struct {
	ExerciseID string `json:"exerciseId,omitempty"`
	// Name is the catalog display name, filled on read and never stored.
	Name       string `json:"name,omitempty"`
	LastWeight string `json:"lastWeight"`
	LastReps   string `json:"lastReps"`
	Date       string `json:"date"`
}

// WeightEntry is one body-weight measurement.
type WeightEntry struct {
	ID     string  `json:"id,omitempty"`
	Date   string  `json:"date"`
	Weight float64 `json:"weight"`
}

// Time parses Date. The second return is false for malformed timestamps.
func (w WeightEntry) Time() (time.Time, bool) {
	t, err := ParseTime(w.Date)
	return t, err == nil
}
