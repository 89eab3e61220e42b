package types

import (
	"fmt"
	"time"
)

// DateOnly truncates t to midnight UTC. All program dates are compared at
// day granularity.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t.UTC(), nil
}

// FormatDate renders a day-granularity date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// TimeRange is a wall-clock range within one day, "15:04" format.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Overlaps reports whether two same-day time ranges intersect.
// "15:04" strings compare correctly lexicographically.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start < other.End && other.Start < r.End
}

// Valid reports whether the range parses and starts before it ends.
func (r TimeRange) Valid() bool {
	if _, err := time.Parse("15:04", r.Start); err != nil {
		return false
	}
	if _, err := time.Parse("15:04", r.End); err != nil {
		return false
	}
	return r.Start < r.End
}
