// Package timeline computes program end-date extensions for subscription
// freezes. It is pure calendar arithmetic: the only dependency is the injected
// calendar abstraction, so identical inputs always produce identical output.
package timeline

import (
	"time"

	"github.com/amal-center/platform/internal/calendar"
	"github.com/amal-center/platform/internal/shared/types"
)

// Options control how freeze days translate into end-date adjustment.
type Options struct {
	// ExcludeHolidays rolls the landing date forward past excluded dates
	ExcludeHolidays bool `json:"exclude_holidays"`
	// IncludeWeekends counts weekend days inside the freeze window as used
	// freeze days; when false, non-working days are not "used"
	IncludeWeekends bool `json:"include_weekends"`
	// EffectiveDate is the first day of the freeze window; zero means the
	// calendar's current date
	EffectiveDate time.Time `json:"effective_date,omitempty"`
}

// Result is the computed timeline extension.
type Result struct {
	SubscriptionID types.ID  `json:"subscription_id"`
	FreezeDays     int       `json:"freeze_days"`
	AdjustmentDays int       `json:"adjustment_days"`
	NewEndDate     time.Time `json:"new_end_date"`
}

// Manager performs freeze timeline calculations.
type Manager struct {
	cal calendar.Calendar
}

// NewManager creates a timeline manager around a calendar.
func NewManager(cal calendar.Calendar) *Manager {
	return &Manager{cal: cal}
}

// CalculateNewEndDate computes the extended program end date for a freeze of
// freezeDays starting at opts.EffectiveDate. A zero-length freeze is a no-op.
func (m *Manager) CalculateNewEndDate(subscriptionID types.ID, originalEndDate time.Time, freezeDays int, opts Options) Result {
	adjustment := m.AdjustmentDays(freezeDays, opts)

	newEnd := types.DateOnly(originalEndDate).AddDate(0, 0, adjustment)
	if opts.ExcludeHolidays && adjustment > 0 {
		// The program cannot end on an excluded date; land on the next
		// non-holiday day.
		for m.cal.IsHoliday(newEnd) {
			newEnd = newEnd.AddDate(0, 0, 1)
		}
	}

	return Result{
		SubscriptionID: subscriptionID,
		FreezeDays:     freezeDays,
		AdjustmentDays: adjustment,
		NewEndDate:     newEnd,
	}
}

// AdjustmentDays returns how many days of extension a freeze earns. With
// IncludeWeekends the full freeze length counts; otherwise only the working
// days inside the freeze window do, since non-working days never held
// sessions to begin with.
func (m *Manager) AdjustmentDays(freezeDays int, opts Options) int {
	if freezeDays <= 0 {
		return 0
	}
	if opts.IncludeWeekends {
		return freezeDays
	}

	start := opts.EffectiveDate
	if start.IsZero() {
		start = m.cal.Today()
	}
	start = types.DateOnly(start)

	adjustment := 0
	for i := 0; i < freezeDays; i++ {
		day := start.AddDate(0, 0, i)
		if m.cal.IsWeekend(day) {
			continue
		}
		if opts.ExcludeHolidays && m.cal.IsHoliday(day) {
			continue
		}
		adjustment++
	}
	return adjustment
}

// FreezeWindowDays returns the inclusive day count of a freeze window.
func FreezeWindowDays(start, end time.Time) int {
	start = types.DateOnly(start)
	end = types.DateOnly(end)
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}
