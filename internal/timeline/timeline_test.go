package timeline

import (
	"testing"
	"time"

	"github.com/amal-center/platform/internal/calendar"
	"github.com/amal-center/platform/internal/shared/types"
)

func date(s string) time.Time {
	d, err := types.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testCalendar(opts ...calendar.Option) *calendar.BusinessCalendar {
	base := []calendar.Option{
		calendar.WithNow(func() time.Time { return date("2025-06-01") }),
	}
	return calendar.New(append(base, opts...)...)
}

func TestCalculateNewEndDateIncludeWeekends(t *testing.T) {
	m := NewManager(testCalendar())
	subID := types.NewID()

	// A 7-day freeze counting weekends extends the end date by exactly 7 days.
	result := m.CalculateNewEndDate(subID, date("2025-08-31"), 7, Options{
		IncludeWeekends: true,
		EffectiveDate:   date("2025-06-01"),
	})

	if result.AdjustmentDays != 7 {
		t.Errorf("Expected adjustment of 7 days, got %d", result.AdjustmentDays)
	}
	if !result.NewEndDate.Equal(date("2025-09-07")) {
		t.Errorf("Expected new end date 2025-09-07, got %s", types.FormatDate(result.NewEndDate))
	}
	if result.SubscriptionID != subID {
		t.Errorf("Expected subscription ID to round-trip")
	}
}

func TestCalculateNewEndDateExcludesWeekends(t *testing.T) {
	// 2025-06-01 is a Sunday; with a Friday/Saturday weekend, the window
	// Sun..Sat holds 5 working days.
	m := NewManager(testCalendar())

	result := m.CalculateNewEndDate(types.NewID(), date("2025-08-31"), 7, Options{
		IncludeWeekends: false,
		EffectiveDate:   date("2025-06-01"),
	})

	if result.AdjustmentDays != 5 {
		t.Errorf("Expected adjustment of 5 days, got %d", result.AdjustmentDays)
	}
	if !result.NewEndDate.Equal(date("2025-09-05")) {
		t.Errorf("Expected new end date 2025-09-05, got %s", types.FormatDate(result.NewEndDate))
	}
}

func TestCalculateNewEndDateZeroFreeze(t *testing.T) {
	m := NewManager(testCalendar())
	original := date("2025-08-31")

	for _, days := range []int{0, -3} {
		result := m.CalculateNewEndDate(types.NewID(), original, days, Options{IncludeWeekends: true})
		if result.AdjustmentDays != 0 {
			t.Errorf("freezeDays=%d: expected no adjustment, got %d", days, result.AdjustmentDays)
		}
		if !result.NewEndDate.Equal(original) {
			t.Errorf("freezeDays=%d: expected unchanged end date, got %s", days, types.FormatDate(result.NewEndDate))
		}
	}
}

func TestCalculateNewEndDateIdempotent(t *testing.T) {
	m := NewManager(testCalendar())
	subID := types.NewID()
	opts := Options{IncludeWeekends: true, EffectiveDate: date("2025-06-01")}

	first := m.CalculateNewEndDate(subID, date("2025-08-31"), 10, opts)
	for i := 0; i < 5; i++ {
		again := m.CalculateNewEndDate(subID, date("2025-08-31"), 10, opts)
		if !again.NewEndDate.Equal(first.NewEndDate) || again.AdjustmentDays != first.AdjustmentDays {
			t.Fatalf("call %d produced a different result: %+v vs %+v", i, again, first)
		}
	}
}

func TestCalculateNewEndDateSkipsHolidayLanding(t *testing.T) {
	cal := testCalendar(calendar.WithHolidays([]calendar.Holiday{
		{Date: date("2025-09-07"), Name: "Center holiday", NameAr: "عطلة المركز"},
		{Date: date("2025-09-08"), Name: "Center holiday", NameAr: "عطلة المركز"},
	}))
	m := NewManager(cal)

	result := m.CalculateNewEndDate(types.NewID(), date("2025-08-31"), 7, Options{
		IncludeWeekends: true,
		ExcludeHolidays: true,
		EffectiveDate:   date("2025-06-01"),
	})

	// Landing date 2025-09-07 and the following day are holidays; the end
	// date rolls forward to the first regular day.
	if !result.NewEndDate.Equal(date("2025-09-09")) {
		t.Errorf("Expected new end date 2025-09-09, got %s", types.FormatDate(result.NewEndDate))
	}
}

func TestCalculateNewEndDateMultiYearSpan(t *testing.T) {
	m := NewManager(testCalendar())

	result := m.CalculateNewEndDate(types.NewID(), date("2025-12-20"), 400, Options{
		IncludeWeekends: true,
		EffectiveDate:   date("2025-06-01"),
	})

	if result.AdjustmentDays != 400 {
		t.Errorf("Expected adjustment of 400 days, got %d", result.AdjustmentDays)
	}
	expected := date("2025-12-20").AddDate(0, 0, 400)
	if !result.NewEndDate.Equal(expected) {
		t.Errorf("Expected new end date %s, got %s",
			types.FormatDate(expected), types.FormatDate(result.NewEndDate))
	}
}

func TestAdjustmentDaysDefaultsToToday(t *testing.T) {
	// With no effective date, the window starts at the calendar's today.
	m := NewManager(testCalendar())

	got := m.AdjustmentDays(7, Options{})
	if got != 5 {
		t.Errorf("Expected 5 working days from 2025-06-01, got %d", got)
	}
}

func TestFreezeWindowDays(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		end      string
		expected int
	}{
		{"single day", "2025-06-01", "2025-06-01", 1},
		{"full week", "2025-06-01", "2025-06-07", 7},
		{"inverted", "2025-06-07", "2025-06-01", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FreezeWindowDays(date(tt.start), date(tt.end))
			if got != tt.expected {
				t.Errorf("Expected %d days, got %d", tt.expected, got)
			}
		})
	}
}
