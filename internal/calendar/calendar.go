package calendar

import (
	"sync"
	"time"

	"github.com/amal-center/platform/internal/shared/types"
)

// Calendar abstracts "current time" and the center's program calendar so that
// all timeline math is deterministic and unit-testable.
type Calendar interface {
	Today() time.Time
	IsHoliday(date time.Time) bool
	IsWeekend(date time.Time) bool
}

// Holiday is an excluded program date.
type Holiday struct {
	Date   time.Time `json:"date"`
	Name   string    `json:"name"`
	NameAr string    `json:"name_ar"`
}

// BusinessCalendar is a Calendar backed by an in-memory holiday set and a
// configurable weekend rule.
type BusinessCalendar struct {
	mu       sync.RWMutex
	holidays map[string]Holiday // keyed by YYYY-MM-DD
	weekend  map[time.Weekday]bool
	now      func() time.Time
}

// Option configures a BusinessCalendar.
type Option func(*BusinessCalendar)

// WithWeekend sets the non-teaching days of the week.
func WithWeekend(days ...time.Weekday) Option {
	return func(c *BusinessCalendar) {
		c.weekend = make(map[time.Weekday]bool, len(days))
		for _, d := range days {
			c.weekend[d] = true
		}
	}
}

// WithWeekendNames sets the weekend from weekday names ("Friday", "Saturday").
// Unknown names are ignored.
func WithWeekendNames(names ...string) Option {
	var days []time.Weekday
	for _, name := range names {
		for d := time.Sunday; d <= time.Saturday; d++ {
			if d.String() == name {
				days = append(days, d)
			}
		}
	}
	return WithWeekend(days...)
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(c *BusinessCalendar) {
		c.now = now
	}
}

// WithHolidays seeds the holiday set.
func WithHolidays(holidays []Holiday) Option {
	return func(c *BusinessCalendar) {
		for _, h := range holidays {
			c.holidays[types.FormatDate(h.Date)] = h
		}
	}
}

// New creates a BusinessCalendar. The default weekend is Friday/Saturday.
func New(opts ...Option) *BusinessCalendar {
	c := &BusinessCalendar{
		holidays: make(map[string]Holiday),
		weekend: map[time.Weekday]bool{
			time.Friday:   true,
			time.Saturday: true,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Today returns the current date at day granularity.
func (c *BusinessCalendar) Today() time.Time {
	return types.DateOnly(c.now())
}

// IsHoliday reports whether date is an excluded holiday.
func (c *BusinessCalendar) IsHoliday(date time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.holidays[types.FormatDate(date)]
	return ok
}

// IsWeekend reports whether date falls on a non-teaching day.
func (c *BusinessCalendar) IsWeekend(date time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.weekend[date.UTC().Weekday()]
}

// AddHoliday inserts or replaces a holiday.
func (c *BusinessCalendar) AddHoliday(h Holiday) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holidays[types.FormatDate(h.Date)] = h
}

// Holidays returns the holiday set, unordered.
func (c *BusinessCalendar) Holidays() []Holiday {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Holiday, 0, len(c.holidays))
	for _, h := range c.holidays {
		result = append(result, h)
	}
	return result
}

// IsWorkingDay reports whether date counts toward the program calendar.
func IsWorkingDay(cal Calendar, date time.Time) bool {
	return !cal.IsWeekend(date) && !cal.IsHoliday(date)
}
