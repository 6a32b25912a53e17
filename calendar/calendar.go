/*
calendar.go - Workweek flags, holidays, and working-day math

PURPOSE:
  The Calendar decides which dates are charged against a leave balance.
  A date is a working day iff its weekday is not flagged non-working
  AND it does not appear in the holiday list.

ADMINISTERED EXTERNALLY:
  Workweek flags and holidays are administered outside the core. The
  Calendar reads them through the WorkweekSource and HolidaySource
  interfaces, so a store-backed source makes admin changes visible on
  the next read without rebuilding anything.

BOUNDED SEARCHES:
  NextWorkingDayOnOrAfter walks forward one day at a time. On a
  pathological calendar (every weekday flagged non-working) that walk
  would never terminate, so it carries an explicit cap and returns
  ErrNoWorkingDay past it.

SEE ALSO:
  - date.go: the Date type
  - leave/conflict.go: the other bounded walk (slot suggestion)
*/
package calendar

import (
	"errors"
	"time"
)

// nextWorkingDayCap bounds the roll-forward search. A year of calendar
// days is enough for any real workweek/holiday configuration.
const nextWorkingDayCap = 366

// ErrNoWorkingDay is returned when the roll-forward search exhausts its
// cap without finding a working day. Only possible on a calendar where
// every weekday is flagged non-working.
var ErrNoWorkingDay = errors.New("no working day found within search bound")

// =============================================================================
// WORKWEEK - Which weekdays are non-working
// =============================================================================

// Workweek flags each of the seven weekdays as working or not.
type Workweek struct {
	NonWorking [7]bool // indexed by time.Weekday (Sunday = 0)
}

// DefaultWorkweek flags Saturday and Sunday non-working.
func DefaultWorkweek() Workweek {
	var w Workweek
	w.NonWorking[time.Saturday] = true
	w.NonWorking[time.Sunday] = true
	return w
}

func (w Workweek) IsNonWorking(day time.Weekday) bool { return w.NonWorking[day] }

// WorkweekSource provides read access to the administered workweek.
type WorkweekSource interface {
	Workweek() Workweek
}

// StaticWorkweek is a fixed WorkweekSource.
type StaticWorkweek Workweek

func (s StaticWorkweek) Workweek() Workweek { return Workweek(s) }

// =============================================================================
// HOLIDAY - A named non-working date
// =============================================================================

type Holiday struct {
	ID   string
	Date Date
	Name string
}

// HolidaySource provides read access to the administered holiday list.
type HolidaySource interface {
	IsHoliday(date Date) bool
	HolidaysInRange(from, to Date) []Holiday
}

// StaticHolidays is a fixed in-memory HolidaySource.
type StaticHolidays map[Date]Holiday

func NewStaticHolidays(holidays ...Holiday) StaticHolidays {
	s := make(StaticHolidays, len(holidays))
	for _, h := range holidays {
		s[h.Date] = h
	}
	return s
}

func (s StaticHolidays) IsHoliday(date Date) bool {
	_, ok := s[date]
	return ok
}

func (s StaticHolidays) HolidaysInRange(from, to Date) []Holiday {
	var out []Holiday
	for d, h := range s {
		if d.AfterOrEqual(from) && d.BeforeOrEqual(to) {
			out = append(out, h)
		}
	}
	return out
}

// =============================================================================
// CALENDAR - Working-day decisions
// =============================================================================

// Calendar combines workweek flags with a holiday source.
type Calendar struct {
	workweek WorkweekSource
	holidays HolidaySource
}

// New creates a Calendar. Nil sources fall back to the default
// Saturday/Sunday workweek and an empty holiday list.
func New(workweek WorkweekSource, holidays HolidaySource) *Calendar {
	if workweek == nil {
		workweek = StaticWorkweek(DefaultWorkweek())
	}
	if holidays == nil {
		holidays = StaticHolidays{}
	}
	return &Calendar{workweek: workweek, holidays: holidays}
}

// IsWorkingDay reports whether date is charged against leave balances.
func (c *Calendar) IsWorkingDay(date Date) bool {
	if c.workweek.Workweek().IsNonWorking(date.Weekday()) {
		return false
	}
	return !c.holidays.IsHoliday(date)
}

// CountWorkingDays counts working days in [start, end] inclusive.
// Returns 0 when end is before start.
func (c *Calendar) CountWorkingDays(start, end Date) int {
	if end.Before(start) {
		return 0
	}
	count := 0
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		if c.IsWorkingDay(d) {
			count++
		}
	}
	return count
}

// NextWorkingDayOnOrAfter rolls forward from date until it lands on a
// working day. Returns ErrNoWorkingDay if the search cap is exhausted.
func (c *Calendar) NextWorkingDayOnOrAfter(date Date) (Date, error) {
	d := date
	for i := 0; i < nextWorkingDayCap; i++ {
		if c.IsWorkingDay(d) {
			return d, nil
		}
		d = d.AddDays(1)
	}
	return Date{}, ErrNoWorkingDay
}
