/*
Package calendar answers the question "is this a working day".

PURPOSE:
  Holds the shared non-working calendar: which weekdays are flagged
  non-working (weekends, typically) and the list of named holidays.
  Every day count and date comparison in the leave engine goes through
  this package so that dates are always compared as calendar dates,
  never as instants with timezone offsets.

KEY CONCEPTS IN THIS FILE (date.go):
  - Date: a calendar date normalized to midnight UTC. Two Dates built
    from instants in different timezones compare equal if they name
    the same calendar day.

DESIGN PRINCIPLES:
  1. Normalize at the boundary: construct a Date once, compare freely.
  2. Day granularity only: the engine has no sub-day semantics.

SEE ALSO:
  - calendar.go: Workweek, Holiday, and the working-day math
*/
package calendar

import "time"

// =============================================================================
// DATE - Calendar date, normalized to midnight UTC
// =============================================================================

type Date struct {
	t time.Time
}

// NewDate builds a Date for the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its calendar day. The instant's own
// location decides which day it names; the stored value is midnight UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func Today() Date { return DateOf(time.Now()) }

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// DaysBetween returns the number of calendar days from d to other.
// Negative if other is before d.
func DaysBetween(d, other Date) int { return int(other.t.Sub(d.t).Hours() / 24) }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) Time() time.Time       { return d.t }

func (d Date) String() string { return d.t.Format("2006-01-02") }

// MarshalJSON encodes the date as a YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a YYYY-MM-DD string.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
