// Package calendar computes the academic week a date belongs to: the
// Monday-Sunday window the portal is queried with and the numerator (A) /
// denominator (B) cycle counted from the semester start.
package calendar

import (
	"time"
)

// Cycle is one of the two alternating timetable variants.
type Cycle string

const (
	// CycleA is the numerator ("числитель") week, odd week numbers.
	CycleA Cycle = "A"
	// CycleB is the denominator ("знаменатель") week, even week numbers.
	CycleB Cycle = "B"
)

// Other returns the opposite cycle.
func (c Cycle) Other() Cycle {
	if c == CycleA {
		return CycleB
	}
	return CycleA
}

// Label is the russian name the portal uses for the cycle.
func (c Cycle) Label() string {
	if c == CycleA {
		return "Числитель"
	}
	return "Знаменатель"
}

// ParseCycle accepts "A"/"B" as well as the numerator/denominator spellings.
func ParseCycle(text string) (Cycle, bool) {
	switch text {
	case "A", "a", "numerator", "числитель", "Числитель":
		return CycleA, true
	case "B", "b", "denominator", "знаменатель", "Знаменатель":
		return CycleB, true
	}
	return "", false
}

const DateLayout = "02.01.2006"

// Window is the Monday-Sunday span containing a date.
type Window struct {
	Monday time.Time
	Sunday time.Time
}

func (w Window) MondayString() string {
	return w.Monday.Format(DateLayout)
}

func (w Window) SundayString() string {
	return w.Sunday.Format(DateLayout)
}

// Info is the position of a date inside the semester.
type Info struct {
	// WeekNumber is 1 for the week the epoch falls in, it is zero or negative
	// for dates before the epoch.
	WeekNumber int
	Cycle      Cycle
}

// DisplayWeek is WeekNumber clamped to 1.
func (i Info) DisplayWeek() int {
	if i.WeekNumber < 1 {
		return 1
	}
	return i.WeekNumber
}

// Calendar is a pure function of the wall clock date and the configured
// semester start, it holds no other state.
type Calendar struct {
	epoch    time.Time
	location *time.Location
}

// New creates a Calendar. Only the date of epoch in loc matters, the time of
// day is discarded.
func New(epoch time.Time, loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}
	return Calendar{
		epoch:    startOfDay(epoch.In(loc)),
		location: loc,
	}
}

func (c Calendar) Epoch() time.Time {
	return c.epoch
}

func (c Calendar) Location() *time.Location {
	return c.location
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// isoWeekday maps Monday..Sunday to 1..7.
func isoWeekday(t time.Time) int {
	day := int(t.Weekday())
	if day == 0 {
		return 7
	}
	return day
}

// WeekWindow returns the Monday anchored week containing now.
func (c Calendar) WeekWindow(now time.Time) Window {
	today := startOfDay(now.In(c.location))
	monday := today.AddDate(0, 0, -(isoWeekday(today) - 1))
	return Window{
		Monday: monday,
		Sunday: monday.AddDate(0, 0, 6),
	}
}

// dayNumber counts civil days since 0001-01-01 so that day differences are
// not affected by DST transitions.
func dayNumber(t time.Time) int {
	utc := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(utc.Unix() / 86400)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// CycleInfo returns the week number and cycle of now relative to the epoch.
func (c Calendar) CycleInfo(now time.Time) Info {
	diffDays := dayNumber(now.In(c.location)) - dayNumber(c.epoch)
	weekNumber := floorDiv(diffDays, 7) + 1

	cycle := CycleB
	if weekNumber%2 != 0 {
		cycle = CycleA
	}
	return Info{
		WeekNumber: weekNumber,
		Cycle:      cycle,
	}
}
