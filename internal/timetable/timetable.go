// Package timetable holds the normalized shape of a scraped weekly schedule.
package timetable

import (
	"errors"
	"strings"
	"univer-schedule/internal/calendar"
)

// DaysPerRow is the number of day slots in a row, Monday through Saturday.
// Sunday is never represented.
const DaysPerRow = 6

// DayNames are the short russian weekday names, Monday first.
var DayNames = [DaysPerRow]string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}

// CycleTag decides in which weeks a lesson takes place.
type CycleTag string

const (
	// TagAll lessons happen every week.
	TagAll CycleTag = "all"
	TagA   CycleTag = CycleTag(calendar.CycleA)
	TagB   CycleTag = CycleTag(calendar.CycleB)
)

// Matches reports whether a lesson with this tag is held in the given cycle.
func (t CycleTag) Matches(cycle calendar.Cycle) bool {
	return t == TagAll || t == CycleTag(cycle)
}

type LessonRecord struct {
	// Time is "H:MM-H:MM" when the row carried a time range, a short label
	// when it only carried text, or empty.
	Time    string   `json:"time"`
	Subject string   `json:"subject"`
	Teacher string   `json:"teacher"`
	Room    string   `json:"room"`
	Cycle   CycleTag `json:"cycle"`
}

// Day is the list of lessons sharing one time slot on one weekday.
type Day []LessonRecord

// Row is one table row of the timetable, it always has DaysPerRow days.
type Row []Day

// NewRow returns a row of empty (non-nil) days.
func NewRow() Row {
	row := make(Row, DaysPerRow)
	for i := range row {
		row[i] = Day{}
	}
	return row
}

// Matrix is a schedule in document order, rows are not sorted by time.
type Matrix []Row

// Normalize pads or truncates every row to DaysPerRow and replaces nil days
// with empty ones, so that a decoded matrix keeps the row invariant.
func (m Matrix) Normalize() Matrix {
	out := make(Matrix, len(m))
	for i, row := range m {
		normalized := NewRow()
		for day := 0; day < DaysPerRow && day < len(row); day++ {
			if row[day] != nil {
				normalized[day] = row[day]
			}
		}
		out[i] = normalized
	}
	return out
}

// LessonCount is the number of lessons in the matrix across all cycles.
func (m Matrix) LessonCount() int {
	count := 0
	for _, row := range m {
		for _, day := range row {
			count += len(day)
		}
	}
	return count
}

// FirstTime returns the time of the first lesson that has one.
func (m Matrix) FirstTime() (string, bool) {
	for _, row := range m {
		for _, day := range row {
			for _, lesson := range day {
				if lesson.Time != "" {
					return lesson.Time, true
				}
			}
		}
	}
	return "", false
}

// Credentials are handed to the portal as-is, they are never inspected.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

var ErrMissingCredentials = errors.New("username and password are required")

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}
