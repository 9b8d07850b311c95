package timetable

import (
	"strconv"
	"strings"
	"time"
	"univer-schedule/internal/calendar"
)

// Filter keeps the lessons held in the given cycle, the shape of the matrix
// is preserved.
func Filter(m Matrix, cycle calendar.Cycle) Matrix {
	out := make(Matrix, len(m))
	for i, row := range m {
		filtered := NewRow()
		for day := 0; day < DaysPerRow && day < len(row); day++ {
			for _, lesson := range row[day] {
				if lesson.Cycle.Matches(cycle) {
					filtered[day] = append(filtered[day], lesson)
				}
			}
		}
		out[i] = filtered
	}
	return out
}

// DayColumn flattens one weekday (0 = Monday) across all rows in row order.
func DayColumn(m Matrix, day int) []LessonRecord {
	lessons := []LessonRecord{}
	if day < 0 || day >= DaysPerRow {
		return lessons
	}
	for _, row := range m {
		if day < len(row) {
			lessons = append(lessons, row[day]...)
		}
	}
	return lessons
}

// TodayIndex returns the day slot of now, false on sundays.
func TodayIndex(now time.Time) (int, bool) {
	weekday := now.Weekday()
	if weekday == time.Sunday {
		return 0, false
	}
	return int(weekday) - 1, true
}

func parseClock(text string) (int, bool) {
	hour, minute, ok := strings.Cut(strings.TrimSpace(text), ":")
	if !ok {
		return 0, false
	}
	h, err := strconv.Atoi(hour)
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(minute)
	if err != nil {
		return 0, false
	}
	return h*60 + m, true
}

// IsLessonActive reports whether now's time of day falls in the lesson time
// range "H:MM-H:MM". Labels and empty times are never active.
func IsLessonActive(lessonTime string, now time.Time) bool {
	start, end, ok := strings.Cut(strings.ReplaceAll(lessonTime, "–", "-"), "-")
	if !ok {
		return false
	}
	startMinutes, ok := parseClock(start)
	if !ok {
		return false
	}
	endMinutes, ok := parseClock(end)
	if !ok {
		return false
	}
	current := now.Hour()*60 + now.Minute()
	return current >= startMinutes && current < endMinutes
}
