package commands

import (
	"fmt"
	"io"
	"strings"
	"time"
	"univer-schedule/internal/cache"
	"univer-schedule/internal/calendar"
	"univer-schedule/internal/timetable"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func tableStyle(theme cache.Theme) table.Style {
	if theme == cache.ThemeDark {
		return table.StyleColoredDark
	}
	return table.StyleLight
}

// weekHeader always describes the current week, a selected cycle other
// than the current one is appended separately.
func weekHeader(cal calendar.Calendar, now time.Time, selected calendar.Cycle) string {
	window := cal.WeekWindow(now)
	info := cal.CycleInfo(now)
	header := fmt.Sprintf(
		"%s - %s, неделя %d (%s)",
		window.MondayString(),
		window.SundayString(),
		info.DisplayWeek(),
		info.Cycle.Label(),
	)
	if selected != info.Cycle {
		header += fmt.Sprintf(", показан: %s", selected.Label())
	}
	return header
}

type dayView struct {
	day       int
	lessons   []timetable.LessonRecord
	today     bool
	highlight func(timetable.LessonRecord) bool
}

func renderDay(out io.Writer, theme cache.Theme, view dayView) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(tableStyle(theme))

	title := timetable.DayNames[view.day]
	if view.today {
		title += " (сегодня)"
	}
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Время", "Предмет", "Преподаватель", "Аудитория"})

	if len(view.lessons) == 0 {
		t.AppendRow(table.Row{"", "Нет занятий", "", ""})
	}
	for _, lesson := range view.lessons {
		row := table.Row{lesson.Time, lesson.Subject, lesson.Teacher, lesson.Room}
		if view.highlight != nil && view.highlight(lesson) {
			for i, cell := range row {
				row[i] = text.Colors{text.Bold, text.FgGreen}.Sprint(cell)
			}
		}
		t.AppendRow(row)
	}
	t.Render()
}

// renderSchedule prints the week header followed by one table per weekday,
// or just the requested day when day is in [0, DaysPerRow).
func renderSchedule(out io.Writer, a *app, theme cache.Theme, snapshot cache.Snapshot, cycle calendar.Cycle, day int) {
	now := a.clock.Now()
	fmt.Fprintln(out, weekHeader(a.calendar, now, cycle))
	fmt.Fprintf(out, "обновлено %s\n", snapshot.FetchedAt.In(a.clock.Location()).Format("02.01.2006 15:04"))

	filtered := timetable.Filter(snapshot.Matrix, cycle)
	todayIdx, hasToday := timetable.TodayIndex(now)

	for d := 0; d < timetable.DaysPerRow; d++ {
		if day >= 0 && d != day {
			continue
		}
		isToday := hasToday && d == todayIdx
		view := dayView{
			day:     d,
			lessons: timetable.DayColumn(filtered, d),
			today:   isToday,
		}
		if isToday {
			view.highlight = func(lesson timetable.LessonRecord) bool {
				return timetable.IsLessonActive(lesson.Time, now)
			}
		}
		renderDay(out, theme, view)
	}
}

// parseDay accepts 1..6 or the short russian weekday name.
func parseDay(textValue string) (int, error) {
	if textValue == "" {
		return -1, nil
	}
	for i, name := range timetable.DayNames {
		if strings.EqualFold(name, textValue) {
			return i, nil
		}
	}
	var n int
	_, err := fmt.Sscanf(textValue, "%d", &n)
	if err != nil || n < 1 || n > timetable.DaysPerRow {
		return 0, fmt.Errorf("day must be 1-%d or one of %s", timetable.DaysPerRow, strings.Join(timetable.DayNames[:], ", "))
	}
	return n - 1, nil
}
