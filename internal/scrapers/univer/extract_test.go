package univer

import (
	"os"
	"testing"
	"univer-schedule/internal/timetable"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	buff, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return string(buff)
}

func TestExtractFixture(t *testing.T) {
	matrix, err := Extract(readFixture(t, "schedule.html"))
	require.NoError(t, err)

	expected := timetable.Matrix{
		{
			{
				{
					Time:    "08:30-09:50",
					Subject: "Высшая математика",
					Teacher: "Иванов И.И.",
					Room:    "ГК Ауд. 301",
					Cycle:   timetable.TagA,
				},
				{
					Time:    "08:30-09:50",
					Subject: "Физика",
					Teacher: "Петров П.П.",
					Room:    "ГК Ауд. 112",
					Cycle:   timetable.TagB,
				},
			},
			{},
			{
				{
					Time:    "08:30-09:50",
					Subject: "Численные методы",
					Teacher: "Сидорова А.Б.",
					Room:    "Ауд. 7 ИС-23-1",
					Cycle:   timetable.TagAll,
				},
			},
			{}, {}, {},
		},
		{
			{},
			{
				{
					Time:    "10:00-11:20",
					Subject: "Программирование",
					Teacher: "Ким Д.С.",
					Room:    "УК Ауд. 205",
					Cycle:   timetable.TagAll,
				},
			},
			{}, {}, {}, {},
		},
	}

	if diff := cmp.Diff(expected, matrix); diff != "" {
		t.Fatalf("matrix mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractIsStable(t *testing.T) {
	page := readFixture(t, "schedule.html")

	first, err := Extract(page)
	require.NoError(t, err)
	second, err := Extract(page)
	require.NoError(t, err)

	require.Empty(t, cmp.Diff(first, second))
}

func TestExtractRowShape(t *testing.T) {
	page := `<table class="schedule">
<tr><th>header</th></tr>
<tr><td>lonely</td></tr>
<tr><td>09:00-10:20</td><td class="field"></td></tr>
<tr>
  <td>3. Лабораторная работа</td>
  <td class="field"></td><td class="field"></td><td class="field"></td>
  <td class="field"></td><td class="field"></td><td class="field"></td>
  <td class="field"><div class="groups"><div><span class="teacher">Воскресенье</span></div></div></td>
</tr>
</table>`

	matrix, err := Extract(page)
	require.NoError(t, err)
	require.Len(t, matrix, 2)
	for _, row := range matrix {
		require.Len(t, row, timetable.DaysPerRow)
		for _, day := range row {
			require.NotNil(t, day)
		}
	}
	require.Equal(t, 0, matrix.LessonCount())
}

func TestExtractMissingTable(t *testing.T) {
	_, err := Extract(`<html><body><form action="/user/login"></form></body></html>`)
	require.ErrorIs(t, err, ErrNoScheduleTable)
}

func TestExtractEmptyTable(t *testing.T) {
	matrix, err := Extract(`<table class="schedule"><tr><th>Время</th></tr></table>`)
	require.NoError(t, err)
	require.Empty(t, matrix)
}

func TestNormalizeTime(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "08:30-09:50", expected: "08:30-09:50"},
		{input: "1. 8.30 - 9.50", expected: "8:30-9:50"},
		{input: "10.00–11.20", expected: "10:00-11:20"},
		{input: "13:00 14:20", expected: "13:00-14:20"},
		{input: "пара 2 (10:00 – 11:20) корпус", expected: "10:00-11:20"},
		{input: "Лабораторная", expected: ""},
		{input: "", expected: ""},
	}

	for _, row := range table {
		require.Equal(t, row.expected, NormalizeTime(row.input), row.input)
	}
}

func TestRowTime(t *testing.T) {
	table := []struct {
		firstCell string
		row       string
		expected  string
	}{
		{firstCell: "1. 08:30-09:50", row: "anything", expected: "08:30-09:50"},
		{firstCell: "1.", row: "1. Математика 11.40-13.00", expected: "11:40-13:00"},
		{firstCell: "3. Лабораторная работа", row: "3. Лабораторная работа", expected: "Лабораторна"},
		{firstCell: "Обед", row: "Обед", expected: "Обед"},
		{firstCell: "abc", row: "abc", expected: ""},
	}

	for _, row := range table {
		require.Equal(t, row.expected, rowTime(row.firstCell, row.row), row.firstCell)
	}
}

func TestClassifyCycle(t *testing.T) {
	table := []struct {
		input    string
		expected timetable.CycleTag
	}{
		{input: "Период с 01.09 по 20.12 Числитель", expected: timetable.TagA},
		{input: "ЗНАМЕНАТЕЛЬ", expected: timetable.TagB},
		{input: "числитель / знаменатель", expected: timetable.TagB},
		{input: "Численные методы", expected: timetable.TagAll},
		{input: "Физика (чис.)", expected: timetable.TagA},
		{input: "чис. Физика", expected: timetable.TagA},
		{input: "Химия знам.", expected: timetable.TagB},
		{input: "Химия (знам)", expected: timetable.TagB},
		{input: "Численные методы знам.", expected: timetable.TagB},
		{input: "Числовые ряды", expected: timetable.TagAll},
		{input: "Физика", expected: timetable.TagAll},
	}

	for _, row := range table {
		require.Equal(t, row.expected, ClassifyCycle(row.input), row.input)
	}
}

func TestStripPeriod(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "Физика Период с 01.09 по 20.12 числитель", expected: "Физика"},
		{input: "период с 1.9 по 20.12 Знаменатель Иванов", expected: "Иванов"},
		{input: "Период с 01.09 по 20.12", expected: ""},
		{input: "Химия", expected: "Химия"},
	}

	for _, row := range table {
		require.Equal(t, row.expected, StripPeriod(row.input), row.input)
	}
}

func TestJoinParams(t *testing.T) {
	table := []struct {
		input    []string
		expected string
	}{
		{input: []string{"ГКАуд. 101"}, expected: "ГК Ауд. 101"},
		{input: []string{"ГК", "Ауд.  101"}, expected: "ГК Ауд. 101"},
		{input: []string{" ИС-23-1 ", "\n", "Ауд. 7"}, expected: "ИС-23-1 Ауд. 7"},
		{input: nil, expected: ""},
	}

	for _, row := range table {
		require.Equal(t, row.expected, JoinParams(row.input))
	}
}
