package univer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"univer-schedule/internal/timetable"
	"univer-schedule/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ScheduleSelector marks the timetable on the personal schedule page.
const ScheduleSelector = ".schedule"

var ErrNoScheduleTable = errors.New("schedule table not found in page")

var (
	timeRangeRegex      = regexp.MustCompile(`(\d{1,2})[:.](\d{2})[-–\s]+(\d{1,2})[:.](\d{2})`)
	leadingOrdinalRegex = regexp.MustCompile(`^\d+\.\s*`)
	// the portal injects "Период с 01.09 по 20.12 числитель" into some cells
	periodRegex = regexp.MustCompile(`(?i)период\s+с\s+\d{1,2}\.\d{1,2}\s+по\s+\d{1,2}\.\d{1,2}(?:\s*(?:числитель|знаменатель))?`)
	// "ГКАуд. 101" -> "ГК Ауд. 101"
	roomTokenRegex = regexp.MustCompile(`([А-ЯЁ]+)(Ауд)`)
	// whole words or their abbreviations: "числитель", "чис.", "(чис)", but
	// not "Численные методы". \b only knows ascii letters.
	numeratorRegex   = regexp.MustCompile(`(?:^|[^\p{L}])чис(?:лит|[^\p{L}]|$)`)
	denominatorRegex = regexp.MustCompile(`(?:^|[^\p{L}])знам(?:ен|[^\p{L}]|$)`)
)

const (
	fallbackLabelMinRunes = 4
	fallbackLabelMaxRunes = 11
)

// NormalizeTime finds the first time range in text and renders it as
// "H:MM-H:MM", keeping the hour digits as written. It returns "" when text
// has no time range.
func NormalizeTime(text string) string {
	groups := timeRangeRegex.FindStringSubmatch(text)
	if len(groups) < 5 {
		return ""
	}
	return fmt.Sprintf("%s:%s-%s:%s", groups[1], groups[2], groups[3], groups[4])
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// rowTime looks for a time range in the first cell, then in the whole row,
// and otherwise degrades to a short label made from the first cell.
func rowTime(firstCellText, rowText string) string {
	if t := NormalizeTime(firstCellText); t != "" {
		return t
	}
	if t := NormalizeTime(rowText); t != "" {
		return t
	}
	if len([]rune(firstCellText)) < fallbackLabelMinRunes {
		return ""
	}
	label := leadingOrdinalRegex.ReplaceAllString(firstCellText, "")
	return strings.TrimSpace(truncateRunes(label, fallbackLabelMaxRunes))
}

// ClassifyCycle tags a lesson block by the numerator/denominator words in
// its text, full or abbreviated. When both appear the denominator wins.
func ClassifyCycle(blockText string) timetable.CycleTag {
	lower := strings.ToLower(blockText)
	tag := timetable.TagAll
	if numeratorRegex.MatchString(lower) {
		tag = timetable.TagA
	}
	if denominatorRegex.MatchString(lower) {
		tag = timetable.TagB
	}
	return tag
}

// StripPeriod removes the "Период с DD.MM по DD.MM ..." boilerplate.
func StripPeriod(text string) string {
	return htmlutil.CleanText(periodRegex.ReplaceAllString(text, " "))
}

// JoinParams joins the room/group parameter texts of a lesson block.
func JoinParams(params []string) string {
	joined := htmlutil.CleanText(strings.Join(params, " "))
	return roomTokenRegex.ReplaceAllString(joined, "${1} ${2}")
}

func isDayCell(cell *goquery.Selection) bool {
	if goquery.NodeName(cell) != "td" {
		return false
	}
	return cell.Find(".groups").Length() > 0 || cell.HasClass("field")
}

// extractLesson reads one lesson block. The portal marks both the course
// name and the instructor with the "teacher" class: the first such node is
// the subject and the second one is the instructor. Consumers depend on that
// positional reading, do not "fix" it.
func extractLesson(block *goquery.Selection, slot string) timetable.LessonRecord {
	teachers := block.Find(".teacher")

	var params []string
	block.Find(".params span").Each(func(_ int, span *goquery.Selection) {
		params = append(params, htmlutil.CleanText(htmlutil.SelectionText(span)))
	})

	return timetable.LessonRecord{
		Time:    slot,
		Subject: StripPeriod(htmlutil.SelectionText(teachers.Eq(0))),
		Teacher: StripPeriod(htmlutil.SelectionText(teachers.Eq(1))),
		Room:    StripPeriod(JoinParams(params)),
		Cycle:   ClassifyCycle(htmlutil.SelectionText(block)),
	}
}

func extractRow(row *goquery.Selection) (timetable.Row, bool) {
	cells := row.Children()
	if cells.Length() < 2 {
		return nil, false
	}

	firstCellText := htmlutil.CleanText(htmlutil.SelectionText(cells.First()))
	rowText := htmlutil.CleanText(htmlutil.SelectionText(row))
	slot := rowTime(firstCellText, rowText)

	out := timetable.NewRow()
	day := 0
	cells.EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		if !isDayCell(cell) {
			return true
		}
		cell.Find(".groups > div").Each(func(_ int, block *goquery.Selection) {
			out[day] = append(out[day], extractLesson(block, slot))
		})
		day++
		// trailing columns past saturday (notes etc.) are dropped
		return day < timetable.DaysPerRow
	})

	return out, true
}

// ExtractDocument turns the schedule table of a loaded page into a matrix.
// Rows keep document order, the header row is skipped and rows with fewer
// than two cells are dropped.
func ExtractDocument(doc *goquery.Document) (timetable.Matrix, error) {
	table := doc.Find(ScheduleSelector)
	if table.Length() == 0 {
		return nil, ErrNoScheduleTable
	}

	matrix := timetable.Matrix{}
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		parsed, ok := extractRow(row)
		if !ok {
			return
		}
		matrix = append(matrix, parsed)
	})
	return matrix, nil
}

// Extract parses page markup and extracts the schedule matrix.
func Extract(page string) (timetable.Matrix, error) {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return ExtractDocument(goquery.NewDocumentFromNode(root))
}
