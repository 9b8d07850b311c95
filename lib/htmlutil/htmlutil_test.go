package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "  Физика \n\t (лек) ", expected: "Физика (лек)"},
		{input: "a  b", expected: "a b"},
		{input: "zero\u200bwidth", expected: "zerowidth"},
		{input: "", expected: ""},
	}

	for _, row := range table {
		require.Equal(t, row.expected, CleanText(row.input))
	}
}

func TestSelectionText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<div><span>Ауд</span> <b>101</b></div><div>x</div>`,
	))
	require.NoError(t, err)

	require.Equal(t, "Ауд 101x", SelectionText(doc.Find("div")))
	require.Equal(t, "Ауд 101", GetText(doc.Find("div").Nodes[0]))
}
