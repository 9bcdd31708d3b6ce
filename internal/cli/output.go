package cli

import (
	"fmt"
	"strings"
)

// Table aligns rows under headers.
type Table struct {
	headers []string
	rows    [][]string
	widths  []int
}

// NewTable creates a table with the given headers.
func NewTable(headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	return &Table{headers: headers, widths: widths}
}

// AddRow adds a row. Missing cells are blank; extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	for i, cell := range row {
		if n := len([]rune(cell)); n > t.widths[i] {
			t.widths[i] = n
		}
	}
	t.rows = append(t.rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// String renders the table.
func (t *Table) String() string {
	if len(t.headers) == 0 {
		return ""
	}

	var b strings.Builder
	line := func(cells []string, style func(string) string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			if i == len(cells)-1 {
				b.WriteString(style(cell))
			} else {
				b.WriteString(style(padRight(cell, t.widths[i])))
			}
		}
		b.WriteString("\n")
	}

	line(t.headers, Header)
	sep := make([]string, len(t.widths))
	for i, w := range t.widths {
		sep[i] = strings.Repeat("─", w)
	}
	line(sep, Muted)
	for _, row := range t.rows {
		line(row, func(s string) string { return s })
	}
	return b.String()
}

func padRight(s string, width int) string {
	if n := len([]rune(s)); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// FormatCount returns "1 statement" or "3 statements".
func FormatCount(count int, singular, plural string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}

// Section renders a bold title over indented content.
func Section(title, content string) string {
	return Bold(title) + "\n" + Indent(content, 2)
}

// Indent prefixes every non-empty line with spaces.
func Indent(content string, spaces int) string {
	pad := strings.Repeat(" ", spaces)
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = pad + l
		}
	}
	return strings.Join(lines, "\n")
}
