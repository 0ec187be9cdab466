// Package formatter renders gk command output: aligned tables, styled
// status words and JSON Lines.
package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table formats columnar output. Widths are measured with lipgloss so
// styled cells stay aligned.
type Table struct {
	w        io.Writer
	headers  []string
	rows     [][]string
	maxWidth map[int]int // column index -> max width (0 = unlimited)
	header   lipgloss.Style
	styled   bool
}

// NewTable creates a table that writes to w with the given column headers.
func NewTable(w io.Writer, headers ...string) *Table {
	return &Table{
		w:        w,
		headers:  headers,
		maxWidth: make(map[int]int),
	}
}

// SetMaxWidth sets the maximum display width for a column (0-indexed).
// Values exceeding the limit are truncated with "...".
func (t *Table) SetMaxWidth(col, width int) *Table {
	t.maxWidth[col] = width
	return t
}

// WithHeaderStyle renders the header row with s.
func (t *Table) WithHeaderStyle(s lipgloss.Style) *Table {
	t.header = s
	t.styled = true
	return t
}

// AddRow appends a data row. Extra values beyond the header count are ignored;
// missing values are filled with empty strings.
func (t *Table) AddRow(values ...string) {
	cells := make([]string, len(t.headers))
	for i := range cells {
		if i < len(values) {
			cells[i] = t.truncate(i, values[i])
		}
	}
	t.rows = append(t.rows, cells)
}

// Len is the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the header, a separator and every row. A table without
// rows writes nothing.
func (t *Table) Render() error {
	if len(t.rows) == 0 {
		return nil
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	header := make([]string, len(t.headers))
	sep := make([]string, len(t.headers))
	for i, h := range t.headers {
		header[i] = h
		if t.styled {
			header[i] = t.header.Render(h)
		}
		sep[i] = strings.Repeat("-", lipgloss.Width(h))
	}

	var b strings.Builder
	writeRow(&b, header, widths)
	writeRow(&b, sep, widths)
	for _, row := range t.rows {
		writeRow(&b, row, widths)
	}
	_, err := fmt.Fprint(t.w, b.String())
	return err
}

func writeRow(b *strings.Builder, cells []string, widths []int) {
	for i, cell := range cells {
		if i == len(cells)-1 {
			b.WriteString(cell)
			break
		}
		b.WriteString(cell)
		b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
	}
	b.WriteString("\n")
}

func (t *Table) truncate(col int, s string) string {
	limit, ok := t.maxWidth[col]
	if !ok || limit <= 0 || len(s) <= limit {
		return s
	}
	if limit <= 3 {
		return s[:limit]
	}
	return s[:limit-3] + "..."
}
