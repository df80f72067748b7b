package formatter

import (
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

type alignment int

const (
	left alignment = iota
	right
)

// cell is one table cell. Widths are measured on text, and style is applied
// after padding so escape sequences never disturb the alignment.
type cell struct {
	text  string
	style func(string) string
}

type table struct {
	gap       int
	align     []alignment
	rows      [][]cell
	hasHeader bool
}

func newTable(gap int, align ...alignment) *table {
	return &table{gap: gap, align: align}
}

func (t *table) header(titles ...string) {
	cells := make([]cell, len(titles))
	for i, title := range titles {
		cells[i] = cell{text: title}
	}
	t.rows = append(t.rows, cells)
	t.hasHeader = true
}

func (t *table) row(cells ...cell) {
	t.rows = append(t.rows, cells)
}

func (t *table) widths() []int {
	widths := make([]int, len(t.align))
	for _, row := range t.rows {
		for i, c := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], runewidth.StringWidth(c.text))
			}
		}
	}
	return widths
}

func (t *table) write(w io.Writer) error {
	widths := t.widths()
	gap := strings.Repeat(" ", t.gap)

	var b strings.Builder
	for r, row := range t.rows {
		var line strings.Builder
		for i, width := range widths {
			var c cell
			if i < len(row) {
				c = row[i]
			}

			padding := strings.Repeat(" ", width-runewidth.StringWidth(c.text))
			text := c.text
			if c.style != nil && text != "" {
				text = c.style(text)
			}

			if i > 0 {
				line.WriteString(gap)
			}
			if t.align[i] == right {
				line.WriteString(padding + text)
			} else {
				line.WriteString(text + padding)
			}
		}
		b.WriteString(strings.TrimRight(line.String(), " "))
		b.WriteString("\n")

		if r == 0 && t.hasHeader {
			total := 0
			for _, width := range widths {
				total += width
			}
			total += t.gap * (len(widths) - 1)
			b.WriteString(strings.Repeat("─", total))
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
