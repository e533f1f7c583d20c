package cli

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

const columnGap = 2

// Table prints column-aligned rows. Rows are buffered until Flush, which
// sizes the columns to the terminal, wrapping the widest cells when the
// table would not fit. Empty tables produce no output.
type Table struct {
	w       io.Writer
	width   int
	headers []string
	rows    [][]string
	prefix  string
}

// NewTable creates a table on stdout with the given column headers.
func NewTable(headers ...string) *Table {
	t := NewTableTo(os.Stdout, headers...)
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		t.width = w
	}
	return t
}

// NewTableTo creates a table writing to w without a width limit.
func NewTableTo(w io.Writer, headers ...string) *Table {
	return &Table{w: w, headers: headers}
}

// WithPrefix sets a string prepended to each line (headers, divider, rows).
func (t *Table) WithPrefix(prefix string) *Table {
	t.prefix = prefix
	return t
}

// WithWidth caps the table at width columns; 0 removes the cap.
func (t *Table) WithWidth(width int) *Table {
	t.width = width
	return t
}

// Row adds a row. Missing cells are blank.
func (t *Table) Row(values ...string) {
	t.rows = append(t.rows, values)
}

// Flush writes the buffered rows under the headers and a dash divider.
func (t *Table) Flush() {
	if len(t.rows) == 0 {
		return
	}
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visualLen(h)
	}
	for _, r := range t.rows {
		for i := 0; i < len(widths) && i < len(r); i++ {
			if n := visualLen(r[i]); n > widths[i] {
				widths[i] = n
			}
		}
	}
	if t.width > 0 {
		widths = capWidths(widths, t.headers, t.width, visualLen(t.prefix))
	}

	dividers := make([]string, len(t.headers))
	for i, h := range t.headers {
		dividers[i] = strings.Repeat("-", visualLen(h))
	}
	t.writeRow(widths, t.headers)
	t.writeRow(widths, dividers)
	for _, r := range t.rows {
		t.writeRow(widths, r)
	}
	t.rows = nil
}

// writeRow writes one logical row, spilling wrapped cells onto extra lines.
func (t *Table) writeRow(widths []int, cells []string) {
	wrapped := make([][]string, len(widths))
	height := 1
	for i := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		wrapped[i] = wrapCell(cell, widths[i])
		if len(wrapped[i]) > height {
			height = len(wrapped[i])
		}
	}
	for line := 0; line < height; line++ {
		var b strings.Builder
		b.WriteString(t.prefix)
		for i, w := range widths {
			part := ""
			if line < len(wrapped[i]) {
				part = wrapped[i][line]
			}
			if i == len(widths)-1 {
				b.WriteString(part)
				break
			}
			b.WriteString(part)
			b.WriteString(strings.Repeat(" ", w-visualLen(part)+columnGap))
		}
		fmt.Fprintln(t.w, strings.TrimRight(b.String(), " "))
	}
}

// capWidths narrows the widest columns until the table fits in termWidth.
// No column goes below its header width, even if the table then overflows.
func capWidths(widths []int, headers []string, termWidth, prefix int) []int {
	out := append([]int(nil), widths...)
	total := prefix + columnGap*(len(out)-1)
	for _, w := range out {
		total += w
	}
	for total > termWidth {
		widest := -1
		for i, w := range out {
			if w > visualLen(headers[i]) && (widest < 0 || w > out[widest]) {
				widest = i
			}
		}
		if widest < 0 {
			break
		}
		cut := total - termWidth
		if room := out[widest] - visualLen(headers[widest]); cut > room {
			cut = room
		}
		out[widest] -= cut
		total -= cut
	}
	return out
}

// wrapCell splits s into lines of at most width columns, breaking at
// spaces and hard-breaking words longer than width. A cell that fits is
// returned unchanged, escape codes included.
func wrapCell(s string, width int) []string {
	if width <= 0 || visualLen(s) <= width {
		return []string{s}
	}
	var lines []string
	cur := ""
	for _, word := range strings.Fields(stripANSI(s)) {
		for utf8.RuneCountInString(word) > width {
			if cur != "" {
				lines = append(lines, cur)
				cur = ""
			}
			r := []rune(word)
			lines = append(lines, string(r[:width]))
			word = string(r[width:])
		}
		switch {
		case cur == "":
			cur = word
		case utf8.RuneCountInString(cur)+1+utf8.RuneCountInString(word) <= width:
			cur += " " + word
		default:
			lines = append(lines, cur)
			cur = word
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

// visualLen is the printed width of s, ignoring color escape codes.
func visualLen(s string) int {
	return utf8.RuneCountInString(stripANSI(s))
}
