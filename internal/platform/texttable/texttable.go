// Package texttable renders aligned box-drawing tables for chat output.
// Stacked tables of equal width share their divider rows, with connector
// glyphs placed wherever a column boundary meets the divider.
package texttable

import "strings"

// Column defines one table column: a header plus the formatter that
// renders a row into the column's cell text.
type Column[T any] struct {
	Header string
	Format func(T) string
}

// Table holds pre-rendered cell text with per-column widths.
type Table struct {
	headers       []string
	lengths       []int
	cells         [][]string
	includeHeader bool
}

// New renders data through the column formatters and computes widths.
func New[T any](columns []Column[T], data []T, includeHeader bool) *Table {
	table := &Table{
		headers:       make([]string, len(columns)),
		lengths:       make([]int, len(columns)),
		includeHeader: includeHeader,
	}
	for i, column := range columns {
		table.headers[i] = column.Header
		table.lengths[i] = len([]rune(column.Header))
	}
	for _, datum := range data {
		row := make([]string, len(columns))
		for i, column := range columns {
			cell := column.Format(datum)
			if width := len([]rune(cell)); width > table.lengths[i] {
				table.lengths[i] = width
			}
			row[i] = cell
		}
		table.cells = append(table.cells, row)
	}
	return table
}

// Width returns the rendered width in runes, borders included.
func (t *Table) Width() int {
	width := 1
	for _, length := range t.lengths {
		width += length + 3
	}
	return width
}

// Render draws one or more stacked tables. Adjacent tables must have equal
// Width so their shared divider can connect both column layouts.
func Render(tables ...*Table) string {
	var lines []string
	for index, table := range tables {
		var next *Table
		if index < len(tables)-1 {
			next = tables[index+1]
		}
		if index == 0 {
			lines = append(lines, table.divider("┌", "┬", "┐"))
		}
		if table.includeHeader {
			lines = append(lines, table.row(table.headers))
			lines = append(lines, table.divider("├", "┼", "┤"))
		}
		for _, cells := range table.cells {
			lines = append(lines, table.row(cells))
		}
		lines = append(lines, table.bottomDivider(next))
	}
	return strings.Join(lines, "\n")
}

// row renders one line of right-aligned cells.
func (t *Table) row(cells []string) string {
	var b strings.Builder
	b.WriteString("│")
	for i, cell := range cells {
		b.WriteString(" ")
		b.WriteString(strings.Repeat(" ", t.lengths[i]-len([]rune(cell))))
		b.WriteString(cell)
		b.WriteString(" │")
	}
	return b.String()
}

func (t *Table) divider(left, middle, right string) string {
	var b strings.Builder
	b.WriteString(left)
	for i, length := range t.lengths {
		b.WriteString(strings.Repeat("─", length+2))
		if i < len(t.lengths)-1 {
			b.WriteString(middle)
		}
	}
	b.WriteString(right)
	return b.String()
}

// bottomDivider closes the table, or joins it to the next table's column
// layout when another table follows.
func (t *Table) bottomDivider(next *Table) string {
	if next == nil {
		return t.divider("└", "┴", "┘")
	}

	above := boundaryOffsets(t.lengths)
	below := boundaryOffsets(next.lengths)

	var b strings.Builder
	b.WriteString("├")
	for i := 1; i < t.Width()-1; i++ {
		switch {
		case above[i] && below[i]:
			b.WriteString("┼")
		case above[i]:
			b.WriteString("┴")
		case below[i]:
			b.WriteString("┬")
		default:
			b.WriteString("─")
		}
	}
	b.WriteString("┤")
	return b.String()
}

// boundaryOffsets marks the rune offsets of interior column borders.
func boundaryOffsets(lengths []int) map[int]bool {
	offsets := make(map[int]bool, len(lengths))
	i := 1
	for _, length := range lengths {
		offsets[i+length+2] = true
		i += length + 3
	}
	return offsets
}
