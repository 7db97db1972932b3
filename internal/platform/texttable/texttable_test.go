package texttable

import (
	"strings"
	"testing"
)

type holding struct {
	name     string
	quantity string
	value    string
}

func holdingColumns() []Column[holding] {
	return []Column[holding]{
		{Header: "Name", Format: func(h holding) string { return h.name }},
		{Header: "Qty", Format: func(h holding) string { return h.quantity }},
		{Header: "Value", Format: func(h holding) string { return h.value }},
	}
}

func TestRenderSingleTable(t *testing.T) {
	table := New(holdingColumns(), []holding{
		{name: "GOOG", quantity: "3", value: "$300.00"},
		{name: "AMZN", quantity: "10", value: "$1,250.00"},
	}, true)

	got := Render(table)
	want := strings.Join([]string{
		"┌──────┬─────┬───────────┐",
		"│ Name │ Qty │     Value │",
		"├──────┼─────┼───────────┤",
		"│ GOOG │   3 │   $300.00 │",
		"│ AMZN │  10 │ $1,250.00 │",
		"└──────┴─────┴───────────┘",
	}, "\n")
	if got != want {
		t.Fatalf("rendered table mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderRightAlignsCells(t *testing.T) {
	table := New(holdingColumns(), []holding{
		{name: "A", quantity: "1", value: "$1.00"},
	}, true)

	got := Render(table)
	if !strings.Contains(got, "│    A │   1 │ $1.00 │") {
		t.Fatalf("expected right-aligned cells, got:\n%s", got)
	}
}

func TestRenderStackedTablesShareDivider(t *testing.T) {
	holdings := New(holdingColumns(), []holding{
		{name: "GOOG", quantity: "3", value: "$300.00"},
	}, true)
	totals := New([]Column[holding]{
		{Header: strings.Repeat(" ", 10), Format: func(h holding) string { return h.name }},
		{Header: strings.Repeat(" ", 7), Format: func(h holding) string { return h.value }},
	}, []holding{{name: "Total", value: "$300.00"}}, false)

	if holdings.Width() != totals.Width() {
		t.Fatalf("widths differ: %d vs %d", holdings.Width(), totals.Width())
	}

	got := Render(holdings, totals)
	lines := strings.Split(got, "\n")
	joint := lines[len(lines)-3]
	if strings.HasPrefix(joint, "└") || strings.HasSuffix(joint, "┘") {
		t.Fatalf("expected shared divider between tables, got %q", joint)
	}
	if !strings.HasPrefix(joint, "├") || !strings.HasSuffix(joint, "┤") {
		t.Fatalf("shared divider should span full width, got %q", joint)
	}
	if !strings.Contains(joint, "┴") {
		t.Fatalf("shared divider should close the columns above, got %q", joint)
	}
	if !strings.HasPrefix(lines[len(lines)-1], "└") {
		t.Fatalf("final line should close the stack, got %q", lines[len(lines)-1])
	}
}

func TestWidthCountsBordersAndPadding(t *testing.T) {
	table := New(holdingColumns(), nil, true)
	// 1 left border + per column: content + 2 padding + 1 border.
	want := 1 + (4 + 3) + (3 + 3) + (5 + 3)
	if got := table.Width(); got != want {
		t.Fatalf("width = %d, want %d", got, want)
	}
}
