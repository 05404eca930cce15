package table

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type report struct {
	errors   []string
	warnings []string
}

func (r *report) Errorf(format string, args ...interface{}) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *report) Warningf(format string, args ...interface{}) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

var testStyles = []string{"verse", "strong", "monospaced", "literal", "header", "emphasis", "asciidoc"}

func newTestTable(format string) (*Table, *report) {
	var rep report
	t := &Table{
		Format:    format,
		Styles:    testStyles,
		AbsWidth:  400,
		PageUnits: "px",
		Report:    &rep,
	}
	t.Compile()
	return t, &rep
}

func TestParseAlign(t *testing.T) {
	for _, tc := range []struct {
		spec string
		h, v string
	}{
		{"", "", ""},
		{"<", "left", ""},
		{"^", "center", ""},
		{">.^", "right", "middle"},
		{".>", "", "bottom"},
		{"<<", "", ""},
	} {
		h, v := ParseAlign(tc.spec)
		assert.Equal(t, tc.h, h, "halign of %q", tc.spec)
		assert.Equal(t, tc.v, v, "valign of %q", tc.spec)
	}
}

func TestParseSpan(t *testing.T) {
	for _, tc := range []struct {
		spec        string
		span, vspan int
	}{
		{"", 1, 1},
		{"3", 3, 1},
		{".2", 1, 2},
		{"2.3", 2, 3},
		{"x", 1, 1},
	} {
		span, vspan := ParseSpan(tc.spec)
		assert.Equal(t, tc.span, span, "span of %q", tc.spec)
		assert.Equal(t, tc.vspan, vspan, "vspan of %q", tc.spec)
	}
}

func TestParseCols(t *testing.T) {
	type col struct {
		h, v, style string
		pc          int
		abs         string
	}
	for _, tc := range []struct {
		name   string
		cols   string
		units  string
		abs    float64
		expect []col
		errors []string
	}{
		{
			name: "count",
			cols: "3",
			expect: []col{
				{"left", "top", "", 33, "133"},
				{"left", "top", "", 33, "133"},
				{"left", "top", "", 33, "133"},
			},
		},
		{
			name: "multiplier and proportional",
			cols: "2*,3",
			expect: []col{
				{"left", "top", "", 20, "80"},
				{"left", "top", "", 20, "80"},
				{"left", "top", "", 60, "240"},
			},
		},
		{
			name:  "percent fill",
			cols:  "25%,50%,",
			units: "cm",
			abs:   17,
			expect: []col{
				{"left", "top", "", 25, "4.25"},
				{"left", "top", "", 50, "8.50"},
				{"left", "top", "", 25, "4.25"},
			},
		},
		{
			name: "alignment",
			cols: "^, >.^2",
			expect: []col{
				{"center", "top", "", 33, "133"},
				{"right", "middle", "", 66, "267"},
			},
		},
		{
			name: "styles",
			cols: "1e,3m",
			expect: []col{
				{"left", "top", "emphasis", 25, "100"},
				{"left", "top", "monospaced", 75, "300"},
			},
		},
		{
			name:   "missing style",
			cols:   "1z",
			expect: []col{{"left", "top", "", 100, "400"}},
			errors: []string{"missing style: z*"},
		},
		{
			name: "mixed units",
			cols: "50%,2",
			expect: []col{
				{"left", "top", "", 50, "200"},
				{"left", "top", "", 2, "8"},
			},
			errors: []string{
				"mixed percent and proportional widths: 50%,2",
				"total width less than 100%: 50%,2",
			},
		},
		{
			name: "too wide",
			cols: "60%,60%",
			expect: []col{
				{"left", "top", "", 60, "240"},
				{"left", "top", "", 60, "240"},
			},
			errors: []string{"total width exceeds 100%: 60%,60%"},
		},
		{
			name: "illegal",
			cols: "x!",
			errors: []string{
				"illegal column spec: x!",
				"total width less than 100%: x!",
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tbl, rep := newTestTable(PSV)
			if tc.units != "" {
				tbl.PageUnits = tc.units
				tbl.AbsWidth = tc.abs
			}
			tbl.ParseCols(tc.cols)
			var got []col
			for _, c := range tbl.Columns {
				got = append(got, col{c.HAlign, c.VAlign, c.Style, c.PcWidth, c.AbsWidth})
			}
			assert.Equal(t, tc.expect, got)
			assert.Equal(t, tc.errors, rep.errors)
		})
	}
}

func cellData(cells []*Cell) []string {
	var data []string
	for _, c := range cells {
		data = append(data, c.Data)
	}
	return data
}

func TestSplitCells(t *testing.T) {
	for _, tc := range []struct {
		name   string
		format string
		lines  []string
		data   []string
		check  func(t *testing.T, cells []*Cell)
		errors []string
	}{
		{
			name:  "simple",
			lines: []string{"|one|two"},
			data:  []string{"one", "two"},
		},
		{
			name:  "escaped separator",
			lines: []string{`|a\|b|c`},
			data:  []string{"a|b", "c"},
		},
		{
			name:  "column span",
			lines: []string{"2+|wide|x"},
			data:  []string{"wide", "x"},
			check: func(t *testing.T, cells []*Cell) {
				assert.Equal(t, 2, cells[0].Span)
				assert.Equal(t, 1, cells[1].Span)
			},
		},
		{
			name:  "multiplier",
			lines: []string{"3*|z"},
			data:  []string{"z", "z", "z"},
		},
		{
			name:  "alignment after newline",
			lines: []string{"|x", "^.>|y"},
			data:  []string{"x\n", "y"},
			check: func(t *testing.T, cells []*Cell) {
				assert.Equal(t, "center", cells[1].HAlign)
				assert.Equal(t, "bottom", cells[1].VAlign)
			},
		},
		{
			name:  "operator inside data",
			lines: []string{"|a2+|b"},
			data:  []string{"a2+", "b"},
			check: func(t *testing.T, cells []*Cell) {
				assert.Equal(t, 1, cells[0].Span)
			},
		},
		{
			name:  "cell style",
			lines: []string{"|x", "e|y"},
			data:  []string{"x\n", "y"},
			check: func(t *testing.T, cells []*Cell) {
				assert.Equal(t, "emphasis", cells[1].Style)
			},
		},
		{
			name:   "missing leading separator",
			lines:  []string{"A|b"},
			data:   []string{"A", "b"},
			errors: []string{"missing leading separator: " + PSVSeparator},
		},
		{
			name:   "dsv",
			format: DSV,
			lines:  []string{"a:b", "c:d"},
			data:   []string{"a", "b", "c", "d"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tbl, rep := newTestTable(firstOf(tc.format, PSV))
			cells := tbl.SplitCells(tc.lines)
			assert.Equal(t, tc.data, cellData(cells))
			assert.Equal(t, tc.errors, rep.errors)
			if tc.check != nil {
				tc.check(t, cells)
			}
		})
	}
}

func TestParseCSV(t *testing.T) {
	tbl, rep := newTestTable(CSV)
	tbl.ParseCols("2")
	tbl.ParseRows([]string{`a, "b,c"`, `d,e`})
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"a", "b,c"}, cellData(tbl.Rows[0]))
	assert.Equal(t, []string{"d", "e"}, cellData(tbl.Rows[1]))
	assert.Empty(t, rep.errors)
	assert.Empty(t, rep.warnings)
}

func TestCountColumns(t *testing.T) {
	tbl, _ := newTestTable(PSV)
	assert.Equal(t, 3, tbl.CountColumns([]string{"|a|b|c", "|d|e|f"}))
	assert.Equal(t, 3, tbl.CountColumns([]string{"2+|a|b"}))
	assert.Equal(t, 0, tbl.CountColumns(nil))

	csvTbl, _ := newTestTable(CSV)
	assert.Equal(t, 2, csvTbl.CountColumns([]string{"a,b"}))
}

func reservedCount(row []*Cell) int {
	n := 0
	for _, c := range row {
		if c.Reserved {
			n++
		}
	}
	return n
}

func TestParseRows_rowspan(t *testing.T) {
	tbl, rep := newTestTable(PSV)
	tbl.ParseCols("3")
	tbl.ParseRows([]string{
		"|a |b |c",
		".2+|d |e |f",
		"|g |h",
	})
	require.Len(t, tbl.Rows, 3)

	assert.Equal(t, 0, reservedCount(tbl.Rows[1]), "spanning row has no reserved cells")
	assert.Equal(t, 2, tbl.Rows[1][0].VSpan)
	assert.False(t, tbl.Rows[1][0].Reserved)

	require.Len(t, tbl.Rows[2], 3)
	assert.Equal(t, 1, reservedCount(tbl.Rows[2]), "covered row has one reserved cell")
	assert.True(t, tbl.Rows[2][0].Reserved)
	assert.Equal(t, "d ", tbl.Rows[2][0].Data)
	assert.Equal(t, 1, tbl.Rows[2][0].VSpan)
	assert.Equal(t, []string{"g ", "h"}, cellData(tbl.Rows[2][1:]))

	for i, row := range tbl.Rows {
		assert.Equal(t, 3, RowSpan(row), "row %d span", i+1)
	}
	assert.Empty(t, rep.warnings)
	assert.Empty(t, rep.errors)
}

func TestParseRows_spanWarnings(t *testing.T) {
	for _, tc := range []struct {
		name     string
		cols     string
		lines    []string
		warnings []string
	}{
		{
			name:     "short last row",
			cols:     "2",
			lines:    []string{"|a|b", "|c|d|e"},
			warnings: []string{"table row 3: does not span all columns"},
		},
		{
			name:     "exceeds header",
			cols:     "3",
			lines:    []string{"2+|a 2+|b", "|c|d|e"},
			warnings: []string{"table row 2: exceeds columns span"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tbl, rep := newTestTable(PSV)
			tbl.ParseCols(tc.cols)
			tbl.ParseRows(tc.lines)
			assert.Equal(t, tc.warnings, rep.warnings)
		})
	}
}

func ExampleLayout() {
	cells := []*Cell{
		{Data: "a", Span: 1, VSpan: 2},
		{Data: "b", Span: 1, VSpan: 1},
		{Data: "c", Span: 1, VSpan: 1},
	}
	for _, row := range Layout(cells, 2) {
		fmt.Println(row)
	}
	// Output:
	// [<Cell: 1.2 .  "a"> <Cell: 1.1 .  "b">]
	// [<Cell: 1.1 .  "a"> <Cell: 1.1 .  "c">]
}
