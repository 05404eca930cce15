package table

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode"
)

// CountColumns returns the column count implied by the first source line,
// used when the table has no cols attribute.
func (t *Table) CountColumns(lines []string) int {
	if len(lines) == 0 {
		return 0
	}
	if t.Format == CSV {
		return strings.Count(lines[0], t.Separator) + 1
	}
	n := 0
	for _, c := range t.SplitCells(lines[:1]) {
		n += c.Span
	}
	return n
}

// separator is one separator match within the table text.
type separator struct {
	start, end int
	span       string
	op         string
	align      string
	style      string
}

func (t *Table) separators(text string) []separator {
	re := t.sepRE
	names := re.SubexpNames()
	var seps []separator
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		sep := separator{start: loc[0], end: loc[1]}
		prefixEnd := -1
		for i, name := range names {
			if i == 0 || loc[2*i] < 0 {
				continue
			}
			val := text[loc[2*i]:loc[2*i+1]]
			switch name {
			case "span":
				sep.span = val
			case "op":
				sep.op = val
			case "align":
				sep.align = val
			case "style":
				sep.style = val
			default:
				continue
			}
			if val != "" && loc[2*i+1] > prefixEnd {
				prefixEnd = loc[2*i+1]
			}
		}
		// an operator prefix must start the text or follow white space,
		// otherwise it is cell data and only the bare separator matches
		if prefixEnd > sep.start && sep.start > 0 {
			if r := lastRune(text[:sep.start]); !unicode.IsSpace(r) {
				sep = separator{start: prefixEnd, end: sep.end}
			}
		}
		seps = append(seps, sep)
	}
	return seps
}

func lastRune(s string) rune {
	rs := []rune(s)
	if len(rs) == 0 {
		return 0
	}
	return rs[len(rs)-1]
}

// SplitCells splits PSV or DSV source lines into cells. A separator
// preceded by a backslash is cell data. PSV text must begin with a
// separator; the blank dummy cell before it is discarded.
func (t *Table) SplitCells(lines []string) []*Cell {
	if t.sepRE == nil {
		t.Compile()
	}
	text := strings.Join(lines, "\n")

	var (
		cells []*Cell
		data  strings.Builder
		cur   separator
		start int
	)
	appendCell := func(sep separator, data string) {
		switch op := firstOf(sep.op, "+"); op {
		case "*":
			span, _ := ParseSpan(sep.span)
			for i := 0; i < span; i++ {
				cells = append(cells, newCell(data, "1", sep.align, sep.style))
			}
		case "+":
			cells = append(cells, newCell(data, sep.span, sep.align, sep.style))
		default:
			t.errorf("illegal table cell operator")
		}
	}

	for _, sep := range t.separators(text) {
		data.WriteString(text[start:sep.start])
		if s := data.String(); strings.HasSuffix(s, `\`) {
			data.Reset()
			data.WriteString(s[:len(s)-1])
			data.WriteString(text[sep.start:sep.end])
		} else {
			appendCell(cur, s)
			cur = sep
			cur.style = t.style(sep.style)
			data.Reset()
		}
		start = sep.end
	}
	data.WriteString(text[start:])
	appendCell(cur, data.String())

	if t.Format == PSV && len(cells) > 0 {
		if strings.TrimSpace(cells[0].Data) != "" {
			t.errorf("missing leading separator: %s", t.Separator)
		} else {
			cells = cells[1:]
		}
	}
	return cells
}

// ParseCSV parses CSV source lines into rows of cells.
func (t *Table) ParseCSV(lines []string) [][]*Cell {
	rd := csv.NewReader(strings.NewReader(strings.Join(lines, "\r\n")))
	rd.Comma = []rune(t.Separator)[0]
	rd.TrimLeadingSpace = true
	rd.LazyQuotes = true
	rd.FieldsPerRecord = -1

	var rows [][]*Cell
	for {
		rec, err := rd.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.errorf("csv parse error: %v", err)
			break
		}
		row := make([]*Cell, len(rec))
		for i, data := range rec {
			row[i] = newCell(data, "", "", "")
		}
		rows = append(rows, row)
	}
	return rows
}

// ParseRows parses the table source into Rows. Columns must already be
// parsed: PSV and DSV cells are laid out over them, each vertically spanned
// cell reserving its column in the rows it covers.
func (t *Table) ParseRows(lines []string) {
	switch t.Format {
	case CSV:
		t.Rows = t.ParseCSV(lines)
	default:
		t.Rows = Layout(t.SplitCells(lines), len(t.Columns))
	}
	t.checkRows()
}

// Layout arranges cells into rows of colcount columns. A cell with a
// vertical span of n inserts a reserved clone at the same column of each of
// the following n-1 rows; reserved cells are placed before the next parsed
// cell. A trailing partial row is kept so that it can be reported.
func Layout(cells []*Cell, colcount int) [][]*Cell {
	var (
		rows     [][]*Cell
		row      []*Cell
		reserved = make(map[int]map[int]*Cell)
		ri, ci   int
	)
	for i := 0; ; {
		cell := reserved[ri][ci]
		if cell == nil {
			if i >= len(cells) {
				break
			}
			cell = cells[i]
			i++
			for j := 1; j < cell.VSpan; j++ {
				if reserved[ri+j] == nil {
					reserved[ri+j] = make(map[int]*Cell)
				}
				reserved[ri+j][ci] = cell.cloneReserve()
			}
		}
		ci += cell.Span
		if ci <= colcount {
			row = append(row, cell)
		}
		if ci >= colcount {
			rows = append(rows, row)
			ri++
			row = nil
			ci = 0
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

func (t *Table) checkRows() {
	for ri, row := range t.Rows {
		empty := true
		for _, cell := range row {
			if !cell.Reserved {
				empty = false
				break
			}
		}
		if empty {
			t.warningf("table row %d: empty spanned row", ri+1)
		}
	}
	headerSpan := 0
	for ri, row := range t.Rows {
		span := RowSpan(row)
		if ri == 0 {
			headerSpan = span
		}
		if span < headerSpan {
			t.warningf("table row %d: does not span all columns", ri+1)
		}
		if span > headerSpan {
			t.warningf("table row %d: exceeds columns span", ri+1)
		}
	}
}

// RowSpan returns the number of columns spanned by row.
func RowSpan(row []*Cell) int {
	n := 0
	for _, cell := range row {
		n += cell.Span
	}
	return n
}
