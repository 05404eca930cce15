// Package table implements the table sub-grammar: column specifications,
// cell separators with span and alignment operators, and the row layout of
// vertically spanned cells.
package table

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Table source formats.
const (
	PSV = "psv"
	CSV = "csv"
	DSV = "dsv"
)

// Formats lists the legal table formats.
var Formats = []string{PSV, CSV, DSV}

// ValidFormat returns true if format is one of Formats.
func ValidFormat(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

// PSVSeparator is the default PSV cell separator. The optional prefix
// carries a span or multiplier, an alignment and a style letter; it is only
// recognized at the start of the text or after white space.
const PSVSeparator = `((?P<span>[\d.]+)(?P<op>[*+]))?(?P<align>[<\^>.]{0,3})?(?P<style>[a-z])?\|`

// DefaultSeparator returns the separator used by format when none is given.
func DefaultSeparator(format string) string {
	switch format {
	case CSV:
		return ","
	case DSV:
		return `:|\n`
	default:
		return PSVSeparator
	}
}

// Reporter receives the problems found while parsing a table. Errors are
// recoverable: parsing continues and produces a best effort result.
type Reporter interface {
	Errorf(format string, args ...interface{})
	Warningf(format string, args ...interface{})
}

// Column is a parsed column specification.
type Column struct {
	Width  string // "3" (proportional) or "25%"
	HAlign string
	VAlign string
	Style  string

	// Calculated from the table width.
	AbsWidth string
	PcWidth  int
}

// Cell is a parsed table cell. Reserved cells stand in for the rows covered
// by a vertically spanned cell; they carry the spanning cell's data but are
// never output.
type Cell struct {
	Data     string
	Span     int
	VSpan    int
	HAlign   string
	VAlign   string
	Style    string
	Reserved bool
}

func newCell(data, spanSpec, alignSpec, style string) *Cell {
	c := &Cell{Data: data, Style: style}
	c.Span, c.VSpan = ParseSpan(spanSpec)
	c.HAlign, c.VAlign = ParseAlign(alignSpec)
	return c
}

func (c *Cell) cloneReserve() *Cell {
	r := *c
	r.VSpan = 1
	r.Reserved = true
	return &r
}

func (c *Cell) String() string {
	return fmt.Sprintf("<Cell: %d.%d %s.%s %s %q>",
		c.Span, c.VSpan, c.HAlign, c.VAlign, c.Style, c.Data)
}

var (
	alignRE = regexp.MustCompile(`^([<\^>])?(\.([<\^>]))?$`)
	spanRE  = regexp.MustCompile(`^(\d+)?(\.(\d+))?$`)

	halignNames = map[string]string{"<": "left", ">": "right", "^": "center"}
	valignNames = map[string]string{"<": "top", ">": "bottom", "^": "middle"}
)

// ParseAlign parses a "[h][.v]" alignment specifier into horizontal and
// vertical alignment names; unspecified alignments are empty.
func ParseAlign(spec string) (halign, valign string) {
	if spec == "" {
		return "", ""
	}
	m := alignRE.FindStringSubmatch(spec)
	if m == nil {
		return "", ""
	}
	return halignNames[m[1]], valignNames[m[3]]
}

// ParseSpan parses a "[n][.m]" span specifier into horizontal and vertical
// span counts, each defaulting to 1.
func ParseSpan(spec string) (span, vspan int) {
	span, vspan = 1, 1
	if spec == "" {
		return
	}
	m := spanRE.FindStringSubmatch(spec)
	if m == nil {
		return
	}
	if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
		span = n
	}
	if n, err := strconv.Atoi(m[3]); err == nil && n > 0 {
		vspan = n
	}
	return
}

// Table holds the parameters and parsed content of one table.
type Table struct {
	Format    string
	Separator string

	// Styles are the table definition's style names.
	Styles []string

	// HAlign and VAlign are the default column alignments.
	HAlign string
	VAlign string

	// AbsWidth is the table width in page units, PageUnits the unit name.
	AbsWidth  float64
	PageUnits string

	Report Reporter

	Columns []Column
	Rows    [][]*Cell

	sepRE *regexp.Regexp
}

// Compile checks the separator for the table format, reporting an error and
// falling back to the default when it is not usable.
func (t *Table) Compile() {
	if !ValidFormat(t.Format) {
		t.errorf("illegal format=%s", t.Format)
		t.Format = PSV
	}
	if t.Separator == "" {
		t.Separator = DefaultSeparator(t.Format)
	}
	if t.Format == CSV {
		if len([]rune(t.Separator)) != 1 {
			t.errorf("illegal csv separator=%s", t.Separator)
			t.Separator = ","
		}
		return
	}
	re, err := regexp.Compile(`(?ms)` + t.Separator)
	if err != nil {
		t.errorf("illegal regular expression: separator=%s", t.Separator)
		t.Separator = DefaultSeparator(t.Format)
		re = regexp.MustCompile(`(?ms)` + t.Separator)
	}
	t.sepRE = re
}

func (t *Table) errorf(format string, args ...interface{}) {
	if t.Report != nil {
		t.Report.Errorf(format, args...)
	}
}

func (t *Table) warningf(format string, args ...interface{}) {
	if t.Report != nil {
		t.Report.Warningf(format, args...)
	}
}

// style returns the first style, in name order, that starts with prefix.
func (t *Table) style(prefix string) string {
	if prefix == "" {
		return ""
	}
	names := append([]string(nil), t.Styles...)
	sort.Strings(names)
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			return name
		}
	}
	t.errorf("missing style: %s*", prefix)
	return ""
}

var (
	// [<multiplier>*][<align>][<width>][<style>]
	colsRE1 = regexp.MustCompile(`^((?P<count>\d+)\*)?(?P<align>[<\^>.]{0,3})?(?P<width>\d+%?)?(?P<style>[a-z][\p{L}\p{N}_]*)?$`)
	// [<multiplier>*][<width>][<align>][<style>]
	colsRE2 = regexp.MustCompile(`^((?P<count>\d+)\*)?(?P<width>\d+%?)?(?P<align>[<\^>.]{0,3})?(?P<style>[a-z][\p{L}\p{N}_]*)?$`)

	countRE  = regexp.MustCompile(`^\d+$`)
	colSepRE = regexp.MustCompile(`\s*,\s*`)
)

func group(re *regexp.Regexp, m []string, name string) string {
	if i := re.SubexpIndex(name); i >= 0 && i < len(m) {
		return m[i]
	}
	return ""
}

// ParseCols builds the table columns from a cols attribute value: either a
// bare column count or a comma separated list of column specifiers.
func (t *Table) ParseCols(cols string) {
	t.Columns = nil
	if countRE.MatchString(cols) {
		n, _ := strconv.Atoi(cols)
		for i := 0; i < n; i++ {
			t.Columns = append(t.Columns, Column{})
		}
	} else {
		for _, spec := range colSepRE.Split(cols, -1) {
			re := colsRE1
			m := re.FindStringSubmatch(spec)
			if m == nil {
				re = colsRE2
				m = re.FindStringSubmatch(spec)
			}
			if m == nil {
				t.errorf("illegal column spec: %s", spec)
				continue
			}
			count := 1
			if n, err := strconv.Atoi(group(re, m, "count")); err == nil {
				count = n
			}
			col := Column{
				Width: group(re, m, "width"),
				Style: t.style(group(re, m, "style")),
			}
			col.HAlign, col.VAlign = ParseAlign(group(re, m, "align"))
			for i := 0; i < count; i++ {
				t.Columns = append(t.Columns, col)
			}
		}
	}

	for i := range t.Columns {
		col := &t.Columns[i]
		col.HAlign = firstOf(col.HAlign, t.HAlign, "left")
		col.VAlign = firstOf(col.VAlign, t.VAlign, "top")
	}
	t.calcWidths(cols)
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (t *Table) calcWidths(cols string) {
	n := 0
	percents, props := 0.0, 0.0
	for _, col := range t.Columns {
		if col.Width == "" {
			continue
		}
		if strings.HasSuffix(col.Width, "%") {
			w, _ := strconv.Atoi(strings.TrimSuffix(col.Width, "%"))
			percents += float64(w)
		} else {
			w, _ := strconv.Atoi(col.Width)
			props += float64(w)
		}
		n++
	}
	if percents > 0 && props > 0 {
		t.errorf("mixed percent and proportional widths: %s", cols)
	}
	pcunits := percents > 0

	if n < len(t.Columns) && percents < 100 {
		width := 1.0
		if pcunits {
			width = (100 - percents) / float64(len(t.Columns)-n)
		}
		for i := range t.Columns {
			col := &t.Columns[i]
			if col.Width != "" {
				continue
			}
			if pcunits {
				col.Width = strconv.Itoa(int(width)) + "%"
				percents += width
			} else {
				col.Width = strconv.Itoa(int(width))
				props += width
			}
		}
	}

	total := 0.0
	for i := range t.Columns {
		col := &t.Columns[i]
		var pc float64
		if pcunits {
			w, _ := strconv.Atoi(strings.TrimSuffix(col.Width, "%"))
			pc = float64(w)
		} else if props > 0 {
			w, _ := strconv.Atoi(strings.TrimSuffix(col.Width, "%"))
			pc = float64(w) / props * 100
		}
		abs := t.AbsWidth * pc / 100
		switch t.PageUnits {
		case "cm", "mm", "in", "em":
			col.AbsWidth = strconv.FormatFloat(math.Round(abs*100)/100, 'f', 2, 64)
		default:
			col.AbsWidth = strconv.Itoa(int(math.Round(abs)))
		}
		total += pc
		col.PcWidth = int(pc)
	}
	switch r := math.Round(total); {
	case r > 100:
		t.errorf("total width exceeds 100%%: %s", cols)
	case r < 100:
		t.errorf("total width less than 100%%: %s", cols)
	}
}
