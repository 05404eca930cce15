package adoc

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jcorbin/adoc/internal/attrs"
	"github.com/jcorbin/adoc/internal/table"
)

// Row placeholders stand in for the substituted rows in the table template
// so that row markup is not substituted a second time.
const (
	headRowsPlaceholder = "\x07headrows\x07"
	footRowsPlaceholder = "\x07footrows\x07"
	bodyRowsPlaceholder = "\x07bodyrows\x07"
)

var (
	tableWidthRE = regexp.MustCompile(`^\d{1,3}%$`)
	cellParaRE   = regexp.MustCompile(`\n{2,}`)
)

// tableState is the translation state of one table.
type tableState struct {
	t      *Translation
	def    *TableDef
	a      attrs.Map
	params blockParams
	names  []string
	tbl    *table.Table
}

// translateTable writes a table: its column specifications and its header,
// footer and body rows substituted into the table template.
func (t *Translation) translateTable(el *Element) error {
	def := el.Def.(*TableDef)
	start := t.rdr.Cursor()
	if _, err := t.readLine(); err != nil {
		return err
	}
	list := make(attrs.Map)
	t.consumeBlockTitle(list)
	if err := t.consumeAttrList(list); err != nil {
		return err
	}
	names := append(append([]string(nil), paramNames...), "format", "tags", "separator")
	a, p, err := t.mergeAttributes(&def.blockDef, list, false, "format", "tags", "separator")
	if err != nil {
		return err
	}
	if p.tags == "" {
		p.tags = def.tags
	}
	if _, ok := t.conf.tableTags[p.tags]; !ok {
		t.Errorf("illegal tags=%s", p.tags)
		p.tags = def.tags
	}
	if p.format == "" {
		p.format = def.format
	}
	if p.separator == "" {
		p.separator = def.separator
	}
	abswidth, pcwidth := t.conf.pageWidth, 100.0
	if v, ok := a.Lookup("width"); ok {
		n, _ := strconv.Atoi(strings.TrimSuffix(v, "%"))
		if !tableWidthRE.MatchString(v) || n > 100 {
			t.Errorf("illegal width=%s", v)
		} else {
			abswidth = float64(n) / 100 * t.conf.pageWidth
			pcwidth = float64(n)
		}
	}
	a.Set("pagewidth", strconv.FormatFloat(t.conf.pageWidth, 'f', -1, 64))
	a.Set("pageunits", t.conf.pageUnits)
	a.Set("tableabswidth", strconv.Itoa(int(abswidth)))
	a.Set("tablepcwidth", strconv.Itoa(int(pcwidth)))

	text, err := t.rdr.ReadUntil(false, def.delimRE)
	if err != nil {
		return t.fatal(err)
	}
	if t.rdr.EOF() {
		return &Error{Cursor: start, Msg: "[" + def.name + "] missing closing delimiter"}
	}
	if _, err := t.readLine(); err != nil {
		return err
	}
	if len(text) == 0 {
		t.Warningf("[%s] table is empty", def.name)
		return nil
	}
	t.pushBlockname(&def.blockDef, a, "table")
	defer t.popBlockname()

	ts := &tableState{
		t:      t,
		def:    def,
		a:      a,
		params: p,
		names:  names,
		tbl: &table.Table{
			Format:    p.format,
			Separator: p.separator,
			Styles:    def.styleNames,
			HAlign:    firstNonEmpty(list.Get("halign"), t.Attrs.Get("halign")),
			VAlign:    firstNonEmpty(list.Get("valign"), t.Attrs.Get("valign")),
			AbsWidth:  abswidth,
			PageUnits: t.conf.pageUnits,
			Report:    t,
		},
	}
	return ts.translate(list.Get("cols"), text)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (ts *tableState) translate(cols string, text []string) error {
	t, tbl, a := ts.t, ts.tbl, ts.a
	tbl.Compile()
	if cols == "" {
		cols = strconv.Itoa(tbl.CountColumns(text))
	}
	tbl.ParseCols(cols)
	a.Set("colcount", strconv.Itoa(len(tbl.Columns)))
	if err := ts.colspecs(); err != nil {
		return err
	}
	tbl.ParseRows(text)
	a.Set("rowcount", strconv.Itoa(len(tbl.Rows)))

	rows := tbl.Rows
	var headRows, footRows, bodyRows []string
	var err error
	if len(rows) > 0 && ts.params.hasOption("header") {
		if headRows, err = ts.subsRows(rows[:1], "head"); err != nil {
			return err
		}
		a.Set("headrows", headRowsPlaceholder)
		rows = rows[1:]
	}
	if len(rows) > 0 && ts.params.hasOption("footer") {
		if footRows, err = ts.subsRows(rows[len(rows)-1:], "foot"); err != nil {
			return err
		}
		a.Set("footrows", footRowsPlaceholder)
		rows = rows[:len(rows)-1]
	}
	if len(rows) > 0 {
		if bodyRows, err = ts.subsRows(rows, "body"); err != nil {
			return err
		}
		a.Set("bodyrows", bodyRowsPlaceholder)
	}

	template, ok := t.conf.sections.Get(ts.params.template)
	if !ok {
		return t.fatalf("missing template section: [%s]", ts.params.template)
	}
	lines, err := t.SubsAttrs(template, a)
	if err != nil {
		return err
	}
	out := strings.Join(lines, "\n")
	if headRows != nil {
		out = strings.Replace(out, headRowsPlaceholder, strings.Join(headRows, "\n"), 1)
	}
	if footRows != nil {
		out = strings.Replace(out, footRowsPlaceholder, strings.Join(footRows, "\n"), 1)
	}
	if bodyRows != nil {
		out = strings.Replace(out, bodyRowsPlaceholder, strings.Join(bodyRows, "\n"), 1)
	}
	t.out.write(strings.Split(out, "\n")...)
	return nil
}

// styleParams returns the table parameters as overridden by a column or
// cell style.
func (ts *tableState) styleParams(style string) blockParams {
	if style == "" {
		return ts.params
	}
	return ts.params.withStyle(ts.def.styles[style], ts.names)
}

func (ts *tableState) tags(p blockParams) attrs.Map {
	if tags, ok := ts.t.conf.tableTags[p.tags]; ok {
		return tags
	}
	ts.t.Errorf("illegal tags=%s", p.tags)
	return ts.t.conf.tableTags[ts.params.tags]
}

// colspecs sets the colspecs attribute from each column's colspec tag.
func (ts *tableState) colspecs() error {
	t, a := ts.t, ts.a
	var specs []string
	for i, col := range ts.tbl.Columns {
		colspec := ts.tags(ts.styleParams(col.Style)).Get("colspec")
		if colspec == "" {
			continue
		}
		a.Set("halign", col.HAlign)
		a.Set("valign", col.VAlign)
		a.Set("colabswidth", col.AbsWidth)
		a.Set("colpcwidth", strconv.Itoa(col.PcWidth))
		a.Set("colnumber", strconv.Itoa(i+1))
		s, ok, err := t.SubsAttrsLine(colspec, a)
		if err != nil {
			return err
		}
		if !ok {
			t.Warningf("colspec dropped: contains undefined attribute")
			continue
		}
		specs = append(specs, s)
	}
	if len(specs) > 0 {
		a.Set("colspecs", strings.Join(specs, "\n"))
	}
	return nil
}

// subsRows returns the markup of rows of the given kind: head, foot or
// body.
func (ts *tableState) subsRows(rows [][]*table.Cell, kind string) ([]string, error) {
	stag, etag, err := ts.t.subsTag(ts.tags(ts.params).Get(kind+"row"), ts.a)
	if err != nil {
		return nil, err
	}
	var result []string
	for _, row := range rows {
		result = append(result, stag...)
		cells, err := ts.subsRow(row, kind)
		if err != nil {
			return nil, err
		}
		result = append(result, cells...)
		result = append(result, etag...)
	}
	return result, nil
}

// subsRow returns the markup of the cells of one row. Cells reserved by a
// vertical span are skipped, as are cells beyond the last column.
func (ts *tableState) subsRow(row []*table.Cell, kind string) ([]string, error) {
	t, a, cols := ts.t, ts.a, ts.tbl.Columns
	var result []string
	i := 0
	for _, cell := range row {
		if cell.Reserved {
			i += cell.Span
			continue
		}
		if i >= len(cols) {
			break
		}
		col := cols[i]
		a.Set("halign", firstNonEmpty(cell.HAlign, col.HAlign))
		a.Set("valign", firstNonEmpty(cell.VAlign, col.VAlign))
		a.Set("colabswidth", col.AbsWidth)
		a.Set("colpcwidth", strconv.Itoa(col.PcWidth))
		a.Set("colnumber", strconv.Itoa(i+1))
		a.Set("colspan", strconv.Itoa(cell.Span))
		a.Set("colstart", strconv.Itoa(i+1))
		a.Set("colend", strconv.Itoa(i+cell.Span))
		a.Set("rowspan", strconv.Itoa(cell.VSpan))
		a.Set("morerows", strconv.Itoa(cell.VSpan-1))

		// header cells take the table style unless the cell has its own
		style := cell.Style
		if kind != "head" && style == "" {
			style = col.Style
		}
		p := ts.styleParams(style)
		tags := ts.tags(p)

		text := cell.Data
		if kind == "head" {
			text = strings.TrimSpace(text)
		}
		data, err := t.lexSubs([]string{text}, p.presubs)
		if err != nil {
			return nil, err
		}
		if p.filter != "" {
			if data, err = t.filterLines(p.filter, data, a); err != nil {
				return nil, err
			}
		}
		if data, err = t.lexSubs(data, p.postsubs); err != nil {
			return nil, err
		}
		if ptag := tags.Get("paragraph"); kind != "head" && ptag != "" {
			pstag, petag, err := t.subsTag(ptag, a)
			if err != nil {
				return nil, err
			}
			text = strings.TrimSpace(strings.Join(data, "\n"))
			data = nil
			for _, para := range cellParaRE.Split(text, -1) {
				data = append(data, dovetailTags(pstag, strings.Split(para, "\n"), petag)...)
			}
		}
		dstag, detag, err := t.subsTag(tags.Get(kind+"data"), a)
		if err != nil {
			return nil, err
		}
		result = append(result, dovetailTags(dstag, data, detag)...)
		i += cell.Span
	}
	return result, nil
}
