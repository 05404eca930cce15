package adoc

import (
	"regexp"
	"strings"

	"github.com/jcorbin/adoc/internal/attrs"
	"github.com/jcorbin/adoc/internal/conf"
	"github.com/jcorbin/adoc/internal/scanio"
)

// ElementKind classifies the document element at the reader cursor.
type ElementKind int

// Element kinds, in classification precedence order.
const (
	NoElement ElementKind = iota
	AttributeEntryElement
	AttributeListElement
	BlockTitleElement
	TitleElement
	FloatingTitleElement
	MacroElement
	ListElement
	BlockElement
	LegacyTableElement
	TableElement
	ParagraphElement
)

var elementKindNames = [...]string{
	NoElement:             "none",
	AttributeEntryElement: "attribute entry",
	AttributeListElement:  "attribute list",
	BlockTitleElement:     "block title",
	TitleElement:          "title",
	FloatingTitleElement:  "floating title",
	MacroElement:          "block macro",
	ListElement:           "list",
	BlockElement:          "delimited block",
	LegacyTableElement:    "legacy table",
	TableElement:          "table",
	ParagraphElement:      "paragraph",
}

func (k ElementKind) String() string {
	if int(k) < len(elementKindNames) {
		return elementKindNames[k]
	}
	return "invalid"
}

// Element is the next document element on the reader, as classified by
// next. The reader is left at the element's first line.
type Element struct {
	Kind  ElementKind
	Def   Definition
	Macro *Macro

	// groups holds the named groups of the element's leading line match.
	groups map[string]string
	title  *titleMatch
}

// is returns true if el is an element of kind defined by def.
func (el *Element) is(kind ElementKind, def Definition) bool {
	return el != nil && el.Kind == kind && (def == nil || el.Def == def)
}

// next classifies the element at the reader cursor, returning nil at end of
// input. Blank lines are skipped first.
func (t *Translation) next() (*Element, error) {
	if err := t.rdr.SkipBlankLines(); err != nil {
		return nil, t.fatal(err)
	}
	lines, err := t.rdr.ReadAhead(2)
	if err != nil {
		return nil, t.fatal(err)
	}
	if len(lines) == 0 {
		return nil, nil
	}
	cur := t.rdr.Cursor()
	if t.lexElem != nil && t.lexCursor == cur {
		return t.lexElem, nil
	}
	el, err := t.classify(lines)
	if err != nil {
		return nil, err
	}
	t.lexCursor, t.lexElem = cur, el
	return el, nil
}

func (t *Translation) classify(lines []string) (*Element, error) {
	line := lines[0]
	if re, err := t.attrEntryPattern(); err != nil {
		return nil, err
	} else if loc := re.FindStringSubmatchIndex(line); loc != nil && loc[0] == 0 {
		return &Element{Kind: AttributeEntryElement, groups: groups(re, line, loc)}, nil
	}
	if re := t.attrListRE; re != nil {
		if loc := re.FindStringSubmatchIndex(line); loc != nil && loc[0] == 0 {
			return &Element{Kind: AttributeListElement, groups: groups(re, line, loc)}, nil
		}
	}
	if re := t.conf.titles.blockRE; re != nil {
		if loc := re.FindStringSubmatchIndex(line); loc != nil && loc[0] == 0 && t.findLegacyTable(line) == nil {
			return &Element{Kind: BlockTitleElement, groups: groups(re, line, loc)}, nil
		}
	}
	if tm, ok := t.parseTitle(lines); ok {
		kind := TitleElement
		if t.listStyle() == "float" {
			kind = FloatingTitleElement
		}
		return &Element{Kind: kind, title: tm}, nil
	}
	if m := t.findBlockMacro(line); m != nil {
		return &Element{Kind: MacroElement, Macro: m}, nil
	}
	for _, l := range t.conf.lists {
		if g, ok := matchDef(&l.blockDef, line); ok {
			return &Element{Kind: ListElement, Def: l, groups: g}, nil
		}
	}
	for _, b := range t.conf.blocks {
		if g, ok := matchDef(&b.blockDef, line); ok {
			return &Element{Kind: BlockElement, Def: b, groups: g}, nil
		}
	}
	if lt := t.findLegacyTable(line); lt != nil {
		return &Element{Kind: LegacyTableElement, Def: lt}, nil
	}
	for _, tb := range t.conf.tables {
		if g, ok := matchDef(&tb.blockDef, line); ok {
			return &Element{Kind: TableElement, Def: tb, groups: g}, nil
		}
	}
	for _, p := range t.conf.paragraphs {
		if g, ok := matchDef(&p.blockDef, line); ok {
			return &Element{Kind: ParagraphElement, Def: p, groups: g}, nil
		}
	}
	return nil, t.fatalf("paragraph expected")
}

func matchDef(b *blockDef, line string) (map[string]string, bool) {
	if b.delimRE == nil {
		return nil, false
	}
	loc := b.delimRE.FindStringSubmatchIndex(line)
	if loc == nil || loc[0] != 0 {
		return nil, false
	}
	return groups(b.delimRE, line, loc), true
}

func (t *Translation) findLegacyTable(line string) *LegacyTableDef {
	for _, lt := range t.conf.legacyTables {
		if lt.delimRE != nil && lt.delimRE.MatchString(line) {
			return lt
		}
	}
	return nil
}

// attrEntryPattern compiles the attributeentry-pattern attribute once.
func (t *Translation) attrEntryPattern() (*regexp.Regexp, error) {
	if t.attrEntryRE != nil {
		return t.attrEntryRE, nil
	}
	pat, ok := t.Attrs.Lookup("attributeentry-pattern")
	if !ok {
		return nil, t.fatalf("[attributes] missing 'attributeentry-pattern' entry")
	}
	re, err := compilePattern(pat)
	if err != nil {
		return nil, t.fatal(err)
	}
	t.attrEntryRE = re
	return re, nil
}

// initAttrListPattern compiles the attributelist-pattern attribute.
func (t *Translation) initAttrListPattern() error {
	pat, ok := t.Attrs.Lookup("attributelist-pattern")
	if !ok {
		return t.fatalf("[attributes] missing 'attributelist-pattern' entry")
	}
	re, err := compilePattern(pat)
	if err != nil {
		return t.fatal(err)
	}
	t.attrListRE = re
	return nil
}

// Trace describes an element about to be translated.
type Trace struct {
	Cursor scanio.Cursor
	Kind   ElementKind

	// Name is the element's definition or block macro name.
	Name string
}

func (t *Translation) trace(el *Element) error {
	cur, _, err := t.rdr.NextCursor()
	if err != nil {
		return t.fatal(err)
	}
	tr := Trace{Cursor: cur, Kind: el.Kind}
	switch {
	case el.Def != nil:
		tr.Name = el.Def.def().name
	case el.Macro != nil:
		tr.Name = el.Macro.Name()
	}
	t.opts.Trace(tr)
	return nil
}

// translate translates the element at the reader cursor.
func (t *Translation) translate(el *Element) error {
	if t.opts.Trace != nil {
		if err := t.trace(el); err != nil {
			return err
		}
	}
	switch el.Kind {
	case AttributeEntryElement:
		return t.translateAttributeEntry(el)
	case AttributeListElement:
		return t.translateAttributeList(el)
	case BlockTitleElement:
		return t.translateBlockTitle(el)
	case TitleElement:
		return t.translateSection(el)
	case FloatingTitleElement:
		return t.translateFloatingTitle(el)
	case MacroElement:
		return t.translateMacro(el.Macro)
	case ListElement:
		return t.translateList(el)
	case BlockElement:
		return t.translateBlock(el)
	case LegacyTableElement:
		return t.translateLegacyTable(el)
	case TableElement:
		return t.translateTable(el)
	case ParagraphElement:
		return t.translateParagraph(el)
	}
	return t.fatalf("unexpected %v", el.Kind)
}

// readLine reads and discards the line an element was classified from.
func (t *Translation) readLine() (string, error) {
	line, _, err := t.rdr.Read()
	if err != nil {
		return "", t.fatal(err)
	}
	return line, nil
}

var illegalNameCharRE = regexp.MustCompile(`[^\p{L}\p{N}_\-]`)

var passValueRE = regexp.MustCompile(`^pass:(?P<attrs>.*)\[(?P<value>.*)\]$`)

func (t *Translation) translateAttributeEntry(el *Element) error {
	if _, err := t.readLine(); err != nil {
		return err
	}
	name, name2 := el.groups["attrname"], el.groups["attrname2"]
	_, hasName2 := el.groups["attrname2"]
	value := strings.TrimSpace(el.groups["attrvalue"])
	for strings.HasSuffix(value, " +") {
		next, ok, err := t.rdr.ReadNext()
		if err != nil {
			return t.fatal(err)
		}
		if !ok || next == "" {
			break
		}
		line, err := t.readLine()
		if err != nil {
			return err
		}
		value = value[:len(value)-1] + strings.TrimSpace(line)
	}

	if hasName2 {
		if name2 == "" {
			// markup template section
			if t.conf.sections.Has(name) {
				t.conf.sections.Set(name, []string{value})
			} else {
				t.Warningf("missing configuration section: %s", name)
			}
			return nil
		}
		entry := name2 + "=" + value
		if (name == "attributes" || name == "miscellaneous") && strings.HasSuffix(name2, "!") {
			entry = name2
		}
		secs := conf.NewSections()
		secs.Set(name, []string{entry})
		if err := t.loadSections(secs, nil); err != nil {
			return err
		}
		return t.loadMiscellaneous(t.conf.confAttrs)
	}

	undefine := strings.HasSuffix(name, "!")
	if undefine {
		name = name[:len(name)-1]
	}
	name = strings.ToLower(illegalNameCharRE.ReplaceAllString(name, ""))
	if t.conf.cmdAttrs.Has(name) && name != "trace" && name != "numbered" {
		return nil
	}
	if undefine {
		t.Attrs.Unset(name)
		t.entries[name] = attrs.Undef
		return nil
	}
	subs := t.Attrs.Get("attributeentry-subs")
	if subs == "" {
		subs = "specialcharacters,attributes"
	}
	if m := passValueRE.FindStringSubmatch(value); m != nil {
		subs, value = m[1], m[2]
	}
	opts, err := attrs.ParseOptions(subs, subsOptions, "illegal substitution option")
	if err != nil {
		return t.fatal(err)
	}
	lines, err := t.lexSubs([]string{value}, opts)
	if err != nil {
		return err
	}
	value = strings.Join(lines, t.newline())
	t.Attrs.Set(name, value)
	t.entries.Set(name, value)
	return nil
}

func (t *Translation) translateAttributeList(el *Element) error {
	if _, err := t.readLine(); err != nil {
		return err
	}
	d := make(attrs.Map)
	for k, v := range el.groups {
		if k != "attrlist" {
			t.attrList.Set(k, v)
			continue
		}
		s, ok, err := t.SubsAttrsLine(v, nil)
		if err != nil {
			return err
		}
		if ok && s != "" {
			attrs.ParseAttributes(s, d)
		}
	}
	if err := t.subsQuotedValues(d); err != nil {
		return err
	}
	t.attrList.Update(d)
	return nil
}

// listStyle returns the style of the pending attribute list.
func (t *Translation) listStyle() string {
	if s := t.attrList.Get("style"); s != "" {
		return s
	}
	return t.attrList.Get("1")
}

// consumeAttrList moves the pending attribute list into d.
func (t *Translation) consumeAttrList(d attrs.Map) error {
	if len(t.attrList) == 0 {
		return nil
	}
	d.Update(t.attrList)
	t.attrList = make(attrs.Map)
	return t.optionAttributes(d, "illegal option name")
}

// consumeBlockTitle moves the pending block title into d.
func (t *Translation) consumeBlockTitle(d attrs.Map) {
	if t.blockTitle != "" {
		d.Set("title", t.blockTitle)
		t.blockTitle = ""
	}
}

func (t *Translation) translateBlockTitle(el *Element) error {
	if _, err := t.readLine(); err != nil {
		return err
	}
	subs := t.conf.titles.subs
	if len(subs) == 0 {
		subs = t.conf.subsNormal
	}
	lines, err := t.lexSubs([]string{el.groups["title"]}, subs)
	if err != nil {
		return err
	}
	s := strings.Join(lines, t.newline())
	if s == "" {
		t.Warningf("blank block title")
	}
	t.blockTitle = s
	return nil
}

// consumeAttributesAndComments translates the attribute entries, attribute
// lists and comments at the cursor, returning true if any were. With
// noBlanks it stops at a blank line rather than skipping it.
func (t *Translation) consumeAttributesAndComments(commentsOnly, noBlanks bool) (bool, error) {
	result := false
	peek := func() (*Element, error) {
		if stop, err := t.blankStop(noBlanks); err != nil || stop {
			return nil, err
		}
		return t.next()
	}
	for {
		progress := false
		el, err := peek()
		if err != nil {
			return result, err
		}
		if el != nil && el.Kind == BlockElement && el.Def.def().hasOption("skip") {
			if err := t.translate(el); err != nil {
				return result, err
			}
			result, progress = true, true
		}
		if el, err = peek(); err != nil {
			return result, err
		}
		if el != nil && el.Kind == MacroElement && el.Macro.name == "comment" {
			if err := t.translate(el); err != nil {
				return result, err
			}
			result, progress = true, true
		}
		if !commentsOnly {
			for _, kind := range []ElementKind{AttributeEntryElement, AttributeListElement} {
				if el, err = peek(); err != nil {
					return result, err
				}
				if el != nil && el.Kind == kind {
					if err := t.translate(el); err != nil {
						return result, err
					}
					result, progress = true, true
				}
			}
		}
		if !progress {
			return result, nil
		}
	}
}

// blankStop reports whether the next line is blank or missing when
// noBlanks is set.
func (t *Translation) blankStop(noBlanks bool) (bool, error) {
	if !noBlanks {
		return false, nil
	}
	line, ok, err := t.rdr.ReadNext()
	if err != nil {
		return false, t.fatal(err)
	}
	return !ok || line == "", nil
}
