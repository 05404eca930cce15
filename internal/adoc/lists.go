package adoc

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jcorbin/adoc/internal/attrs"
)

// Numbered list styles.
var numberStyles = []string{"arabic", "loweralpha", "upperalpha", "lowerroman", "upperroman"}

var (
	listWidthRE = regexp.MustCompile(`^(\d{1,2})%?$`)

	indexStyles = []struct {
		re    *regexp.Regexp
		style string
	}{
		{regexp.MustCompile(`^\d+[\.>]$`), "arabic"},
		{regexp.MustCompile(`^[ivx]+\)$`), "lowerroman"},
		{regexp.MustCompile(`^[IVX]+\)$`), "upperroman"},
		{regexp.MustCompile(`^[a-z]\.$`), "loweralpha"},
		{regexp.MustCompile(`^[A-Z]\.$`), "upperalpha"},
	}
)

// listState is the translation state of one open list.
type listState struct {
	def     *ListDef
	a       attrs.Map
	params  blockParams
	tags    listTags
	ordinal int

	// numberStyle is the style of a numbered or callout list, set from its
	// first item.
	numberStyle string
}

func (ls *listState) numbered() bool {
	return ls.def.listType == "numbered" || ls.def.listType == "callout"
}

// isOpen returns true if def is the definition of an open list.
func (t *Translation) isOpen(def Definition) bool {
	for _, ls := range t.openLists {
		if Definition(ls.def) == def {
			return true
		}
	}
	return false
}

// translateList writes a list: its items up to the first line that is not
// an item of the same list, or a block title.
func (t *Translation) translateList(el *Element) error {
	def := el.Def.(*ListDef)
	switch name := def.shortName(); name {
	case "bibliography", "glossary", "qanda":
		t.Deprecatedf("old %s list syntax", name)
	}
	ls := &listState{def: def}
	t.openLists = append(t.openLists, ls)

	list := elementAttrs(el, "label", "text", "index")
	if index := el.groups["index"]; index != "" {
		if style := calcStyle(index); style != "" {
			list.Set("style", style)
		}
	}
	t.consumeBlockTitle(list)
	if err := t.consumeAttrList(list); err != nil {
		return err
	}
	a, p, err := t.mergeAttributes(&def.blockDef, list, true, "tags")
	if err != nil {
		return err
	}
	if p.tags == "" {
		p.tags = def.tags
	}
	ls.a, ls.params = a, p
	t.pushBlockname(&def.blockDef, a, "")

	if ls.numbered() {
		ls.numberStyle = a.Get("style")
		if !hasOption(numberStyles, ls.numberStyle) {
			t.Errorf("illegal numbered list style: %s", ls.numberStyle)
			ls.numberStyle = def.style
			a.Set("style", def.style)
		}
	}
	ls.tags = t.conf.listTags[p.tags]
	if err := t.checkListTags(ls); err != nil {
		return err
	}
	if v, ok := a.Lookup("width"); ok {
		if m := listWidthRE.FindStringSubmatch(v); m != nil {
			w, _ := strconv.Atoi(m[1])
			a.Set("labelwidth", strconv.Itoa(w))
			a.Set("itemwidth", strconv.Itoa(100-w))
		} else {
			t.Errorf("illegal attribute value: width=%q", v)
		}
	}

	stag, etag, err := t.subsTag(ls.tags["list"], a)
	if err != nil {
		return err
	}
	t.out.write(stag...)
	for {
		el, err := t.next()
		if err != nil {
			return err
		}
		if !el.is(ListElement, def) || t.blockTitle != "" {
			break
		}
		ls.ordinal++
		t.Attrs.Set("listindex", strconv.Itoa(ls.ordinal))
		if ls.numbered() {
			t.checkIndex(ls, el.groups["index"])
		}
		switch def.listType {
		case "bulleted", "numbered", "callout":
			if _, err := t.readLine(); err != nil {
				return err
			}
			err = t.translateItem(ls, el.groups["text"])
		case "labeled":
			err = t.translateEntry(ls)
		default:
			err = t.fatalf("illegal [%s] list type", def.name)
		}
		if err != nil {
			return err
		}
	}
	t.out.write(etag...)

	if def.listType == "callout" {
		for _, index := range t.callouts.invalid(ls.ordinal) {
			t.Warningf("callout refers to non-existent list item %d", index)
		}
		t.callouts.listClose()
	}
	t.openLists = t.openLists[:len(t.openLists)-1]
	if n := len(t.openLists); n > 0 {
		t.Attrs.Set("listindex", strconv.Itoa(t.openLists[n-1].ordinal))
	}
	t.popBlockname()
	return nil
}

// checkListTags checks that the list's tags section has every tag its list
// type needs.
func (t *Translation) checkListTags(ls *listState) error {
	var missing []string
	for _, name := range listTagNames {
		if ls.def.listType != "labeled" && (name == "entry" || name == "label" || name == "term") {
			continue
		}
		if _, ok := ls.tags[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return t.fatalf("[%s] missing tag(s): %s", ls.def.name, strings.Join(missing, ","))
	}
	return nil
}

// translateEntry writes a labeled list entry: one or more terms followed by
// the item.
func (t *Translation) translateEntry(ls *listState) error {
	estag, eetag, err := t.subsTag(ls.tags["entry"], ls.a)
	if err != nil {
		return err
	}
	lstag, letag, err := t.subsTag(ls.tags["label"], ls.a)
	if err != nil {
		return err
	}
	t.out.write(estag...)
	t.out.write(lstag...)
	text := ""
	for {
		el, err := t.next()
		if err != nil {
			return err
		}
		if !el.is(ListElement, ls.def) {
			break
		}
		if _, err := t.readLine(); err != nil {
			return err
		}
		if err := t.writeTag(ls.tags["term"], []string{el.groups["label"]}, ls.params.presubs, ls.a); err != nil {
			return err
		}
		if text = el.groups["text"]; text != "" {
			break
		}
	}
	t.out.write(letag...)
	if err := t.translateItem(ls, text); err != nil {
		return err
	}
	t.out.write(eetag...)
	return nil
}

// translateItem writes a list item: its text, starting with the text on the
// item's first line, and any continued elements.
func (t *Translation) translateItem(ls *listState, first string) error {
	if ls.def.listType == "callout" {
		ids, ok := t.callouts.ids(ls.ordinal)
		if !ok {
			t.Warningf("no callouts refer to list item %d", ls.ordinal)
		}
		ls.a.Set("coids", ids)
	}
	stag, etag, err := t.subsTag(ls.tags["item"], ls.a)
	if err != nil {
		return err
	}
	t.out.write(stag...)

	text, err := t.rdr.ReadUntil(false, t.conf.listTerminators...)
	if err != nil {
		return t.fatal(err)
	}
	if first != "" {
		text = append([]string{first}, text...)
	}
	for i, line := range text {
		text[i] = strings.TrimLeft(line, " \t")
	}
	if len(text) > 0 {
		if err := t.writeTag(ls.tags["text"], text, ls.params.presubs, ls.a); err != nil {
			return err
		}
	}

	for {
		line, ok, err := t.rdr.ReadNext()
		if err != nil {
			return t.fatal(err)
		}
		cont := ok && line == "+"
		if cont {
			if _, err := t.readLine(); err != nil {
				return err
			}
		}
		el, err := t.next()
		for err == nil && (el.is(BlockTitleElement, nil) || el.is(AttributeListElement, nil)) {
			if err = t.translate(el); err == nil {
				el, err = t.next()
			}
		}
		if err != nil {
			return err
		}
		if !cont && t.blockTitle != "" {
			break
		}
		if el == nil || (el.Kind == ListElement && t.isOpen(el.Def)) {
			break
		}
		switch {
		case el.Kind == ListElement:
			err = t.translateList(el)
		case el.Kind == ParagraphElement && el.Def.(*ParagraphDef).hasOption("listelement"):
			err = t.translateParagraph(el)
		case cont:
			if el.Kind == TitleElement {
				return t.fatalf("section title not allowed in list item")
			}
			err = t.translate(el)
		default:
			t.out.write(etag...)
			return nil
		}
		if err != nil {
			return err
		}
	}
	t.out.write(etag...)
	return nil
}

// checkIndex warns when a numbered item's index does not follow on from the
// previous item, or uses a different numbering style than the first.
func (t *Translation) checkIndex(ls *listState, index string) {
	if index == "" {
		return
	}
	style := calcStyle(index)
	if style != ls.numberStyle {
		t.Warningf("list item style: expected %s got %s", ls.numberStyle, style)
	}
	if style == "" {
		return
	}
	if ordinal := calcIndex(index, style); ordinal != ls.ordinal {
		t.Warningf("list item index: expected %d got %d", ls.ordinal, ordinal)
	}
}

// calcStyle returns the numbering style of a list item index, or the empty
// string if it has none.
func calcStyle(index string) string {
	for _, is := range indexStyles {
		if is.re.MatchString(index) {
			return is.style
		}
	}
	return ""
}

// calcIndex returns the ordinal, counting from 1, of a list item index in
// the given style.
func calcIndex(index, style string) int {
	index = index[:len(index)-1]
	switch style {
	case "arabic":
		n, _ := strconv.Atoi(index)
		return n
	case "lowerroman", "upperroman":
		return romanToInt(index)
	case "loweralpha":
		return int(index[0]-'a') + 1
	case "upperalpha":
		return int(index[0]-'A') + 1
	}
	return 0
}

var romanDigits = map[byte]int{'i': 1, 'v': 5, 'x': 10}

// romanToInt converts the roman numerals i, v and x, allowing subtractive
// notation.
func romanToInt(roman string) int {
	roman = strings.ToLower(roman)
	n := 0
	for i := 0; i < len(roman); i++ {
		d := romanDigits[roman[i]]
		if i+1 < len(roman) && romanDigits[roman[i+1]] > d {
			n -= d
		} else {
			n += d
		}
	}
	return n
}
