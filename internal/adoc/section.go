package adoc

// docbookParents are the docbook section names that cannot have
// sub-sections.
var docbookParents = []string{"colophon", "abstract", "dedication", "glossary", "bibliography"}

// titleTranslate consumes the lines of the title element el and resolves its
// template section name. With skipSubs the title text is left as written.
func (t *Translation) titleTranslate(el *Element, skipSubs bool) error {
	if _, err := t.rdr.ReadLines(el.title.linecount); err != nil {
		return t.fatal(err)
	}
	t.title = el.title
	t.setSectName()
	if skipSubs {
		return nil
	}
	title, err := t.titleSubs(t.title.attrs.Get("title"))
	if err != nil {
		return err
	}
	t.title.attrs.Set("title", title)
	return nil
}

// translateSection writes a section: its start tag, its body, and, once a
// section at the same or a higher level starts, its end tag.
func (t *Translation) translateSection(el *Element) error {
	prev := t.sectName
	if err := t.titleTranslate(el, false); err != nil {
		return err
	}
	tm := t.title
	doctype := t.Attrs.Get("doctype")
	if tm.level == 0 && doctype != "book" {
		t.Errorf("only book doctypes can contain level 0 sections")
	}
	if tm.level > t.level && t.Attrs.Defined("basebackend-docbook") && hasOption(docbookParents, prev) {
		t.Errorf("%s section cannot contain sub-sections", prev)
	}
	if tm.level > t.level+1 {
		// book preface and appendix sub-sections skip a level
		bookPart := doctype == "book" && t.level == 0 && tm.level == 2 && (prev == "preface" || prev == "appendix")
		if !bookPart {
			t.Warningf("section title out of sequence: expected level %d, got level %d", t.level+1, tm.level)
		}
	}
	t.setSectionID()
	t.setLevel(tm.level)
	if t.Attrs.Defined("numbered") {
		tm.attrs.Set("sectnum", t.sectionNumber(t.level))
	} else {
		tm.attrs.Set("sectnum", "")
	}
	if err := t.consumeAttrList(tm.attrs); err != nil {
		return err
	}
	stag, etag, err := t.sectionTags(t.sectName, tm.attrs, false, false)
	if err != nil {
		return err
	}
	t.endTags = append(t.endTags, endTag{level: tm.level, etag: etag})
	t.out.write(stag...)
	return t.translateBody(nil)
}

// setLevel writes the end tags of the open sections at level or deeper.
func (t *Translation) setLevel(level int) {
	for n := len(t.endTags); n > 0 && t.endTags[n-1].level >= level; n = len(t.endTags) {
		t.out.write(t.endTags[n-1].etag...)
		t.endTags = t.endTags[:n-1]
	}
	t.level = level
}

// translateBody translates elements up to the next section title or, inside
// a delimited block, up to the block's closing delimiter.
func (t *Translation) translateBody(block *BlockDef) error {
	terminates := func(el *Element) bool {
		if block == nil {
			return el.Kind == TitleElement
		}
		return el.is(BlockElement, block)
	}
	empty := true
	el, err := t.next()
	for err == nil && el != nil && !terminates(el) {
		if block != nil && el.Kind == TitleElement {
			t.Errorf("section title not permitted in delimited block")
		}
		if err = t.translate(el); err != nil {
			return err
		}
		el, err = t.next()
		empty = false
	}
	if err != nil {
		return err
	}
	// a section holding only sub-sections is not empty
	if empty && el != nil && el.Kind == TitleElement && el.title.level > t.level {
		empty = false
	}
	if empty && t.Attrs.Get("backend") == "docbook" && t.sectName != "index" {
		t.Errorf("empty section is not valid")
	}
	return nil
}

// translateFloatingTitle writes a title that does not start a section.
func (t *Translation) translateFloatingTitle(el *Element) error {
	if err := t.titleTranslate(el, false); err != nil {
		return err
	}
	t.setSectionID()
	if err := t.consumeAttrList(t.title.attrs); err != nil {
		return err
	}
	const template = "floatingtitle"
	if !t.conf.sections.Has(template) {
		t.Warningf("missing template section: [%s]", template)
		return nil
	}
	stag, _, err := t.sectionTags(template, t.title.attrs, false, true)
	if err != nil {
		return err
	}
	t.out.write(stag...)
	return nil
}
