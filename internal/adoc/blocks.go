package adoc

import (
	"github.com/jcorbin/adoc/internal/attrs"
)

// elementAttrs returns the named groups of an element's leading line match,
// less those in drop, as the start of the element's attributes.
func elementAttrs(el *Element, drop ...string) attrs.Map {
	a := make(attrs.Map, len(el.groups))
	for k, v := range el.groups {
		if !hasOption(drop, k) {
			a.Set(k, v)
		}
	}
	return a
}

// writeBody substitutes and filters the body lines of a paragraph or block,
// writing them dovetailed between the template's start and end tags.
func (t *Translation) writeBody(body []string, template string, a attrs.Map, p blockParams) error {
	stag, _, err := t.sectionTags(template, a, false, true)
	if err != nil {
		return err
	}
	if body, err = t.lexSubs(body, p.presubs); err != nil {
		return err
	}
	if p.filter != "" {
		if body, err = t.filterLines(p.filter, body, a); err != nil {
			return err
		}
	}
	if body, err = t.lexSubs(body, p.postsubs); err != nil {
		return err
	}
	_, etag, err := t.sectionTags(template, a, true, false)
	if err != nil {
		return err
	}
	t.out.write(dovetailTags(stag, body, etag)...)
	return nil
}

// subsTemplate substitutes attributes into a template name; a name with an
// undefined reference comes out empty.
func (t *Translation) subsTemplate(template string, a attrs.Map) (string, error) {
	s, ok, err := t.SubsAttrsLine(template, a)
	if err != nil || !ok {
		return "", err
	}
	return s, nil
}

// translateParagraph writes a paragraph: the lines up to a blank line,
// list continuation, attribute list or block delimiter.
func (t *Translation) translateParagraph(el *Element) error {
	def := el.Def.(*ParagraphDef)
	list := elementAttrs(el, "text")
	t.consumeBlockTitle(list)
	if err := t.consumeAttrList(list); err != nil {
		return err
	}
	a, p, err := t.mergeAttributes(&def.blockDef, list, false)
	if err != nil {
		return err
	}
	if _, err := t.readLine(); err != nil {
		return err
	}
	rest, err := t.rdr.ReadUntil(false, t.conf.paraTerminators...)
	if err != nil {
		return t.fatal(err)
	}
	if p.hasOption("skip") {
		return nil
	}
	body := append([]string{el.groups["text"]}, rest...)
	if !t.Attrs.Defined("plaintext") {
		body = setMargin(body)
	}
	template, err := t.subsTemplate(p.template, a)
	if err != nil {
		return err
	}
	return t.writeBody(body, template, a, p)
}

// translateBlock writes a delimited block. Its body is either the verbatim
// lines up to the closing delimiter, or with the sectionbody option, any
// elements up to it.
func (t *Translation) translateBlock(el *Element) error {
	def := el.Def.(*BlockDef)
	start := t.rdr.Cursor()
	if _, err := t.readLine(); err != nil {
		return err
	}
	a, p, err := t.mergeAttributes(&def.blockDef, t.attrList, false)
	if err != nil {
		return err
	}
	skip := p.hasOption("skip")
	if !skip {
		t.consumeBlockTitle(a)
		t.attrList = make(attrs.Map)
		if err := t.optionAttributes(a, "illegal option name"); err != nil {
			return err
		}
	}
	t.pushBlockname(&def.blockDef, a, "")
	defer t.popBlockname()

	switch {
	case skip:
		if _, err := t.rdr.ReadUntil(true, def.delimRE); err != nil {
			return t.fatal(err)
		}
	case t.opts.Safe && def.name == "blockdef-backend":
		t.Unsafef("Backend Block")
		if _, err := t.rdr.ReadUntil(true, def.delimRE); err != nil {
			return t.fatal(err)
		}
	default:
		template, err := t.subsTemplate(p.template, a)
		if err != nil {
			return err
		}
		if p.hasOption("sectionbody") {
			stag, etag, err := t.sectionTags(template, a, false, false)
			if err != nil {
				return err
			}
			t.out.write(stag...)
			if err := t.translateBody(def); err != nil {
				return err
			}
			t.out.write(etag...)
			break
		}
		body, err := t.rdr.ReadUntil(true, def.delimRE)
		if err != nil {
			return t.fatal(err)
		}
		if err := t.writeBody(body, template, a, p); err != nil {
			return err
		}
	}

	if t.rdr.EOF() {
		return &Error{Cursor: start, Msg: "[" + def.name + "] missing closing delimiter"}
	}
	_, err = t.readLine()
	return err
}

// translateLegacyTable skips a table written in the old ruler delimited
// syntax. The table ends at an underline followed by a blank line or the end
// of input.
func (t *Translation) translateLegacyTable(el *Element) error {
	def := el.Def.(*LegacyTableDef)
	t.Deprecatedf("old tables syntax")
	t.consumeBlockTitle(make(attrs.Map))
	if err := t.consumeAttrList(make(attrs.Map)); err != nil {
		return err
	}
	start := t.rdr.Cursor()
	if _, err := t.readLine(); err != nil {
		return err
	}
	last, n := "", 0
	for {
		line, ok, err := t.rdr.ReadNext()
		if err != nil {
			return t.fatal(err)
		}
		if n > 0 && def.underlineRE.MatchString(last) && (!ok || line == "") {
			return nil
		}
		if !ok {
			return &Error{Cursor: start, Msg: "[" + def.name + "] missing closing delimiter"}
		}
		if last, err = t.readLine(); err != nil {
			return err
		}
		n++
	}
}
