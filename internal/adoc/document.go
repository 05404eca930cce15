package adoc

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jcorbin/adoc/internal/attrs"
)

const (
	defaultDoctype = "article"
	defaultBackend = "html"
)

var (
	revLineRE  = regexp.MustCompile(`^(\D*(?P<revnumber>.*?),)?(?P<revdate>.*?)(:\s*(?P<revremark>.*))?$`)
	rcsIDRE    = regexp.MustCompile(`^\$Id: \S+ (?P<revnumber>\S+) (?P<revdate>\S+) \S+ (?P<author>\S+) (\S+ )?\$$`)
	authorRE   = regexp.MustCompile(`^(?P<name1>[^<>\s]+)(\s+(?P<name2>[^<>\s]+))?(\s+(?P<name3>[^<>\s]+))?(\s+<(?P<email>\S+)>)?$`)
	manTitleRE = regexp.MustCompile(`^(?P<mantitle>.*)\((?P<manvolnum>.*)\)$`)
	manNameRE  = regexp.MustCompile(`^(?P<manname>.*?)\s+-\s+(?P<manpurpose>.*)$`)

	blankLineRE = regexp.MustCompile(`^$`)
	spaceRunRE  = regexp.MustCompile(`\s+`)
)

// matchGroups returns the named groups of re matched at the start of s, or
// nil if it does not match there.
func matchGroups(re *regexp.Regexp, s string) map[string]string {
	loc := re.FindStringSubmatchIndex(s)
	if loc == nil || loc[0] != 0 {
		return nil
	}
	return groups(re, s, loc)
}

// parseHeader consumes the document header and settles the doctype and
// backend attributes; command line choices take precedence over the header.
func (t *Translation) parseHeader(doctype, backend string) error {
	if _, err := t.consumeAttributesAndComments(false, false); err != nil {
		return err
	}
	if doctype != "" {
		t.Attrs.Set("doctype", doctype)
	} else if t.Attrs.Get("doctype") == "" {
		t.Attrs.Set("doctype", defaultDoctype)
	}

	el, err := t.next()
	if err != nil {
		return err
	}
	t.hasHeader = el.is(TitleElement, nil) && el.title.level == 0
	if t.Attrs.Get("doctype") == "manpage" && !t.hasHeader {
		return t.fatalf("manpage document title is mandatory")
	}
	if t.hasHeader {
		if err := t.parseHeaderLines(el); err != nil {
			return err
		}
	}

	t.Attrs.Update(t.conf.cmdAttrs)
	t.setDeprecatedAttribute("revision", "revnumber")
	t.setDeprecatedAttribute("date", "revdate")
	if doctype != "" {
		t.Attrs.Set("doctype", doctype)
	}
	if backend == "" {
		backend = t.Attrs.Get("backend")
	}
	if backend == "" {
		backend = defaultBackend
	}
	if alias, ok := t.Attrs.Lookup("backend-alias-" + backend); ok {
		backend = alias
	}
	t.Attrs.Set("backend", backend)
	switch t.Attrs.Get("doctype") {
	case "article", "manpage", "book":
		return nil
	}
	return t.fatalf("illegal document type")
}

// parseHeaderLines parses the document title and the author and revision
// lines following it. Title substitution is postponed until the backend
// configuration is loaded.
func (t *Translation) parseHeaderLines(el *Element) error {
	if err := t.titleTranslate(el, true); err != nil {
		return err
	}
	t.Attrs.Set("doctitle", t.title.attrs.Get("title"))

	consume := func() (bool, error) { return t.consumeAttributesAndComments(false, true) }
	nextLine := func() (bool, error) {
		line, ok, err := t.rdr.ReadNext()
		if err != nil {
			return false, t.fatal(err)
		}
		return ok && line != "", nil
	}

	if _, err := consume(); err != nil {
		return err
	}
	var m map[string]string
	if more, err := nextLine(); err != nil {
		return err
	} else if more {
		line, err := t.readLine()
		if err != nil {
			return err
		}
		if m = matchGroups(rcsIDRE, line); m == nil {
			t.parseAuthor(line)
			if _, err := consume(); err != nil {
				return err
			}
			if more, err = nextLine(); err != nil {
				return err
			}
			if more {
				if line, err = t.readLine(); err != nil {
					return err
				}
				s, ok, err := t.SubsAttrsLine(line, nil)
				if err != nil {
					return err
				}
				if ok && s != "" {
					if m = matchGroups(rcsIDRE, s); m == nil {
						m = matchGroups(revLineRE, s)
					}
				}
			}
		}
		if _, err := consume(); err != nil {
			return err
		}
	}
	if s := t.Attrs.Get("revnumber"); s != "" {
		m = matchGroups(rcsIDRE, s)
	}

	if m != nil {
		revnumber := strings.TrimSpace(m["revnumber"])
		if revnumber != "" {
			t.Attrs.Set("revnumber", revnumber)
		}
		if author := m["author"]; author != "" && !t.Attrs.Defined("firstname") {
			t.parseAuthor(author)
		}
		revremark, hasRemark := m["revremark"]
		if hasRemark {
			remark := []string{revremark}
			for {
				more, err := nextLine()
				if err != nil {
					return err
				}
				if !more {
					break
				}
				if done, err := consume(); err != nil {
					return err
				} else if done {
					break
				}
				line, err := t.readLine()
				if err != nil {
					return err
				}
				remark = append(remark, line)
			}
			lines, err := t.lexSubs(remark, []string{"normal"})
			if err != nil {
				return err
			}
			revremark = strings.TrimSpace(strings.Join(lines, "\n"))
			t.Attrs.Set("revremark", revremark)
		}
		if revdate := strings.TrimSpace(m["revdate"]); revdate != "" {
			t.Attrs.Set("revdate", revdate)
		} else if revnumber != "" || hasRemark {
			// a revision needs a date
			t.Attrs.Set("revdate", t.Attrs.Get("docdate"))
		}
	}
	if err := t.processAuthorNames(); err != nil {
		return err
	}

	if t.Attrs.Get("doctype") != "manpage" {
		return nil
	}
	mm := matchGroups(manTitleRE, t.Attrs.Get("doctitle"))
	if mm == nil {
		t.Errorf("malformed manpage title")
		return nil
	}
	mantitle, ok, err := t.SubsAttrsLine(strings.TrimSpace(mm["mantitle"]), nil)
	if err != nil {
		return err
	}
	if !ok {
		t.Errorf("undefined attribute in manpage title")
	}
	if mantitle == strings.ToUpper(mantitle) {
		mantitle = strings.ToLower(mantitle)
	}
	t.Attrs.Set("mantitle", mantitle)
	t.Attrs.Set("manvolnum", strings.TrimSpace(mm["manvolnum"]))
	return nil
}

// parseAuthor sets the author name and email attributes from an author line
// like "first [middle] [last] [<email>]"; underscores in names are spaces.
func (t *Translation) parseAuthor(s string) {
	s = strings.TrimSpace(s)
	m := matchGroups(authorRE, s)
	if m == nil {
		if s != "" {
			t.Attrs.Set("firstname", s)
		}
		return
	}
	first, middle, last := m["name1"], "", m["name2"]
	if m["name3"] != "" {
		middle, last = m["name2"], m["name3"]
	}
	for _, nv := range [][2]string{
		{"firstname", first},
		{"middlename", middle},
		{"lastname", last},
	} {
		if nv[1] != "" {
			t.Attrs.Set(nv[0], strings.Replace(nv[1], "_", " ", -1))
		}
	}
	if email := m["email"]; email != "" {
		t.Attrs.Set("email", email)
	}
}

func firstRune(s string) string {
	if _, n := utf8.DecodeRuneInString(s); n > 0 {
		return s[:n]
	}
	return ""
}

// processAuthorNames derives the missing author attributes: the author from
// its names, the names from the author, and the author initials.
func (t *Translation) processAuthorNames() error {
	first, middle, last := t.Attrs.Get("firstname"), t.Attrs.Get("middlename"), t.Attrs.Get("lastname")
	author := t.Attrs.Get("author")
	if strings.TrimSpace(author) != "" && first == "" && middle == "" && last == "" {
		t.parseAuthor(author)
		t.Attrs.Set("author", strings.Replace(author, "_", " ", -1))
		return t.processAuthorNames()
	}
	if author == "" {
		author = spaceRunRE.ReplaceAllString(strings.TrimSpace(first+" "+middle+" "+last), " ")
	}
	initials := t.Attrs.Get("authorinitials")
	if initials == "" {
		initials = strings.ToUpper(firstRune(first) + firstRune(middle) + firstRune(last))
	}

	names := []string{first, middle, last, author, initials}
	for i, v := range names {
		s, ok, err := t.SubsAttrsLine(t.subsSpecialChars(v), nil)
		if err != nil {
			return err
		}
		if !ok {
			s = ""
		}
		names[i] = s
	}
	for i, name := range []string{"firstname", "middlename", "lastname", "author", "authorinitials"} {
		if names[i] != "" {
			t.Attrs.Set(name, names[i])
		}
	}
	if names[3] != "" {
		t.Attrs.Set("authored", "")
	}
	return nil
}

// translateDocument writes the document: header, preamble, sections and
// footer.
func (t *Translation) translateDocument() error {
	doctype := t.Attrs.Get("doctype")
	headerFooter := !t.opts.NoHeaderFooter
	writeSection := func(name string) error {
		lines, err := t.subsSection(name, make(attrs.Map))
		if err != nil {
			return err
		}
		t.out.write(lines...)
		return nil
	}

	if doctype == "manpage" {
		if err := t.translateNameSection(); err != nil {
			return err
		}
	}
	if t.hasHeader {
		title, err := t.titleSubs(t.Attrs.Get("doctitle"))
		if err != nil {
			return err
		}
		t.Attrs.Set("doctitle", title)
		if headerFooter {
			if err := writeSection("header"); err != nil {
				return err
			}
		}
		t.Attrs.Unset("title")
		if _, err := t.consumeAttributesAndComments(false, false); err != nil {
			return err
		}
		switch doctype {
		case "article", "book":
			el, err := t.next()
			if err != nil {
				return err
			}
			if !el.is(TitleElement, nil) {
				stag, etag, err := t.sectionTags("preamble", nil, false, false)
				if err != nil {
					return err
				}
				t.out.write(stag...)
				if err := t.translateBody(nil); err != nil {
					return err
				}
				t.out.write(etag...)
			}
		case "manpage":
			if t.conf.sections.Has("name") {
				if err := writeSection("name"); err != nil {
					return err
				}
			}
		}
	} else {
		if err := t.processAuthorNames(); err != nil {
			return err
		}
		if headerFooter {
			if err := writeSection("header"); err != nil {
				return err
			}
		}
		el, err := t.next()
		if err != nil {
			return err
		}
		if !el.is(TitleElement, nil) {
			if err := t.translateBody(nil); err != nil {
				return err
			}
		}
	}

	for !t.rdr.EOF() {
		el, err := t.next()
		if err != nil {
			return err
		}
		if el == nil {
			break
		}
		if el.Kind != TitleElement {
			return t.fatalf("section title expected")
		}
		if err := t.translateSection(el); err != nil {
			return err
		}
	}
	t.setLevel(0)
	if headerFooter {
		return writeSection("footer")
	}
	return nil
}

// translateNameSection parses the mandatory NAME section of a manual page
// into the manname and manpurpose attributes.
func (t *Translation) translateNameSection() error {
	el, err := t.next()
	if err != nil {
		return err
	}
	if !el.is(TitleElement, nil) {
		t.Errorf("name section expected")
		return nil
	}
	if err := t.titleTranslate(el, false); err != nil {
		return err
	}
	if el.title.level != 1 {
		t.Errorf("name section title must be at level 1")
	}
	if el, err = t.next(); err != nil {
		return err
	}
	if el == nil || el.Kind != ParagraphElement {
		t.Errorf("malformed name section body")
	}
	lines, err := t.rdr.ReadUntil(false, blankLineRE)
	if err != nil {
		return t.fatal(err)
	}
	m := matchGroups(manNameRE, strings.Join(lines, " "))
	if m == nil {
		t.Errorf("malformed name section body")
		return nil
	}
	manname := strings.TrimSpace(m["manname"])
	t.Attrs.Set("manname", manname)
	t.Attrs.Set("manpurpose", strings.TrimSpace(m["manpurpose"]))
	names := strings.Split(manname, ",")
	if len(names) > 9 {
		t.Warningf("too many manpage names")
	}
	for i, name := range names {
		t.Attrs.Set(fmt.Sprintf("manname%d", i+1), strings.TrimSpace(name))
	}
	return nil
}
