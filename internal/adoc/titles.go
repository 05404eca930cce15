package adoc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shurcooL/sanitized_anchor_name"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/jcorbin/adoc/internal/attrs"
)

// titleLevels is the number of section levels, 0 through 4.
const titleLevels = 5

// titleConf is the [titles] configuration.
type titleConf struct {
	underlines []string
	subs       []string
	sectionRE  *regexp.Regexp
	blockRE    *regexp.Regexp
	sectRE     [titleLevels]*regexp.Regexp

	// dump keeps the entries as written for dumpConfig.
	dump attrs.Map
}

func newTitleConf() titleConf {
	return titleConf{
		underlines: []string{"==", "--", "~~", "^^", "++"},
		dump:       make(attrs.Map),
	}
}

func (t *Translation) loadTitles(ents []attrs.Entry) error {
	tc := &t.conf.titles
	for _, ent := range ents {
		k, v := ent.Name, ent.Value.Str
		switch k {
		case "underlines":
			d := make(attrs.Map)
			attrs.ParseAttributes(v, d)
			var uls []string
			for i := 1; i <= titleLevels; i++ {
				ul, ok := d.Lookup(strconv.Itoa(i))
				if !ok || utf8.RuneCountInString(ul) != 2 {
					return t.fatalf("malformed [titles] underlines entry")
				}
				uls = append(uls, ul)
			}
			if d.Has(strconv.Itoa(titleLevels + 1)) {
				return t.fatalf("malformed [titles] underlines entry")
			}
			tc.underlines = uls
		case "subs":
			opts, err := attrs.ParseOptions(v, subsOptions, "illegal [titles] subs entry")
			if err != nil {
				return t.fatal(err)
			}
			tc.subs = opts
		case "sectiontitle", "blocktitle":
			if v == "" {
				return t.fatalf("malformed [titles] %s entry", k)
			}
			re, err := compilePattern(v)
			if err != nil {
				return t.fatalf("malformed [titles] %s entry", k)
			}
			if k == "sectiontitle" {
				tc.sectionRE = re
			} else {
				tc.blockRE = re
			}
		case "sect0", "sect1", "sect2", "sect3", "sect4":
			if v == "" {
				return t.fatalf("malformed [titles] %s entry", k)
			}
			re, err := compilePattern(v)
			if err != nil {
				return t.fatalf("malformed [titles] %s entry", k)
			}
			level := int(k[4] - '0')
			tc.sectRE[level] = re
		default:
			continue
		}
		tc.dump[k] = ent.Value
	}
	return nil
}

// titleMatch is a section title recognized at the reader cursor.
type titleMatch struct {
	attrs     attrs.Map
	level     int
	linecount int
}

// columnWidth returns the display width of s; wide east asian characters
// count as two columns.
func columnWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

var wordRuneRE = regexp.MustCompile(`[\p{L}\p{N}_]`)

// parseTitle recognizes a one or two line section title at the start of
// lines.
func (t *Translation) parseTitle(lines []string) (*titleMatch, bool) {
	if len(lines) == 0 || lines[0] == "" {
		return nil, false
	}
	tc := &t.conf.titles
	var tm *titleMatch
	for level, re := range tc.sectRE {
		if re == nil {
			continue
		}
		if loc := re.FindStringSubmatchIndex(lines[0]); loc != nil && loc[0] == 0 {
			tm = &titleMatch{attrs: matchAttrs(re, lines[0], loc), level: level, linecount: 1}
			break
		}
	}
	if tm == nil {
		tm = t.parseUnderlinedTitle(lines)
	}
	if tm == nil {
		return nil, false
	}
	if !tm.attrs.Has("title") {
		t.Warningf("[titles] entry has no <title> group")
		tm.attrs.Set("title", lines[0])
	}
	if offset, err := strconv.Atoi(t.Attrs.Get("leveloffset")); err == nil {
		tm.level += offset
	}
	tm.attrs.Set("level", strconv.Itoa(tm.level))
	return tm, true
}

func (t *Translation) parseUnderlinedTitle(lines []string) *titleMatch {
	tc := &t.conf.titles
	if tc.sectionRE == nil || len(lines) < 2 {
		return nil
	}
	title, ul := lines[0], lines[1]
	ulRunes := []rune(ul)
	ulLen := len(ulRunes)
	if ulLen < 2 {
		return nil
	}
	pair := string(ulRunes[:2])
	level := -1
	for i, u := range tc.underlines {
		if u == pair {
			level = i
			break
		}
	}
	if level < 0 {
		return nil
	}
	within := func(n int) bool { return ulLen-3 < n && n < ulLen+3 }
	if !within(columnWidth(title)) && !within(utf8.RuneCountInString(title)) {
		return nil
	}
	if rep := []rune(strings.Repeat(pair, (ulLen+1)/2)); ul != string(rep[:ulLen]) {
		return nil
	}
	if !wordRuneRE.MatchString(title) {
		return nil
	}
	loc := tc.sectionRE.FindStringSubmatchIndex(title)
	if loc == nil || loc[0] != 0 {
		return nil
	}
	return &titleMatch{attrs: matchAttrs(tc.sectionRE, title, loc), level: level, linecount: 2}
}

// matchAttrs returns the named groups of a match that participated.
func matchAttrs(re *regexp.Regexp, s string, loc []int) attrs.Map {
	d := make(attrs.Map)
	for k, v := range groups(re, s, loc) {
		d.Set(k, v)
	}
	return d
}

// titleSubs substitutes a section or block title.
func (t *Translation) titleSubs(title string) (string, error) {
	subs := t.conf.titles.subs
	if len(subs) == 0 {
		subs = t.conf.subsNormal
	}
	lines, err := t.lexSubs([]string{title}, subs)
	if err != nil {
		return "", err
	}
	s := strings.Join(lines, t.newline())
	if s == "" {
		t.Warningf("blank section title")
	}
	return s, nil
}

// setSectName resolves the template section name of the current title: an
// explicit first positional or template attribute, a [specialsections]
// match, or sect<level>.
func (t *Translation) setSectName() {
	tm := t.title
	if name := t.attrList.Get("1"); name != "" && name != "float" {
		t.sectName = name
		return
	}
	if name, ok := t.attrList.Lookup("template"); ok {
		t.sectName = name
		return
	}
	title := tm.attrs.Get("title")
	for _, ent := range t.conf.specialSections {
		loc := ent.re.FindStringSubmatchIndex(title)
		if loc == nil || loc[0] != 0 {
			continue
		}
		if g, ok := groups(ent.re, title, loc)["title"]; ok {
			tm.attrs.Set("title", strings.TrimSpace(g))
		} else {
			tm.attrs.Set("title", strings.TrimSpace(title[loc[0]:loc[1]]))
		}
		t.sectName = ent.value
		return
	}
	t.sectName = fmt.Sprintf("sect%d", tm.level)
}

// sectionNumber returns the next section number at level, formatted like
// "1.2.3.", resetting the numbering of deeper levels.
func (t *Translation) sectionNumber(level int) string {
	var sb strings.Builder
	for l := 1; l < len(t.sectionNumbers); l++ {
		n := t.sectionNumbers[l]
		switch {
		case l < level:
			fmt.Fprintf(&sb, "%d.", n)
		case l == level:
			fmt.Fprintf(&sb, "%d.", n+1)
			t.sectionNumbers[l] = n + 1
		default:
			t.sectionNumbers[l] = 0
		}
	}
	return sb.String()
}

var nonWordRunRE = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// genID returns a unique section id derived from title. With the idstyle
// attribute set to anchor the id is a sanitized anchor name instead.
func (t *Translation) genID(title string) string {
	var base string
	if t.Attrs.Get("idstyle") == "anchor" {
		base = sanitized_anchor_name.Create(title)
	} else {
		base = strings.ToLower(strings.Trim(nonWordRunRE.ReplaceAllString(title, "_"), "_"))
		if t.Attrs.Defined("ascii-ids") {
			base = strings.Map(func(r rune) rune {
				if r > unicode.MaxASCII {
					return -1
				}
				return r
			}, norm.NFKD.String(base))
		}
	}
	prefix, ok := t.Attrs.Lookup("idprefix")
	if !ok {
		prefix = "_"
	}
	base = prefix + base
	id := base
	for i := 2; t.ids[id]; i++ {
		id = fmt.Sprintf("%s_%d", base, i)
	}
	t.ids[id] = true
	return id
}

// setSectionID generates the id of the current title when the sectids
// attribute is defined and the attribute list has none.
func (t *Translation) setSectionID() {
	if t.Attrs.Defined("sectids") && !t.attrList.Has("id") {
		t.attrList.Set("id", t.genID(t.title.attrs.Get("title")))
	}
}
