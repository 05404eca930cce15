package adoc

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jcorbin/adoc/internal/attrs"
)

// Macro prefixes.
const (
	inlineMacro = ""
	systemMacro = "+"
	blockMacro  = "#"
)

// Macro is a [macros] entry: a pattern that is replaced by the
// <name>-inlinemacro or <name>-blockmacro template section.
//
// Inline macro patterns may begin with a lead group matching the character
// before the macro; it is kept as is and is not part of the macro.
type Macro struct {
	pattern  string
	re       *regexp.Regexp
	name     string
	prefix   string
	subslist []string
}

// Name returns the macro's configured name; it is empty when the name is
// taken from the pattern's name group.
func (m *Macro) Name() string { return m.name }

func (m *Macro) hasPassthrough() bool { return hasGroup(m.re, "passtext") }

const systemMacroPattern = `^(?P<name>\\?[\p{L}\p{N}_][-\p{L}\p{N}_]*?)::(?P<target>\S*?)(\[(?P<attrlist>.*?)\])$`

func newSystemMacro() *Macro {
	return &Macro{
		pattern: systemMacroPattern,
		re:      regexp.MustCompile(systemMacroPattern),
		prefix:  systemMacro,
	}
}

var macroNameRE = regexp.MustCompile(`^(?P<name>[^\[]*)(\[(?P<subslist>.*)\])?$`)

// loadMacros merges [macros] entries. An entry with only a pattern deletes
// the macro having that pattern.
func (t *Translation) loadMacros(lines []string) error {
	c := t.conf
	for _, line := range t.expandTemplates(lines) {
		if line == "" {
			continue
		}
		ent, ok := attrs.ParseEntry(line, defaultEntryOptions)
		if !ok {
			deleted := false
			for i, m := range c.macros {
				if m.pattern == line {
					c.macros = append(c.macros[:i:i], c.macros[i+1:]...)
					deleted = true
					break
				}
			}
			if !deleted {
				t.Warningf("unable to delete missing macro: %s", line)
			}
			continue
		}

		re, err := compilePattern(ent.Name)
		if err != nil {
			return t.fatalf("illegal macro regular expression: %s", ent.Name)
		}
		m := &Macro{pattern: ent.Name, re: re}
		name := ent.Value.Str
		if name != "" && (name[0] == '+' || name[0] == '#') {
			m.prefix, name = name[:1], name[1:]
		}
		mm := macroNameRE.FindStringSubmatch(name)
		name = mm[1]
		if name != "" && !attrs.ValidName(name) {
			return t.fatalf("illegal section name in macro entry: %s", line)
		}
		if mm[2] != "" {
			subs, err := attrs.ParseOptions(mm[3], subsOptions, "illegal subs in macro entry: "+line)
			if err != nil {
				return t.fatal(err)
			}
			m.subslist = subs
		}
		m.name = name

		dup := false
		for _, m2 := range c.macros {
			if m2.pattern == m.pattern {
				t.Verbosef("macro redefinition: %s%s", m.prefix, m.name)
				dup = true
				break
			}
		}
		if !dup {
			c.macros = append(c.macros, m)
		}
	}
	return nil
}

func (t *Translation) validateMacros() error {
	if !t.opts.Verbose {
		return nil
	}
	for _, m := range t.conf.macros {
		if m.name != "" && m.prefix != systemMacro {
			t.macroSection(m, m.name)
		}
	}
	return nil
}

func (t *Translation) dumpMacros(sb *strings.Builder, nl string) {
	fmt.Fprintf(sb, "[macros]%s", nl)
	for _, m := range t.conf.macros[1:] {
		entry := strings.Replace(m.pattern, "=", `\=`, -1) + "=" + m.prefix + m.name
		if len(m.subslist) > 0 {
			entry += "[" + strings.Join(m.subslist, ",") + "]"
		}
		fmt.Fprintf(sb, "%s%s", entry, nl)
	}
	sb.WriteString(nl)
}

// macroSection returns the template section for a macro named name, or the
// empty string with a warning when there is none.
func (t *Translation) macroSection(m *Macro, name string) string {
	suffix := "-inlinemacro"
	if m.prefix == blockMacro {
		suffix = "-blockmacro"
	}
	sec := name + suffix
	if !t.conf.sections.Has(sec) {
		t.Warningf("missing macro section: [%s]%s", sec, t.suggest(sec))
		return ""
	}
	return sec
}

// findBlockMacro returns the block macro matching line.
func (t *Translation) findBlockMacro(line string) *Macro {
	if line == "" {
		return nil
	}
	for _, m := range t.conf.macros {
		if m.prefix == blockMacro && matchPrefix(m.re, line) != nil {
			return m
		}
	}
	return nil
}

// matchMacro matches text against the macros with prefix, returning the
// submatches of the first one that is named name, or whose name group
// matches the name pattern.
func (t *Translation) matchMacro(prefix, name, text string) (*Macro, []string) {
	var nameRE *regexp.Regexp
	for _, m := range t.conf.macros {
		if m.prefix != prefix {
			continue
		}
		sm := matchPrefix(m.re, text)
		if sm == nil {
			continue
		}
		if m.name == name {
			return m, sm
		}
		if !hasGroup(m.re, "name") {
			continue
		}
		if nameRE == nil {
			re, err := compilePattern("^(?:" + name + ")")
			if err != nil {
				return nil, nil
			}
			nameRE = re
		}
		if nameRE.MatchString(group(m.re, sm, "name")) {
			return m, sm
		}
	}
	return nil, nil
}

// subsMacros substitutes every macro having prefix in text. When callouts is
// set only callout macros are substituted, otherwise only non-callout ones.
func (t *Translation) subsMacros(text, prefix string, callouts bool) (string, error) {
	for _, m := range t.conf.macros {
		if m.prefix != prefix || callouts != (m.name == "callout") {
			continue
		}
		var err error
		if text, err = t.subsMacro(m, text); err != nil {
			return "", err
		}
	}
	return text, nil
}

// macroStart returns where the macro proper starts in a match, after any
// lead group.
func macroStart(re *regexp.Regexp, loc []int) int {
	if i := re.SubexpIndex("lead"); i >= 0 && loc[2*i+1] >= 0 {
		return loc[2*i+1]
	}
	return loc[0]
}

func (t *Translation) subsMacro(m *Macro, text string) (string, error) {
	locs := m.re.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return text, nil
	}
	var sb strings.Builder
	last := 0
	for _, loc := range locs {
		start := macroStart(m.re, loc)
		sb.WriteString(text[last:start])
		last = loc[1]
		match := text[start:loc[1]]
		if strings.HasPrefix(match, `\`) {
			sb.WriteString(match[1:])
			continue
		}
		s, err := t.expandMacro(m, text, loc)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	sb.WriteString(text[last:])
	return sb.String(), nil
}

// expandMacro returns the substituted template of one macro match.
func (t *Translation) expandMacro(m *Macro, text string, loc []int) (string, error) {
	d := make(attrs.Map)
	for k, v := range groups(m.re, text, loc) {
		if k != "lead" {
			d.Set(k, v)
		}
	}
	name := m.name
	if name == "" {
		v, ok := d.Lookup("name")
		if !ok {
			t.Warningf("missing macro name group: %s", m.pattern)
			return "", nil
		}
		name = v
	}
	sec := t.macroSection(m, name)
	if sec == "" {
		return "", nil
	}
	if m.prefix == blockMacro && m.name != "comment" {
		if err := t.consumeAttrList(d); err != nil {
			return "", err
		}
		t.consumeBlockTitle(d)
	}
	if al, ok := d.Lookup("attrlist"); ok {
		if al == "" {
			delete(d, "attrlist")
		} else {
			if m.prefix == inlineMacro {
				al = strings.Replace(al, `\]`, "]", -1)
				d.Set("attrlist", al)
			}
			attrs.ParseAttributes(al, d)
			if err := t.optionAttributes(d, name+": illegal option name"); err != nil {
				return "", err
			}
			if m.prefix == blockMacro {
				if err := t.subsQuotedValues(d); err != nil {
					return "", err
				}
			}
		}
	}
	if name == "callout" {
		index, err := strconv.Atoi(d.Get("index"))
		if err != nil {
			return "", t.fatalf("illegal callout index: %s", d.Get("index"))
		}
		d.Set("coid", t.callouts.add(index))
	}
	if v, ok := d.Lookup("1"); ok && name == "image" {
		d.Set("alt", v)
	}

	// {0} is already substituted; keep it from being substituted again
	a0 := d.Get("0")
	if a0 != "" {
		d.Set("0", "\x00")
	}
	body, err := t.subsSection(sec, d)
	if err != nil {
		return "", err
	}
	sep := "\n"
	if m.prefix == blockMacro {
		sep = t.newline()
	}
	result := strings.Join(body, sep)
	if a0 != "" {
		result = strings.Replace(result, "\x00", a0, -1)
	}
	return result, nil
}

// optionAttributes sets an <option>-option attribute for each entry of an
// options attribute.
func (t *Translation) optionAttributes(d attrs.Map, errmsg string) error {
	v, ok := d.Lookup("options")
	if !ok {
		return nil
	}
	opts, err := attrs.ParseOptions(v, nil, errmsg)
	if err != nil {
		return t.fatal(err)
	}
	for _, opt := range opts {
		d.Set(opt+"-option", "")
	}
	return nil
}

// subsQuotedValues substitutes single quoted attribute values normally.
func (t *Translation) subsQuotedValues(d attrs.Map) error {
	for k, v := range d {
		s := v.Str
		if !v.Defined || len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
			continue
		}
		s, err := t.subs1(s[1:len(s)-1], t.conf.subsNormal)
		if err != nil {
			return err
		}
		d[k] = attrs.Def(s)
	}
	return nil
}

// translateMacro translates a block macro line.
func (t *Translation) translateMacro(m *Macro) error {
	s, _, err := t.rdr.Read()
	if err != nil {
		return t.fatal(err)
	}
	if m.hasPassthrough() {
		if s, err = t.extractPassthroughs(s, blockMacro); err != nil {
			return err
		}
	}
	s, ok, err := t.SubsAttrsLine(s, nil)
	if err != nil || !ok || s == "" {
		return err
	}
	if s, err = t.subsMacro(m, s); err != nil {
		return err
	}
	if m.hasPassthrough() {
		s = t.restorePassthroughs(s)
	}
	if s != "" {
		t.out.write(s)
	}
	return nil
}

var placeholderRE = regexp.MustCompile("\x07(\\d+)\x07")

// pushPassthrough saves text that must not be substituted, returning the
// placeholder that restorePassthroughs replaces with it.
func (t *Translation) pushPassthrough(text string) string {
	t.passthroughs = append(t.passthroughs, text)
	return fmt.Sprintf("\x07%d\x07", len(t.passthroughs)-1)
}

// extractPassthroughs replaces the passtext of every passthrough macro having
// prefix with a placeholder, after substituting it with the macro's subs.
func (t *Translation) extractPassthroughs(text, prefix string) (string, error) {
	for _, m := range t.conf.macros {
		if m.prefix != prefix || !m.hasPassthrough() {
			continue
		}
		locs := m.re.FindAllStringSubmatchIndex(text, -1)
		if len(locs) == 0 {
			continue
		}
		pi := m.re.SubexpIndex("passtext")
		var sb strings.Builder
		last := 0
		for _, loc := range locs {
			sb.WriteString(text[last:loc[0]])
			last = loc[1]
			match := text[loc[0]:loc[1]]
			if text[macroStart(m.re, loc):loc[1]] == "" || text[macroStart(m.re, loc)] == '\\' {
				sb.WriteString(match)
				continue
			}
			if loc[2*pi] < 0 {
				t.Warningf("passthrough macro %s: missing passtext group", groups(m.re, text, loc)["name"])
				sb.WriteString(match)
				continue
			}
			passtext := text[loc[2*pi]:loc[2*pi+1]]
			if placeholderRE.MatchString(passtext) {
				t.Warningf("nested inline passthrough")
				sb.WriteString(match)
				continue
			}
			subs := m.subslist
			if sl := groups(m.re, text, loc)["subslist"]; sl != "" {
				if strings.HasPrefix(sl, ":") {
					return "", t.fatalf("block macro cannot occur here: %s", match)
				}
				opts, err := attrs.ParseOptions(sl, subsOptions, "illegal passthrough macro subs option")
				if err != nil {
					return "", t.fatal(err)
				}
				subs = opts
			}
			passtext, err := t.subs1(passtext, subs)
			if err != nil {
				return "", err
			}
			if m.prefix == inlineMacro {
				passtext = strings.Replace(passtext, `\]`, "]", -1)
			}
			sb.WriteString(text[loc[0]:loc[2*pi]])
			sb.WriteString(t.pushPassthrough(passtext))
			sb.WriteString(text[loc[2*pi+1]:loc[1]])
		}
		sb.WriteString(text[last:])
		text = sb.String()
	}
	return text, nil
}

// restorePassthroughs replaces placeholders with their saved text. Restored
// text is not scanned again.
func (t *Translation) restorePassthroughs(text string) string {
	return placeholderRE.ReplaceAllStringFunc(text, func(ph string) string {
		i, err := strconv.Atoi(ph[1 : len(ph)-1])
		if err != nil || i >= len(t.passthroughs) {
			return ph
		}
		return t.passthroughs[i]
	})
}

// calloutMap tracks the callouts of a code block so that the callout list
// following it can link back to them.
type calloutMap struct {
	comap map[int][]int
	index int
	list  int
}

func newCalloutMap() calloutMap {
	return calloutMap{comap: make(map[int][]int), list: 1}
}

func calloutID(list, index int) string { return fmt.Sprintf("CO%d-%d", list, index) }

// add records a callout referring to list item listIndex, returning its id.
func (cm *calloutMap) add(listIndex int) string {
	cm.index++
	cm.comap[listIndex] = append(cm.comap[listIndex], cm.index)
	return calloutID(cm.list, cm.index)
}

// ids returns the space separated ids of the callouts referring to a list
// item.
func (cm *calloutMap) ids(listIndex int) (string, bool) {
	idx, ok := cm.comap[listIndex]
	if !ok {
		return "", false
	}
	ids := make([]string, len(idx))
	for i, n := range idx {
		ids[i] = calloutID(cm.list, n)
	}
	return strings.Join(ids, " "), true
}

// invalid returns the list indexes referred to that exceed max.
func (cm *calloutMap) invalid(max int) []int {
	var bad []int
	for listIndex := range cm.comap {
		if listIndex > max {
			bad = append(bad, listIndex)
		}
	}
	sort.Ints(bad)
	return bad
}

// listClose starts the next callout list.
func (cm *calloutMap) listClose() {
	cm.list++
	cm.index = 0
	cm.comap = make(map[int][]int)
}
