package adoc

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jcorbin/adoc/internal/attrs"
)

// canonicalSubs expands a lone none, normal or verbatim option.
func (t *Translation) canonicalSubs(opts []string) []string {
	if len(opts) != 1 {
		return opts
	}
	switch opts[0] {
	case "none":
		return nil
	case "normal":
		return t.conf.subsNormal
	case "verbatim":
		return t.conf.subsVerbatim
	}
	return opts
}

// lexSubs performs the substitutions named by opts, in order, on a block of
// lines. The lines are joined so that quotes may span them; attributes are
// still substituted line by line so that one undefined reference drops only
// its own line.
func (t *Translation) lexSubs(lines []string, opts []string) ([]string, error) {
	if len(lines) == 0 || len(opts) == 0 {
		return lines, nil
	}
	opts = t.canonicalSubs(opts)
	para := strings.Join(lines, "\n")
	macros := hasOption(opts, "macros")
	if macros {
		var err error
		if para, err = t.extractPassthroughs(para, ""); err != nil {
			return nil, err
		}
	}
	for _, opt := range opts {
		if opt == "attributes" {
			lines, err := t.SubsAttrs(strings.Split(para, "\n"), nil)
			if err != nil {
				return nil, err
			}
			para = strings.Join(lines, "\n")
			continue
		}
		var err error
		if para, err = t.subs1(para, []string{opt}); err != nil {
			return nil, err
		}
	}
	if macros {
		para = t.restorePassthroughs(para)
	}
	return splitText(para), nil
}

// subs1 performs the substitutions named by opts, in order, on s, stopping
// early once the result is empty.
func (t *Translation) subs1(s string, opts []string) (string, error) {
	if s == "" {
		return s, nil
	}
	if t.Attrs.Defined("plaintext") {
		opts = []string{"specialcharacters"}
	}
	opts = t.canonicalSubs(opts)
	var err error
	for _, opt := range opts {
		switch opt {
		case "specialcharacters":
			s = t.subsSpecialChars(s)
		case "attributes":
			var ok bool
			s, ok, err = t.SubsAttrsLine(s, nil)
			if !ok {
				s = ""
			}
		case "quotes":
			s, err = t.subsQuotes(s)
		case "specialwords":
			s, err = t.subsSpecialWords(s)
		case "replacements", "replacements2", "replacements3":
			s = subsReplacements(s, *t.conf.replacementTable(opt))
		case "macros":
			s, err = t.subsMacros(s, "", false)
		case "callouts":
			s, err = t.subsMacros(s, "", true)
		default:
			return "", t.fatalf("illegal substitution option: %s", opt)
		}
		if err != nil {
			return "", err
		}
		if s == "" {
			break
		}
	}
	return s, nil
}

func (t *Translation) subsSpecialChars(s string) string {
	tab := t.conf.specialChars
	if len(tab) == 0 {
		return s
	}
	var sb strings.Builder
	for _, r := range s {
		if rep, ok := tab.get(string(r)); ok {
			sb.WriteString(rep)
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// splitQuote splits a [quotes] key into its left and right quote.
func splitQuote(key string) (lq, rq string) {
	if i := strings.IndexByte(key, '|'); i >= 0 && key != "|" && key != "||" {
		return key[:i], key[i+1:]
	}
	return key, key
}

// compileQuote builds the pattern of a [quotes] entry. Constrained quotes
// must be bounded by non-word characters; the after group stands in for that
// trailing boundary and is not part of the replaced text.
func compileQuote(key string, unconstrained bool) (*regexp.Regexp, error) {
	lq, rq := splitQuote(key)
	lq, rq = regexp.QuoteMeta(lq), regexp.QuoteMeta(rq)
	var pat string
	if unconstrained {
		pat = `(?ms)(^|.)(\[(?P<attrlist>[^\[\]]+?)\])?(?:` + lq + `)(?P<content>.+?)(?:` + rq + `)`
	} else {
		pat = `(?ms)(^|[^\p{L}\p{N}_;:}])(\[(?P<attrlist>[^\[\]]+?)\])?(?:` + lq + `)(?P<content>\S|\S.*?\S)(?:` + rq + `)(?P<after>[^\p{L}\p{N}_]|$)`
	}
	return regexp.Compile(pat)
}

// searchFrom finds the leftmost match of re in text that starts at or after
// pos, while letting the pattern see the character before pos. The returned
// locations index text.
func (t *Translation) searchFrom(re *regexp.Regexp, text string, pos int) []int {
	if pos == 0 {
		return re.FindStringSubmatchIndex(text)
	}
	if pos > len(text) {
		return nil
	}
	shifted, ok := t.shifted[re]
	if !ok {
		shifted = regexp.MustCompile(`(?ms).(?:` + re.String() + `)`)
		t.shifted[re] = shifted
	}
	_, w := utf8.DecodeLastRuneInString(text[:pos])
	start := pos - w
	loc := shifted.FindStringSubmatchIndex(text[start:])
	if loc == nil {
		return nil
	}
	_, w = utf8.DecodeRuneInString(text[start+loc[0]:])
	loc[0] += w
	offset(loc, start)
	return loc
}

// subsQuotes replaces quoted text with the quote's tags.
func (t *Translation) subsQuotes(text string) (string, error) {
	for _, ent := range t.conf.quotes {
		if ent.re == nil || ent.value == "" {
			continue
		}
		tag := strings.TrimPrefix(ent.value, "#")
		re := ent.re
		attrIdx := re.SubexpIndex("attrlist")
		contentIdx := re.SubexpIndex("content")
		afterIdx := re.SubexpIndex("after")
		for pos := 0; ; {
			loc := t.searchFrom(re, text, pos)
			if loc == nil {
				break
			}
			start, end := loc[0], loc[1]
			if afterIdx >= 0 && loc[2*afterIdx] >= 0 {
				end = loc[2*afterIdx]
			}
			if text[start] == '\\' {
				text = text[:start] + text[start+1:]
				pos = start + 1
				continue
			}
			dict := make(attrs.Map)
			if loc[2*attrIdx] >= 0 {
				attrs.ParseAttributes(text[loc[2*attrIdx]:loc[2*attrIdx+1]], dict)
			}
			tp, err := t.tag(tag, dict)
			if err != nil {
				return "", err
			}
			s := text[loc[2]:loc[3]] + tp.start + text[loc[2*contentIdx]:loc[2*contentIdx+1]] + tp.end
			text = text[:start] + s + text[end:]
			pos = start + len(s)
		}
	}
	return text, nil
}

// subsSpecialWords replaces each special word with its macro section.
func (t *Translation) subsSpecialWords(s string) (string, error) {
	for _, ent := range t.conf.specialWords {
		if ent.re == nil {
			continue
		}
		locs := ent.re.FindAllStringSubmatchIndex(s, -1)
		if len(locs) == 0 {
			continue
		}
		body, ok := t.conf.sections.Get(ent.value)
		if !ok {
			return "", t.fatalf("missing special word template [%s]", ent.value)
		}
		var sb strings.Builder
		last := 0
		for _, loc := range locs {
			sb.WriteString(s[last:loc[0]])
			last = loc[1]
			match := s[loc[0]:loc[1]]
			if strings.HasPrefix(match, `\`) {
				sb.WriteString(match[1:])
				continue
			}
			dict := attrs.Map{"words": attrs.Def(match)}
			for k, v := range groups(ent.re, s, loc) {
				dict.Set(k, v)
			}
			lines, err := t.SubsAttrs(body, dict)
			if err != nil {
				return "", err
			}
			sb.WriteString(strings.Join(lines, t.newline()))
		}
		sb.WriteString(s[last:])
		s = sb.String()
	}
	return s, nil
}

func subsReplacements(s string, table patternTable) string {
	for _, ent := range table {
		if ent.re != nil {
			s = ent.re.ReplaceAllString(s, expandTemplate(ent.value))
		}
	}
	return s
}

// setMargin shifts a block of lines left by their common indent; blank
// lines do not count.
func setMargin(lines []string) []string {
	width := -1
	for _, line := range lines {
		i := strings.IndexFunc(line, func(r rune) bool { return !unicode.IsSpace(r) })
		if i >= 0 && (width < 0 || i < width) {
			width = i
		}
	}
	if width <= 0 {
		return lines
	}
	result := make([]string, len(lines))
	for i, line := range lines {
		if len(line) >= width {
			result[i] = line[width:]
		}
	}
	return result
}

var lineBreakRE = regexp.MustCompile(`\r\n|\r|\n`)

// splitText splits text into lines at any line break; a final line break
// does not start another line.
func splitText(text string) []string {
	if text == "" {
		return nil
	}
	lines := lineBreakRE.Split(text, -1)
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
