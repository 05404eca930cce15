package adoc

import (
	"regexp"
	"strings"

	"github.com/jcorbin/adoc/internal/attrs"
)

// Reference patterns. A close brace followed by a backslash does not close
// a reference; the character after the brace is consumed to check that.
const (
	refName  = `[\p{L}\p{N}_][-\p{L}\p{N}_]*?`
	refClose = `\}(?:[^\\]|$)`
)

var (
	simpleRefRE = regexp.MustCompile(`(?s)\{(?P<name>` + refName + `)` + refClose)
	condRefRE   = regexp.MustCompile(`(?s)\{(?P<name>` + refName + `)(?P<op>[=?!#%@$])(?P<value>.*?)` + refClose)
	multiRefRE  = regexp.MustCompile(`(?s)\{(?P<name>[\p{L}\p{N}_][-\p{L}\p{N}_,+]*?)(?P<op>[=?!#%@$])(?P<value>.*?)` + refClose)
	evalRefRE   = regexp.MustCompile(`(?s)\{(?P<action>eval):(?P<expr>.*?)` + refClose)
	systemRefRE = regexp.MustCompile(`(?s)\{(?P<action>` + refName + `):(?P<expr>.*?)` + refClose)
	numericRE   = regexp.MustCompile(`^\d+$`)
)

// undefinedRef is substituted by conditional references that drop their
// line; the drop check then finds it.
const undefinedRef = "{zzzzz}"

// attrScope resolves references against the document attributes overlaid
// by a local dictionary. Numeric document attributes are hidden by a local
// dictionary so that they do not clash with positional attributes.
type attrScope struct {
	doc  *attrs.Store
	dict attrs.Map
}

func (s attrScope) Lookup(name string) (string, bool) {
	if s.dict != nil {
		if v, ok := s.dict[name]; ok {
			return v.Str, v.Defined
		}
		if numericRE.MatchString(name) {
			return "", false
		}
	}
	return s.doc.Lookup(name)
}

// SubsAttrs substitutes attribute references in lines using the document
// attributes and dict, whose entries take precedence. Lines containing
// references to undefined attributes are dropped from the result.
//
// References are substituted in order: simple {name}, conditional
// {name<op>value} with a single name, conditional with a name list, and
// finally system references {action:args}. When dict is not nil its
// values are substituted first; entries that come out undefined are
// deleted from it.
func (t *Translation) SubsAttrs(lines []string, dict attrs.Map) ([]string, error) {
	scope, err := t.scope(dict)
	if err != nil {
		return nil, err
	}
	var result []string
	for _, line := range lines {
		line, ok, err := t.subsAttrsLine(line, scope)
		if err != nil {
			return result, err
		}
		if ok {
			result = append(result, line)
		}
	}
	return result, nil
}

// SubsAttrsLine substitutes attribute references in a single line, see
// SubsAttrs. It returns false if the line was dropped.
func (t *Translation) SubsAttrsLine(line string, dict attrs.Map) (string, bool, error) {
	scope, err := t.scope(dict)
	if err != nil {
		return "", false, err
	}
	return t.subsAttrsLine(line, scope)
}

func (t *Translation) scope(dict attrs.Map) (attrScope, error) {
	if dict != nil {
		for k, v := range dict {
			if !v.Defined {
				delete(dict, k)
				continue
			}
			s, ok, err := t.subsAttrsLine(v.Str, attrScope{doc: t.Attrs})
			if err != nil {
				return attrScope{}, err
			}
			if ok {
				dict[k] = attrs.Def(s)
			} else {
				delete(dict, k)
			}
		}
	}
	return attrScope{doc: t.Attrs, dict: dict}, nil
}

func (t *Translation) subsAttrsLine(line string, scope attrScope) (string, bool, error) {
	line = strings.Replace(line, `\{`, `{\`, -1)
	line = strings.Replace(line, `\}`, `}\`, -1)

	line = subsSimpleRefs(line, scope)
	line = t.subsCondRefs(line, scope, condRefRE, false)
	line = t.subsCondRefs(line, scope, multiRefRE, true)

	if simpleRefRE.MatchString(line) {
		return "", false, nil
	}

	for _, re := range []*regexp.Regexp{evalRefRE, systemRefRE} {
		for pos := 0; ; {
			loc := re.FindStringSubmatchIndex(line[pos:])
			if loc == nil {
				break
			}
			offset(loc, pos)
			action := line[loc[2]:loc[3]]
			args := line[loc[4]:loc[5]]
			end := loc[5] + 1
			args = strings.Replace(args, `{\`, "{", -1)
			args = strings.Replace(args, `}\`, "}", -1)
			s, ok, err := t.system(action, args, false, scope.dict)
			if err != nil {
				return "", false, err
			}
			if !ok {
				return "", false, nil
			}
			line = line[:loc[0]] + s + line[end:]
			pos = loc[0] + len(s)
		}
	}

	line = strings.Replace(line, `{\`, "{", -1)
	line = strings.Replace(line, `}\`, "}", -1)
	return line, true, nil
}

func offset(loc []int, pos int) {
	for i := range loc {
		if loc[i] >= 0 {
			loc[i] += pos
		}
	}
}

func subsSimpleRefs(line string, scope attrScope) string {
	for pos := 0; ; {
		loc := simpleRefRE.FindStringSubmatchIndex(line[pos:])
		if loc == nil {
			return line
		}
		offset(loc, pos)
		end := loc[3] + 1
		v, ok := scope.Lookup(line[loc[2]:loc[3]])
		if !ok {
			pos = end
			continue
		}
		line = line[:loc[0]] + v + line[end:]
		pos = loc[0] + len(v)
	}
}

// endBrace returns the index following the close brace matching the open
// brace at start. Braces followed by a backslash are not counted.
func endBrace(text string, start int) int {
	n := 0
	i := start
	for ; i < len(text); i++ {
		if i == len(text)-1 || text[i+1] != '\\' {
			switch text[i] {
			case '{':
				n++
			case '}':
				n--
			}
		}
		if n == 0 {
			return i + 1
		}
	}
	return i
}

func (t *Translation) subsCondRefs(line string, scope attrScope, re *regexp.Regexp, multi bool) string {
	for pos := 0; ; {
		loc := re.FindStringSubmatchIndex(line[pos:])
		if loc == nil {
			return line
		}
		offset(loc, pos)
		name := line[loc[2]:loc[3]]
		op := line[loc[4]:loc[5]]
		end := endBrace(line, loc[0])
		ref := line[loc[0]:end]
		rval := ""
		if loc[6] < end-1 {
			rval = line[loc[6] : end-1]
		}

		var (
			lval    string
			defined bool
		)
		if multi {
			lval, defined = t.nameListValue(name, ref, scope)
		} else {
			lval, defined = scope.Lookup(name)
		}

		var s string
		if !defined {
			switch op {
			case "=", "!", "%":
				s = rval
			case "?":
				s = ""
			default: // # @ $
				s = undefinedRef
			}
		} else {
			switch op {
			case "=":
				s = lval
			case "?", "#":
				s = rval
			case "!":
				s = ""
			case "%":
				s = undefinedRef
			default: // @ $
				s = t.matchRef(op, ref, lval, rval)
			}
		}
		line = line[:loc[0]] + s + line[end:]
		pos = loc[0] + len(s)
	}
}

// nameListValue evaluates a "n1,n2" (any defined) or "n1+n2" (all
// defined) name list.
func (t *Translation) nameListValue(list, ref string, scope attrScope) (string, bool) {
	sep := "+"
	if strings.Contains(list, ",") {
		sep = ","
	}
	var names []string
	for _, n := range strings.Split(list, sep) {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	for _, n := range names {
		if !attrs.ValidName(n) {
			t.Errorf("illegal attribute syntax: %s", ref)
		}
	}
	if sep == "," {
		for _, n := range names {
			if _, ok := scope.Lookup(n); ok {
				return "", true
			}
		}
		return "", false
	}
	for _, n := range names {
		if _, ok := scope.Lookup(n); !ok {
			return "", false
		}
	}
	return "", true
}

// splitUnescaped splits s on colons not preceded by a backslash.
func splitUnescaped(s string) []string {
	var parts []string
	last := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ':' && (i == 0 || s[i-1] != '\\') {
			parts = append(parts, s[last:i])
			last = i + 1
		}
	}
	return append(parts, s[last:])
}

// matchRef evaluates the {name@re:v1[:v2]} and {name$re:v1[:v2]} forms.
func (t *Translation) matchRef(op, ref, lval, rval string) string {
	v := splitUnescaped(rval)
	if len(v) != 2 && len(v) != 3 {
		t.Errorf("illegal attribute syntax: %s", ref)
		return ""
	}
	re, err := compilePattern("^" + v[0] + "$")
	if err != nil {
		t.Errorf("illegal attribute regexp: %s", ref)
		return ""
	}
	for i := range v {
		v[i] = strings.Replace(v[i], `\:`, ":", -1)
	}
	matched := re.MatchString(lval)
	switch {
	case op == "@" && matched:
		return v[1]
	case op == "@" && len(v) == 3:
		return v[2]
	case op == "@":
		return ""
	case matched && len(v) == 2:
		return v[1]
	case matched && v[1] == "":
		return undefinedRef
	case matched:
		return v[1]
	case len(v) == 2:
		return undefinedRef
	default:
		return v[2]
	}
}
