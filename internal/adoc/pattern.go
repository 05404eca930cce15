package adoc

import (
	"fmt"
	"regexp"
	"strings"
)

// Configuration file patterns are written for a backtracking regular
// expression dialect. compilePattern accepts the common subset: the unicode
// flag is implied, word classes are unicode aware, `{,n}` means `{0,n}` and
// `\Z` means `\z`. Lookaround assertions are not supported and fail to
// compile.
func compilePattern(pat string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(translatePattern(pat))
	if err != nil {
		return nil, fmt.Errorf("illegal regular expression: %s: %w", pat, err)
	}
	return re, nil
}

const (
	wordClass    = `\p{L}\p{N}_`
	nonWordClass = `[^\p{L}\p{N}_]`
)

var flagGroupRE = regexp.MustCompile(`\(\?([a-zA-Z]+)\)`)

func translatePattern(pat string) string {
	pat = flagGroupRE.ReplaceAllStringFunc(pat, func(g string) string {
		flags := strings.Map(func(r rune) rune {
			switch r {
			case 'u', 'L', 'x', 'a':
				return -1
			}
			return r
		}, g[2:len(g)-1])
		if flags == "" {
			return ""
		}
		return "(?" + flags + ")"
	})

	var sb strings.Builder
	inClass := false
	for i := 0; i < len(pat); i++ {
		c := pat[i]
		switch {
		case c == '\\' && i+1 < len(pat):
			i++
			switch e := pat[i]; {
			case e == 'w' && inClass:
				sb.WriteString(wordClass)
			case e == 'w':
				sb.WriteString("[" + wordClass + "]")
			case e == 'W' && !inClass:
				sb.WriteString(nonWordClass)
			case e == 'Z':
				sb.WriteString(`\z`)
			default:
				sb.WriteByte('\\')
				sb.WriteByte(e)
			}
		case c == '[' && !inClass:
			inClass = true
			sb.WriteByte(c)
			// a leading ] or ^] is literal
			if i+1 < len(pat) && pat[i+1] == '^' {
				i++
				sb.WriteByte('^')
			}
			if i+1 < len(pat) && pat[i+1] == ']' {
				i++
				sb.WriteString(`\]`)
			}
		case c == ']' && inClass:
			inClass = false
			sb.WriteByte(c)
		case c == '{' && !inClass && strings.HasPrefix(pat[i:], "{,"):
			sb.WriteString("{0,")
			i++
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// matchPrefix returns the submatches of re anchored at the start of s, or
// nil if re does not match there.
func matchPrefix(re *regexp.Regexp, s string) []string {
	loc := re.FindStringSubmatchIndex(s)
	if loc == nil || loc[0] != 0 {
		return nil
	}
	return submatches(s, loc)
}

// matchFull returns the submatches of re only if it matches all of s.
func matchFull(re *regexp.Regexp, s string) []string {
	full, err := regexp.Compile(`^(?:` + re.String() + `)$`)
	if err != nil {
		return nil
	}
	m := full.FindStringSubmatch(s)
	return m
}

func submatches(s string, loc []int) []string {
	m := make([]string, len(loc)/2)
	for i := range m {
		if loc[2*i] >= 0 {
			m[i] = s[loc[2*i]:loc[2*i+1]]
		}
	}
	return m
}

// groups maps the named groups of a match; unmatched groups are absent.
func groups(re *regexp.Regexp, s string, loc []int) map[string]string {
	d := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" || loc[2*i] < 0 {
			continue
		}
		d[name] = s[loc[2*i]:loc[2*i+1]]
	}
	return d
}

// group returns a named group of a match, or the empty string.
func group(re *regexp.Regexp, m []string, name string) string {
	if i := re.SubexpIndex(name); i >= 0 && i < len(m) {
		return m[i]
	}
	return ""
}

// hasGroup returns true if re defines the named group.
func hasGroup(re *regexp.Regexp, name string) bool { return re.SubexpIndex(name) >= 0 }

// expandTemplate converts `\1` and `\g<name>` group references to the
// `${1}` form used by regexp.Expand.
func expandTemplate(repl string) string {
	var sb strings.Builder
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		if c == '$' {
			sb.WriteString("$$")
			continue
		}
		if c != '\\' || i+1 >= len(repl) {
			sb.WriteByte(c)
			continue
		}
		e := repl[i+1]
		switch {
		case e >= '0' && e <= '9':
			j := i + 1
			for j < len(repl) && j < i+3 && repl[j] >= '0' && repl[j] <= '9' {
				j++
			}
			sb.WriteString("${" + repl[i+1:j] + "}")
			i = j - 1
		case e == 'g' && i+2 < len(repl) && repl[i+2] == '<':
			if k := strings.IndexByte(repl[i+3:], '>'); k >= 0 {
				sb.WriteString("${" + repl[i+3:i+3+k] + "}")
				i += 3 + k
				continue
			}
			sb.WriteByte(c)
		case e == 'n':
			sb.WriteByte('\n')
			i++
		case e == 't':
			sb.WriteByte('\t')
			i++
		case e == '\\':
			sb.WriteByte('\\')
			i++
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
