package attrs

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var errUnterminatedString = errors.New("unterminated string literal")

// ScanAttrTokens implements a bufio.SplitFunc that scans the tokens of a
// strict attribute list: quoted strings (returned with their quotes),
// numbers, names and single punctuation characters.
func ScanAttrTokens(data []byte, atEOF bool) (advance int, token []byte, err error) {
	// Skip leading spaces.
	start := 0
	for width := 0; start < len(data); start += width {
		var r rune
		r, width = utf8.DecodeRune(data[start:])
		if !unicode.IsSpace(r) {
			break
		}
	}
	if start >= len(data) {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}

	r, width := utf8.DecodeRune(data[start:])
	switch {
	case r == '"' || r == '\'':
		// Scan until end quote, skipping escaped quotes.
		esc := false
		for i := start + width; i < len(data); {
			c, w := utf8.DecodeRune(data[i:])
			i += w
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == r:
				return i, data[start:i], nil
			}
		}
		if atEOF {
			return 0, nil, errUnterminatedString
		}

	case isDigit(r) || (r == '.' && start+1 < len(data) && isDigit(rune(data[start+1]))):
		i := start
		for i < len(data) {
			c := data[i]
			if c == '+' || c == '-' {
				if prev := data[i-1]; prev != 'e' && prev != 'E' {
					return i, data[start:i], nil
				}
			} else if c != '.' && c != '_' && !isAlnum(rune(c)) {
				return i, data[start:i], nil
			}
			i++
		}
		if atEOF {
			return len(data), data[start:], nil
		}

	case r == '_' || unicode.IsLetter(r):
		for i := start; i < len(data); {
			c, w := utf8.DecodeRune(data[i:])
			if c != '_' && !unicode.IsLetter(c) && !unicode.IsDigit(c) {
				return i, data[start:i], nil
			}
			i += w
		}
		if atEOF {
			return len(data), data[start:], nil
		}

	default:
		return start + width, data[start : start+width], nil
	}

	// Request more data.
	return start, nil, nil
}

func isDigit(r rune) bool { return '0' <= r && r <= '9' }

func isAlnum(r rune) bool {
	return isDigit(r) || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
}

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type strictList struct {
	positional []Value
	keywords   Map
}

// parseStrict parses s as the argument list of a call whose arguments are
// all literals: positional values first, then name=value keywords.
func parseStrict(s string) (lst strictList, ok bool) {
	var toks []string
	sc := bufio.NewScanner(strings.NewReader(s))
	sc.Split(ScanAttrTokens)
	for sc.Scan() {
		toks = append(toks, sc.Text())
	}
	if sc.Err() != nil {
		return lst, false
	}

	lst.keywords = make(Map)
	for i := 0; i < len(toks); {
		if identRE.MatchString(toks[i]) && i+1 < len(toks) && toks[i+1] == "=" {
			name := toks[i]
			if lst.keywords.Has(name) {
				return lst, false
			}
			v, n, ok := parseLiteral(toks[i+2:])
			if !ok {
				return lst, false
			}
			lst.keywords[name] = v
			i += 2 + n
		} else {
			if len(lst.keywords) > 0 {
				return lst, false
			}
			v, n, ok := parseLiteral(toks[i:])
			if !ok {
				return lst, false
			}
			lst.positional = append(lst.positional, v)
			i += n
		}
		if i < len(toks) {
			if toks[i] != "," {
				return lst, false
			}
			i++
		}
	}
	return lst, true
}

// parseLiteral parses one literal from the head of toks, returning its value
// and the number of tokens consumed.
func parseLiteral(toks []string) (Value, int, bool) {
	if len(toks) == 0 {
		return Undef, 0, false
	}
	tok := toks[0]
	switch c := tok[0]; {
	case tok == "[" || tok == "(":
		// a list or tuple of literals flattens to a comma separated string
		closer := "]"
		if tok == "(" {
			closer = ")"
		}
		var items []string
		n := 1
		for n < len(toks) && toks[n] != closer {
			v, m, ok := parseLiteral(toks[n:])
			if !ok || !v.Defined {
				return Undef, 0, false
			}
			items = append(items, v.Str)
			n += m
			if n < len(toks) && toks[n] == "," {
				n++
			} else if n >= len(toks) || toks[n] != closer {
				return Undef, 0, false
			}
		}
		if n >= len(toks) {
			return Undef, 0, false
		}
		return Def(strings.Join(items, ",")), n + 1, true

	case c == '"' || c == '\'':
		var sb strings.Builder
		n := 0
		for ; n < len(toks) && (toks[n][0] == '"' || toks[n][0] == '\''); n++ {
			sb.WriteString(unquoteLiteral(toks[n]))
		}
		return Def(sb.String()), n, true

	case c == '-':
		if len(toks) > 1 {
			if s, ok := parseNumber(toks[1]); ok {
				if strings.HasPrefix(s, "-") {
					return Def(s[1:]), 2, true
				}
				return Def("-" + s), 2, true
			}
		}
		return Undef, 0, false

	case isDigit(rune(c)) || c == '.':
		if s, ok := parseNumber(tok); ok {
			return Def(s), 1, true
		}
		return Undef, 0, false
	}

	switch tok {
	case "True":
		return Def("True"), 1, true
	case "False":
		return Def("False"), 1, true
	case "None":
		return Undef, 1, true
	}
	return Undef, 0, false
}

func parseNumber(tok string) (string, bool) {
	tok = strings.TrimRight(tok, "lL")
	if i, err := strconv.ParseInt(tok, 0, 64); err == nil {
		return strconv.FormatInt(i, 10), true
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return "", false
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s, true
}

// unquoteLiteral strips the quotes from a string token and resolves its
// backslash escapes; unknown escapes are kept verbatim.
func unquoteLiteral(tok string) string {
	body := tok[1 : len(tok)-1]
	if !strings.ContainsRune(body, '\\') {
		return body
	}
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch e := body[i]; e {
		case '\\', '\'', '"':
			sb.WriteByte(e)
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '\n':
		default:
			sb.WriteByte('\\')
			sb.WriteByte(e)
		}
	}
	return sb.String()
}

var spaceRE = regexp.MustCompile(`\s`)

// ParseAttributes updates dict with the attributes parsed from an attribute
// list. The whole list is stored as "0"; positional values are named "1",
// "2" and so on. A list of quoted literals optionally followed by name=value
// keywords is parsed strictly; anything else is split on commas and every
// non-empty item is taken as a positional string.
func ParseAttributes(attrlist string, dict Map) {
	if attrlist == "" {
		return
	}
	dict.Set("0", attrlist)
	s := spaceRE.ReplaceAllString(attrlist, " ")
	if lst, ok := parseStrict(s); ok {
		for k, v := range lst.keywords {
			dict[k] = v
		}
		for i, v := range lst.positional {
			dict[strconv.Itoa(i+1)] = v
		}
		return
	}
	items := strings.Split(s, ",")
	for _, item := range items {
		// An item ending in an unpaired backslash makes the list unparseable.
		if trailingBackslashes(strings.TrimSpace(item))%2 == 1 {
			return
		}
	}
	for i, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			dict.Set(strconv.Itoa(i+1), item)
		}
	}
}

func trailingBackslashes(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n
}

// ParseNamedAttributes updates dict with the name=value keywords of a strict
// attribute list, returning false if s is not one.
func ParseNamedAttributes(s string, dict Map) bool {
	lst, ok := parseStrict(s)
	if !ok {
		return false
	}
	for k, v := range lst.keywords {
		dict[k] = v
	}
	return true
}

var optionSepRE = regexp.MustCompile(`\s*,\s*`)

// ParseOptions parses a comma separated list of option names. Every option
// must be a legal name and, when allowed is not empty, one of allowed.
// Illegal options are reported as "<errmsg>: <option>".
func ParseOptions(options string, allowed []string, errmsg string) ([]string, error) {
	if options == "" {
		return nil, nil
	}
	var result []string
	for _, opt := range optionSepRE.Split(options, -1) {
		if !ValidName(opt) || (len(allowed) > 0 && !contains(allowed, opt)) {
			return nil, fmt.Errorf("%s: %s", errmsg, opt)
		}
		result = append(result, opt)
	}
	return result, nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
