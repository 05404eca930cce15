package attrs

import (
	"fmt"
	"regexp"
	"strings"
)

// EntryOptions control how name=value entries are parsed.
type EntryOptions struct {
	// Unquote strips enclosing double quotes from names and values.
	Unquote bool

	// AllowNameOnly accepts a bare "name" (empty value) and "name!"
	// (undefined value).
	AllowNameOnly bool

	// EscapeDelimiter allows "=" in names when escaped as `\=`.
	EscapeDelimiter bool
}

// Entry is a single parsed name=value configuration entry.
type Entry struct {
	Name  string
	Value Value
}

var (
	escapedDelimRE = regexp.MustCompile(`[^\\](=)`)
)

// ParseEntry parses a single name=value entry. It returns false if the entry
// is malformed.
func ParseEntry(line string, opts EntryOptions) (Entry, bool) {
	var (
		name  string
		value Value
	)
	i := -1
	if opts.EscapeDelimiter {
		if m := escapedDelimRE.FindStringSubmatchIndex(line); m != nil {
			i = m[2]
		}
	} else {
		i = strings.IndexByte(line, '=')
	}
	switch {
	case i >= 0:
		name = line[:i]
		if opts.EscapeDelimiter {
			name = strings.Replace(name, `\=`, "=", -1)
		}
		value = Def(line[i+1:])
	case opts.AllowNameOnly && line != "":
		name = line
		if strings.HasSuffix(name, "!") {
			name = name[:len(name)-1]
			value = Undef
		} else {
			value = Def("")
		}
	default:
		return Entry{}, false
	}
	if opts.Unquote {
		name = StripQuotes(name)
		if value.Defined {
			value.Str = StripQuotes(value.Str)
		}
	} else {
		name = strings.TrimSpace(name)
		if value.Defined {
			value.Str = strings.TrimSpace(value.Str)
		}
	}
	if name == "" {
		return Entry{}, false
	}
	return Entry{Name: name, Value: value}, true
}

// ParseEntries parses lines of name=value entries in order. Blank lines are
// skipped; a malformed entry is an error.
func ParseEntries(lines []string, opts EntryOptions) ([]Entry, error) {
	var entries []Entry
	for _, line := range lines {
		if line == "" {
			continue
		}
		ent, ok := ParseEntry(line, opts)
		if !ok {
			return entries, fmt.Errorf("malformed section entry: %s", line)
		}
		entries = append(entries, ent)
	}
	return entries, nil
}

// EntryMap collects entries into a Map; later entries win.
func EntryMap(entries []Entry) Map {
	m := make(Map, len(entries))
	for _, ent := range entries {
		m[ent.Name] = ent.Value
	}
	return m
}

// StripQuotes trims white space and then one pair of enclosing double quotes
// from strings at least three characters long.
func StripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 3 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return s
}

// FormatEntry formats a defined entry so that ParseEntry with Unquote and
// EscapeDelimiter reads it back.
func FormatEntry(name, value string) string {
	name = strings.Replace(name, "=", `\=`, -1)
	if len(name) != len(strings.TrimSpace(name)) {
		name = `"` + name + `"`
	}
	if value != "" && len(value) != len(strings.TrimSpace(value)) {
		value = `"` + value + `"`
	}
	return name + "=" + value
}
