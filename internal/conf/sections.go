// Package conf implements configuration section files: ordered collections
// of named sections, each a list of lines, that are merged in load order.
package conf

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/jcorbin/adoc/internal/attrs"
	"github.com/jcorbin/adoc/internal/scanio"
	"github.com/jcorbin/adoc/internal/socutil"
)

var (
	headerRE      = regexp.MustCompile(`^\[(\+?[\p{L}_][\p{L}\p{N}_-]*)\]\s*$`)
	entriesNameRE = regexp.MustCompile(`^(tags|miscellaneous|attributes|specialcharacters|specialwords|macros|replacements[23]?|quotes|titles|specialsections|paradef-.+|listdef-.+|blockdef-.+|tabledef-.+|tabletags-.+|listtags-.+|old_tabledef-.+)$`)
	templateRE    = regexp.MustCompile(`^template$`)
)

// IsEntriesSection returns true if the named section holds name=value
// entries rather than template lines.
func IsEntriesSection(name string) bool {
	return entriesNameRE.MatchString(strings.TrimPrefix(name, "+"))
}

// Sections is an ordered collection of named sections.
type Sections struct {
	names []string
	lines map[string][]string
}

// NewSections returns an empty collection.
func NewSections() *Sections {
	return &Sections{lines: make(map[string][]string)}
}

// Get returns the lines of the named section.
func (s *Sections) Get(name string) ([]string, bool) {
	lines, ok := s.lines[name]
	return lines, ok
}

// Has returns true if the named section exists.
func (s *Sections) Has(name string) bool {
	_, ok := s.lines[name]
	return ok
}

// Set replaces or adds the named section.
func (s *Sections) Set(name string, lines []string) {
	if _, ok := s.lines[name]; !ok {
		s.names = append(s.names, name)
	}
	s.lines[name] = lines
}

// Append adds lines to the end of the named section, creating it if needed.
func (s *Sections) Append(name string, lines []string) {
	cur := s.lines[name]
	s.Set(name, append(cur[:len(cur):len(cur)], lines...))
}

// Delete removes the named section.
func (s *Sections) Delete(name string) {
	if _, ok := s.lines[name]; !ok {
		return
	}
	delete(s.lines, name)
	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i:i], s.names[i+1:]...)
			break
		}
	}
}

// Names returns the section names in the order they were first added.
func (s *Sections) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of sections.
func (s *Sections) Len() int { return len(s.names) }

// Parse splits the lines of one configuration file into sections. Lines
// starting with '#' are comments; `\#` at the start of a line is unescaped.
// A repeated entries section is merged, or deleted when the repeat is empty;
// a repeated "+name" section is appended; any other repeat replaces.
func Parse(lines []string) *Sections {
	secs := NewSections()
	var (
		section  string
		contents []string
	)
	update := func() {
		if section == "" || len(contents) == 0 {
			return
		}
		switch {
		case secs.Has(section) && IsEntriesSection(section):
			if strings.Join(contents, "") != "" {
				secs.Append(section, contents)
			} else {
				secs.Delete(section)
			}
		case strings.HasPrefix(section, "+"):
			secs.Append(section, contents)
		default:
			secs.Set(section, contents)
		}
	}
	for _, line := range lines {
		if strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, `\#`) {
			line = line[1:]
		}
		line = strings.TrimRight(line, " \t\r\n\v\f")
		if m := headerRE.FindStringSubmatch(line); m != nil {
			update()
			section = strings.ToLower(m[1])
			contents = []string{}
			continue
		}
		contents = append(contents, line)
	}
	update()
	return secs
}

// Filter keeps only the sections named in include, when it is not empty,
// and drops those named in exclude.
func (s *Sections) Filter(include, exclude []string) {
	keep := make(map[string]bool, len(include))
	for _, name := range include {
		keep[name] = true
	}
	for _, name := range s.Names() {
		if len(include) > 0 && !keep[name] {
			s.Delete(name)
		}
	}
	for _, name := range exclude {
		s.Delete(name)
	}
}

// TrimBlankLines removes trailing blank lines from every section, and every
// blank line from entries sections.
func (s *Sections) TrimBlankLines() {
	for _, name := range s.names {
		lines := s.lines[name]
		if IsEntriesSection(name) {
			kept := lines[:0:0]
			for _, line := range lines {
				if line != "" {
					kept = append(kept, line)
				}
			}
			s.lines[name] = kept
			continue
		}
		n := len(lines)
		for n > 0 && lines[n-1] == "" {
			n--
		}
		s.lines[name] = lines[:n]
	}
}

// Merge loads the sections of a newly parsed file: "+name" sections are
// appended to name, all others replace any existing section.
func (s *Sections) Merge(from *Sections) {
	from.TrimBlankLines()
	for _, name := range from.names {
		lines := append([]string(nil), from.lines[name]...)
		if strings.HasPrefix(name, "+") {
			s.Append(name[1:], lines)
		} else {
			s.Set(name, lines)
		}
	}
}

// ExpandTemplates replaces template::[name] lines with the lines of the
// named section, recursively. Lines naming a missing section are kept, and
// the missing names returned.
func (s *Sections) ExpandTemplates(lines []string) (result []string, missing []string) {
	return s.expandTemplates(lines, 0)
}

const maxTemplateDepth = 32

func (s *Sections) expandTemplates(lines []string, depth int) (result []string, missing []string) {
	for _, line := range lines {
		m, ok := scanio.MatchSystemMacro(templateRE, line)
		if !ok {
			result = append(result, line)
			continue
		}
		sect, ok := s.lines[m.AttrList]
		if !ok || depth >= maxTemplateDepth {
			missing = append(missing, m.AttrList)
			result = append(result, line)
			continue
		}
		expanded, miss := s.expandTemplates(sect, depth+1)
		result = append(result, expanded...)
		missing = append(missing, miss...)
	}
	return result, missing
}

// ExpandAll expands templates in every section.
func (s *Sections) ExpandAll() (missing []string) {
	for _, name := range s.names {
		lines, miss := s.ExpandTemplates(s.lines[name])
		s.lines[name] = lines
		missing = append(missing, miss...)
	}
	return missing
}

// Entries parses the named entries section after expanding its templates.
func (s *Sections) Entries(name string, opts attrs.EntryOptions) ([]attrs.Entry, error) {
	lines, ok := s.lines[name]
	if !ok {
		return nil, nil
	}
	lines, _ = s.ExpandTemplates(lines)
	return attrs.ParseEntries(lines, opts)
}

// Dump writes every section in configuration file syntax.
func (s *Sections) Dump(w io.Writer, newline string) error {
	ew := &socutil.ErrWriter{Writer: w}
	for _, name := range s.names {
		fmt.Fprintf(ew, "[%s]%s", name, newline)
		for _, line := range s.lines[name] {
			if strings.HasPrefix(line, "#") {
				line = `\` + line
			}
			fmt.Fprintf(ew, "%s%s", line, newline)
		}
		io.WriteString(ew, newline)
	}
	return ew.Err
}
