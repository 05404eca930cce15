package scanio

import (
	"regexp"
	"strings"

	"github.com/jcorbin/adoc/internal/attrs"
)

var (
	condNamesRE     = regexp.MustCompile(`^(ifdef|ifndef|ifeval|endif)$`)
	execNamesRE     = regexp.MustCompile(`^(eval|sys|sys2)$`)
	escapedSysRE    = regexp.MustCompile(`^\\(eval|sys|sys2|ifdef|ifndef|endif|include|include1)$`)
	nonBlankStartRE = regexp.MustCompile(`\s*\S+`)
)

// CondReader wraps a LineReader, implementing conditional inclusion with the
// ifdef, ifndef, ifeval and endif macros, and expanding the eval, sys and
// sys2 block macros.
type CondReader struct {
	*LineReader

	depth    int
	skip     bool
	skipName string
	skipTo   int

	scanned string
	err     error
}

// NewCondReader returns a CondReader reading through a new LineReader.
func NewCondReader(env Env) *CondReader {
	return &CondReader{
		LineReader: NewLineReader(env),
		skipTo:     -1,
	}
}

func (r *CondReader) readSuper() (string, bool, error) {
	line, ok, err := r.LineReader.read(r.skip)
	if err == nil && !ok && r.skip {
		err = errorf(r.cursor, ErrMissingEndif, "endif::%s[]", r.skipName)
	}
	return line, ok, err
}

// Read returns the next line that survives conditional exclusion.
func (r *CondReader) Read() (string, bool, error) {
	for {
		line, ok, err := r.readSuper()
		if !ok || err != nil {
			return line, ok, err
		}

		for r.skip {
			if err := r.skipMacro(line); err != nil {
				return "", false, err
			}
			if line, ok, err = r.readSuper(); !ok || err != nil {
				return line, ok, err
			}
		}

		if m, ok := MatchSystemMacro(condNamesRE, line); ok {
			text, emit, err := r.condMacro(m, line)
			if err != nil || emit {
				return text, emit, err
			}
			continue
		}

		if m, ok := MatchSystemMacro(execNamesRE, line); ok {
			result, ok, err := r.env.System(m.Name, m.AttrList)
			if err != nil {
				return "", false, err
			}
			if !ok {
				continue
			}
			lines := strings.Split(result, "\n")
			cur := r.cursor
			for i := len(lines) - 1; i > 0; i-- {
				r.Unread(Cursor{File: cur.File, Line: cur.Line, Text: lines[i]})
			}
			line = lines[0]
			r.SetCursorText(line)
		}

		if _, ok := MatchSystemMacro(escapedSysRE, line); ok {
			line = line[1:]
		}
		return line, true, nil
	}
}

// skipMacro tracks conditional macro nesting while lines are being skipped.
func (r *CondReader) skipMacro(line string) error {
	m, ok := MatchSystemMacro(condNamesRE, line)
	if !ok {
		return nil
	}
	switch m.Name {
	case "endif":
		r.depth--
		if r.depth < 0 {
			return errorf(r.cursor, ErrMismatchedMacro, "%s", line)
		}
		if r.depth == r.skipTo {
			r.skip = false
			if m.Target != "" && r.skipName != m.Target {
				return errorf(r.cursor, ErrMismatchedMacro, "%s", line)
			}
		}
	case "ifdef", "ifndef":
		if m.Target == "" {
			return errorf(r.cursor, ErrMissingTarget, "%s", line)
		}
		if m.AttrList == "" {
			r.depth++
		}
	case "ifeval":
		if m.AttrList == "" {
			return errorf(r.cursor, ErrMissingCondition, "%s", line)
		}
		r.depth++
	}
	return nil
}

// condMacro evaluates a conditional macro outside skipped text. It returns
// true with the text to emit for single line ifdef and ifndef forms.
func (r *CondReader) condMacro(m SystemMacro, line string) (string, bool, error) {
	if m.Name == "endif" {
		r.depth--
		if r.depth < 0 {
			return "", false, errorf(r.cursor, ErrMismatchedMacro, "%s", line)
		}
		return "", false, nil
	}
	if m.Target == "" && m.Name != "ifeval" {
		return "", false, errorf(r.cursor, ErrMissingTarget, "%s", line)
	}

	switch m.Name {
	case "ifdef", "ifndef":
		defined := attrs.IsDefined(m.Target, r.env)
		if m.Name == "ifndef" {
			defined = !defined
		}
		if m.AttrList != "" {
			return m.AttrList, defined, nil
		}
		r.skip = !defined

	case "ifeval":
		if r.env.Safe() {
			r.env.Unsafef(r.cursor, "ifeval invalid")
			return "", false, errorf(r.cursor, ErrUnsafeIfeval, "%s", line)
		}
		if m.AttrList == "" {
			return "", false, errorf(r.cursor, ErrMissingCondition, "%s", line)
		}
		cond := false
		expr, ok, err := r.env.SubsAttrs(m.AttrList)
		if err != nil {
			return "", false, err
		}
		if ok && expr != "" {
			if cond, err = r.env.Eval(expr); err != nil {
				return "", false, errorf(r.cursor, ErrIfevalEvaluation, "%s: %v", line, err)
			}
			r.env.Verbosef(r.cursor, "ifeval: %s: %v", expr, cond)
		}
		r.skip = !cond
	}

	if r.skip {
		r.skipTo = r.depth
		r.skipName = m.Target
	}
	r.depth++
	return "", false, nil
}

// EOF returns true if no further lines survive conditional exclusion.
func (r *CondReader) EOF() bool {
	_, ok, err := r.ReadNext()
	return !ok || err != nil
}

// ReadNext returns the next line without consuming it.
func (r *CondReader) ReadNext() (string, bool, error) {
	save := r.cursor
	line, ok, err := r.Read()
	if ok && err == nil {
		r.Unread(r.cursor)
		r.cursor = save
	}
	return line, ok, err
}

// NextCursor returns the cursor of the next line without consuming it.
func (r *CondReader) NextCursor() (Cursor, bool, error) {
	save := r.cursor
	_, ok, err := r.Read()
	next := r.cursor
	if ok && err == nil {
		r.Unread(r.cursor)
		r.cursor = save
	}
	return next, ok, err
}

// ReadLines reads up to count lines.
func (r *CondReader) ReadLines(count int) ([]string, error) {
	var lines []string
	for len(lines) < count {
		line, ok, err := r.Read()
		if err != nil {
			return lines, err
		}
		if !ok {
			break
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// ReadAhead is like ReadLines but does not consume the lines read.
func (r *CondReader) ReadAhead(count int) ([]string, error) {
	save := r.cursor
	var (
		lines   []string
		putback []Cursor
		err     error
	)
	for len(lines) < count {
		var (
			line string
			ok   bool
		)
		if line, ok, err = r.Read(); !ok || err != nil {
			break
		}
		lines = append(lines, line)
		putback = append(putback, r.cursor)
	}
	for i := len(putback) - 1; i >= 0; i-- {
		r.Unread(putback[i])
	}
	r.cursor = save
	return lines, err
}

// SkipBlankLines consumes blank lines.
func (r *CondReader) SkipBlankLines() error {
	_, err := r.ReadUntil(false, nonBlankStartRE)
	return err
}

// ReadUntil reads lines up to, but not including, the first line that
// matches one of the terminators at its start. When sameFile is set the
// terminator must occur in the file being read when ReadUntil was called.
func (r *CondReader) ReadUntil(sameFile bool, terminators ...*regexp.Regexp) ([]string, error) {
	fname := r.cursor.File
	var lines []string
	for {
		save := r.cursor
		line, ok, err := r.Read()
		if err != nil {
			return lines, err
		}
		if !ok {
			return lines, nil
		}
		if !sameFile || fname == r.cursor.File {
			for _, re := range terminators {
				if MatchStart(re, line) {
					r.Unread(r.cursor)
					r.cursor = save
					return lines, nil
				}
			}
		}
		lines = append(lines, line)
	}
}

// Scan reads the next line for use as a Scanner, see Text and Err.
func (r *CondReader) Scan() bool {
	if r.err != nil {
		return false
	}
	line, ok, err := r.Read()
	r.scanned, r.err = line, err
	return ok && err == nil
}

// Text returns the line read by the last Scan.
func (r *CondReader) Text() string { return r.scanned }

// Err returns the error that stopped Scan.
func (r *CondReader) Err() error { return r.err }
