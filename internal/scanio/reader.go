// Package scanio implements the line oriented input layer of a translation:
// a LineReader that expands tabs and include macros, and a CondReader that
// evaluates conditional inclusion and executable block macros as lines are
// read.
package scanio

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"github.com/jcorbin/adoc/internal/attrs"
)

// Stdin is the file name used for standard input.
const Stdin = "<stdin>"

const (
	readBufferMin   = 10
	defaultMaxDepth = 5
	utf8BOM         = "\xef\xbb\xbf"
)

// Env provides the translation services needed while reading input.
type Env interface {
	attrs.Lookuper

	// SubsAttrs performs attribute substitution on a single line,
	// returning false if the line is dropped.
	SubsAttrs(line string) (string, bool, error)

	// SetInput records the file currently being read, updating the infile
	// and indir attributes; name is Stdin for standard input.
	SetInput(name string)

	// IsSafeFile returns true if path may be read by a document in dir.
	IsSafeFile(path, dir string) bool

	// Safe returns true when running in safe mode.
	Safe() bool

	// Eval evaluates an ifeval condition.
	Eval(expr string) (bool, error)

	// System runs an executable block macro (eval, sys or sys2), returning
	// false if it produced no result.
	System(action, args string) (string, bool, error)

	Warningf(cur Cursor, format string, args ...interface{})
	Unsafef(cur Cursor, format string, args ...interface{})
	Verbosef(cur Cursor, format string, args ...interface{})
}

type source struct {
	name     string
	rd       *bufio.Reader
	closer   io.Closer
	lineno   int
	next     []Cursor
	done     bool
	err      error
	tabSize  int
	maxDepth int
	bom      bool
}

// LineReader reads lines from a document and the files it includes. Tabs are
// expanded, trailing white space is removed and a leading UTF-8 byte order
// mark is stripped.
type LineReader struct {
	// TabSize is the tab expansion width for the document and the default
	// for included files; zero disables expansion.
	TabSize int

	// MaxDepth is the initial maximum include depth; defaults to 5.
	MaxDepth int

	// Encoding, when not nil, decodes all input.
	Encoding encoding.Encoding

	env      Env
	src      *source
	parents  []*source
	cursor   Cursor
	bom      bool
	include1 map[string][]string
}

var includeNamesRE = regexp.MustCompile(`^include1?$`)

// NewLineReader returns a LineReader reporting to env.
func NewLineReader(env Env) *LineReader {
	return &LineReader{
		TabSize:  8,
		MaxDepth: defaultMaxDepth,
		env:      env,
		include1: make(map[string][]string),
	}
}

// Open opens the named file, or standard input when name is Stdin.
func (lr *LineReader) Open(name string) error {
	if name == Stdin {
		return lr.OpenReader(name, os.Stdin)
	}
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	return lr.OpenReader(name, f)
}

// OpenReader starts reading r, naming it name in cursors. If r is an
// io.Closer it is closed once exhausted.
func (lr *LineReader) OpenReader(name string, r io.Reader) error {
	maxDepth := lr.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	src := lr.newSource(name, r, lr.TabSize, maxDepth)
	lr.src = src
	lr.env.SetInput(name)
	lr.fill()
	lr.bom = src.bom
	return src.err
}

func (lr *LineReader) newSource(name string, r io.Reader, tabSize, maxDepth int) *source {
	if lr.Encoding != nil {
		r = transform.NewReader(r, lr.Encoding.NewDecoder())
	}
	src := &source{
		name:     name,
		rd:       bufio.NewReader(r),
		tabSize:  tabSize,
		maxDepth: maxDepth,
	}
	if cl, ok := r.(io.Closer); ok && name != Stdin {
		src.closer = cl
	}
	return src
}

// fill tops up the current source's read ahead buffer.
func (lr *LineReader) fill() {
	src := lr.src
	for !src.done && len(src.next) <= readBufferMin {
		chunk, err := src.rd.ReadString('\n')
		for _, s := range splitCR(chunk) {
			src.lineno++
			if src.tabSize != 0 {
				s = ExpandTabs(s, src.tabSize)
			}
			s = strings.TrimRightFunc(s, unicode.IsSpace)
			if src.lineno == 1 && strings.HasPrefix(s, utf8BOM) {
				s = s[len(utf8BOM):]
				src.bom = true
			}
			src.next = append(src.next, Cursor{File: src.name, Line: src.lineno, Text: s})
		}
		if err != nil {
			if err != io.EOF {
				src.err = err
			}
			src.done = true
			if src.closer != nil {
				src.closer.Close()
			}
		}
	}
}

// splitCR splits a chunk read up to a newline into lines, also ending a
// line at each carriage return not followed by the newline.
func splitCR(chunk string) []string {
	var lines []string
	for chunk != "" {
		i := strings.IndexByte(chunk, '\r')
		if i < 0 || chunk[i+1:] == "\n" {
			return append(lines, chunk)
		}
		lines = append(lines, chunk[:i+1])
		chunk = chunk[i+1:]
	}
	return lines
}

// ExpandTabs replaces every tab in s with spaces up to the next multiple of
// size columns.
func ExpandTabs(s string, size int) string {
	if !strings.ContainsRune(s, '\t') {
		return s
	}
	var sb strings.Builder
	col := 0
	for _, r := range s {
		switch r {
		case '\t':
			n := size - col%size
			sb.WriteString(strings.Repeat(" ", n))
			col += n
		case '\n', '\r':
			sb.WriteRune(r)
			col = 0
		default:
			sb.WriteRune(r)
			col++
		}
	}
	return sb.String()
}

// BOM returns true if the document started with a byte order mark.
func (lr *LineReader) BOM() bool { return lr.bom }

// Cursor returns the cursor of the last line read.
func (lr *LineReader) Cursor() Cursor { return lr.cursor }

// SetCursor restores a previously saved cursor.
func (lr *LineReader) SetCursor(c Cursor) { lr.cursor = c }

// SetCursorText replaces the text of the current cursor so that a rewritten
// line is not processed twice when pushed back.
func (lr *LineReader) SetCursorText(s string) { lr.cursor.Text = s }

// Depth returns the current include depth.
func (lr *LineReader) Depth() int { return len(lr.parents) }

// Include1 returns the cached content of a file included with include1.
func (lr *LineReader) Include1(path string) ([]string, bool) {
	lines, ok := lr.include1[path]
	return lines, ok
}

// Unread pushes a line back onto the read ahead buffer; it is up to the
// caller to restore the previous cursor.
func (lr *LineReader) Unread(c Cursor) {
	lr.src.next = append(lr.src.next, Cursor{})
	copy(lr.src.next[1:], lr.src.next)
	lr.src.next[0] = c
}

// EOF returns true if all lines have been read, closing any exhausted
// included files on the way.
func (lr *LineReader) EOF() bool {
	if lr.src == nil {
		return true
	}
	for {
		lr.fill()
		if len(lr.src.next) > 0 {
			return false
		}
		if !lr.pop() {
			return true
		}
	}
}

// Err returns any read error of the current file.
func (lr *LineReader) Err() error {
	if lr.src == nil {
		return nil
	}
	return lr.src.err
}

func (lr *LineReader) pop() bool {
	n := len(lr.parents)
	if n == 0 {
		return false
	}
	lr.src = lr.parents[n-1]
	lr.parents = lr.parents[:n-1]
	lr.env.SetInput(lr.src.name)
	return true
}

// Read returns the next line, expanding include macros. It returns false at
// the end of input.
func (lr *LineReader) Read() (string, bool, error) { return lr.read(false) }

// read reads the next line; include macros are not expanded while skip is
// set by conditional exclusion.
func (lr *LineReader) read(skip bool) (string, bool, error) {
	for {
		if lr.EOF() {
			return "", false, lr.Err()
		}
		lr.cursor = lr.src.next[0]
		lr.src.next = lr.src.next[1:]
		line := lr.cursor.Text
		if skip {
			return line, true, nil
		}
		m, ok := MatchSystemMacro(includeNamesRE, line)
		if !ok {
			return line, true, nil
		}
		line, ok, err := lr.include(m)
		if err != nil || ok {
			return line, ok, err
		}
	}
}

// include processes an include macro. It returns false if the macro line is
// dropped and reading should continue.
func (lr *LineReader) include(m SystemMacro) (string, bool, error) {
	cur := lr.cursor
	d := attrs.Map{}
	attrs.ParseAttributes(m.AttrList, d)
	warnings := true
	if d.Has("warnings") {
		v, ok := d.Lookup("warnings")
		warnings = ok && v != "" && v != "False" && v != "0"
	}

	if depth := len(lr.parents); depth >= lr.src.maxDepth {
		return "", false, errorf(cur, ErrIncludeDepth, "%d: %s", lr.src.maxDepth, cur.Text)
	}

	fname, ok, err := lr.env.SubsAttrs(m.Target)
	if err != nil {
		return "", false, err
	}
	if !ok || fname == "" {
		return "", false, nil
	}

	if lr.src.name != Stdin {
		fname = expandPath(fname)
		dir := filepath.Dir(lr.src.name)
		if !filepath.IsAbs(fname) {
			fname = filepath.Clean(filepath.Join(dir, fname))
		}
		if !lr.env.IsSafeFile(fname, dir) {
			lr.env.Unsafef(cur, "include file: %s", fname)
			return "", false, nil
		}
		if info, err := os.Stat(fname); err != nil || !info.Mode().IsRegular() {
			if warnings {
				lr.env.Warningf(cur, "include file not found: %s", fname)
			}
			return "", false, nil
		}
		if m.Name == "include1" {
			if _, cached := lr.include1[fname]; !cached {
				lr.env.Verbosef(cur, "include1: %s", fname)
				lines, err := readLines(fname)
				if err != nil {
					return "", false, &Error{Cursor: cur, Err: err}
				}
				lr.include1[fname] = lines
			}
			return "{include1:" + fname + "}", true, nil
		}
	}

	tabSize := lr.TabSize
	if v, ok := d.Lookup("tabsize"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return "", false, errorf(cur, ErrIncludeArgument, "tabsize: %s", v)
		}
		tabSize = n
	}
	maxDepth := lr.src.maxDepth
	if v, ok := d.Lookup("depth"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return "", false, errorf(cur, ErrIncludeArgument, "depth: %s", v)
		}
		maxDepth = len(lr.parents) + n
	}

	f, err := os.Open(fname)
	if err != nil {
		if warnings {
			lr.env.Warningf(cur, "include file not found: %s", fname)
		}
		return "", false, nil
	}
	lr.env.Verbosef(cur, "include: %s", fname)
	lr.parents = append(lr.parents, lr.src)
	lr.src = lr.newSource(fname, f, tabSize, maxDepth)
	lr.env.SetInput(fname)
	return "", false, nil
}

func expandPath(name string) string {
	name = os.ExpandEnv(name)
	if name == "~" || strings.HasPrefix(name, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			name = home + name[1:]
		}
	}
	return name
}

func readLines(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(nil, 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimRightFunc(sc.Text(), unicode.IsSpace))
	}
	return lines, sc.Err()
}
