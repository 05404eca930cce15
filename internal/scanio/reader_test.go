package scanio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcorbin/adoc/internal/attrs"
)

type testEnv struct {
	*attrs.Store
	safe     bool
	warnings []string
	unsafe   []string
	system   func(action, args string) (string, bool, error)
}

func newTestEnv() *testEnv { return &testEnv{Store: attrs.NewStore()} }

var testRefRE = regexp.MustCompile(`\{([\w-]+)\}`)

func (env *testEnv) SubsAttrs(line string) (string, bool, error) {
	dropped := false
	line = testRefRE.ReplaceAllStringFunc(line, func(ref string) string {
		v, ok := env.Lookup(ref[1 : len(ref)-1])
		if !ok {
			dropped = true
		}
		return v
	})
	return line, !dropped, nil
}

func (env *testEnv) SetInput(name string) {
	if name == Stdin {
		env.Unset("infile")
		return
	}
	env.Set("infile", name)
}

func (env *testEnv) IsSafeFile(path, dir string) bool {
	return !env.safe || strings.HasPrefix(path, dir)
}

func (env *testEnv) Safe() bool { return env.safe }

func (env *testEnv) Eval(expr string) (bool, error) {
	switch expr {
	case "True":
		return true, nil
	case "False":
		return false, nil
	}
	return false, errors.New("invalid syntax")
}

func (env *testEnv) System(action, args string) (string, bool, error) {
	if env.system != nil {
		return env.system(action, args)
	}
	return "", false, nil
}

func (env *testEnv) Warningf(cur Cursor, format string, args ...interface{}) {
	env.warnings = append(env.warnings, fmt.Sprintf("%v: ", cur)+fmt.Sprintf(format, args...))
}

func (env *testEnv) Unsafef(cur Cursor, format string, args ...interface{}) {
	env.unsafe = append(env.unsafe, fmt.Sprintf(format, args...))
}

func (env *testEnv) Verbosef(Cursor, string, ...interface{}) {}

func readAll(r *CondReader) ([]string, error) {
	var lines []string
	for {
		line, ok, err := r.Read()
		if err != nil || !ok {
			return lines, err
		}
		lines = append(lines, line)
	}
}

func writeFile(t *testing.T, name, content string) {
	require.NoError(t, os.WriteFile(name, []byte(content), 0644), "must write %v", name)
}

func TestLineReader_basics(t *testing.T) {
	env := newTestEnv()
	r := NewCondReader(env)
	require.NoError(t, r.OpenReader("doc.txt", strings.NewReader("\xef\xbb\xbfone  \n\ttwo\t\nthree")))
	assert.True(t, r.BOM(), "expected BOM to be detected")

	lines, err := readAll(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "        two", "three"}, lines)
	assert.Equal(t, Cursor{File: "doc.txt", Line: 3, Text: "three"}, r.Cursor())
	assert.Equal(t, "doc.txt: line 3", r.Cursor().String())
	assert.True(t, r.EOF())
}

func TestLineReader_lineEndings(t *testing.T) {
	for _, tc := range []struct {
		name  string
		in    string
		lines []string
	}{
		{"newline", "a\nb\n", []string{"a", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"lone cr", "a\rb\rc", []string{"a", "b", "c"}},
		{"mixed", "a\r\nb\rc\n\rd", []string{"a", "b", "c", "", "d"}},
		{"final cr", "a\r", []string{"a"}},
		{"blank cr lines", "a\r\r\rb", []string{"a", "", "", "b"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := NewCondReader(newTestEnv())
			require.NoError(t, r.OpenReader("doc.txt", strings.NewReader(tc.in)))
			lines, err := readAll(r)
			require.NoError(t, err)
			assert.Equal(t, tc.lines, lines)
			assert.Equal(t, len(tc.lines), r.Cursor().Line)
		})
	}
}

func TestExpandTabs(t *testing.T) {
	assert.Equal(t, "a   b", ExpandTabs("a\tb", 4))
	assert.Equal(t, "abcd    e", ExpandTabs("abcd\te", 4))
	assert.Equal(t, "x", ExpandTabs("x", 4))
}

func TestLineReader_includeDepth(t *testing.T) {
	// chain writes doc0.txt including doc1.txt ... including docN.txt.
	chain := func(t *testing.T, n int) string {
		dir := t.TempDir()
		for i := 0; i < n; i++ {
			writeFile(t, filepath.Join(dir, fmt.Sprintf("doc%d.txt", i)),
				fmt.Sprintf("level %d\ninclude::doc%d.txt[]\n", i, i+1))
		}
		writeFile(t, filepath.Join(dir, fmt.Sprintf("doc%d.txt", n)), "leaf\n")
		return filepath.Join(dir, "doc0.txt")
	}

	t.Run("exactly max", func(t *testing.T) {
		r := NewCondReader(newTestEnv())
		require.NoError(t, r.Open(chain(t, defaultMaxDepth)))
		lines, err := readAll(r)
		require.NoError(t, err, "include chain of maximum depth must succeed")
		assert.Equal(t, "leaf", lines[len(lines)-1])
		assert.Len(t, lines, defaultMaxDepth+1)
	})

	t.Run("past max", func(t *testing.T) {
		r := NewCondReader(newTestEnv())
		require.NoError(t, r.Open(chain(t, defaultMaxDepth+1)))
		_, err := readAll(r)
		assert.True(t, errors.Is(err, ErrIncludeDepth), "expected include depth error, got %v", err)
		var serr *Error
		if assert.True(t, errors.As(err, &serr), "expected positioned error") {
			assert.Equal(t, fmt.Sprintf("doc%d.txt", defaultMaxDepth), filepath.Base(serr.Cursor.File))
		}
	})

	t.Run("depth argument", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "a.txt"), "include::b.txt[depth=1]\n")
		writeFile(t, filepath.Join(dir, "b.txt"), "include::c.txt[]\n")
		writeFile(t, filepath.Join(dir, "c.txt"), "c\n")
		r := NewCondReader(newTestEnv())
		require.NoError(t, r.Open(filepath.Join(dir, "a.txt")))
		_, err := readAll(r)
		assert.True(t, errors.Is(err, ErrIncludeDepth), "expected include depth error, got %v", err)
	})
}

func TestLineReader_include(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.txt"), strings.Join([]string{
		"before",
		"include::{part}[]",
		"include::missing.txt[]",
		"include::missing.txt[warnings=False]",
		"include::{undefined}[]",
		"include1::once.txt[]",
		"after",
	}, "\n"))
	writeFile(t, filepath.Join(dir, "part.txt"), "\tpart\n")
	writeFile(t, filepath.Join(dir, "once.txt"), "cached  \n")

	env := newTestEnv()
	env.Set("part", "part.txt")
	r := NewCondReader(env)
	r.TabSize = 4
	require.NoError(t, r.Open(filepath.Join(dir, "main.txt")))

	var files []string
	var lines []string
	for {
		line, ok, err := r.Read()
		require.NoError(t, err)
		if !ok {
			break
		}
		lines = append(lines, line)
		files = append(files, filepath.Base(env.Get("infile")))
	}
	once := filepath.Join(dir, "once.txt")
	assert.Equal(t, []string{"before", "    part", "{include1:" + once + "}", "after"}, lines)
	assert.Equal(t, []string{"main.txt", "part.txt", "main.txt", "main.txt"}, files)
	if assert.Len(t, env.warnings, 1, "expected one missing file warning") {
		assert.Contains(t, env.warnings[0], "include file not found")
		assert.Contains(t, env.warnings[0], "main.txt: line 3")
	}
	cached, ok := r.Include1(once)
	assert.True(t, ok)
	assert.Equal(t, []string{"cached"}, cached)
}

func TestCondReader(t *testing.T) {
	for _, tc := range []struct {
		name   string
		in     string
		safe   bool
		expect []string
		err    error
	}{
		{name: "ifdef defined", in: "ifdef::yes[]\na\nendif::yes[]\nb", expect: []string{"a", "b"}},
		{name: "ifdef undefined", in: "ifdef::no[]\na\nendif::no[]\nb", expect: []string{"b"}},
		{name: "ifndef", in: "ifndef::no[]\na\nendif::[]\nb", expect: []string{"a", "b"}},
		{name: "single line", in: "ifdef::yes[shown]\nifdef::no[hidden]\nifndef::no[also]", expect: []string{"shown", "also"}},
		{name: "or list", in: "ifdef::no,yes[]\na\nendif::no,yes[]", expect: []string{"a"}},
		{name: "and list", in: "ifdef::no+yes[]\na\nendif::no+yes[]", expect: nil},
		{name: "nested skip", in: "ifdef::no[]\nifdef::yes[]\na\nendif::yes[]\nb\nendif::no[]\nc", expect: []string{"c"}},
		{name: "skipped include", in: "ifdef::no[]\ninclude::nowhere.txt[]\nendif::no[]", expect: nil},
		{name: "ifeval", in: "ifeval::[True]\na\nendif::[]\nifeval::[False]\nb\nendif::[]", expect: []string{"a"}},
		{name: "missing endif", in: "ifdef::no[]\na", err: ErrMissingEndif},
		{name: "mismatched endif", in: "ifdef::no[]\na\nendif::other[]", err: ErrMismatchedMacro},
		{name: "unmatched endif", in: "a\nendif::[]", expect: []string{"a"}, err: ErrMismatchedMacro},
		{name: "missing target", in: "ifdef::[]", err: ErrMissingTarget},
		{name: "missing condition", in: "ifeval::[]", err: ErrMissingCondition},
		{name: "eval error", in: "ifeval::[nonsense]", err: ErrIfevalEvaluation},
		{name: "safe ifeval", in: "ifeval::[True]\na\nendif::[]", safe: true, err: ErrUnsafeIfeval},
		{name: "escaped macros", in: `\ifdef::yes[]` + "\n" + `\include::x.txt[]`, expect: []string{"ifdef::yes[]", "include::x.txt[]"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			env.safe = tc.safe
			env.Set("yes", "")
			r := NewCondReader(env)
			require.NoError(t, r.OpenReader("test.txt", strings.NewReader(tc.in)))
			lines, err := readAll(r)
			if tc.err != nil {
				assert.True(t, errors.Is(err, tc.err), "expected %v, got %v", tc.err, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.expect, lines)
		})
	}
}

func TestCondReader_blockMacros(t *testing.T) {
	env := newTestEnv()
	env.system = func(action, args string) (string, bool, error) {
		switch action {
		case "eval":
			return "one\ntwo", true, nil
		case "sys":
			return "", false, nil
		}
		return args, true, nil
	}
	r := NewCondReader(env)
	require.NoError(t, r.OpenReader("test.txt", strings.NewReader("eval::[x]\nsys::[y]\nsys2::[z]\n\\eval::[x]")))
	lines, err := readAll(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "z", "eval::[x]"}, lines)
}

func TestCondReader_readAhead(t *testing.T) {
	r := NewCondReader(newTestEnv())
	require.NoError(t, r.OpenReader("test.txt", strings.NewReader("\n\na\nb\n----\nc\n")))

	for _, step := range []struct {
		name string
		fn   func(t *testing.T)
	}{
		{"skip blank lines", func(t *testing.T) {
			require.NoError(t, r.SkipBlankLines())
			line, ok, err := r.ReadNext()
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "a", line)
		}},
		{"read ahead", func(t *testing.T) {
			lines, err := r.ReadAhead(2)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, lines)
		}},
		{"read until", func(t *testing.T) {
			lines, err := r.ReadUntil(false, regexp.MustCompile(`-{4,}$`))
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, lines)
			line, _, _ := r.ReadNext()
			assert.Equal(t, "----", line)
		}},
		{"read lines", func(t *testing.T) {
			lines, err := r.ReadLines(5)
			require.NoError(t, err)
			assert.Equal(t, []string{"----", "c"}, lines)
			assert.True(t, r.EOF())
		}},
	} {
		if !t.Run(step.name, step.fn) {
			break
		}
	}
}

func ExampleCondReader_Scan() {
	r := NewCondReader(newTestEnv())
	r.OpenReader("example.txt", strings.NewReader("ifdef::backend[]\nhidden\nendif::backend[]\nshown\n"))
	for r.Scan() {
		fmt.Println(r.Text())
	}
	// Output:
	// shown
}
