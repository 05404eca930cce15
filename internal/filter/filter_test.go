package filter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookup map[string]string

func (l lookup) Lookup(name string) (string, bool) {
	v, ok := l[name]
	return v, ok
}

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		line string
		cmd  Command
	}{
		{"", Command{}},
		{"code-filter.py -b {basebackend}", Command{"code-filter.py", " -b {basebackend}"}},
		{`  "my filters/up.sh" -x`, Command{"my filters/up.sh", " -x"}},
		{`'my filters/up.sh'`, Command{"my filters/up.sh", ""}},
		{"tr a-z A-Z", Command{"tr", " a-z A-Z"}},
	} {
		assert.Equal(t, tc.cmd, Parse(tc.line), "parse %q", tc.line)
	}
	assert.Equal(t, []string{"a-z", "A-Z"}, Parse("tr a-z A-Z").Args())
	assert.Equal(t, `"tr" a-z A-Z`, Parse("tr a-z A-Z").String())
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "filters", "html"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "filters", "up.py"), []byte("#\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "filters", "html", "up.py"), []byte("#\n"), 0644))

	t.Run("styled", func(t *testing.T) {
		r := Parse("up.py -x").Resolve("html", []string{"", dir}, "python3")
		assert.True(t, r.Found)
		assert.Equal(t, `"python3" "`+filepath.Join(dir, "filters", "html", "up.py")+`" -x`, r.Line)
	})

	t.Run("unstyled", func(t *testing.T) {
		r := Parse("up.py").Resolve("", []string{dir}, "python3")
		assert.True(t, r.Found)
		assert.Equal(t, `"python3" "`+filepath.Join(dir, "filters", "up.py")+`"`, r.Line)
	})

	t.Run("not found", func(t *testing.T) {
		r := Parse("tr a-z A-Z").Resolve("", []string{dir}, "python3")
		assert.False(t, r.Found)
		assert.Equal(t, "", r.Missing)
		assert.Equal(t, "tr a-z A-Z", r.Line)
	})

	t.Run("missing path", func(t *testing.T) {
		name := filepath.Join(dir, "nope", "up.sh")
		r := Parse(name).Resolve("", nil, "python3")
		assert.False(t, r.Found)
		assert.Equal(t, name, r.Missing)
	})
}

func TestOutputLines(t *testing.T) {
	assert.Nil(t, OutputLines(""))
	assert.Equal(t, []string{"a", "b"}, OutputLines("a  \r\nb\n"))
	assert.Equal(t, []string{"a", ""}, OutputLines("a\n\n"))
}

func TestRun(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no shell")
	}
	ctx := context.Background()

	out, status, err := Run(ctx, "tr a-z A-Z", []string{"hello", "world"})
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	assert.Equal(t, []string{"HELLO", "WORLD"}, out)

	_, status, err = Run(ctx, "exit 3", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, status)
}

func TestBuiltins(t *testing.T) {
	for _, name := range Builtins() {
		_, ok := Builtin(name)
		assert.True(t, ok, "builtin %q", name)
	}
	_, ok := Builtin("source-highlight")
	assert.False(t, ok)
}

func TestMarkdown(t *testing.T) {
	out, err := Markdown(nil, []string{"Some *emphasis* here."}, lookup{})
	require.NoError(t, err)
	assert.Equal(t, []string{"<p>Some <em>emphasis</em> here.</p>"}, out)

	out, err = CommonMark(nil, []string{"# Title", "", "Some **strong** text."}, lookup{})
	require.NoError(t, err)
	assert.Equal(t, []string{"<h1>Title</h1>", "<p>Some <strong>strong</strong> text.</p>"}, out)
}

func TestHighlight(t *testing.T) {
	src := []string{"package main", "", "func main() {}"}
	out, err := Highlight([]string{"go"}, src, lookup{})
	require.NoError(t, err)
	text := strings.Join(out, "\n")
	assert.Contains(t, text, `<span class="kn">package</span>`)
	assert.NotContains(t, text, "<pre")

	out, err = Highlight(nil, src, lookup{"language": "go", "linenums-option": ""})
	require.NoError(t, err)
	text = strings.Join(out, "\n")
	assert.Contains(t, text, `<span class="ln">1</span>`)
	assert.Contains(t, text, `<span class="ln">3</span>`)
	assert.Contains(t, text, `<span class="kn">package</span>`)
	assert.NotContains(t, text, "<pre", "the block template supplies the pre element")
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "bash", DetectLanguage([]string{"#!/bin/bash", "echo hi"}))
	assert.Equal(t, "python", DetectLanguage([]string{"#!/usr/bin/env python", "print('hi')"}))
}
