package conf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcorbin/adoc/internal/attrs"
)

func lines(s string) []string { return strings.Split(s, "\n") }

func TestParse(t *testing.T) {
	secs := Parse(lines(`# comment
[tags]
emphasis=<em>|</em>

[Header]
<html>
\# not a comment

[tags]
strong=<strong>|</strong>
[+footer]
a
[+footer]
b
[empty]
[replacements]
x=y
[replacements]

`))
	assert.Equal(t, []string{"tags", "header", "+footer"}, secs.Names())

	tags, _ := secs.Get("tags")
	assert.Equal(t, []string{"emphasis=<em>|</em>", "", "strong=<strong>|</strong>"}, tags)

	header, _ := secs.Get("header")
	assert.Equal(t, []string{"<html>", "# not a comment", ""}, header)

	footer, _ := secs.Get("+footer")
	assert.Equal(t, []string{"a", "b"}, footer)

	assert.False(t, secs.Has("empty"), "header only sections are ignored")
	assert.False(t, secs.Has("replacements"), "empty repeat deletes an entries section")
}

func TestMerge(t *testing.T) {
	base := NewSections()
	base.Merge(Parse(lines("[header]\none\n\n[footer]\nend\n\n[tags]\na=1\n\nb=2\n")))

	for _, step := range []struct {
		name string
		fn   func(t *testing.T)
	}{
		{"trailing blanks trimmed", func(t *testing.T) {
			header, _ := base.Get("header")
			assert.Equal(t, []string{"one"}, header)
			tags, _ := base.Get("tags")
			assert.Equal(t, []string{"a=1", "b=2"}, tags)
		}},
		{"replace and append", func(t *testing.T) {
			base.Merge(Parse(lines("[header]\ntwo\n[+footer]\nmore\n")))
			header, _ := base.Get("header")
			assert.Equal(t, []string{"two"}, header)
			footer, _ := base.Get("footer")
			assert.Equal(t, []string{"end", "more"}, footer)
		}},
		{"filter", func(t *testing.T) {
			c := NewSections()
			c.Merge(Parse(lines("[a]\n1\n[b]\n2\n[c]\n3")))
			c.Filter([]string{"a", "b"}, []string{"b"})
			assert.Equal(t, []string{"a"}, c.Names())
		}},
	} {
		if !t.Run(step.name, step.fn) {
			break
		}
	}
}

func TestExpandTemplates(t *testing.T) {
	secs := NewSections()
	secs.Merge(Parse(lines("[common]\nx=1\ntemplate::[deeper]\n[deeper]\ny=2\n[tabledef-default]\ntemplate::[common]\ntemplate::[nowhere]\nz=3")))

	expanded, missing := secs.ExpandTemplates([]string{"template::[common]", "w=0"})
	assert.Equal(t, []string{"x=1", "y=2", "w=0"}, expanded)
	assert.Empty(t, missing)

	ents, err := secs.Entries("tabledef-default", attrs.EntryOptions{})
	assert.Error(t, err, "unexpanded template lines are malformed entries")
	assert.Len(t, ents, 2)

	assert.Equal(t, []string{"nowhere"}, secs.ExpandAll())
	def, _ := secs.Get("tabledef-default")
	assert.Equal(t, []string{"x=1", "y=2", "template::[nowhere]", "z=3"}, def)
}

func TestIsEntriesSection(t *testing.T) {
	for name, expect := range map[string]bool{
		"tags":              true,
		"+tags":             true,
		"replacements2":     true,
		"blockdef-listing":  true,
		"tabletags-default": true,
		"specialsections":   true,
		"header":            false,
		"listingblock":      false,
		"blockdef-":         false,
	} {
		assert.Equal(t, expect, IsEntriesSection(name), "IsEntriesSection(%q)", name)
	}
}

func TestDump(t *testing.T) {
	secs := NewSections()
	secs.Merge(Parse(lines("[a]\n\\#x\ny")))
	var sb strings.Builder
	require.NoError(t, secs.Dump(&sb, "\n"))
	assert.Equal(t, "[a]\n\\#x\ny\n\n", sb.String())
}
