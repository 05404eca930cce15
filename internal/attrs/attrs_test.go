package attrs

import (
	"bufio"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAttributes(t *testing.T) {
	for _, tc := range []struct {
		name   string
		in     string
		expect Map
	}{
		{"empty", "", Map{}},
		{"bare words", "hello,world", Map{
			"0": Def("hello,world"),
			"1": Def("hello"),
			"2": Def("world"),
		}},
		{"quoted and keyword", `"hello", planet="earth"`, Map{
			"0":      Def(`"hello", planet="earth"`),
			"1":      Def("hello"),
			"planet": Def("earth"),
		}},
		{"numbers", `3, width=40, ratio=1.5, neg=-2`, Map{
			"0":     Def(`3, width=40, ratio=1.5, neg=-2`),
			"1":     Def("3"),
			"width": Def("40"),
			"ratio": Def("1.5"),
			"neg":   Def("-2"),
		}},
		{"literals", `warnings=False, x=None, y=True`, Map{
			"0":        Def(`warnings=False, x=None, y=True`),
			"warnings": Def("False"),
			"x":        Undef,
			"y":        Def("True"),
		}},
		{"string concatenation", `"a" 'b'`, Map{
			"0": Def(`"a" 'b'`),
			"1": Def("ab"),
		}},
		{"mixed falls back", `quote, author="Bertrand Russell"`, Map{
			"0": Def(`quote, author="Bertrand Russell"`),
			"1": Def("quote"),
			"2": Def(`author="Bertrand Russell"`),
		}},
		{"positional after keyword falls back", `a="1", "b"`, Map{
			"0": Def(`a="1", "b"`),
			"1": Def(`a="1"`),
			"2": Def(`"b"`),
		}},
		{"empty items keep numbering", "a,,c", Map{
			"0": Def("a,,c"),
			"1": Def("a"),
			"3": Def("c"),
		}},
		{"newlines are spaces", "a,\nb", Map{
			"0": Def("a,\nb"),
			"1": Def("a"),
			"2": Def("b"),
		}},
		{"hyphenated keyword falls back", `foo-bar=1`, Map{
			"0": Def(`foo-bar=1`),
			"1": Def(`foo-bar=1`),
		}},
		{"escaped quote", `"say \"hi\""`, Map{
			"0": Def(`"say \"hi\""`),
			"1": Def(`say "hi"`),
		}},
		{"list literals", `posattrs=("style","attribution"), subs=["verbatim"]`, Map{
			"0":        Def(`posattrs=("style","attribution"), subs=["verbatim"]`),
			"posattrs": Def("style,attribution"),
			"subs":     Def("verbatim"),
		}},
		{"dangling backslash", `a\`, Map{
			"0": Def(`a\`),
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := Map{}
			ParseAttributes(tc.in, d)
			assert.Equal(t, tc.expect, d)
		})
	}
}

func TestParseNamedAttributes(t *testing.T) {
	d := Map{}
	if assert.True(t, ParseNamedAttributes(`star="sun",planet="earth"`, d), "expected valid keywords") {
		assert.Equal(t, Map{"star": Def("sun"), "planet": Def("earth")}, d)
	}
	assert.False(t, ParseNamedAttributes(`star=sun`, Map{}), "bare word values are invalid")
	assert.False(t, ParseNamedAttributes(`a="1",a="2"`, Map{}), "duplicate keywords are invalid")
}

func TestScanAttrTokens(t *testing.T) {
	sc := bufio.NewScanner(strings.NewReader(`  cols="1,2" , x=-1.5e3 'q\'s'`))
	sc.Split(ScanAttrTokens)
	var toks []string
	for sc.Scan() {
		toks = append(toks, sc.Text())
	}
	require.NoError(t, sc.Err(), "must scan")
	assert.Equal(t, []string{`cols`, `=`, `"1,2"`, `,`, `x`, `=`, `-`, `1.5e3`, `'q\'s'`}, toks)

	sc = bufio.NewScanner(strings.NewReader(`"open`))
	sc.Split(ScanAttrTokens)
	for sc.Scan() {
	}
	assert.Error(t, sc.Err(), "expected unterminated string error")
}

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions("header , footer,autowidth", nil, "illegal option")
	require.NoError(t, err)
	assert.Equal(t, []string{"header", "footer", "autowidth"}, opts)

	_, err = ParseOptions("header,2bad", nil, "illegal option")
	assert.EqualError(t, err, "illegal option: 2bad")

	_, err = ParseOptions("skip,other", []string{"skip", "sectionbody"}, "illegal options")
	assert.EqualError(t, err, "illegal options: other")
}

func TestParseEntry(t *testing.T) {
	for _, tc := range []struct {
		name   string
		in     string
		opts   EntryOptions
		expect Entry
		ok     bool
	}{
		{"simple", "name = value ", EntryOptions{}, Entry{"name", Def("value")}, true},
		{"empty value", "name=", EntryOptions{}, Entry{"name", Def("")}, true},
		{"no delimiter", "name", EntryOptions{}, Entry{}, false},
		{"name only", "name", EntryOptions{AllowNameOnly: true}, Entry{"name", Def("")}, true},
		{"undefine", "name!", EntryOptions{AllowNameOnly: true}, Entry{"name", Undef}, true},
		{"escaped delimiter", `a\=b=c`, EntryOptions{EscapeDelimiter: true}, Entry{"a=b", Def("c")}, true},
		{"unquote", `" x "=" y "`, EntryOptions{Unquote: true}, Entry{" x ", Def(" y ")}, true},
		{"short quotes kept", `a=""`, EntryOptions{Unquote: true}, Entry{"a", Def(`""`)}, true},
		{"empty name", "=value", EntryOptions{}, Entry{}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ent, ok := ParseEntry(tc.in, tc.opts)
			assert.Equal(t, tc.ok, ok, "expected parse result")
			assert.Equal(t, tc.expect, ent, "expected entry")
		})
	}
}

func TestParseEntries(t *testing.T) {
	ents, err := ParseEntries([]string{"a=1", "", "b=2", "a=3"}, EntryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []Entry{{"a", Def("1")}, {"b", Def("2")}, {"a", Def("3")}}, ents)
	assert.Equal(t, Map{"a": Def("3"), "b": Def("2")}, EntryMap(ents))

	_, err = ParseEntries([]string{"a=1", "junk"}, EntryOptions{})
	assert.EqualError(t, err, "malformed section entry: junk")

	ent, ok := ParseEntry(FormatEntry("x=y", " padded "), EntryOptions{Unquote: true, EscapeDelimiter: true})
	if assert.True(t, ok) {
		assert.Equal(t, Entry{"x=y", Def(" padded ")}, ent)
	}
}

func TestStore(t *testing.T) {
	st := NewStore()
	for _, step := range []struct {
		name string
		fn   func(t *testing.T)
	}{
		{"define", func(t *testing.T) {
			require.NoError(t, st.Define("Name", "World"))
			v, ok := st.Lookup("name")
			assert.True(t, ok, "must be defined")
			assert.Equal(t, "World", v)
		}},
		{"empty is defined", func(t *testing.T) {
			st.Set("empty", "")
			assert.True(t, st.Defined("EMPTY"))
		}},
		{"illegal name", func(t *testing.T) {
			err := st.Define("-1st", "x")
			assert.True(t, err != nil && strings.Contains(err.Error(), "illegal attribute name"), "expected illegal name error")
			assert.False(t, st.Defined("-1st"))
		}},
		{"leading digit", func(t *testing.T) {
			require.NoError(t, st.Define("1st", "x"))
			assert.True(t, st.Defined("1st"))
			st.Unset("1st")
		}},
		{"update undefines", func(t *testing.T) {
			st.Update(Map{"name": Undef, "other": Def("x")})
			assert.False(t, st.Defined("name"))
			assert.Equal(t, []string{"empty", "other"}, st.Names())
		}},
		{"clone is independent", func(t *testing.T) {
			c := st.Clone()
			c.Unset("other")
			assert.True(t, st.Defined("other"))
			assert.Equal(t, 1, c.Len())
		}},
	} {
		if !t.Run(step.name, step.fn) {
			break
		}
	}
}

func TestIsDefined(t *testing.T) {
	m := Map{"a": Def(""), "b": Def("x"), "u": Undef}
	assert.True(t, IsDefined("a", m))
	assert.False(t, IsDefined("u", m))
	assert.True(t, IsDefined("u, b", m))
	assert.False(t, IsDefined("u,c", m))
	assert.True(t, IsDefined("a+b", m))
	assert.False(t, IsDefined("a+u", m))
}

func ExampleParseAttributes() {
	d := Map{}
	ParseAttributes(`"source", lang="go", linenums=True`, d)
	for _, name := range d.Names() {
		fmt.Printf("%s=%v\n", name, d[name])
	}
	// Output:
	// 0="source", lang="go", linenums=True
	// 1=source
	// lang=go
	// linenums=True
}

func TestValidName(t *testing.T) {
	for _, tc := range []struct {
		name  string
		valid bool
	}{
		{"name", true},
		{"Name_2", true},
		{"foo-bar", true},
		{"_x", true},
		{"1st", true},
		{"2", true},
		{"éte", true},
		{"", false},
		{"-x", false},
		{"a b", false},
		{"a.b", false},
	} {
		assert.Equal(t, tc.valid, ValidName(tc.name), "ValidName(%q)", tc.name)
	}
}
