package adoc

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcorbin/adoc/internal/attrs"
	"github.com/jcorbin/adoc/internal/scanio"
)

var testNow = time.Date(2024, 3, 7, 14, 5, 9, 0, time.UTC)

func testOptions() Options {
	return Options{
		NoHeaderFooter: true,
		Now:            func() time.Time { return testNow },
	}
}

// translateString translates src, named test.txt, returning the output.
func translateString(t *testing.T, opts Options, src string) (string, *Translation, error) {
	t.Helper()
	var out bytes.Buffer
	tr, err := Translate(opts, "test.txt", strings.NewReader(src), &out)
	return out.String(), tr, err
}

// mustTranslate translates src with the test options, failing the test on a
// fatal error.
func mustTranslate(t *testing.T, src string) (string, *Translation) {
	t.Helper()
	out, tr, err := translateString(t, testOptions(), src)
	require.NoError(t, err)
	return out, tr
}

func ExampleTranslate() {
	var out bytes.Buffer
	_, err := Translate(Options{NoHeaderFooter: true}, "hello.txt", strings.NewReader("Hello, *World*!\n"), &out)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Print(out.String())
	// Output:
	// <div class="paragraph"><p>Hello, <strong>World</strong>!</p></div>
}

func TestHeaderless(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   string
		want string
	}{
		{"one letter", "x\n", "<p>x</p>"},
		{"one line", "Hello World\n", "<p>Hello World</p>"},
		{"no final newline", "Hello World", "<p>Hello World</p>"},
		{"two lines", "first\nsecond\n", "<p>first\nsecond</p>"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			out, tr, err := translateString(t, testOptions(), tc.in)
			require.NoError(t, err)
			assert.Equal(t, `<div class="paragraph">`+tc.want+"</div>\n", out)
			assert.False(t, tr.HasErrors(), "messages: %v", tr.Messages)
		})
	}
}

func TestInlineSubstitution(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   string
		want []string
		not  []string
	}{
		{
			name: "quotes",
			in:   "Some *strong*, 'emphasis', +mono+ and ^super^ text.",
			want: []string{
				"<strong>strong</strong>",
				"<em>emphasis</em>",
				"<code>mono</code>",
				"<sup>super</sup>",
			},
		},
		{
			name: "special characters",
			in:   "a < b & c > d",
			want: []string{"a &lt; b &amp; c &gt; d"},
		},
		{
			name: "replacements",
			in:   "(C) ACME... and \\(C) kept",
			want: []string{"&#169; ACME&#8230; and (C) kept"},
		},
		{
			name: "attribute references",
			in:   ":product: Widget\n\nThe {product} is {product}.",
			want: []string{"The Widget is Widget."},
		},
		{
			name: "undefined reference drops line",
			in:   "first line\nsecond {nosuchattr} line\nthird line",
			want: []string{"first line\nthird line"},
			not:  []string{"second"},
		},
		{
			name: "passthroughs",
			in:   "+++<b>raw</b>+++ and $$<i>$$ and pass:[<u>{nosuchattr}</u>]",
			want: []string{"<b>raw</b> and &lt;i&gt; and <u>{nosuchattr}</u>"},
		},
		{
			name: "url macro",
			in:   "See http://example.com/[the site].",
			want: []string{`<a href="http://example.com/">the site</a>`},
		},
		{
			name: "bare url",
			in:   "See http://example.com/index.html now.",
			want: []string{`<a href="http://example.com/index.html">http://example.com/index.html</a>`},
		},
		{
			name: "email",
			in:   "Mail joe@example.com today.",
			want: []string{`<a href="mailto:joe@example.com">joe@example.com</a>`},
		},
		{
			name: "cross reference",
			in:   "[[here]]\nSee <<here,this place>>.",
			want: []string{`<div class="paragraph" id="here">`, `<a href="#here">this place</a>`},
		},
		{
			name: "inline anchor",
			in:   "An [[spot]]anchor and [[[ref1]]] entry.",
			want: []string{`<a id="spot"></a>anchor`, `<a id="ref1"></a>[ref1]`},
		},
		{
			name: "inline literal",
			in:   "Run `ls *.go` now.",
			want: []string{"<code>ls *.go</code>"},
		},
		{
			name: "line break",
			in:   "one +\ntwo",
			want: []string{"one<br>\ntwo"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			out, tr := mustTranslate(t, tc.in)
			for _, want := range tc.want {
				assert.Contains(t, out, want)
			}
			for _, not := range tc.not {
				assert.NotContains(t, out, not)
			}
			assert.False(t, tr.HasErrors(), "messages: %v", tr.Messages)
		})
	}
}

func TestParagraphs(t *testing.T) {
	t.Run("literal", func(t *testing.T) {
		out, _ := mustTranslate(t, "  indented <literal>\n  text")
		assert.Contains(t, out, `<div class="literalblock">`)
		assert.Contains(t, out, "<pre><code>indented &lt;literal&gt;\ntext</code></pre>")
	})

	t.Run("admonition", func(t *testing.T) {
		out, _ := mustTranslate(t, "NOTE: Be careful.")
		assert.Contains(t, out, `<div class="admonitionblock">`)
		assert.Contains(t, out, `<div class="title">Note</div>`)
		assert.Contains(t, out, "Be careful.")
	})

	t.Run("block title", func(t *testing.T) {
		out, _ := mustTranslate(t, ".A Title\nSome text.")
		assert.Contains(t, out, `<div class="paragraph"><div class="title">A Title</div><p>Some text.</p></div>`)
	})

	t.Run("id and role", func(t *testing.T) {
		out, _ := mustTranslate(t, "[[para1]]\n[role=\"lead\"]\nSome text.")
		assert.Contains(t, out, `<div class="paragraph lead" id="para1">`)
	})

	t.Run("comment style", func(t *testing.T) {
		out, _ := mustTranslate(t, "[comment]\nHidden text.\n\nShown text.")
		assert.NotContains(t, out, "Hidden")
		assert.Contains(t, out, "Shown text.")
	})

	t.Run("markdown style", func(t *testing.T) {
		out, _ := mustTranslate(t, "[markdown]\nSome _markdown_ text.")
		assert.Contains(t, out, "<em>markdown</em>")
	})
}

func TestDelimitedBlocks(t *testing.T) {
	t.Run("listing", func(t *testing.T) {
		out, _ := mustTranslate(t, "----\n<a> *b* {nosuchattr}\n----")
		assert.Contains(t, out, `<div class="listingblock">`)
		assert.Contains(t, out, "<pre><code>&lt;a&gt; *b* {nosuchattr}</code></pre>")
	})

	t.Run("sidebar holds elements", func(t *testing.T) {
		out, _ := mustTranslate(t, "****\nFirst *para*.\n\nSecond para.\n****")
		assert.Contains(t, out, `<div class="sidebarblock">`)
		assert.Contains(t, out, "<p>First <strong>para</strong>.</p>")
		assert.Contains(t, out, "<p>Second para.</p>")
	})

	t.Run("quote attribution", func(t *testing.T) {
		out, _ := mustTranslate(t, "[quote, Some Body, Some Book]\n____\nWise words.\n____")
		assert.Contains(t, out, `<div class="quoteblock">`)
		assert.Contains(t, out, "<em>Some Book</em><br>")
		assert.Contains(t, out, "&#8212; Some Body")
	})

	t.Run("example admonition", func(t *testing.T) {
		out, _ := mustTranslate(t, "[WARNING]\n====\nHot.\n====")
		assert.Contains(t, out, `<div class="title">Warning</div>`)
		assert.Contains(t, out, "Hot.")
	})

	t.Run("passthrough", func(t *testing.T) {
		out, _ := mustTranslate(t, ":x: ex\n\n++++\n<div>{x}</div>\n++++")
		assert.Contains(t, out, "<div>ex</div>")
	})

	t.Run("comment block", func(t *testing.T) {
		out, _ := mustTranslate(t, "////\nsecret\n////\nvisible")
		assert.NotContains(t, out, "secret")
		assert.Contains(t, out, "visible")
	})

	t.Run("missing closing delimiter", func(t *testing.T) {
		_, _, err := translateString(t, testOptions(), "Intro.\n\n----\nnever closed")
		require.Error(t, err)
		var ae *Error
		require.True(t, errors.As(err, &ae))
		assert.Contains(t, err.Error(), "[blockdef-listing] missing closing delimiter")
	})
}

func TestLists(t *testing.T) {
	t.Run("bulleted", func(t *testing.T) {
		out, _ := mustTranslate(t, "- one\n- two\n* nested\n- three")
		assert.Equal(t, 2, strings.Count(out, "<ul>"))
		assert.Equal(t, 4, strings.Count(out, "<li>"))
		assert.Contains(t, out, "<p>nested</p>")
	})

	t.Run("numbered", func(t *testing.T) {
		out, tr := mustTranslate(t, "1. one\n2. two\n3. three")
		assert.Contains(t, out, `<ol class="arabic">`)
		assert.Equal(t, 3, strings.Count(out, "<li>"))
		assert.NotContains(t, tr.Messages.String(), "list item")
	})

	t.Run("numbered index out of sequence", func(t *testing.T) {
		_, tr := mustTranslate(t, "1. one\n3. two")
		assert.True(t, tr.HasWarnings())
		assert.Contains(t, tr.Messages.String(), "list item index: expected 2 got 3")
	})

	t.Run("implicit numbering", func(t *testing.T) {
		out, _ := mustTranslate(t, ". one\n.. sub\n. two")
		assert.Contains(t, out, `<ol class="arabic">`)
		assert.Contains(t, out, `<ol class="loweralpha">`)
	})

	t.Run("labeled", func(t *testing.T) {
		out, _ := mustTranslate(t, "Term one:: The first.\nTerm two::\n  The second.")
		assert.Contains(t, out, "<dl>")
		assert.Contains(t, out, `<dt class="hdlist1">Term one</dt>`)
		assert.Contains(t, out, "<p>The first.</p>")
		assert.Contains(t, out, `<dt class="hdlist1">Term two</dt>`)
		assert.Contains(t, out, "<dd><p>The second.</p>")
	})

	t.Run("horizontal", func(t *testing.T) {
		out, _ := mustTranslate(t, "[\"horizontal\", width=\"20%\"]\nTerm:: Item.")
		assert.Contains(t, out, `<div class="hdlist">`)
		assert.Contains(t, out, `width="20%"`)
		assert.Contains(t, out, `width="80%"`)
	})

	t.Run("continuation", func(t *testing.T) {
		out, _ := mustTranslate(t, "- item\n+\n----\ncode\n----\n- next")
		assert.Equal(t, 1, strings.Count(out, "<ul>"))
		assert.Contains(t, out, "<pre><code>code</code></pre>")
		assert.Contains(t, out, "<p>next</p>")
	})

	t.Run("callouts", func(t *testing.T) {
		out, tr := mustTranslate(t, "----\nx := 1 <1>\n----\n<1> Sets x.")
		assert.Contains(t, out, "x := 1 <b>&lt;1&gt;</b>")
		assert.Contains(t, out, `<div class="colist arabic">`)
		assert.Contains(t, out, "<p>Sets x.</p>")
		assert.NotContains(t, tr.Messages.String(), "callout")
	})

	t.Run("callout without reference", func(t *testing.T) {
		_, tr := mustTranslate(t, "<1> Nothing refers here.")
		assert.Contains(t, tr.Messages.String(), "no callouts refer to list item 1")
	})
}

func TestTables(t *testing.T) {
	t.Run("psv with header", func(t *testing.T) {
		out, _ := mustTranslate(t, "[options=\"header\"]\n|===\n|Name |Value\n|alpha |1\n|beta |2\n|===")
		assert.Contains(t, out, `<table class="tableblock frame-all grid-all" style="width:100%;">`)
		assert.Equal(t, 2, strings.Count(out, `<col width="50%">`))
		assert.Contains(t, out, "<thead>")
		assert.Contains(t, out, ">Name</th>")
		assert.Contains(t, out, `<p class="tableblock">alpha</p></td>`)
		assert.Equal(t, 3, strings.Count(out, "<tr>"))
		assert.NotContains(t, out, "<tfoot>")
	})

	t.Run("csv", func(t *testing.T) {
		out, _ := mustTranslate(t, ",===\na,b,c\n1,2,3\n,===")
		assert.Equal(t, 3, strings.Count(out, "<col "))
		assert.Equal(t, 2, strings.Count(out, "<tr>"))
		assert.NotContains(t, out, "<thead>")
		assert.Contains(t, out, `<p class="tableblock">c</p>`)
	})

	t.Run("spans", func(t *testing.T) {
		out, _ := mustTranslate(t, "[cols=\"3\"]\n|===\n2+|wide |x\n.2+|tall |y |z\n|p |q\n|===")
		assert.Contains(t, out, `colspan="2"`)
		assert.Contains(t, out, `rowspan="2"`)
		assert.Equal(t, 3, strings.Count(out, "<tr>"))
	})

	t.Run("width", func(t *testing.T) {
		out, _ := mustTranslate(t, "[width=\"50%\"]\n|===\n|a\n|===")
		assert.Contains(t, out, `style="width:50%;"`)
	})

	t.Run("empty", func(t *testing.T) {
		_, tr := mustTranslate(t, "|===\n|===")
		assert.Contains(t, tr.Messages.String(), "[tabledef-default] table is empty")
	})

	t.Run("legacy syntax", func(t *testing.T) {
		out, tr := mustTranslate(t, "`---------------------\na b\n---------------------\n\nafter")
		assert.Contains(t, out, "after")
		assert.NotContains(t, out, "a b")
		assert.Contains(t, tr.Messages.String(), "DEPRECATED: ")
	})
}

func TestSections(t *testing.T) {
	t.Run("ids and levels", func(t *testing.T) {
		out, _ := mustTranslate(t, "== First Part\n\nText.\n\n=== Sub Part\n\nMore.\n\n== Second\n")
		assert.Contains(t, out, `<h2 id="_first_part">First Part</h2>`)
		assert.Contains(t, out, `<h3 id="_sub_part">Sub Part</h3>`)
		assert.Contains(t, out, `<h2 id="_second">Second</h2>`)
		assert.Equal(t, 2, strings.Count(out, `<div class="sect1">`))
	})

	t.Run("duplicate ids", func(t *testing.T) {
		out, _ := mustTranslate(t, "== Same\n\nA.\n\n== Same\n\nB.\n")
		assert.Contains(t, out, `id="_same"`)
		assert.Contains(t, out, `id="_same_2"`)
	})

	t.Run("numbered", func(t *testing.T) {
		out, _ := mustTranslate(t, ":numbered:\n\n== One\n\n=== One A\n\n== Two\n")
		assert.Contains(t, out, ">1. One</h2>")
		assert.Contains(t, out, ">1.1. One A</h3>")
		assert.Contains(t, out, ">2. Two</h2>")
	})

	t.Run("two line titles", func(t *testing.T) {
		out, _ := mustTranslate(t, "Underlined\n----------\n\nText.")
		assert.Contains(t, out, ">Underlined</h2>")
	})

	t.Run("out of sequence", func(t *testing.T) {
		_, tr := mustTranslate(t, "== One\n\n==== Deep\n\nText.")
		assert.Contains(t, tr.Messages.String(), "section title out of sequence: expected level 2, got level 3")
	})

	t.Run("special section", func(t *testing.T) {
		out, _ := mustTranslate(t, "== Appendix A: Extras\n\nText.")
		assert.Contains(t, out, "Appendix A: Extras</h2>")
	})
}

func TestDocumentHeader(t *testing.T) {
	opts := testOptions()
	opts.NoHeaderFooter = false
	src := "= The Title\nJane Q Public <jane@example.com>\nv1.2, 2024-01-02: First cut\n:description: A test.\n\nPreamble text.\n\n== Body\n\nBody text.\n"
	out, tr, err := translateString(t, opts, src)
	require.NoError(t, err)

	assert.Equal(t, "The Title", tr.Attrs.Get("doctitle"))
	assert.Equal(t, "Jane", tr.Attrs.Get("firstname"))
	assert.Equal(t, "Q", tr.Attrs.Get("middlename"))
	assert.Equal(t, "Public", tr.Attrs.Get("lastname"))
	assert.Equal(t, "JQP", tr.Attrs.Get("authorinitials"))
	assert.Equal(t, "1.2", tr.Attrs.Get("revnumber"))
	assert.Equal(t, "2024-01-02", tr.Attrs.Get("revdate"))
	assert.Equal(t, "First cut", tr.Attrs.Get("revremark"))

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>\n"))
	assert.Contains(t, out, "<title>The Title</title>")
	assert.Contains(t, out, `<meta name="description" content="A test.">`)
	assert.Contains(t, out, `<meta name="generator" content="AsciiDoc 8.6.7">`)
	assert.Contains(t, out, `<span id="author">Jane Q Public</span>`)
	assert.Contains(t, out, `<a href="mailto:jane@example.com">jane@example.com</a>`)
	assert.Contains(t, out, `<div id="preamble">`)
	assert.Contains(t, out, "<p>Preamble text.</p>")
	assert.Contains(t, out, "Last updated 2024-03-07")
	assert.True(t, strings.HasSuffix(out, "</html>\n"))
}

func TestRevisionRemark(t *testing.T) {
	for _, tc := range []struct {
		name   string
		in     string
		remark string
	}{
		{"ends at blank line", "= T\nA B\nv1, 2024-01-02: Remark\n\nBody para.\n", "Remark"},
		{"spans lines", "= T\nA B\nv1, 2024-01-02: one\ntwo\n\nBody para.\n", "one\ntwo"},
		{"followed by entry", "= T\nA B\nv1, 2024-01-02: Remark\n:x: y\n\nBody para.\n", "Remark"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			out, tr := mustTranslate(t, tc.in)
			assert.Equal(t, tc.remark, tr.Attrs.Get("revremark"))
			assert.Equal(t, "2024-01-02", tr.Attrs.Get("revdate"))
			assert.Contains(t, out, `<div id="preamble">`)
			assert.Contains(t, out, "<p>Body para.</p>")
		})
	}
}

func TestSubsAttrsLine(t *testing.T) {
	_, tr := mustTranslate(t, ":a: A\n:b: B\n:1st: First\n\ntext")
	for _, tc := range []struct {
		in   string
		want string
		drop bool
	}{
		{in: "{a}", want: "A"},
		{in: "{a}{b}", want: "AB"},
		{in: "plain } { text", want: "plain } { text"},
		{in: `\{a}`, want: "{a}"},
		{in: "{zz}", drop: true},
		{in: "{a?{b}}", want: "B"},
		{in: "{a?{b?c}}", want: "c"},
		{in: "{zz={b}x}", want: "Bx"},
		{in: "{a=dflt}", want: "A"},
		{in: "{zz?yes}", want: ""},
		{in: "{a!no}", want: ""},
		{in: "{zz!no}", want: "no"},
		{in: "{a#kept}", want: "kept"},
		{in: "{zz#kept}", drop: true},
		{in: "{a%x}", drop: true},
		{in: "{zz%x}", want: "x"},
		{in: "{a,zz?any}", want: "any"},
		{in: "{a+zz?all}", want: ""},
		{in: "{a+b?all}", want: "all"},
		{in: "{a@A:yes:no}", want: "yes"},
		{in: "{a@X:yes:no}", want: "no"},
		{in: "{a$A:yes}", want: "yes"},
		{in: "{a$X:yes}", drop: true},
		{in: "{1st}", want: "First"},
		{in: "{1st,zz?any}", want: "any"},
	} {
		t.Run(tc.in, func(t *testing.T) {
			s, ok, err := tr.SubsAttrsLine(tc.in, nil)
			require.NoError(t, err)
			if tc.drop {
				assert.False(t, ok, "got %q", s)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tc.want, s)

			// substituted text without references is left alone
			if !strings.ContainsAny(s, "{}") {
				again, ok, err := tr.SubsAttrsLine(s, nil)
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, s, again)
			}
		})
	}

	t.Run("dictionary", func(t *testing.T) {
		d := attrs.Map{"b": attrs.Def("local"), "c": attrs.Def("{a}")}
		s, ok, err := tr.SubsAttrsLine("{a} {b} {c}", d)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "A local A", s)
	})
}

func TestAttributes(t *testing.T) {
	t.Run("command line overrides document", func(t *testing.T) {
		opts := testOptions()
		opts.Attributes = []string{"who=cmd", "soft=cmd@"}
		out, _, err := translateString(t, opts, ":who: doc\n:soft: doc\n\n{who} {soft}")
		require.NoError(t, err)
		assert.Contains(t, out, "cmd doc")
	})

	t.Run("undefine", func(t *testing.T) {
		out, _ := mustTranslate(t, ":x: 1\n:x!:\n\nA {x} line\nkept")
		assert.NotContains(t, out, "A ")
		assert.Contains(t, out, "kept")
	})

	t.Run("counter and set", func(t *testing.T) {
		out, _ := mustTranslate(t, "{counter:n} {counter:n} {counter:n}\n\n{set:n:9}\n\nN is {n}.")
		assert.Contains(t, out, "1 2 3")
		assert.Contains(t, out, "N is 9.")
	})

	t.Run("conditional references", func(t *testing.T) {
		out, _ := mustTranslate(t, ":on:\n\nx [{on?yes}] [{off?yes}] [{off=dflt}] [{on#kept}] end")
		assert.Contains(t, out, "x [yes] [] [dflt] [kept] end")
	})

	t.Run("eval", func(t *testing.T) {
		out, _ := mustTranslate(t, ":a: 20\n\n{eval:{a}+22}")
		assert.Contains(t, out, "42")
	})

	t.Run("illegal command line attribute", func(t *testing.T) {
		opts := testOptions()
		opts.Attributes = []string{"=x"}
		_, _, err := translateString(t, opts, "text")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "illegal attribute option")
	})

	t.Run("unknown encoding", func(t *testing.T) {
		opts := testOptions()
		opts.Attributes = []string{"encoding=no-such-charset"}
		_, _, err := translateString(t, opts, "text")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown encoding: no-such-charset")
	})
}

func TestConditionals(t *testing.T) {
	src := strings.Join([]string{
		"ifdef::feature[]",
		"Feature on.",
		"endif::feature[]",
		"ifndef::feature[]",
		"Feature off.",
		"endif::feature[]",
		"ifdef::feature[Inline on.]",
		"ifeval::[{level}>2]",
		"High level.",
		"endif::[]",
	}, "\n")

	opts := testOptions()
	opts.Attributes = []string{"feature", "level=3"}
	out, _, err := translateString(t, opts, src)
	require.NoError(t, err)
	assert.Contains(t, out, "Feature on.")
	assert.NotContains(t, out, "Feature off.")
	assert.Contains(t, out, "Inline on.")
	assert.Contains(t, out, "High level.")

	out, _, err = translateString(t, testOptions(), strings.Replace(src, "{level}", "1", 1))
	require.NoError(t, err)
	assert.NotContains(t, out, "Feature on.")
	assert.Contains(t, out, "Feature off.")
	assert.NotContains(t, out, "Inline on.")
	assert.NotContains(t, out, "High level.")

	_, _, err = translateString(t, testOptions(), "text\n\nendif::foo[]")
	require.Error(t, err)
	assert.True(t, errors.Is(err, scanio.ErrMismatchedMacro), "got %v", err)
}

func TestInclude(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}
	write("part.txt", "Included *text*.\n")
	main := write("main.txt", "Before.\n\ninclude::part.txt[]\n\nAfter.\n")
	loop := write("loop.txt", "Again.\n\ninclude::loop.txt[]\n")

	t.Run("include", func(t *testing.T) {
		var out bytes.Buffer
		_, err := Translate(testOptions(), main, nil, &out)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "<p>Included <strong>text</strong>.</p>")
		assert.Contains(t, out.String(), "<p>After.</p>")
	})

	t.Run("depth", func(t *testing.T) {
		var out bytes.Buffer
		_, err := Translate(testOptions(), loop, nil, &out)
		require.Error(t, err)
		assert.True(t, errors.Is(err, scanio.ErrIncludeDepth), "got %v", err)
	})

	t.Run("safe mode", func(t *testing.T) {
		opts := testOptions()
		opts.Safe = true
		var out bytes.Buffer
		tr, err := Translate(opts, main, nil, &out)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Included")
		assert.False(t, tr.HasErrors())
	})

	t.Run("missing", func(t *testing.T) {
		_, tr := mustTranslate(t, "include::no-such-file.txt[]\n\ntext")
		assert.Contains(t, tr.Messages.String(), "include file not found")
	})
}

func TestSafeMode(t *testing.T) {
	opts := testOptions()
	opts.Safe = true
	out, tr, err := translateString(t, opts, "Value: {sys:echo hi}\n\nnext")
	require.NoError(t, err)
	assert.True(t, tr.HasErrors())
	assert.Contains(t, tr.Messages.String(), "unsafe: ")
	assert.NotContains(t, out, "Value:")
}

func TestOutFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("text\n"), 0644))

	tr, err := New(testOptions())
	require.NoError(t, err)
	require.NoError(t, tr.Load(path, nil))
	assert.Equal(t, filepath.Join(dir, "doc.html"), tr.OutFile())

	opts := testOptions()
	opts.OutFile = "-"
	tr, err = New(opts)
	require.NoError(t, err)
	require.NoError(t, tr.Load(path, nil))
	assert.Equal(t, Stdout, tr.OutFile())
}

func TestDumpConfig(t *testing.T) {
	opts := testOptions()
	opts.DumpConf = true
	out, _, err := translateString(t, opts, "text")
	require.NoError(t, err)
	assert.Contains(t, out, "[attributes]")
	assert.Contains(t, out, "[paradef-default]")
}
