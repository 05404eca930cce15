package filter

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	enry "github.com/go-enry/go-enry/v2"
	"github.com/russross/blackfriday"
	"github.com/yuin/goldmark"
)

// Lookuper resolves the attributes a built-in filter reads.
type Lookuper interface {
	Lookup(name string) (string, bool)
}

// Func is a built-in filter. It receives the command arguments, the block
// lines and the block attributes, and returns the filtered lines.
type Func func(args, lines []string, a Lookuper) ([]string, error)

var builtins = map[string]Func{
	"highlight":  Highlight,
	"markdown":   Markdown,
	"commonmark": CommonMark,
}

// Builtin returns the built-in filter named name.
func Builtin(name string) (Func, bool) {
	f, ok := builtins[name]
	return f, ok
}

// Builtins returns the names of the built-in filters.
func Builtins() []string {
	return []string{"commonmark", "highlight", "markdown"}
}

// Highlight renders source code as HTML with CSS classes. The language is
// the first argument, else the language attribute, else it is detected from
// the content. The style attribute highlight-style names the chroma style.
func Highlight(args, lines []string, a Lookuper) ([]string, error) {
	text := strings.Join(lines, "\n") + "\n"
	lang := ""
	if len(args) > 0 {
		lang = args[0]
	} else if v, ok := a.Lookup("language"); ok {
		lang = v
	}
	if lang == "" {
		lang = DetectLanguage(lines)
	}
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(text)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)
	it, err := lexer.Tokenise(nil, text)
	if err != nil {
		return nil, err
	}
	styleName, _ := a.Lookup("highlight-style")
	style := styles.Get(styleName)
	opts := []html.Option{html.WithClasses(true)}
	if _, ok := a.Lookup("linenums-option"); ok {
		// numbered lines are only written inside a pre wrapper, so use one
		// that writes nothing
		opts = append(opts, html.WithLineNumbers(true), html.WithPreWrapper(bareWrapper{}))
	} else {
		opts = append(opts, html.PreventSurroundingPre(true))
	}
	var buf bytes.Buffer
	if err := html.New(opts...).Format(&buf, style, it); err != nil {
		return nil, err
	}
	return OutputLines(buf.String()), nil
}

// bareWrapper is a chroma pre wrapper that writes no elements; the block
// template supplies the pre element.
type bareWrapper struct{}

func (bareWrapper) Start(code bool, styleAttr string) string { return "" }

func (bareWrapper) End(code bool) string { return "" }

// enryToChroma maps go-enry language names to chroma lexer names where they
// differ.
var enryToChroma = map[string]string{
	"Shell": "bash",
}

// DetectLanguage guesses the language of source lines, returning the empty
// string when it cannot tell.
func DetectLanguage(lines []string) string {
	content := []byte(strings.Join(lines, "\n") + "\n")
	lang, safe := enry.GetLanguageByShebang(content)
	if !safe {
		lang, safe = enry.GetLanguageByModeline(content)
	}
	if !safe {
		lang, _ = enry.GetLanguageByClassifier(content, commonLanguages)
	}
	if lang == "" {
		return ""
	}
	if alias, ok := enryToChroma[lang]; ok {
		return alias
	}
	return strings.ToLower(lang)
}

var commonLanguages = []string{
	"C", "C++", "CSS", "Go", "HTML", "Java", "JavaScript", "JSON", "Makefile",
	"Perl", "PHP", "Python", "Ruby", "Rust", "Shell", "SQL", "XML", "YAML",
}

// Markdown renders markdown as HTML.
func Markdown(_, lines []string, _ Lookuper) ([]string, error) {
	src := []byte(strings.Join(lines, "\n") + "\n")
	out := blackfriday.Run(src, blackfriday.WithExtensions(blackfriday.CommonExtensions))
	return OutputLines(string(out)), nil
}

// CommonMark renders CommonMark markdown as HTML.
func CommonMark(_, lines []string, _ Lookuper) ([]string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(strings.Join(lines, "\n")+"\n"), &buf); err != nil {
		return nil, err
	}
	return OutputLines(buf.String()), nil
}
