// Package adoc translates text documents into backend markup, such as HTML
// or DocBook, under the control of configuration files that define the
// document grammar and the output templates.
package adoc

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/jcorbin/adoc/internal/attrs"
	"github.com/jcorbin/adoc/internal/filter"
	"github.com/jcorbin/adoc/internal/isotime"
	"github.com/jcorbin/adoc/internal/scanio"
)

// Stdout is the output file name used for standard output.
const Stdout = "<stdout>"

// Version is the markup language version implemented.
const Version = "8.6.7"

// Options control a translation.
type Options struct {
	// Backend and Doctype override the document's own choice when set.
	Backend string
	Doctype string

	// Attributes are name=value command line attributes; they override
	// document attribute entries unless the value ends with "@".
	Attributes []string

	// ConfFiles are loaded after the standard configuration files.
	ConfFiles []string

	// ConfDirs are searched for configuration files after the built-in
	// configuration, in order.
	ConfDirs []string

	// OutFile names the output file; "-" is standard output. When empty it
	// is derived from the input file name and the backend.
	OutFile string

	NoConf         bool
	NoHeaderFooter bool
	Safe           bool
	Verbose        bool
	DumpConf       bool

	// Filters names filters that are loaded even when marked not to be
	// autoloaded.
	Filters []string

	// Trace is called with each body element before it is translated.
	Trace func(Trace)

	Logger  *zerolog.Logger
	Now     func() time.Time
	Context context.Context
}

// Translation is the state of a single document translation. It is not safe
// for concurrent use; concurrent translations each use their own.
type Translation struct {
	// Attrs are the document attributes.
	Attrs *attrs.Store

	// Messages collects every warning, error and verbose message.
	Messages Messages

	opts Options
	ctx  context.Context
	log  zerolog.Logger
	conf *Config
	rdr  *scanio.CondReader
	out  *writer

	hasWarnings bool
	hasErrors   bool
	noLinenos   bool

	infile  string
	outfile string

	attrListRE  *regexp.Regexp
	attrEntryRE *regexp.Regexp
	shifted     map[*regexp.Regexp]*regexp.Regexp

	attrList     attrs.Map
	blockTitle   string
	entries      attrs.Map
	passthroughs []string
	callouts     calloutMap

	blockNames []string
	endTags    []endTag

	ids            map[string]bool
	sectionNumbers []int
	sectName       string
	title          *titleMatch
	level          int
	hasHeader      bool
	openLists      []*listState

	lexCursor scanio.Cursor
	lexElem   *Element
}

// endTag is the pending end tag of an open section.
type endTag struct {
	level int
	etag  []string
}

// New returns a translation configured by opts. Command line attributes are
// parsed here; configuration is loaded by Load.
func New(opts Options) (*Translation, error) {
	t := &Translation{
		Attrs:          attrs.NewStore(),
		opts:           opts,
		ctx:            opts.Context,
		log:            zerolog.Nop(),
		conf:           newConfig(),
		shifted:        make(map[*regexp.Regexp]*regexp.Regexp),
		attrList:       make(attrs.Map),
		entries:        make(attrs.Map),
		callouts:       newCalloutMap(),
		ids:            make(map[string]bool),
		sectionNumbers: make([]int, titleLevels),
	}
	if opts.Logger != nil {
		t.log = *opts.Logger
	}
	if t.ctx == nil {
		t.ctx = context.Background()
	}
	t.conf.dirs = append(t.conf.dirs, builtinConfDir())
	for _, dir := range opts.ConfDirs {
		t.conf.dirs = append(t.conf.dirs, osConfDir(dir))
	}
	for _, a := range opts.Attributes {
		ent, ok := attrs.ParseEntry(a, attrs.EntryOptions{AllowNameOnly: true})
		if !ok {
			return nil, &Error{Msg: fmt.Sprintf("illegal attribute option: %s", a)}
		}
		name := strings.ToLower(ent.Name)
		if ent.Value.Defined && strings.HasSuffix(ent.Value.Str, "@") {
			t.Attrs.Set(name, strings.TrimSuffix(ent.Value.Str, "@"))
			continue
		}
		t.conf.cmdAttrs[name] = ent.Value
	}
	return t, nil
}

// Translate translates the document read from r, named name, to w.
func Translate(opts Options, name string, r io.Reader, w io.Writer) (*Translation, error) {
	t, err := New(opts)
	if err != nil {
		return nil, err
	}
	if err := t.Load(name, r); err != nil {
		return t, err
	}
	return t, t.Run(w)
}

// OutFile returns the output file name, or Stdout.
func (t *Translation) OutFile() string { return t.outfile }

// Load loads the configuration, opens the document and parses its header.
// When r is nil the document is read from the named file, or standard input
// when infile is scanio.Stdin.
func (t *Translation) Load(infile string, r io.Reader) error {
	t.Attrs.Set("python", pythonPath())
	for _, name := range t.opts.Filters {
		if _, ok := t.findConfigDir("filters", name); ok {
			continue
		}
		if _, ok := filter.Builtin(name); !ok {
			return t.fatalf("missing filter: %s", name)
		}
	}
	switch t.opts.Doctype {
	case "", "article", "manpage", "book":
	default:
		return t.fatalf("illegal document type")
	}
	if err := t.updateAttributes(nil); err != nil {
		return err
	}

	stdin := infile == scanio.Stdin
	indir := filepath.Dir(infile)
	if !t.opts.NoConf {
		// first pass for attributes, so that they are available in the rest
		ok, err := t.loadFromDirs("asciidoc.conf", []string{"attributes"})
		if err != nil {
			return err
		}
		if !ok {
			return t.fatalf("configuration file asciidoc.conf missing")
		}
		if err := t.loadConfFiles([]string{"attributes"}); err != nil {
			return err
		}
		if _, err := t.loadFromDirs("asciidoc.conf", nil); err != nil {
			return err
		}
		if !stdin {
			if _, err := t.loadFile(osConfDir(indir), "asciidoc.conf", []string{"attributes", "titles", "specialcharacters"}, nil); err != nil {
				return err
			}
		}
	} else if err := t.loadConfFiles([]string{"attributes", "titles", "specialcharacters"}); err != nil {
		return err
	}
	if err := t.updateAttributes(nil); err != nil {
		return err
	}
	if r == nil && !stdin {
		if fi, err := os.Stat(infile); err != nil || !fi.Mode().IsRegular() {
			return t.fatalf("input file %s missing", infile)
		}
	}
	t.infile = infile
	if err := t.initAttrListPattern(); err != nil {
		return err
	}

	t.rdr = scanio.NewCondReader(readerEnv{t})
	t.rdr.TabSize = t.conf.tabSize
	if name := t.Attrs.Get("encoding"); name != "" && !strings.EqualFold(name, "utf-8") {
		enc, err := htmlindex.Get(name)
		if err != nil {
			return t.fatalf("unknown encoding: %s", name)
		}
		t.rdr.Encoding = enc
	}
	var err error
	if r != nil {
		err = t.rdr.OpenReader(infile, r)
	} else {
		err = t.rdr.Open(infile)
	}
	if err != nil {
		return t.fatal(err)
	}

	if err := t.parseHeader(t.opts.Doctype, t.opts.Backend); err != nil {
		return err
	}
	backend, doctype := t.Attrs.Get("backend"), t.Attrs.Get("doctype")
	t.Attrs.Set("doctype-"+doctype, "")
	t.setThemeAttributes()
	if !t.opts.NoConf {
		dir, ok, err := t.loadBackend(t.conf.dirs)
		if err != nil {
			return err
		}
		if !ok {
			return t.fatalf("missing backend conf file: %s.conf", backend)
		}
		t.Attrs.Set("backend-confdir", dir)
	}
	t.Attrs.Set("backend-"+backend, "")
	t.Attrs.Set(backend+"-"+doctype, "")

	var docConfFiles []string
	if !t.opts.NoConf {
		if err := t.loadFilters(t.conf.dirs); err != nil {
			return err
		}
		if err := t.loadLang(); err != nil {
			return err
		}
		if !stdin {
			local := []confDir{osConfDir(indir)}
			if _, err := t.loadFile(local[0], "asciidoc.conf", nil, nil); err != nil {
				return err
			}
			if _, _, err := t.loadBackend(local); err != nil {
				return err
			}
			if err := t.loadFilters(local); err != nil {
				return err
			}
			base := strings.TrimSuffix(infile, filepath.Ext(infile))
			for _, name := range []string{base + ".conf", base + "-" + backend + ".conf"} {
				if fi, err := os.Stat(name); err == nil && fi.Mode().IsRegular() {
					docConfFiles = append(docConfFiles, name)
				}
			}
			for _, name := range docConfFiles {
				if _, err := t.loadPath(name, nil, nil); err != nil {
					return err
				}
			}
		}
	}
	if err := t.loadConfFiles(nil); err != nil {
		return err
	}
	t.Attrs.Set("asciidoc-args", t.argsAttribute(docConfFiles))

	switch {
	case t.opts.OutFile == "-":
		t.outfile = Stdout
	case t.opts.OutFile != "":
		t.outfile = t.opts.OutFile
	case stdin:
		t.outfile = Stdout
	default:
		t.outfile = strings.TrimSuffix(infile, filepath.Ext(infile)) + "." + backend
		if sfx := t.conf.outfileSuffix; sfx != "" {
			t.outfile = strings.TrimSuffix(t.outfile, filepath.Ext(t.outfile)) + sfx
		}
	}

	// header entries override configuration attributes
	t.Attrs.Update(t.entries)
	if err := t.updateAttributes(nil); err != nil {
		return err
	}
	for _, name := range t.conf.sections.ExpandAll() {
		t.Warningf("missing section: [%s]%s", name, t.suggest(name))
	}
	if err := t.validateConfig(); err != nil {
		return err
	}
	// elements classified while parsing the header predate the full
	// configuration
	t.lexElem = nil
	if name := t.Attrs.Get("blockname"); name != "" {
		t.blockNames = append(t.blockNames, name)
	}
	return nil
}

// argsAttribute builds the asciidoc-args attribute: the options that would
// reproduce this translation's configuration files and attributes.
func (t *Translation) argsAttribute(docConfFiles []string) string {
	var sb strings.Builder
	for _, name := range append(append([]string(nil), docConfFiles...), t.opts.ConfFiles...) {
		fmt.Fprintf(&sb, ` --conf-file "%s"`, name)
	}
	a := t.entries.Clone()
	a.Update(t.conf.cmdAttrs)
	delete(a, "title")
	names := make([]string, 0, len(a))
	for k := range a {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if v := a[k].Str; v != "" {
			fmt.Fprintf(&sb, ` --attribute "%s=%s"`, k, v)
		} else {
			fmt.Fprintf(&sb, ` --attribute "%s"`, k)
		}
	}
	return sb.String()
}

// Run writes the translated document to w, or the effective configuration
// when dumping it.
func (t *Translation) Run(w io.Writer) error {
	if t.opts.DumpConf {
		return t.dumpConfig(w)
	}
	t.out = newWriter(w, t.newline())
	if t.rdr.BOM() {
		t.out.writeRaw("\ufeff")
	}
	err := t.translateDocument()
	if cerr := t.out.close(); err == nil && cerr != nil {
		err = t.fatal(cerr)
	}
	return err
}

func pythonPath() string {
	if p, err := exec.LookPath("python3"); err == nil {
		return p
	}
	return "python"
}

func (t *Translation) now() time.Time {
	if t.opts.Now != nil {
		return t.opts.Now()
	}
	return time.Now()
}

func (t *Translation) newline() string { return t.conf.newline }

func (t *Translation) tabSize() int { return t.conf.tabSize }

// updateAttributes sets the implicit attributes, then those of d followed by
// the command line attributes. File name attributes are derived last so that
// they cannot be overridden.
func (t *Translation) updateAttributes(d attrs.Map) error {
	now := isotime.At(t.now(), isotime.GrainSecond)
	t.Attrs.Set("localtime", now.Clock())
	t.Attrs.Set("localdate", now.Date())
	t.Attrs.Set("asciidoc-version", Version)
	t.Attrs.Set("asciidoc-confdir", BuiltinDir)
	if t.opts.Verbose {
		t.Attrs.Set("verbose", "")
	}
	if d != nil {
		t.Attrs.Update(d)
	}
	t.Attrs.Update(t.conf.cmdAttrs)
	if d != nil {
		if err := t.loadMiscellaneous(d); err != nil {
			return err
		}
	}
	if err := t.loadMiscellaneous(t.conf.cmdAttrs); err != nil {
		return err
	}
	t.Attrs.Set("newline", t.conf.newline)

	if t.infile != "" {
		mod := t.now()
		if t.infile != scanio.Stdin {
			if fi, err := os.Stat(t.infile); err == nil {
				mod = fi.ModTime()
			}
		}
		doc := isotime.At(mod, isotime.GrainSecond)
		t.Attrs.Set("doctime", doc.Clock())
		t.Attrs.Set("docdate", doc.Date())
		if t.infile != scanio.Stdin {
			dir := filepath.Dir(t.infile)
			t.Attrs.Set("infile", t.infile)
			t.Attrs.Set("indir", dir)
			t.Attrs.Set("docfile", t.infile)
			t.Attrs.Set("docdir", dir)
			t.Attrs.Set("docname", baseName(t.infile))
		}
	}
	if t.outfile != "" {
		ext := ""
		switch {
		case t.outfile != Stdout:
			t.Attrs.Set("outfile", t.outfile)
			t.Attrs.Set("outdir", filepath.Dir(t.outfile))
			if t.infile == scanio.Stdin {
				t.Attrs.Set("docname", baseName(t.outfile))
			}
			ext = strings.TrimPrefix(filepath.Ext(t.outfile), ".")
		case t.conf.outfileSuffix != "":
			ext = t.conf.outfileSuffix[1:]
		}
		if ext != "" {
			t.Attrs.Set("filetype", ext)
			t.Attrs.Set("filetype-"+ext, "")
		}
	}
	return nil
}

// baseName returns the file name without directory or extension.
func baseName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// setInput records the file being read.
func (t *Translation) setInput(name string) {
	if name == scanio.Stdin {
		return
	}
	t.Attrs.Set("infile", name)
	t.Attrs.Set("indir", filepath.Dir(name))
}

// isSafeFile returns true if name may be read in safe mode: it must lie
// within dir, the document directory when dir is empty, or a configuration
// directory.
func (t *Translation) isSafeFile(name, dir string) bool {
	if !t.opts.Safe {
		return true
	}
	if dir == "" {
		if t.infile == scanio.Stdin || t.infile == "" {
			return false
		}
		dir = filepath.Dir(t.infile)
	}
	if fileIn(name, dir) {
		return true
	}
	for _, d := range t.conf.dirs {
		if !d.builtin() && fileIn(name, d.path) {
			return true
		}
	}
	return false
}

// fileIn returns true if the file name resides within dir once symbolic
// links are resolved.
func fileIn(name, dir string) bool {
	resolve := func(p string) string {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		if real, err := filepath.EvalSymlinks(p); err == nil {
			p = real
		}
		return p
	}
	rel, err := filepath.Rel(resolve(dir), resolve(name))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// loadLang loads the language configuration named by the lang attribute,
// falling back to English.
func (t *Translation) loadLang() error {
	const dflt = "lang-en.conf"
	lang, hasLang := t.Attrs.Lookup("lang")
	name := dflt
	if lang != "" {
		name = "lang-" + lang + ".conf"
	}
	ok, err := t.loadFromDirs(name, nil)
	if err != nil {
		return err
	}
	if ok {
		if hasLang {
			t.Attrs.Set("lang", lang)
		}
		return nil
	}
	if name != dflt {
		t.Warningf("missing language conf file: %s", name)
		if ok, err = t.loadFromDirs(dflt, nil); err != nil {
			return err
		}
	}
	if !ok {
		return t.fatalf("missing conf file: %s", dflt)
	}
	return nil
}

// loadConfFiles loads the files named by the conf-files attribute, then those
// given in the options.
func (t *Translation) loadConfFiles(include []string) error {
	var files []string
	for _, name := range strings.Split(t.Attrs.Get("conf-files"), "|") {
		if name = strings.TrimSpace(name); name != "" {
			files = append(files, name)
		}
	}
	files = append(files, t.opts.ConfFiles...)
	for _, name := range files {
		if fi, err := os.Stat(name); err != nil || !fi.Mode().IsRegular() {
			return t.fatalf("missing configuration file: %s", name)
		}
		if _, err := t.loadPath(name, include, nil); err != nil {
			return err
		}
	}
	return nil
}

// setDeprecatedAttribute keeps a renamed attribute's old and new names in
// step.
func (t *Translation) setDeprecatedAttribute(old, renamed string) {
	if v, ok := t.Attrs.Lookup(renamed); ok {
		t.Attrs.Set(old, v)
	} else if v, ok := t.Attrs.Lookup(old); ok {
		t.Attrs.Set(renamed, v)
	}
}

// filterLines runs lines through a filter command after substituting dict
// into it. Built-in filters run in process when no filter file is found.
func (t *Translation) filterLines(cmd string, lines []string, dict attrs.Map) ([]string, error) {
	if strings.TrimSpace(cmd) == "" {
		return lines, nil
	}
	s, ok, err := t.SubsAttrsLine(cmd, dict)
	if err != nil {
		return nil, err
	}
	if !ok || s == "" {
		t.Errorf("undefined filter attribute in command: %s", cmd)
		return nil, nil
	}
	c := filter.Parse(s)

	var dirs []string
	if dir := t.Attrs.Get("docdir"); dir != "" {
		dirs = append(dirs, dir)
	}
	for _, d := range t.conf.dirs {
		if !d.builtin() {
			dirs = append(dirs, d.path)
		}
	}
	res := c.Resolve(dict.Get("style"), dirs, t.Attrs.Get("python"))
	if res.Missing != "" {
		t.Warningf("filter not found: %s", res.Missing)
	}
	if !res.Found {
		if fn, ok := filter.Builtin(c.Name); ok {
			t.Verbosef("filtering: %s (built-in)", c.Name)
			out, err := fn(c.Args(), lines, attrScope{t.Attrs, dict})
			if err != nil {
				t.Errorf("filter error: %s: %v", c.Name, err)
				return nil, nil
			}
			return out, nil
		}
	}

	t.Verbosef("filtering: %s", res.Line)
	out, status, err := filter.Run(t.ctx, res.Line, lines)
	if err != nil {
		return nil, t.fatal(err)
	}
	if status != 0 {
		t.Warningf("filter non-zero exit code: %s: returned %d", res.Line, status)
	}
	if len(lines) > 0 && len(out) == 0 {
		t.Warningf("no output from filter: %s", res.Line)
	}
	return out, nil
}
