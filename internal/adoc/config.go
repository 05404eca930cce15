package adoc

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jcorbin/adoc/internal/attrs"
	"github.com/jcorbin/adoc/internal/conf"
	"github.com/jcorbin/adoc/internal/scanio"
)

//go:embed conf/*.conf
var builtinFS embed.FS

// BuiltinDir names the configuration directory compiled into the program. It
// is always searched first.
const BuiltinDir = "<builtin>"

// Substitution option names.
var (
	subsOptions = []string{
		"specialcharacters", "quotes", "specialwords", "replacements",
		"attributes", "macros", "callouts", "normal", "verbatim", "none",
		"replacements2", "replacements3",
	}
	defaultSubsNormal = []string{
		"specialcharacters", "quotes", "attributes", "specialwords",
		"replacements", "macros", "replacements2",
	}
	defaultSubsVerbatim = []string{"specialcharacters", "callouts"}
)

// confDir is a directory searched for configuration files.
type confDir struct {
	fsys fs.FS
	path string
}

func builtinConfDir() confDir {
	sub, err := fs.Sub(builtinFS, "conf")
	if err != nil {
		panic(err)
	}
	return confDir{fsys: sub, path: BuiltinDir}
}

func osConfDir(dir string) confDir {
	if dir == "" {
		dir = "."
	}
	return confDir{fsys: os.DirFS(dir), path: dir}
}

func (d confDir) builtin() bool {
	return d.path == BuiltinDir || strings.HasPrefix(d.path, BuiltinDir+"/")
}

func (d confDir) join(name string) string {
	if d.builtin() {
		return path.Join(d.path, name)
	}
	return filepath.Join(d.path, filepath.FromSlash(name))
}

func (d confDir) sub(name string) confDir {
	if d.fsys == nil {
		return d
	}
	sub, err := fs.Sub(d.fsys, name)
	if err != nil {
		return confDir{}
	}
	return confDir{fsys: sub, path: d.join(name)}
}

func (d confDir) stat(name string) (fs.FileInfo, bool) {
	if d.fsys == nil || !fs.ValidPath(name) {
		return nil, false
	}
	fi, err := fs.Stat(d.fsys, name)
	return fi, err == nil
}

func (d confDir) isFile(name string) bool {
	fi, ok := d.stat(name)
	return ok && fi.Mode().IsRegular()
}

func (d confDir) isDir(name string) bool {
	fi, ok := d.stat(name)
	return ok && fi.IsDir()
}

// realPath identifies a configuration file so that it is loaded only once.
func (d confDir) realPath(name string) string {
	p := d.join(name)
	if d.builtin() {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if real, err := filepath.EvalSymlinks(p); err == nil {
		p = real
	}
	return p
}

// tagPair is a [tags] entry.
type tagPair struct{ start, end string }

// patternEntry is one entry of an ordered configuration table.
type patternEntry struct {
	key   string
	re    *regexp.Regexp
	value string
}

// patternTable is an ordered configuration table; redefining a key
// replaces its entry in place.
type patternTable []patternEntry

func (pt patternTable) index(key string) int {
	for i, ent := range pt {
		if ent.key == key {
			return i
		}
	}
	return -1
}

func (pt patternTable) get(key string) (string, bool) {
	if i := pt.index(key); i >= 0 {
		return pt[i].value, true
	}
	return "", false
}

func (pt *patternTable) set(key string, re *regexp.Regexp, value string) {
	if i := pt.index(key); i >= 0 {
		(*pt)[i].re = re
		(*pt)[i].value = value
		return
	}
	*pt = append(*pt, patternEntry{key: key, re: re, value: value})
}

func (pt *patternTable) delete(key string) bool {
	i := pt.index(key)
	if i < 0 {
		return false
	}
	*pt = append((*pt)[:i:i], (*pt)[i+1:]...)
	return true
}

func (pt patternTable) toMap() attrs.Map {
	m := make(attrs.Map, len(pt))
	for _, ent := range pt {
		m.Set(ent.key, ent.value)
	}
	return m
}

// Config is the merged configuration of one translation: the raw sections
// of every loaded file, plus the typed tables parsed from them.
type Config struct {
	sections *conf.Sections
	dirs     []confDir
	loaded   map[string]bool
	fname    string

	confAttrs attrs.Map
	cmdAttrs  attrs.Map

	tabSize       int
	textWidth     int
	newline       string
	pageWidth     float64
	pageUnits     string
	outfileSuffix string
	subsNormal    []string
	subsVerbatim  []string

	tags            map[string]tagPair
	specialChars    patternTable
	specialWords    patternTable
	replacements    patternTable
	replacements2   patternTable
	replacements3   patternTable
	specialSections patternTable
	quotes          patternTable

	titles titleConf

	paragraphs   []*ParagraphDef
	lists        []*ListDef
	blocks       []*BlockDef
	legacyTables []*LegacyTableDef
	tables       []*TableDef
	macros       []*Macro

	listTags  map[string]listTags
	tableTags map[string]attrs.Map

	// combined delimiters, built by validation
	listDelims, blockDelims, tableDelims, legacyTableDelims *regexp.Regexp
	paraTerminators, listTerminators                        []*regexp.Regexp
}

func newConfig() *Config {
	return &Config{
		sections:     conf.NewSections(),
		loaded:       make(map[string]bool),
		confAttrs:    make(attrs.Map),
		cmdAttrs:     make(attrs.Map),
		tabSize:      8,
		textWidth:    70,
		newline:      "\r\n",
		subsNormal:   defaultSubsNormal,
		subsVerbatim: defaultSubsVerbatim,
		tags:         make(map[string]tagPair),
		titles:       newTitleConf(),
		macros:       []*Macro{newSystemMacro()},
		listTags:     make(map[string]listTags),
		tableTags:    make(map[string]attrs.Map),
	}
}

func (c *Config) replacementTable(name string) *patternTable {
	switch name {
	case "replacements2":
		return &c.replacements2
	case "replacements3":
		return &c.replacements3
	}
	return &c.replacements
}

// confEnv reads configuration files; they do not change the document input
// attributes.
type confEnv struct{ readerEnv }

func (confEnv) SetInput(string) {}

// loadFile loads the named configuration file from dir, returning false if
// it does not exist. Only the sections named in include, when given, are
// loaded, and the ones named in exclude are skipped.
func (t *Translation) loadFile(dir confDir, name string, include, exclude []string) (bool, error) {
	if !dir.isFile(name) {
		return false, nil
	}
	real := dir.realPath(name)
	if t.conf.loaded[real] {
		return true, nil
	}
	f, err := dir.fsys.Open(name)
	if err != nil {
		return false, t.fatal(err)
	}
	fname := dir.join(name)
	t.Verbosef("loading configuration: %s", fname)

	rdr := scanio.NewCondReader(confEnv{readerEnv{t}})
	if err := rdr.OpenReader(fname, f); err != nil {
		return false, t.fatal(err)
	}
	var lines []string
	for rdr.Scan() {
		lines = append(lines, rdr.Text())
	}
	if err := rdr.Err(); err != nil {
		return false, t.fatal(err)
	}

	secs := conf.Parse(lines)
	secs.Filter(include, exclude)
	t.conf.fname = fname
	dict := make(attrs.Map)
	if err := t.loadSections(secs, dict); err != nil {
		return false, err
	}
	if len(include) == 0 {
		t.conf.loaded[real] = true
	}
	return true, t.updateAttributes(dict)
}

// loadPath loads a configuration file named by an operating system path.
func (t *Translation) loadPath(name string, include, exclude []string) (bool, error) {
	return t.loadFile(osConfDir(filepath.Dir(name)), filepath.Base(name), include, exclude)
}

// loadFromDirs loads name from every configuration directory, returning
// false if it was found in none of them.
func (t *Translation) loadFromDirs(name string, include []string) (bool, error) {
	any := false
	for _, dir := range t.conf.dirs {
		ok, err := t.loadFile(dir, name, include, nil)
		if err != nil {
			return false, err
		}
		any = any || ok
	}
	return any, nil
}

// loadBackend loads <backend>.conf and <backend>-<doctype>.conf, first from
// the backends/<backend> subdirectories of dirs, then from dirs themselves.
// It returns the directory holding the backend file, if any.
func (t *Translation) loadBackend(dirs []confDir) (string, bool, error) {
	backend := t.Attrs.Get("backend")
	name := backend + ".conf"
	name2 := backend + "-" + t.Attrs.Get("doctype") + ".conf"
	var (
		found string
		ok    bool
	)
	try := func(dirs []confDir) error {
		for _, dir := range dirs {
			loaded, err := t.loadFile(dir, name, nil, nil)
			if err != nil {
				return err
			}
			if loaded {
				found, ok = dir.path, true
			}
			if _, err := t.loadFile(dir, name2, nil, nil); err != nil {
				return err
			}
		}
		return nil
	}
	subs := make([]confDir, 0, len(dirs))
	for _, dir := range dirs {
		subs = append(subs, dir.sub(path.Join("backends", backend)))
	}
	if err := try(subs); err != nil {
		return "", false, err
	}
	if !ok {
		if err := try(dirs); err != nil {
			return "", false, err
		}
	}
	return found, ok, nil
}

// loadFilters loads the .conf files under the filters directory of each of
// dirs. A filter directory containing a __noautoload__ file is skipped
// unless the filter was explicitly requested.
func (t *Translation) loadFilters(dirs []confDir) error {
	for _, dir := range dirs {
		if !dir.isDir("filters") {
			continue
		}
		var names []string
		err := fs.WalkDir(dir.fsys, "filters", func(p string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return err
			}
			entries, err := fs.ReadDir(dir.fsys, p)
			if err != nil {
				return err
			}
			parts := strings.Split(p, "/")
			requested := len(parts) > 1 && t.filterRequested(parts[1])
			var confs []string
			for _, ent := range entries {
				if ent.Name() == "__noautoload__" && !requested {
					return nil
				}
				if !ent.IsDir() && strings.HasSuffix(ent.Name(), ".conf") && len(ent.Name()) > len(".conf") {
					confs = append(confs, path.Join(p, ent.Name()))
				}
			}
			names = append(names, confs...)
			return nil
		})
		if err != nil {
			return t.fatal(err)
		}
		for _, name := range names {
			if _, err := t.loadFile(dir.sub(path.Dir(name)), path.Base(name), nil, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Translation) filterRequested(name string) bool {
	for _, f := range t.opts.Filters {
		if f == name {
			return true
		}
	}
	return false
}

// findConfigDir returns the first configuration directory containing the
// named subdirectory.
func (t *Translation) findConfigDir(elem ...string) (confDir, bool) {
	name := path.Join(elem...)
	for _, dir := range t.conf.dirs {
		if dir.isDir(name) {
			return dir.sub(name), true
		}
	}
	return confDir{}, false
}

func (t *Translation) setThemeAttributes() {
	theme := t.Attrs.Get("theme")
	if theme == "" || t.Attrs.Defined("themedir") {
		return
	}
	dir, ok := t.findConfigDir("themes", theme)
	if !ok {
		t.warningAt(scanio.Cursor{}, "missing theme: "+theme)
		return
	}
	t.Attrs.Set("themedir", dir.path)
	if t.Attrs.Defined("data-uri") && dir.isDir("icons") {
		t.Attrs.Set("iconsdir", dir.join("icons"))
	}
}

// expandTemplates expands template::[name] lines from the merged sections.
func (t *Translation) expandTemplates(lines []string) []string {
	lines, missing := t.conf.sections.ExpandTemplates(lines)
	for _, name := range missing {
		t.Warningf("missing section: [%s]%s", name, t.suggest(name))
	}
	return lines
}

// parseEntries parses the entries of a section after expanding templates.
func (t *Translation) parseEntries(lines []string, opts attrs.EntryOptions) ([]attrs.Entry, error) {
	ents, err := attrs.ParseEntries(t.expandTemplates(lines), opts)
	if err != nil {
		return nil, t.fatal(err)
	}
	return ents, nil
}

func (t *Translation) sectionEntries(secs *conf.Sections, name string, opts attrs.EntryOptions) ([]attrs.Entry, error) {
	lines, ok := secs.Get(name)
	if !ok {
		return nil, nil
	}
	return t.parseEntries(lines, opts)
}

var (
	defaultEntryOptions = attrs.EntryOptions{EscapeDelimiter: true}
	attrEntryOptions    = attrs.EntryOptions{Unquote: true, AllowNameOnly: true, EscapeDelimiter: true}
)

// loadSections merges the sections of one configuration file and parses
// the typed tables they define. Attributes from the [miscellaneous] and
// [attributes] sections are added to dict.
func (t *Translation) loadSections(secs *conf.Sections, dict attrs.Map) error {
	c := t.conf
	c.sections.Merge(secs)
	if err := t.parseTags(); err != nil {
		return err
	}

	d := make(attrs.Map)
	for _, name := range []string{"miscellaneous", "attributes"} {
		ents, err := t.sectionEntries(secs, name, attrEntryOptions)
		if err != nil {
			return err
		}
		for _, ent := range ents {
			d[ent.Name] = ent.Value
		}
	}
	for name, v := range d {
		if !attrs.ValidName(name) {
			return t.fatalf("illegal attribute name: %s", name)
		}
		c.confAttrs[name] = v
	}
	if dict != nil {
		dict.Update(d)
	}

	ents, err := t.sectionEntries(secs, "titles", defaultEntryOptions)
	if err != nil {
		return err
	}
	if err := t.loadTitles(ents); err != nil {
		return err
	}

	if ents, err = t.sectionEntries(secs, "specialcharacters", attrs.EntryOptions{}); err != nil {
		return err
	}
	for _, ent := range ents {
		c.specialChars.set(ent.Name, nil, ent.Value.Str)
	}

	if ents, err = t.sectionEntries(secs, "quotes", defaultEntryOptions); err != nil {
		return err
	}
	for _, ent := range ents {
		c.quotes.set(ent.Name, nil, ent.Value.Str)
	}

	if err := t.parseSpecialWords(secs); err != nil {
		return err
	}
	for _, name := range []string{"replacements", "replacements2", "replacements3"} {
		if err := t.parseReplacements(secs, name); err != nil {
			return err
		}
	}
	if err := t.parseSpecialSections(secs); err != nil {
		return err
	}

	if err := t.loadParagraphDefs(secs); err != nil {
		return err
	}
	if err := t.loadListDefs(secs); err != nil {
		return err
	}
	if err := t.loadBlockDefs(secs); err != nil {
		return err
	}
	if err := t.loadLegacyTableDefs(secs); err != nil {
		return err
	}
	if err := t.loadTableDefs(secs); err != nil {
		return err
	}
	if lines, ok := secs.Get("macros"); ok {
		return t.loadMacros(lines)
	}
	return nil
}

var tagRE = regexp.MustCompile(`^(?P<stag>.*)\|(?P<etag>.*)$`)

func (t *Translation) parseTags() error {
	lines, ok := t.conf.sections.Get("tags")
	if !ok {
		return nil
	}
	ents, err := t.parseEntries(lines, defaultEntryOptions)
	if err != nil {
		return err
	}
	for _, ent := range ents {
		switch {
		case !ent.Value.Defined:
			delete(t.conf.tags, ent.Name)
		case ent.Value.Str == "":
			t.conf.tags[ent.Name] = tagPair{}
		default:
			m := tagRE.FindStringSubmatch(ent.Value.Str)
			if m == nil {
				return t.fatalf("[tag] %s value malformed", ent.Name)
			}
			t.conf.tags[ent.Name] = tagPair{start: m[1], end: m[2]}
		}
	}
	return nil
}

// tag returns the named [tags] entry, substituting attributes from dict
// when it is not nil.
func (t *Translation) tag(name string, dict attrs.Map) (tagPair, error) {
	tp, ok := t.conf.tags[name]
	if !ok {
		return tagPair{}, t.fatalf("missing tag: %s", name)
	}
	if dict == nil {
		return tp, nil
	}
	var err error
	if tp.start != "" {
		if tp.start, _, err = t.SubsAttrsLine(tp.start, dict); err != nil {
			return tagPair{}, err
		}
	}
	if tp.end != "" {
		if tp.end, _, err = t.SubsAttrsLine(tp.end, dict); err != nil {
			return tagPair{}, err
		}
	}
	return tp, nil
}

// splitWordList splits a [specialwords] value into words; double quoted
// words may contain spaces.
func splitWordList(s string) []string {
	var words []string
	for _, field := range strings.Fields(s) {
		if len(words) > 0 {
			last := words[len(words)-1]
			if strings.HasPrefix(last, `"`) && (len(last) < 2 || !strings.HasSuffix(last, `"`)) {
				words[len(words)-1] = last + " " + field
				continue
			}
		}
		words = append(words, field)
	}
	return words
}

func (t *Translation) parseSpecialWords(secs *conf.Sections) error {
	lines, _ := secs.Get("specialwords")
	c := t.conf
	for _, line := range lines {
		if line == "" {
			continue
		}
		ent, ok := attrs.ParseEntry(line, defaultEntryOptions)
		if !ok {
			return t.fatalf("[specialwords] entry in %s is malformed: %s", c.fname, line)
		}
		if !attrs.ValidName(ent.Name) {
			return t.fatalf("[specialwords] name in %s is illegal: %s", c.fname, ent.Name)
		}
		for _, word := range splitWordList(ent.Value.Str) {
			word = attrs.StripQuotes(word)
			re, err := compilePattern(word)
			if err != nil {
				return t.fatalf("[specialwords] entry in %s is not a valid regular expression: %s", c.fname, word)
			}
			c.specialWords.set(word, re, ent.Name)
		}
	}
	return nil
}

func (t *Translation) parseReplacements(secs *conf.Sections, name string) error {
	ents, err := t.sectionEntries(secs, name, attrs.EntryOptions{Unquote: true, EscapeDelimiter: true})
	if err != nil {
		return err
	}
	table := t.conf.replacementTable(name)
	for _, ent := range ents {
		pat := attrs.StripQuotes(ent.Name)
		re, err := compilePattern(pat)
		if err != nil {
			return t.fatalf("[%s] entry in %s is not a valid regular expression: %s", name, t.conf.fname, pat)
		}
		if !ent.Value.Defined {
			table.delete(pat)
			continue
		}
		table.set(pat, re, attrs.StripQuotes(ent.Value.Str))
	}
	return nil
}

func (t *Translation) parseSpecialSections(secs *conf.Sections) error {
	ents, err := t.sectionEntries(secs, "specialsections", attrs.EntryOptions{Unquote: true, EscapeDelimiter: true})
	if err != nil {
		return err
	}
	for _, ent := range ents {
		pat := attrs.StripQuotes(ent.Name)
		re, err := compilePattern(pat)
		if err != nil {
			return t.fatalf("[specialsections] entry is not a valid regular expression: %s", pat)
		}
		if !ent.Value.Defined {
			t.conf.specialSections.delete(pat)
			continue
		}
		t.conf.specialSections.set(pat, re, ent.Value.Str)
	}
	return nil
}

// loadMiscellaneous sets the [miscellaneous] configuration entries found in
// d, which also carries plain attributes.
func (t *Translation) loadMiscellaneous(d attrs.Map) error {
	c := t.conf
	for _, name := range []string{"tabsize", "textwidth"} {
		v, ok := d.Lookup(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n <= 0 {
			return t.fatalf("illegal [miscellaneous] %s entry", name)
		}
		if name == "tabsize" {
			c.tabSize = n
		} else {
			c.textWidth = n
		}
	}
	if v, ok := d.Lookup("pagewidth"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return t.fatalf("illegal [miscellaneous] pagewidth entry")
		}
		c.pageWidth = f
	}
	if v, ok := d.Lookup("pageunits"); ok {
		c.pageUnits = v
	}
	if v, ok := d.Lookup("outfilesuffix"); ok {
		c.outfileSuffix = v
	}
	if v, ok := d.Lookup("newline"); ok {
		nl, err := strconv.Unquote(`"` + strings.Replace(v, `"`, `\"`, -1) + `"`)
		if err != nil {
			return t.fatalf("illegal [miscellaneous] newline entry")
		}
		c.newline = nl
	}
	for _, name := range []string{"subsnormal", "subsverbatim"} {
		v, ok := d.Lookup(name)
		if !ok {
			continue
		}
		opts, err := attrs.ParseOptions(v, subsOptions, fmt.Sprintf("illegal [miscellaneous] %s: %s", name, v))
		if err != nil {
			return t.fatal(err)
		}
		if name == "subsnormal" {
			c.subsNormal = opts
		} else {
			c.subsVerbatim = opts
		}
	}
	return nil
}

// subsSection returns the lines of the named section after attribute
// substitution with dict; a missing section is warned about.
func (t *Translation) subsSection(name string, dict attrs.Map) ([]string, error) {
	lines, ok := t.conf.sections.Get(name)
	if !ok {
		t.Warningf("missing section: [%s]%s", name, t.suggest(name))
		return nil, nil
	}
	return t.SubsAttrs(lines, dict)
}

var sectionTagRE = regexp.MustCompile(`^(.*)\|(.*)$`)

// sectionTags splits a template section at its first line containing "|",
// returning the substituted start and end tag lines. A title attribute in
// dict is not itself substituted again.
func (t *Translation) sectionTags(name string, dict attrs.Map, skipStart, skipEnd bool) (stag, etag []string, err error) {
	body, ok := t.conf.sections.Get(name)
	if !ok {
		t.Warningf("missing section: [%s]%s", name, t.suggest(name))
	}
	inStart := true
	for _, line := range body {
		if !inStart {
			etag = append(etag, line)
			continue
		}
		if m := sectionTagRE.FindStringSubmatch(line); m != nil {
			if m[1] != "" {
				stag = append(stag, m[1])
			}
			if m[2] != "" {
				etag = append(etag, m[2])
			}
			inStart = false
			continue
		}
		stag = append(stag, line)
	}

	if dict == nil {
		dict = make(attrs.Map)
	}
	title, hasTitle := dict.Lookup("title")
	hasTitle = hasTitle && title != ""
	if hasTitle {
		dict.Set("title", "\x00")
	}
	if !skipStart {
		if stag, err = t.SubsAttrs(stag, dict); err != nil {
			return nil, nil, err
		}
	}
	if !skipEnd {
		if etag, err = t.SubsAttrs(etag, dict); err != nil {
			return nil, nil, err
		}
	}
	if hasTitle {
		for i := range stag {
			stag[i] = strings.Replace(stag[i], "\x00", title, -1)
		}
		for i := range etag {
			etag[i] = strings.Replace(etag[i], "\x00", title, -1)
		}
		dict.Set("title", title)
	}
	return stag, etag, nil
}

// validateConfig checks the merged configuration for consistency once every
// file is loaded.
func (t *Translation) validateConfig() error {
	c := t.conf
	t.noLinenos = true
	defer func() { t.noLinenos = false }()

	if len(c.specialChars) == 0 || len(c.tags) == 0 || len(c.lists) == 0 {
		return t.fatalf("incomplete configuration files")
	}
	for _, ent := range c.specialChars {
		if utf8.RuneCountInString(ent.key) != 1 {
			return t.fatalf("[specialcharacters] must be a single character: %s", ent.key)
		}
	}
	for _, ent := range c.specialWords {
		if !attrs.ValidName(ent.value) {
			return t.fatalf("illegal special word name: %s", ent.value)
		}
		if !c.sections.Has(ent.value) {
			t.Warningf("missing special word macro: [%s]%s", ent.value, t.suggest(ent.value))
		}
	}
	for _, ent := range append(patternTable(nil), c.quotes...) {
		if ent.value == "" {
			c.quotes.delete(ent.key)
			continue
		}
		tag := strings.TrimPrefix(ent.value, "#")
		if _, ok := c.tags[tag]; !ok {
			t.Warningf("[quotes] %s missing tag definition: %s", ent.key, tag)
		}
		re, err := compileQuote(ent.key, strings.HasPrefix(ent.value, "#"))
		if err != nil {
			return t.fatalf("[quotes] %s: %v", ent.key, err)
		}
		c.quotes.set(ent.key, re, ent.value)
	}
	for _, ent := range append(patternTable(nil), c.specialSections...) {
		if ent.value == "" {
			c.specialSections.delete(ent.key)
		} else if !c.sections.Has(ent.value) {
			t.Warningf("missing specialsections section: [%s]%s", ent.value, t.suggest(ent.value))
		}
	}

	for _, validate := range []func() error{
		t.validateParagraphDefs,
		t.validateListDefs,
		t.validateBlockDefs,
		t.validateLegacyTableDefs,
		t.validateTableDefs,
		t.validateMacros,
	} {
		if err := validate(); err != nil {
			return err
		}
	}
	t.buildTerminators()
	return nil
}

// buildTerminators collects the patterns that end paragraphs and list item
// text.
func (t *Translation) buildTerminators() {
	c := t.conf
	common := []*regexp.Regexp{regexp.MustCompile(`^\+$|^$`)}
	if t.attrListRE != nil {
		common = append(common, t.attrListRE)
	}
	var blocks []*regexp.Regexp
	for _, re := range []*regexp.Regexp{c.blockDelims, c.tableDelims, c.legacyTableDelims} {
		if re != nil {
			blocks = append(blocks, re)
		}
	}
	c.paraTerminators = append(append([]*regexp.Regexp(nil), common...), blocks...)
	c.listTerminators = append([]*regexp.Regexp(nil), common...)
	if c.listDelims != nil {
		c.listTerminators = append(c.listTerminators, c.listDelims)
	}
	c.listTerminators = append(c.listTerminators, blocks...)
}

var namedGroupRE = regexp.MustCompile(`\?P<\S+?>`)

// joinPatterns joins patterns into one alternation, dropping their group
// names so that they do not clash.
func joinPatterns(pats []string) *regexp.Regexp {
	if len(pats) == 0 {
		return nil
	}
	parts := make([]string, len(pats))
	for i, pat := range pats {
		parts[i] = translatePattern(namedGroupRE.ReplaceAllString(pat, ""))
	}
	re, err := regexp.Compile("(" + strings.Join(parts, ")|(") + ")")
	if err != nil {
		return nil
	}
	return re
}

// dumpConfig writes the effective configuration in configuration file
// syntax.
func (t *Translation) dumpConfig(w io.Writer) error {
	c := t.conf
	nl := c.newline
	var sb strings.Builder
	fmt.Fprintf(&sb, "#%s", nl)
	fmt.Fprintf(&sb, "# Generated by adoc for %s %s.%s", t.Attrs.Get("backend"), t.Attrs.Get("doctype"), nl)
	fmt.Fprintf(&sb, "# %s%s", t.now().Format("Mon Jan _2 15:04:05 2006"), nl)
	fmt.Fprintf(&sb, "#%s", nl)

	section := func(name string, m attrs.Map) {
		fmt.Fprintf(&sb, "[%s]%s", name, nl)
		for _, k := range m.Names() {
			v := m[k]
			if !v.Defined {
				continue
			}
			s := attrs.FormatEntry(k, v.Str)
			if strings.HasPrefix(s, "#") {
				s = `\` + s
			}
			fmt.Fprintf(&sb, "%s%s", s, nl)
		}
		sb.WriteString(nl)
	}
	table := func(name string, pt patternTable) {
		fmt.Fprintf(&sb, "[%s]%s", name, nl)
		for _, ent := range pt {
			s := attrs.FormatEntry(ent.key, ent.value)
			if strings.HasPrefix(s, "#") {
				s = `\` + s
			}
			fmt.Fprintf(&sb, "%s%s", s, nl)
		}
		sb.WriteString(nl)
	}

	a := c.confAttrs.Clone()
	a.Update(c.cmdAttrs)
	section("attributes", a)
	section("titles", c.titles.dump)
	table("quotes", c.quotes)
	table("specialcharacters", c.specialChars)

	words := make(attrs.Map)
	for _, ent := range c.specialWords {
		if prior, ok := words.Lookup(ent.value); ok {
			words.Set(ent.value, fmt.Sprintf(`%s "%s"`, prior, ent.key))
		} else {
			words.Set(ent.value, fmt.Sprintf(`"%s"`, ent.key))
		}
	}
	section("specialwords", words)
	table("replacements", c.replacements)
	table("replacements2", c.replacements2)
	table("replacements3", c.replacements3)
	table("specialsections", c.specialSections)

	tags := make(attrs.Map, len(c.tags))
	for k, v := range c.tags {
		tags.Set(k, v.start+"|"+v.end)
	}
	section("tags", tags)

	for _, p := range c.paragraphs {
		p.dump(&sb, nl)
	}
	for _, l := range c.lists {
		l.dump(&sb, nl)
	}
	for _, b := range c.blocks {
		b.dump(&sb, nl)
	}
	for _, tb := range c.legacyTables {
		tb.dump(&sb, nl)
	}
	for _, tb := range c.tables {
		tb.dump(&sb, nl)
	}
	t.dumpMacros(&sb, nl)

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}
	rest := conf.NewSections()
	for _, name := range c.sections.Names() {
		if conf.IsEntriesSection(name) {
			continue
		}
		lines, _ := c.sections.Get(name)
		rest.Set(name, lines)
	}
	return rest.Dump(w, nl)
}
