package adoc

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jcorbin/adoc/internal/attrs"
	"github.com/jcorbin/adoc/internal/conf"
	"github.com/jcorbin/adoc/internal/table"
)

// Definition is one of the block definitions loaded from configuration:
// *ParagraphDef, *ListDef, *BlockDef, *TableDef or *LegacyTableDef.
type Definition interface {
	def() *blockDef
}

// blockDef holds the parameters shared by every block definition.
type blockDef struct {
	name      string
	delimiter string
	delimRE   *regexp.Regexp
	template  string
	options   []string
	presubs   []string
	postsubs  []string
	filter    string
	posattrs  []string
	style     string

	// styles maps a style name to its parameters and attributes; styleNames
	// keeps their definition order.
	styles     map[string]attrs.Map
	styleNames []string

	// extra holds the entries specific to a definition type.
	extra attrs.Map
}

func (b *blockDef) def() *blockDef { return b }

// Name returns the definition's configuration section name.
func (b *blockDef) Name() string { return b.name }

// shortName returns the part of the section name after the first dash.
func (b *blockDef) shortName() string {
	if i := strings.IndexByte(b.name, '-'); i >= 0 {
		return b.name[i+1:]
	}
	return b.name
}

func (b *blockDef) hasOption(name string) bool { return hasOption(b.options, name) }

func hasOption(opts []string, name string) bool {
	for _, opt := range opts {
		if opt == name {
			return true
		}
	}
	return false
}

// ParagraphDef is a paradef-* definition.
type ParagraphDef struct{ blockDef }

// ListDef is a listdef-* definition.
type ListDef struct {
	blockDef
	listType string
	tags     string
}

// BlockDef is a blockdef-* delimited block definition.
type BlockDef struct{ blockDef }

// TableDef is a tabledef-* definition.
type TableDef struct {
	blockDef
	format    string
	tags      string
	separator string
}

// LegacyTableDef is an old_tabledef-* definition. Legacy tables are
// recognized by their ruler so that they can be skipped.
type LegacyTableDef struct {
	blockDef
	fillchar string
	format   string

	// underlineRE matches the closing ruler.
	underlineRE *regexp.Regexp
}

var (
	listTypes     = []string{"bulleted", "numbered", "labeled", "callout"}
	listTagNames  = []string{"list", "entry", "item", "text", "label", "term"}
	tableTagNames = []string{"colspec", "headrow", "footrow", "bodyrow", "headdata", "footdata", "bodydata", "paragraph"}
	legacyFormats = []string{"fixed", "csv", "dsv"}

	digitsNameRE  = regexp.MustCompile(`^\d+`)
	styleKeyRE    = regexp.MustCompile(`^(?P<style>.*)-style$`)
	templateRefRE = regexp.MustCompile(`\{.+\}`)
)

// optionList parses a comma separated option list. Unlike
// attrs.ParseOptions it returns a non-nil slice for an empty list, so that an
// explicitly empty list can be told apart from an unset one.
func optionList(s string, allowed []string, errmsg string) ([]string, error) {
	opts, err := attrs.ParseOptions(s, allowed, errmsg)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = []string{}
	}
	return opts, nil
}

// unionOptions merges opts into base, keeping base order.
func unionOptions(base, opts []string) []string {
	result := append([]string{}, base...)
	for _, opt := range opts {
		if !hasOption(result, opt) {
			result = append(result, opt)
		}
	}
	return result
}

// load updates the definition from the entries of its section. Entries that
// are not common parameters are kept in extra for the definition type.
func (b *blockDef) load(name string, ents []attrs.Entry) error {
	b.name = name
	if b.extra == nil {
		b.extra = make(attrs.Map)
	}
	if b.styles == nil {
		b.styles = make(map[string]attrs.Map)
	}
	for _, ent := range ents {
		k, v := ent.Name, ent.Value.Str
		malformed := fmt.Errorf("[%s] malformed entry %s: %s", name, k, v)
		if !digitsNameRE.MatchString(k) && !attrs.ValidName(k) {
			return malformed
		}
		switch k {
		case "template":
			if !attrs.ValidName(v) {
				return malformed
			}
			b.template = v
		case "filter":
			b.filter = v
		case "options":
			opts, err := optionList(v, nil, malformed.Error())
			if err != nil {
				return err
			}
			b.options = unionOptions(b.options, opts)
		case "subs", "presubs", "postsubs":
			opts, err := optionList(v, subsOptions, malformed.Error())
			if err != nil {
				return err
			}
			if k == "postsubs" {
				b.postsubs = opts
			} else {
				b.presubs = opts
			}
		case "delimiter":
			if v == "" {
				return malformed
			}
			re, err := compilePattern(v)
			if err != nil {
				return malformed
			}
			b.delimiter = v
			b.delimRE = re
		case "style":
			if !attrs.ValidName(v) {
				return malformed
			}
			b.style = v
		case "posattrs":
			opts, err := optionList(v, nil, malformed.Error())
			if err != nil {
				return err
			}
			b.posattrs = opts
		default:
			if m := styleKeyRE.FindStringSubmatch(k); m != nil {
				style := m[1]
				if v == "" || !attrs.ValidName(style) {
					return malformed
				}
				d := make(attrs.Map)
				if !attrs.ParseNamedAttributes(v, d) {
					return malformed
				}
				if sv, ok := d["subs"]; ok {
					d["presubs"] = sv
					delete(d, "subs")
				}
				if _, ok := b.styles[style]; !ok {
					b.styleNames = append(b.styleNames, style)
				}
				b.styles[style] = d
				continue
			}
			b.extra[k] = ent.Value
		}
	}
	return nil
}

// validateDef checks the definition once all configuration is merged.
func (t *Translation) validateDef(b *blockDef, isList bool) error {
	if b.delimiter == "" {
		return t.fatalf("[%s] missing delimiter", b.name)
	}
	if b.delimRE == nil {
		re, err := compilePattern(b.delimiter)
		if err != nil {
			return t.fatalf("[%s] %v", b.name, err)
		}
		b.delimRE = re
	}
	if b.style != "" {
		if !attrs.ValidName(b.style) {
			return t.fatalf("illegal style name: %s", b.style)
		}
		if _, ok := b.styles[b.style]; !ok && !isList {
			t.Warningf("[%s] '%s' style not in %v", b.name, b.style, b.styleNames)
		}
	}
	allStyleTemplates := true
	for _, name := range b.styleNames {
		tmpl := b.styles[name].Get("template")
		if tmpl == "" {
			allStyleTemplates = false
			continue
		}
		if !t.conf.sections.Has(tmpl) && !templateRefRE.MatchString(tmpl) {
			t.Warningf("missing template section: [%s]%s", tmpl, t.suggest(tmpl))
		}
	}
	if !b.hasOption("skip") {
		switch {
		case b.template != "":
			if !t.conf.sections.Has(b.template) && !templateRefRE.MatchString(b.template) {
				t.Warningf("missing template section: [%s]%s", b.template, t.suggest(b.template))
			}
		case !allStyleTemplates && !isList:
			t.Warningf("missing styles templates: [%s]", b.name)
		}
	}
	return nil
}

// dump writes the definition in configuration file syntax.
func (b *blockDef) dump(sb *strings.Builder, nl string) {
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(sb, format, args...)
		sb.WriteString(nl)
	}
	line("[%s]", b.name)
	line("delimiter=%s", b.delimiter)
	if b.template != "" {
		line("template=%s", b.template)
	}
	if len(b.options) > 0 {
		line("options=%s", strings.Join(b.options, ","))
	}
	if len(b.presubs) > 0 {
		if len(b.postsubs) > 0 {
			line("presubs=%s", strings.Join(b.presubs, ","))
		} else {
			line("subs=%s", strings.Join(b.presubs, ","))
		}
	}
	if len(b.postsubs) > 0 {
		line("postsubs=%s", strings.Join(b.postsubs, ","))
	}
	if b.filter != "" {
		line("filter=%s", b.filter)
	}
	if len(b.posattrs) > 0 {
		line("posattrs=%s", strings.Join(b.posattrs, ","))
	}
	if b.style != "" {
		line("style=%s", b.style)
	}
	for _, name := range b.styleNames {
		d := b.styles[name]
		var parts []string
		for _, k := range d.Names() {
			if d[k].Defined {
				parts = append(parts, fmt.Sprintf("%s=%q", k, d[k].Str))
			}
		}
		line("%s-style=%s", name, strings.Join(parts, ","))
	}
}

func (p *ParagraphDef) dump(sb *strings.Builder, nl string) {
	p.blockDef.dump(sb, nl)
	sb.WriteString(nl)
}

func (l *ListDef) dump(sb *strings.Builder, nl string) {
	l.blockDef.dump(sb, nl)
	sb.WriteString("type=" + l.listType + nl)
	sb.WriteString("tags=" + l.tags + nl)
	sb.WriteString(nl)
}

func (d *BlockDef) dump(sb *strings.Builder, nl string) {
	d.blockDef.dump(sb, nl)
	sb.WriteString(nl)
}

func (d *TableDef) dump(sb *strings.Builder, nl string) {
	d.blockDef.dump(sb, nl)
	sb.WriteString("format=" + d.format + nl)
	sb.WriteString(nl)
}

func (d *LegacyTableDef) dump(sb *strings.Builder, nl string) {
	d.blockDef.dump(sb, nl)
	sb.WriteString("fillchar=" + d.fillchar + nl)
	sb.WriteString("format=" + d.format + nl)
	sb.WriteString(nl)
}

// prefixedSections returns the names of the sections in secs that start with
// prefix and have a non-empty suffix.
func prefixedSections(secs *conf.Sections, prefix string) []string {
	var names []string
	for _, name := range secs.Names() {
		if strings.HasPrefix(name, prefix) && len(name) > len(prefix) {
			names = append(names, name)
		}
	}
	return names
}

// loadDefs loads every prefix section of secs, finding or creating the
// definition of each through lookup.
func (t *Translation) loadDefs(secs *conf.Sections, prefix string, lookup func(name string) *blockDef) error {
	for _, name := range prefixedSections(secs, prefix) {
		lines, _ := secs.Get(name)
		ents, err := t.parseEntries(lines, defaultEntryOptions)
		if err != nil {
			return err
		}
		if err := lookup(name).load(name, ents); err != nil {
			return t.fatal(err)
		}
	}
	return nil
}

func (t *Translation) loadParagraphDefs(secs *conf.Sections) error {
	c := t.conf
	return t.loadDefs(secs, "paradef-", func(name string) *blockDef {
		for _, p := range c.paragraphs {
			if p.name == name {
				return &p.blockDef
			}
		}
		p := &ParagraphDef{}
		c.paragraphs = append(c.paragraphs, p)
		return &p.blockDef
	})
}

func (t *Translation) loadListDefs(secs *conf.Sections) error {
	c := t.conf
	var loaded []*ListDef
	err := t.loadDefs(secs, "listdef-", func(name string) *blockDef {
		for _, l := range c.lists {
			if l.name == name {
				loaded = append(loaded, l)
				return &l.blockDef
			}
		}
		l := &ListDef{}
		c.lists = append(c.lists, l)
		loaded = append(loaded, l)
		return &l.blockDef
	})
	if err != nil {
		return err
	}
	for _, l := range loaded {
		if v, ok := l.extra.Lookup("type"); ok {
			l.listType = v
		}
		if v, ok := l.extra.Lookup("tags"); ok {
			l.tags = v
		}
	}

	for _, name := range prefixedSections(secs, "listtags-") {
		lines, _ := secs.Get(name)
		ents, err := t.parseEntries(lines, defaultEntryOptions)
		if err != nil {
			return err
		}
		key := strings.TrimPrefix(name, "listtags-")
		tags := c.listTags[key]
		if tags == nil {
			tags = make(listTags)
		}
		for _, ent := range ents {
			if !hasOption(listTagNames, ent.Name) {
				t.Warningf("[%s] contains illegal list tag: %s", name, ent.Name)
			}
			tags[ent.Name] = ent.Value.Str
		}
		c.listTags[key] = tags
	}
	return nil
}

// listTags is a listtags-* section: the tags for each list element.
type listTags map[string]string

func (t *Translation) loadBlockDefs(secs *conf.Sections) error {
	c := t.conf
	return t.loadDefs(secs, "blockdef-", func(name string) *blockDef {
		for _, b := range c.blocks {
			if b.name == name {
				return &b.blockDef
			}
		}
		b := &BlockDef{}
		c.blocks = append(c.blocks, b)
		return &b.blockDef
	})
}

func (t *Translation) loadTableDefs(secs *conf.Sections) error {
	c := t.conf
	var loaded []*TableDef
	err := t.loadDefs(secs, "tabledef-", func(name string) *blockDef {
		for _, tb := range c.tables {
			if tb.name == name {
				loaded = append(loaded, tb)
				return &tb.blockDef
			}
		}
		tb := &TableDef{}
		c.tables = append(c.tables, tb)
		loaded = append(loaded, tb)
		return &tb.blockDef
	})
	if err != nil {
		return err
	}
	for _, tb := range loaded {
		if v, ok := tb.extra.Lookup("format"); ok {
			tb.format = v
		}
		if v, ok := tb.extra.Lookup("tags"); ok {
			tb.tags = v
		}
		if v, ok := tb.extra.Lookup("separator"); ok {
			tb.separator = v
		}
	}

	for _, name := range prefixedSections(secs, "tabletags-") {
		lines, _ := secs.Get(name)
		ents, err := t.parseEntries(lines, defaultEntryOptions)
		if err != nil {
			return err
		}
		key := strings.TrimPrefix(name, "tabletags-")
		tags := c.tableTags[key]
		if tags == nil {
			tags = make(attrs.Map)
		}
		for _, ent := range ents {
			if !hasOption(tableTagNames, ent.Name) {
				t.Warningf("[%s] contains illegal table tag: %s", name, ent.Name)
			}
			tags[ent.Name] = ent.Value
		}
		c.tableTags[key] = tags
	}
	return nil
}

func (t *Translation) loadLegacyTableDefs(secs *conf.Sections) error {
	c := t.conf
	var loaded []*LegacyTableDef
	err := t.loadDefs(secs, "old_tabledef-", func(name string) *blockDef {
		for _, tb := range c.legacyTables {
			if tb.name == name {
				loaded = append(loaded, tb)
				return &tb.blockDef
			}
		}
		tb := &LegacyTableDef{}
		c.legacyTables = append(c.legacyTables, tb)
		loaded = append(loaded, tb)
		return &tb.blockDef
	})
	if err != nil {
		return err
	}
	for _, tb := range loaded {
		if v, ok := tb.extra.Lookup("fillchar"); ok {
			if len([]rune(v)) != 1 {
				return t.fatalf("malformed table fillchar: %s", v)
			}
			tb.fillchar = v
		}
		if v, ok := tb.extra.Lookup("format"); ok {
			if !hasOption(legacyFormats, v) {
				return t.fatalf("illegal table format: %s", v)
			}
			tb.format = v
		}
	}
	return nil
}

func (t *Translation) validateParagraphDefs() error {
	c := t.conf
	var dflt *ParagraphDef
	rest := c.paragraphs[:0:0]
	for _, p := range c.paragraphs {
		if err := t.validateDef(&p.blockDef, false); err != nil {
			return err
		}
		if p.name == "paradef-default" {
			dflt = p
		} else {
			rest = append(rest, p)
		}
	}
	if dflt == nil {
		return t.fatalf("missing section: [paradef-default]")
	}
	c.paragraphs = append(rest, dflt)
	return nil
}

func (t *Translation) validateListDefs() error {
	c := t.conf
	var delims []string
	for _, l := range c.lists {
		if !hasOption(listTypes, l.listType) {
			return t.fatalf("[%s] illegal type", l.name)
		}
		if err := t.validateDef(&l.blockDef, true); err != nil {
			return err
		}
		tags := []string{l.tags}
		for _, name := range l.styleNames {
			if v, ok := l.styles[name].Lookup("tags"); ok {
				tags = append(tags, v)
			}
		}
		for _, tag := range tags {
			if _, ok := c.listTags[tag]; !ok {
				return t.fatalf("[%s] missing section: [listtags-%s]", l.name, tag)
			}
		}
		delims = append(delims, l.delimiter)
	}
	c.listDelims = joinPatterns(delims)
	return nil
}

func (t *Translation) validateBlockDefs() error {
	c := t.conf
	var delims []string
	for _, b := range c.blocks {
		if err := t.validateDef(&b.blockDef, false); err != nil {
			return err
		}
		delims = append(delims, b.delimiter)
	}
	c.blockDelims = joinPatterns(delims)
	return nil
}

func (t *Translation) validateTableDefs() error {
	c := t.conf
	var dflt *TableDef
	for _, tb := range c.tables {
		if tb.name == "tabledef-default" {
			dflt = tb
			break
		}
	}
	if dflt == nil {
		return t.fatalf("missing section: [tabledef-default]")
	}
	if dflt.format == "" {
		dflt.format = table.PSV
	}
	for _, tb := range c.tables {
		if tb == dflt {
			continue
		}
		if tb.format == "" {
			tb.format = dflt.format
		}
		if tb.template == "" {
			tb.template = dflt.template
		}
	}

	dtags, ok := c.tableTags["default"]
	if !ok {
		return t.fatalf("missing section: [tabletags-default]")
	}
	for _, tag := range []string{"bodyrow", "bodydata", "paragraph"} {
		if !dtags.Has(tag) {
			return t.fatalf("missing [tabletags-default] entry: %s", tag)
		}
	}
	for name, tags := range c.tableTags {
		if name == "default" {
			continue
		}
		for _, tag := range tableTagNames {
			if !tags.Has(tag) {
				tags[tag] = dtags[tag]
			}
		}
	}
	for _, tags := range c.tableTags {
		for _, pair := range [][2]string{
			{"headrow", "bodyrow"}, {"footrow", "bodyrow"},
			{"headdata", "bodydata"}, {"footdata", "bodydata"},
		} {
			if tags.Get(pair[0]) == "" {
				tags[pair[0]] = tags[pair[1]]
			}
		}
	}

	var delims []string
	for _, tb := range c.tables {
		if err := t.validateDef(&tb.blockDef, false); err != nil {
			return err
		}
		if !table.ValidFormat(tb.format) {
			return t.fatalf("[%s] illegal format=%s", tb.name, tb.format)
		}
		if tb.tags == "" {
			tb.tags = "default"
		}
		tags := []string{tb.tags}
		for _, name := range tb.styleNames {
			if v, ok := tb.styles[name].Lookup("tags"); ok {
				tags = append(tags, v)
			}
		}
		for _, tag := range tags {
			if _, ok := c.tableTags[tag]; !ok {
				return t.fatalf("[%s] missing section: [tabletags-%s]", tb.name, tag)
			}
		}
		switch {
		case tb.separator != "":
			sep, err := strconv.Unquote(`"` + strings.Replace(tb.separator, `"`, `\"`, -1) + `"`)
			if err != nil {
				return t.fatalf("[%s] malformed entry separator: %s", tb.name, tb.separator)
			}
			tb.separator = sep
		case c.pageWidth == 0:
			t.Errorf("[%s] missing [miscellaneous] entry: pagewidth", tb.name)
		case c.pageUnits == "":
			t.Errorf("[%s] missing [miscellaneous] entry: pageunits", tb.name)
		}
		delims = append(delims, tb.delimiter)
	}
	c.tableDelims = joinPatterns(delims)
	return nil
}

const legacyColStop = "(`|'|\\.)"

func (t *Translation) validateLegacyTableDefs() error {
	c := t.conf
	if len(c.legacyTables) == 0 {
		return nil
	}
	var dflt *LegacyTableDef
	for _, tb := range c.legacyTables {
		if tb.name == "old_tabledef-default" {
			dflt = tb
			break
		}
	}
	if dflt == nil {
		return t.fatalf("missing section: [old_tabledef-default]")
	}
	if dflt.format == "" {
		dflt.format = "fixed"
	}
	var delims []string
	for _, tb := range c.legacyTables {
		if tb != dflt {
			if tb.fillchar == "" {
				tb.fillchar = dflt.fillchar
			}
			if tb.format == "" {
				tb.format = dflt.format
			}
			if tb.template == "" {
				tb.template = dflt.template
			}
		}
		if len([]rune(tb.fillchar)) != 1 {
			return t.fatalf("[%s] missing or illegal fillchar", tb.name)
		}
		fc := regexp.QuoteMeta(tb.fillchar)
		tb.delimiter = `^(` + legacyColStop + `(\d*|` + fc + `*))+` + fc + `+([\d\.]*)$`
		tb.delimRE = regexp.MustCompile(tb.delimiter)
		tb.underlineRE = regexp.MustCompile(`^` + fc + `{3,}$`)
		delims = append(delims, tb.delimiter)
	}
	c.legacyTableDelims = joinPatterns(delims)
	return nil
}

// blockParams are the processing parameters of one block instance,
// resolved from its definition, style and attribute list.
type blockParams struct {
	template  string
	options   []string
	presubs   []string
	postsubs  []string
	filter    string
	tags      string
	format    string
	separator string
}

func (p *blockParams) hasOption(name string) bool { return hasOption(p.options, name) }

// set applies a parameter value given as a string, reporting false if name
// is not one of the parameters in names.
func (p *blockParams) set(name, value string, names []string) (bool, error) {
	if !hasOption(names, name) {
		return false, nil
	}
	var err error
	switch name {
	case "template":
		p.template = value
	case "filter":
		p.filter = value
	case "options":
		p.options, err = optionList(value, nil, "illegal option")
	case "presubs":
		p.presubs, err = optionList(value, subsOptions, "illegal subs")
	case "postsubs":
		p.postsubs, err = optionList(value, subsOptions, "illegal subs")
	case "tags":
		p.tags = value
	case "format":
		p.format = value
	case "separator":
		p.separator = value
	}
	return true, err
}

// withStyle returns the parameters overridden by those of a style
// dictionary.
func (p blockParams) withStyle(style attrs.Map, names []string) blockParams {
	for _, k := range style.Names() {
		if v := style[k]; v.Defined {
			_, _ = p.set(k, v.Str, names)
		}
	}
	return p
}

var paramNames = []string{"template", "options", "presubs", "postsubs", "filter"}

// mergeAttributes combines a block's attribute list with its definition,
// returning the attributes used for template substitution and the block's
// processing parameters. Precedence, lowest first: the default style, the
// attribute list, the selected style's entries, named positional attributes,
// and finally parameters given in the attribute list.
func (t *Translation) mergeAttributes(b *blockDef, list attrs.Map, isList bool, extraParams ...string) (attrs.Map, blockParams, error) {
	names := append(append([]string(nil), paramNames...), extraParams...)
	a := make(attrs.Map)
	if b.style != "" {
		a.Set("style", b.style)
	}
	a.Update(list)

	p := blockParams{
		template:  b.template,
		options:   b.options,
		presubs:   b.presubs,
		postsubs:  b.postsubs,
		filter:    b.filter,
		tags:      b.extra.Get("tags"),
		format:    b.extra.Get("format"),
		separator: b.extra.Get("separator"),
	}
	if len(p.presubs) == 0 {
		p.presubs = t.conf.subsNormal
	}

	posattrs := b.posattrs
	style := ""
	if len(posattrs) > 0 && posattrs[0] == "style" {
		style = a.Get("1")
	}
	if style == "" {
		if v, ok := a.Lookup("style"); ok {
			style = v
		} else {
			style = b.style
		}
	}
	if style != "" {
		_, known := b.styles[style]
		switch {
		case !attrs.ValidName(style):
			t.Errorf("illegal style name: %s", style)
			style = b.style
		case !known && !isList:
			t.Warningf("missing style: [%s]: %s", b.name, style)
			style = b.style
		}
		if sd, ok := b.styles[style]; ok {
			a.Set("style", style)
			for _, k := range sd.Names() {
				v := sd[k]
				if k == "posattrs" {
					posattrs = strings.Split(v.Str, ",")
					continue
				}
				ok, err := p.set(k, v.Str, names)
				if err != nil {
					t.Errorf("malformed %s parameter: %s", k, v.Str)
				}
				if !ok && !a.Has(k) {
					a[k] = v
				}
			}
		}
	}

	for i, name := range posattrs {
		if v, ok := a[strconv.Itoa(i+1)]; ok {
			a[strings.TrimSpace(name)] = v
		}
	}

	keys := make([]string, 0, len(list))
	for k := range list {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := list[k].Str
		malformed := fmt.Sprintf("[%s] malformed entry %s: %s", b.name, k, v)
		if !digitsNameRE.MatchString(k) && !attrs.ValidName(k) {
			return nil, p, t.fatalf("%s", malformed)
		}
		switch k {
		case "template", "style":
			if !attrs.ValidName(v) {
				return nil, p, t.fatalf("%s", malformed)
			}
		case "options":
			opts, err := optionList(v, nil, malformed)
			if err != nil {
				return nil, p, t.fatal(err)
			}
			p.options = unionOptions(p.options, opts)
			continue
		case "subs":
			k = "presubs"
		}
		if _, err := p.set(k, v, names); err != nil {
			return nil, p, t.fatalf("%s", malformed)
		}
	}
	return a, p, nil
}

// pushBlockname sets the blockname attribute on block entry.
func (t *Translation) pushBlockname(b *blockDef, a attrs.Map, name string) {
	if name == "" {
		name = b.shortName()
		if v, ok := a.Lookup("style"); ok {
			name = v
		}
		name = strings.ToLower(name)
	}
	t.blockNames = append(t.blockNames, name)
	t.Attrs.Set("blockname", name)
}

// popBlockname restores the parent block's name on block exit.
func (t *Translation) popBlockname() {
	if n := len(t.blockNames); n > 0 {
		t.blockNames = t.blockNames[:n-1]
	}
	if n := len(t.blockNames); n > 0 {
		t.Attrs.Set("blockname", t.blockNames[n-1])
	} else {
		t.Attrs.Unset("blockname")
	}
}
