package adoc

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jcorbin/adoc/internal/attrs"
	"github.com/jcorbin/adoc/internal/expr"
	"github.com/jcorbin/adoc/internal/scanio"
)

var (
	systemActions = map[string]bool{
		"eval": true, "eval3": true,
		"sys": true, "sys2": true, "sys3": true,
		"include": true, "include1": true,
		"counter": true, "counter2": true,
		"set": true, "set2": true,
		"template": true,
	}

	actionArgsRE = regexp.MustCompile(`(?s)^(?P<attr>[^:]*?)(:(?P<value>.*))?$`)
	digitsRE     = regexp.MustCompile(`^\d+$`)
)

// systemBlockMacro runs an eval::[], sys::[] or sys2::[] block macro line
// for the reader.
func (t *Translation) systemBlockMacro(action, args string) (string, bool, error) {
	return t.system(action, args, true, nil)
}

// system evaluates a system attribute reference {action:args}, or a system
// block macro action::[args] when isMacro is set. It returns false when the
// result is undefined, which drops the line containing the reference. The
// counter and set actions update dict as well as the document attributes.
func (t *Translation) system(action, args string, isMacro bool, dict attrs.Map) (string, bool, error) {
	syntax := fmt.Sprintf("{%s:%s}", action, args)
	sep := t.newline()
	if isMacro {
		syntax = fmt.Sprintf("%s::[%s]", action, args)
		sep = "\n"
	}
	if !systemActions[action] {
		if isMacro {
			t.Warningf("illegal system macro name: %s", action)
		} else {
			t.Warningf("illegal system attribute name: %s", action)
		}
		return "", false, nil
	}
	if isMacro {
		s, ok, err := t.SubsAttrsLine(args, nil)
		if err != nil {
			return "", false, err
		}
		if !ok {
			t.Warningf("skipped %s: undefined attribute in: %s", action, args)
			return "", false, nil
		}
		args = s
	}
	if action != "include1" {
		t.Verbosef("evaluating: %s", syntax)
	}
	if t.opts.Safe && action != "include" && action != "include1" {
		t.Unsafef("%s", syntax)
		return "", false, nil
	}

	var (
		result string
		ok     bool
		err    error
	)
	switch action {
	case "eval", "eval3":
		result, ok = t.evalAction(syntax, args)
	case "sys", "sys2", "sys3":
		result, ok, err = t.sysAction(syntax, action, args, sep)
	case "counter", "counter2":
		result, ok = t.counterAction(syntax, args, dict)
		if ok && action == "counter2" {
			result = ""
		}
	case "set", "set2":
		result, ok = t.setAction(syntax, action, args, dict)
	case "include":
		result, ok, err = t.includeAction(syntax, args, sep)
	case "include1":
		var lines []string
		if t.rdr != nil {
			lines, _ = t.rdr.Include1(args)
		}
		result, ok = strings.Join(lines, sep), true
	case "template":
		result, ok, err = t.templateAction(syntax, args)
	}
	if err != nil {
		return "", false, err
	}
	if ok && result != "" && (action == "eval3" || action == "sys3") {
		result = t.pushPassthrough(result)
	}
	return result, ok, nil
}

func (t *Translation) evalAction(syntax, src string) (string, bool) {
	v, err := expr.Eval(src)
	if err != nil {
		t.Warningf("%s: evaluation error", syntax)
		return "", false
	}
	switch x := v.(type) {
	case nil:
		return "", false
	case bool:
		return "", x
	}
	return expr.Format(v), true
}

// evalCond evaluates an ifeval condition.
func (t *Translation) evalCond(src string) (bool, error) {
	v, err := expr.Eval(src)
	if err != nil {
		return false, err
	}
	return expr.Truthy(v), nil
}

func (t *Translation) sysAction(syntax, action, cmd, sep string) (string, bool, error) {
	tmp, err := os.CreateTemp("", "adoc-sys-*")
	if err != nil {
		return "", false, t.fatalf("%s: temp file create error: %v", syntax, err)
	}
	name := tmp.Name()
	tmp.Close()
	defer os.Remove(name)

	cmd += fmt.Sprintf(` > "%s"`, name)
	if action == "sys2" {
		cmd += " 2>&1"
	}
	t.Verbosef("shelling: %s", cmd)
	sh := exec.Command("sh", "-c", cmd)
	sh.Stdin = nil
	sh.Stderr = os.Stderr
	if err := sh.Run(); err != nil {
		t.Warningf("%s: non-zero exit status", syntax)
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return "", false, t.fatalf("%s: temp file read error", syntax)
	}
	return strings.Join(splitLines(string(data)), sep), true, nil
}

// splitLines splits text into right trimmed lines; a final newline does not
// start another line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	return lines
}

func (t *Translation) counterAction(syntax, args string, dict attrs.Map) (string, bool) {
	m := actionArgsRE.FindStringSubmatch(args)
	name := group(actionArgsRE, m, "attr")
	seed := group(actionArgsRE, m, "value")
	if seed != "" && !digitsRE.MatchString(seed) && utf8.RuneCountInString(seed) > 1 {
		t.Warningf("%s: illegal counter seed: %s", syntax, seed)
		return "", false
	}
	if !attrs.ValidName(name) {
		t.Warningf("%s: illegal attribute name", syntax)
		return "", false
	}

	var result string
	switch value := t.Attrs.Get(name); {
	case value == "":
		result = seed
		if result == "" {
			result = "1"
		}
	case digitsRE.MatchString(value):
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			t.Warningf("%s: evaluation error: %s+1", syntax, value)
			return "", false
		}
		result = strconv.FormatInt(n+1, 10)
	case utf8.RuneCountInString(value) > 1:
		t.Warningf("%s: illegal counter value: %s", syntax, value)
		return "", false
	default:
		r, _ := utf8.DecodeRuneInString(value)
		result = string(r + 1)
	}
	t.Attrs.Set(name, result)
	if dict != nil {
		dict.Set(name, result)
	}
	return result, true
}

func (t *Translation) setAction(syntax, action, args string, dict attrs.Map) (string, bool) {
	m := actionArgsRE.FindStringSubmatch(args)
	name := group(actionArgsRE, m, "attr")
	value := attrs.Def(group(actionArgsRE, m, "value"))
	if strings.HasSuffix(name, "!") {
		name = name[:len(name)-1]
		value = attrs.Undef
	}
	if !attrs.ValidName(name) {
		t.Warningf("%s: illegal attribute name", syntax)
	} else {
		if dict != nil {
			dict[name] = value
		}
		if action != "set2" {
			t.Attrs.SetValue(name, value)
		}
	}
	return "", value.Defined
}

func (t *Translation) includeAction(syntax, fname, sep string) (string, bool, error) {
	if _, err := os.Stat(fname); err != nil {
		t.Warningf("%s: file does not exist", syntax)
		return "", false, nil
	}
	if !t.isSafeFile(fname, "") {
		t.Unsafef("%s", syntax)
		return "", false, nil
	}
	data, err := os.ReadFile(fname)
	if err != nil {
		return "", false, t.fatal(err)
	}
	lines := splitLines(string(data))
	if len(lines) == 0 {
		return "", true, nil
	}
	lines, err = t.SubsAttrs(lines, nil)
	if err != nil {
		return "", false, err
	}
	text := strings.Join(lines, sep)
	if n := t.tabSize(); n > 0 {
		text = scanio.ExpandTabs(text, n)
	} else {
		text = strings.Replace(text, "\t", "", -1)
	}
	return text, true, nil
}

func (t *Translation) templateAction(syntax, name string) (string, bool, error) {
	body, ok := t.conf.sections.Get(name)
	if !ok {
		t.Warningf("%s: template does not exist", syntax)
		return "", false, nil
	}
	lines, err := t.SubsAttrs(body, nil)
	if err != nil {
		return "", false, err
	}
	return strings.Join(lines, "\n"), true, nil
}
