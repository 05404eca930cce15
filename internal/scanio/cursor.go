package scanio

import (
	"fmt"
	"regexp"
)

// Cursor locates a line of input.
type Cursor struct {
	File string
	Line int
	Text string
}

// String returns the "file: line N" form used in messages.
func (c Cursor) String() string {
	if c.Line == 0 {
		return c.File
	}
	return fmt.Sprintf("%s: line %d", c.File, c.Line)
}

// SystemMacroPattern is the syntax of system block macros such as
// include::file[] and ifdef::name[].
const SystemMacroPattern = `^(?P<name>\\?[\p{L}\p{N}_][\p{L}\p{N}_-]*?)::(?P<target>\S*?)(\[(?P<attrlist>.*?)\])$`

var systemMacroRE = regexp.MustCompile(SystemMacroPattern)

// SystemMacro is a matched system macro line.
type SystemMacro struct {
	Name     string
	Target   string
	AttrList string
}

// MatchSystemMacro matches line against the system macro syntax, returning
// false unless it matches and its name fully matches the names pattern.
func MatchSystemMacro(names *regexp.Regexp, line string) (SystemMacro, bool) {
	m := systemMacroRE.FindStringSubmatch(line)
	if m == nil || !names.MatchString(m[1]) {
		return SystemMacro{}, false
	}
	return SystemMacro{Name: m[1], Target: m[2], AttrList: m[4]}, true
}

// MatchStart returns true if re matches at the start of s.
func MatchStart(re *regexp.Regexp, s string) bool {
	loc := re.FindStringIndex(s)
	return loc != nil && loc[0] == 0
}
