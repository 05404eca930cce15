// Package filter runs block content through filter commands: shell commands
// found on the filter search path, or one of the built-in filters that run in
// process.
package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// Command is a filter command line split into its command and the rest of
// the line.
type Command struct {
	Name string
	Tail string
}

var (
	doubleQuotedRE = regexp.MustCompile(`^"(?P<cmd>[^"]+)"(?P<tail>.*)$`)
	singleQuotedRE = regexp.MustCompile(`^'(?P<cmd>[^']+)'(?P<tail>.*)$`)
	unquotedRE     = regexp.MustCompile(`^(?P<cmd>\S+)(?P<tail>.*)$`)
)

// Parse splits a filter command line. The command may be double or single
// quoted when its path contains spaces.
func Parse(line string) Command {
	line = strings.TrimSpace(line)
	for _, re := range []*regexp.Regexp{doubleQuotedRE, singleQuotedRE, unquotedRE} {
		if m := re.FindStringSubmatch(line); m != nil {
			return Command{Name: strings.TrimSpace(m[1]), Tail: m[2]}
		}
	}
	return Command{}
}

// String returns the command line, quoting the command.
func (c Command) String() string { return `"` + c.Name + `"` + c.Tail }

// Args returns the white space separated words of the tail.
func (c Command) Args() []string { return strings.Fields(c.Tail) }

// Find searches dir for a filter file: first under filters/<style>/ when
// style is not empty, then under filters/.
func Find(style, dir, name string) (string, bool) {
	var cands []string
	if style != "" {
		cands = append(cands, filepath.Join(dir, "filters", style, name))
	}
	cands = append(cands, filepath.Join(dir, "filters", name))
	for _, p := range cands {
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

// Resolved is a command line ready to run.
type Resolved struct {
	Line  string
	Found bool

	// Missing names a command given with a directory that does not exist.
	Missing string
}

// Resolve locates the command of c. A bare command name is searched for in
// dirs, in order; a command with a directory must name an existing file.
// Found python and ruby scripts are run through their interpreter.
func (c Command) Resolve(style string, dirs []string, python string) Resolved {
	var (
		found string
		ok    bool
	)
	if filepath.Base(c.Name) == c.Name {
		for _, dir := range dirs {
			if dir == "" {
				continue
			}
			if found, ok = Find(style, dir, c.Name); ok {
				break
			}
		}
	} else if fi, err := os.Stat(c.Name); err == nil && fi.Mode().IsRegular() {
		found, ok = c.Name, true
	} else {
		return Resolved{Line: c.Name + c.Tail, Missing: c.Name}
	}
	if !ok {
		return Resolved{Line: c.Name + c.Tail}
	}
	line := Command{Name: found, Tail: c.Tail}.String()
	switch {
	case strings.HasSuffix(c.Name, ".py"):
		line = fmt.Sprintf(`"%s" %s`, python, line)
	case strings.HasSuffix(c.Name, ".rb"):
		line = "ruby " + line
	}
	return Resolved{Line: line, Found: true}
}

// Run runs a shell command line with the lines joined by newlines on its
// standard input. It returns the right trimmed output lines and the exit
// status; a command that cannot be started at all is an error.
func Run(ctx context.Context, line string, input []string) ([]string, int, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", line)
	cmd.Stdin = strings.NewReader(strings.Join(input, "\n"))
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = os.Stderr
	status := 0
	if err := cmd.Run(); err != nil {
		var ee *exec.ExitError
		if !errors.As(err, &ee) {
			return nil, 0, fmt.Errorf("filter error: %s: %w", line, err)
		}
		status = ee.ExitCode()
	}
	return OutputLines(out.String()), status, nil
}

// OutputLines splits filter output into right trimmed lines; a final newline
// does not start another line.
func OutputLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(strings.Replace(s, "\r\n", "\n", -1), "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	return lines
}
