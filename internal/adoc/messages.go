package adoc

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog"

	"github.com/jcorbin/adoc/internal/scanio"
)

// Error is a fatal translation error. It stops the translation and is
// returned from Translate.
type Error struct {
	Cursor scanio.Cursor
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Cursor.File == "" {
		return msg
	}
	return fmt.Sprintf("%s: line %d: %s", filepath.Base(e.Cursor.File), e.Cursor.Line, msg)
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error { return e.Err }

// fatalf returns a fatal error positioned at the current reader cursor.
func (t *Translation) fatalf(format string, args ...interface{}) error {
	return &Error{Cursor: t.cursor(), Msg: fmt.Sprintf(format, args...)}
}

// fatal wraps err as a fatal error unless it already is one.
func (t *Translation) fatal(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	var se *scanio.Error
	if errors.As(err, &se) {
		return &Error{Cursor: se.Cursor, Err: se.Err}
	}
	return &Error{Cursor: t.cursor(), Err: err}
}

// Message kinds, used as message prefixes.
const (
	kindWarning    = "WARNING: "
	kindError      = "ERROR: "
	kindDeprecated = "DEPRECATED: "
)

// Messages records every message reported by a translation, formatted as
// "WARNING: file: line N: text".
type Messages []string

// String returns one message per line.
func (ms Messages) String() string { return strings.Join(ms, "\n") }

func (t *Translation) cursor() scanio.Cursor {
	if t.rdr == nil || t.noLinenos {
		return scanio.Cursor{}
	}
	return t.rdr.Cursor()
}

func (t *Translation) format(cur scanio.Cursor, prefix, msg string) string {
	if cur.File != "" && cur.Line > 0 {
		prefix += fmt.Sprintf("%s: line %d: ", filepath.Base(cur.File), cur.Line)
	}
	return prefix + msg
}

func (t *Translation) logEvent(ev *zerolog.Event, cur scanio.Cursor, msg string) {
	if cur.File != "" {
		ev = ev.Str("file", filepath.Base(cur.File)).Int("line", cur.Line)
	}
	ev.Msg(msg)
}

// Warningf reports a warning at the current cursor.
func (t *Translation) Warningf(format string, args ...interface{}) {
	t.warningAt(t.cursor(), fmt.Sprintf(format, args...))
}

func (t *Translation) warningAt(cur scanio.Cursor, msg string) {
	t.hasWarnings = true
	t.Messages = append(t.Messages, t.format(cur, kindWarning, msg))
	t.logEvent(t.log.Warn(), cur, msg)
}

// Errorf reports a local error at the current cursor. Translation
// continues, but the result is marked as failed.
func (t *Translation) Errorf(format string, args ...interface{}) {
	t.errorAt(t.cursor(), fmt.Sprintf(format, args...))
}

func (t *Translation) errorAt(cur scanio.Cursor, msg string) {
	t.hasErrors = true
	t.Messages = append(t.Messages, t.format(cur, kindError, msg))
	t.logEvent(t.log.Error(), cur, msg)
}

// Unsafef reports an action refused in safe mode as a local error.
func (t *Translation) Unsafef(format string, args ...interface{}) {
	t.errorAt(t.cursor(), "unsafe: "+fmt.Sprintf(format, args...))
}

// Deprecatedf reports use of deprecated syntax.
func (t *Translation) Deprecatedf(format string, args ...interface{}) {
	cur := t.cursor()
	msg := fmt.Sprintf(format, args...)
	t.Messages = append(t.Messages, t.format(cur, kindDeprecated, msg))
	t.logEvent(t.log.Warn().Bool("deprecated", true), cur, msg)
}

// Verbosef reports progress when verbose output is enabled.
func (t *Translation) Verbosef(format string, args ...interface{}) {
	if !t.opts.Verbose {
		return
	}
	cur := t.cursor()
	msg := fmt.Sprintf(format, args...)
	t.Messages = append(t.Messages, t.format(cur, "", msg))
	t.logEvent(t.log.Info(), cur, msg)
}

// HasErrors returns true if a local error was reported.
func (t *Translation) HasErrors() bool { return t.hasErrors }

// HasWarnings returns true if a warning was reported.
func (t *Translation) HasWarnings() bool { return t.hasWarnings }

// suggest returns a " (did you mean [x]?)" hint naming the configuration
// section closest to name, or the empty string.
func (t *Translation) suggest(name string) string {
	if t.conf == nil {
		return ""
	}
	ranks := fuzzy.RankFindFold(name, t.conf.sections.Names())
	if len(ranks) == 0 {
		// fall back to sections sharing the name's suffix
		if i := strings.IndexByte(name, '-'); i > 0 {
			ranks = fuzzy.RankFindFold(name[i:], t.conf.sections.Names())
		}
	}
	if len(ranks) == 0 {
		return ""
	}
	best := ranks[0]
	for _, r := range ranks[1:] {
		if r.Distance < best.Distance {
			best = r
		}
	}
	return fmt.Sprintf(" (did you mean [%s]?)", best.Target)
}

// readerEnv adapts a Translation to the scanio.Env the readers report to.
type readerEnv struct{ t *Translation }

func (env readerEnv) Lookup(name string) (string, bool) { return env.t.Attrs.Lookup(name) }

func (env readerEnv) SubsAttrs(line string) (string, bool, error) {
	return env.t.SubsAttrsLine(line, nil)
}

func (env readerEnv) SetInput(name string) { env.t.setInput(name) }

func (env readerEnv) IsSafeFile(path, dir string) bool { return env.t.isSafeFile(path, dir) }

func (env readerEnv) Safe() bool { return env.t.opts.Safe }

func (env readerEnv) Eval(src string) (bool, error) { return env.t.evalCond(src) }

func (env readerEnv) System(action, args string) (string, bool, error) {
	return env.t.systemBlockMacro(action, args)
}

func (env readerEnv) Warningf(cur scanio.Cursor, format string, args ...interface{}) {
	env.t.warningAt(cur, fmt.Sprintf(format, args...))
}

func (env readerEnv) Unsafef(cur scanio.Cursor, format string, args ...interface{}) {
	env.t.errorAt(cur, "unsafe: "+fmt.Sprintf(format, args...))
}

func (env readerEnv) Verbosef(cur scanio.Cursor, format string, args ...interface{}) {
	if env.t.opts.Verbose {
		msg := fmt.Sprintf(format, args...)
		env.t.Messages = append(env.t.Messages, env.t.format(cur, "", msg))
		env.t.logEvent(env.t.log.Info(), cur, msg)
	}
}
