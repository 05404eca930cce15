package adoc

import (
	"io"
	"strings"

	"github.com/jcorbin/adoc/internal/attrs"
	"github.com/jcorbin/adoc/internal/socutil"
)

// writer is the output line sink of a translation. Lines are buffered and
// flushed in line chunks; the first write error is retained and stops
// further output.
type writer struct {
	ew       socutil.ErrWriter
	buf      socutil.WriteBuffer
	newline  string
	linesOut int
}

func newWriter(w io.Writer, newline string) *writer {
	wr := &writer{newline: newline}
	wr.ew.Writer = w
	wr.buf.To = &wr.ew
	return wr
}

func (w *writer) writeLine(line string) {
	w.buf.WriteString(line)
	w.buf.WriteString(w.newline)
	w.linesOut++
	w.buf.MaybeFlush()
}

// write writes each line followed by the newline.
func (w *writer) write(lines ...string) {
	for _, line := range lines {
		w.writeLine(line)
	}
}

// writeRaw writes bytes that are not lines, such as a byte order mark.
func (w *writer) writeRaw(s string) { w.buf.WriteString(s) }

// close flushes buffered output, returning the first write error.
func (w *writer) close() error {
	if err := w.buf.Flush(); err != nil && w.ew.Err == nil {
		return err
	}
	return w.ew.Err
}

// writeTag writes content dovetailed between the parts of a start|end tag,
// after substituting the content with subs and the tag with dict.
func (t *Translation) writeTag(tag string, content []string, subs []string, dict attrs.Map) error {
	if subs == nil {
		subs = t.conf.subsNormal
	}
	stag, etag, err := t.subsTag(tag, dict)
	if err != nil {
		return err
	}
	content, err = t.lexSubs(content, subs)
	if err != nil {
		return err
	}
	t.out.write(dovetailTags(stag, content, etag)...)
	return nil
}

// subsTag substitutes attributes in a start|end tag and splits it. Either
// result is nil when the tag does not have that part.
func (t *Translation) subsTag(tag string, dict attrs.Map) (stag, etag []string, err error) {
	if tag == "" {
		return nil, nil, nil
	}
	s, ok, err := t.SubsAttrsLine(tag, dict)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		t.Warningf("tag '%s' dropped: contains undefined attribute", tag)
		return nil, nil, nil
	}
	switch parts := strings.Split(s, "|"); len(parts) {
	case 1:
		return parts[:1], nil, nil
	case 2:
		return parts[:1], parts[1:], nil
	default:
		return nil, nil, t.fatalf("malformed tag: %s", tag)
	}
}

// stripList removes empty lines from both ends of lines.
func stripList(lines []string) []string {
	i, j := 0, len(lines)
	for i < j && lines[i] == "" {
		i++
	}
	for j > i && lines[j-1] == "" {
		j--
	}
	return lines[i:j]
}

// dovetail appends b to a, joining the last line of a with the first line
// of b.
func dovetail(a, b []string) []string {
	a, b = stripList(a), stripList(b)
	if len(a) == 0 || len(b) == 0 {
		return append(append([]string(nil), a...), b...)
	}
	result := append([]string(nil), a[:len(a)-1]...)
	result = append(result, a[len(a)-1]+b[0])
	return append(result, b[1:]...)
}

// dovetailTags joins the start tag to the first content line and the end
// tag to the last, so that verbatim content gains no extra line breaks.
func dovetailTags(stag, content, etag []string) []string {
	return dovetail(dovetail(stag, content), etag)
}
