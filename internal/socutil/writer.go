package socutil

import (
	"bytes"
	"io"
)

// WriteBuffer is a byte buffer in front of a destination writer, flushed
// according to its FlushPolicy:
//
//	var buf WriteBuffer
//	buf.To = w
//	for _, line := range lines {
//		buf.WriteString(line)
//		buf.WriteString("\n")
//		buf.MaybeFlush()
//	}
//	return buf.Flush()
type WriteBuffer struct {
	FlushPolicy
	To io.Writer
	bytes.Buffer
}

// FlushPolicy returns how many leading bytes of b MaybeFlush should write.
type FlushPolicy interface {
	ShouldFlush(b []byte) int
}

// FlushPolicyFunc adapts a function to FlushPolicy.
type FlushPolicyFunc func(b []byte) int

// ShouldFlush calls f.
func (f FlushPolicyFunc) ShouldFlush(b []byte) int { return f(b) }

// Flush writes all buffered bytes, regardless of policy.
func (buf *WriteBuffer) Flush() error {
	_, err := buf.WriteTo(buf.To)
	return err
}

// MaybeFlush writes the prefix chosen by the FlushPolicy, FlushLineChunks
// when nil, discarding what was written from the buffer.
func (buf *WriteBuffer) MaybeFlush() error {
	if buf.FlushPolicy == nil {
		buf.FlushPolicy = FlushPolicyFunc(FlushLineChunks)
	}
	b := buf.Bytes()
	if n := buf.ShouldFlush(b); n > 0 {
		m, err := buf.To.Write(b[:n])
		buf.Next(m)
		return err
	}
	return nil
}

// FlushLineChunks flushes through the last buffered newline.
func FlushLineChunks(b []byte) int {
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		return i + 1
	}
	return 0
}

// ErrWriter retains the first error returned by Writer, after which it
// writes nothing more.
type ErrWriter struct {
	io.Writer
	Err error
}

// Write passes through to Writer while Err is nil.
func (ew *ErrWriter) Write(p []byte) (n int, err error) {
	if ew.Err == nil {
		n, ew.Err = ew.Writer.Write(p)
	}
	return n, ew.Err
}

// PrefixWriter returns a writer that starts every line written through it
// with prefix. Closing it flushes any final partial line.
func PrefixWriter(prefix string, w io.Writer) io.WriteCloser {
	p := &prefixer{prefix: prefix}
	p.buf.To = w
	return p
}

type prefixer struct {
	buf    WriteBuffer
	prefix string
	mid    bool
}

func (p *prefixer) Close() error { return p.buf.Flush() }

func (p *prefixer) Write(b []byte) (n int, err error) {
	for len(b) > 0 {
		if !p.mid {
			p.buf.WriteString(p.prefix)
			p.mid = true
		}
		line := b
		if i := bytes.IndexByte(b, '\n'); i >= 0 {
			line = b[:i+1]
			p.mid = false
		}
		b = b[len(line):]
		m, _ := p.buf.Write(line)
		n += m
	}
	return n, p.buf.MaybeFlush()
}
