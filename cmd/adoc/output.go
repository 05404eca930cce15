package main

import (
	"bytes"
	"errors"
	"io"

	"github.com/google/renameio"
)

var errOutputClosed = errors.New("write to closed output")

// pendingOutput is a document output that only takes effect once closed.
// Cleanup discards anything not yet closed, so that a failed translation
// leaves no partial output file behind.
type pendingOutput interface {
	io.WriteCloser
	Cleanup() error
}

// createOutput starts a pending write of the named output file; the file is
// replaced atomically on Close.
func createOutput(name string) (pendingOutput, error) {
	pf, err := renameio.TempFile("", name)
	if err != nil {
		return nil, err
	}
	return &pendingFile{PendingFile: pf}, nil
}

type pendingFile struct {
	*renameio.PendingFile
	closed bool
}

func (pf *pendingFile) Close() error {
	if pf.closed {
		return nil
	}
	err := pf.CloseAtomicallyReplace()
	pf.closed = err == nil
	return err
}

func (pf *pendingFile) Cleanup() error {
	if pf.closed {
		return nil
	}
	pf.closed = true
	return pf.PendingFile.Cleanup()
}

// pendingBuffer collects output in memory, handing it to sink on Close.
// Documents bound for standard output are buffered so that concurrent
// translations do not interleave.
type pendingBuffer struct {
	buf    bytes.Buffer
	closed bool
	sink   func([]byte) error
}

func (pb *pendingBuffer) Write(p []byte) (int, error) {
	if pb.closed {
		return 0, errOutputClosed
	}
	return pb.buf.Write(p)
}

func (pb *pendingBuffer) WriteString(s string) (int, error) {
	if pb.closed {
		return 0, errOutputClosed
	}
	return pb.buf.WriteString(s)
}

func (pb *pendingBuffer) Close() error {
	if !pb.closed {
		pb.closed = true
		return pb.sink(pb.buf.Bytes())
	}
	return nil
}

func (pb *pendingBuffer) Cleanup() error {
	if !pb.closed {
		// discarded
		pb.closed = true
	}
	return nil
}
