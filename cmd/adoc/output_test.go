package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_pendingFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "doc.html")
	outputTest{
		open: func() (pendingOutput, error) { return createOutput(filename) },
		expect: func(t *testing.T, content string, ok bool) {
			b, err := os.ReadFile(filename)
			if !ok {
				assert.True(t, os.IsNotExist(err), "expected no file, got %v", err)
			} else if assert.NoError(t, err, "unexpected read error") {
				assert.Equal(t, content, string(b), "expected file content")
			}
		},
	}.run(t)
}

func Test_pendingBuffer(t *testing.T) {
	var (
		cur     string
		defined bool
	)
	outputTest{
		open: func() (pendingOutput, error) {
			return &pendingBuffer{sink: func(b []byte) error {
				cur, defined = string(b), true
				return nil
			}}, nil
		},
		expect: func(t *testing.T, content string, ok bool) {
			assert.Equal(t, ok, defined, "expected defined")
			assert.Equal(t, content, cur, "expected content")
		},
	}.run(t)
}

type outputTest struct {
	open   func() (pendingOutput, error)
	expect func(t *testing.T, content string, ok bool)
}

func (ot outputTest) run(t *testing.T) {
	for _, step := range []struct {
		name string
		fn   func(t *testing.T)
	}{
		{"discarded", ot.writeWith("partial", false)},
		{"nothing yet", ot.expectWith("", false)},
		{"committed", ot.writeWith("actual", true)},
		{"read back", ot.expectWith("actual", true)},
		{"replaced", ot.writeWith("actually", true)},
		{"read back 2", ot.expectWith("actually", true)},
		{"discarded again", ot.writeWith("partial", false)},
		{"read back 3", ot.expectWith("actually", true)},
	} {
		if !t.Run(step.name, step.fn) {
			break
		}
	}
}

func (ot outputTest) writeWith(content string, commit bool) func(t *testing.T) {
	return func(t *testing.T) {
		w, err := ot.open()
		require.NoError(t, err, "must open for writing")
		defer func() {
			assert.NoError(t, w.Cleanup(), "cleanup should succeed")
		}()
		_, err = io.WriteString(w, content)
		require.NoError(t, err, "must write")
		if commit {
			assert.NoError(t, w.Close(), "must close")
			_, err := io.WriteString(w, "more")
			assert.Error(t, err, "write after close should fail")
		}
	}
}

func (ot outputTest) expectWith(content string, ok bool) func(t *testing.T) {
	return func(t *testing.T) {
		ot.expect(t, content, ok)
	}
}
