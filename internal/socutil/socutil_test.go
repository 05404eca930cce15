package socutil

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingWriter struct {
	bytes.Buffer
	writes int
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	cw.writes++
	return cw.Buffer.Write(p)
}

func TestWriteBuffer(t *testing.T) {
	var (
		out countingWriter
		buf WriteBuffer
	)
	buf.To = &out

	buf.WriteString("partial")
	require.NoError(t, buf.MaybeFlush())
	assert.Equal(t, "", out.String(), "no complete line yet")

	buf.WriteString(" line\nnext")
	require.NoError(t, buf.MaybeFlush())
	assert.Equal(t, "partial line\n", out.String(), "flushed through the newline")
	assert.Equal(t, "next", buf.String(), "remainder buffered")

	require.NoError(t, buf.Flush())
	assert.Equal(t, "partial line\nnext", out.String())
	assert.Equal(t, 2, out.writes)
}

type failWriter struct{ n int }

var errFull = errors.New("full")

func (fw *failWriter) Write(p []byte) (int, error) {
	if fw.n == 0 {
		return 0, errFull
	}
	fw.n--
	return len(p), nil
}

func TestErrWriter(t *testing.T) {
	fw := &failWriter{n: 1}
	ew := ErrWriter{Writer: fw}

	n, err := ew.Write([]byte("ok"))
	assert.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = ew.Write([]byte("fails"))
	assert.Equal(t, errFull, err)

	fw.n = 10
	_, err = ew.Write([]byte("still fails"))
	assert.Equal(t, errFull, err, "first error is retained")
	assert.Equal(t, 10, fw.n, "no write after an error")
}

func TestFindWDFile(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0777))
	require.NoError(t, os.WriteFile(filepath.Join(root, "marker.yaml"), []byte("x: 1\n"), 0666))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(sub))
	t.Cleanup(func() { os.Chdir(wd) })

	info, path, err := FindWDFile("marker.yaml")
	require.NoError(t, err)
	if assert.NotNil(t, info) {
		assert.Equal(t, "marker.yaml", filepath.Base(path))
		assert.True(t, filepath.IsAbs(path))
	}

	info, _, err = FindWDFile("absent-file-name.yaml")
	assert.NoError(t, err)
	assert.Nil(t, info)
}

func TestPrefixWriter(t *testing.T) {
	var out bytes.Buffer
	pw := PrefixWriter("> ", &out)
	for _, s := range []string{"one\ntw", "o\n", "\nthree"} {
		_, err := pw.Write([]byte(s))
		require.NoError(t, err)
	}
	assert.Equal(t, "> one\n> two\n> \n", out.String(), "only whole lines before close")
	require.NoError(t, pw.Close())
	assert.Equal(t, "> one\n> two\n> \n> three", out.String())
}
