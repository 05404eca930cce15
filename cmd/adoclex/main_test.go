package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDoc = `= Title

Para one.

* item
`

func TestCommand(t *testing.T) {
	for _, tc := range []struct {
		name   string
		args   []string
		expect []string
	}{
		{"plain", nil, []string{
			"1. <stdin>: line 3: paragraph (paradef-default)\n",
			"2. <stdin>: line 5: list (listdef-bulleted1)\n",
		}},
		{"verbose", []string{"-v"}, []string{
			"1. <stdin>: line 3: paragraph (paradef-default)\n   > Para one.\n",
			"   > * item\n",
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			cmd := newCommand(strings.NewReader(testDoc), &stdout, &stderr)
			cmd.SetArgs(tc.args)
			require.NoError(t, cmd.Execute(), "stderr: %s", stderr.String())
			for _, s := range tc.expect {
				assert.Contains(t, stdout.String(), s)
			}
		})
	}
}

func TestCommand_missing(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cmd := newCommand(strings.NewReader(""), &stdout, &stderr)
	cmd.SetArgs([]string{"does-not-exist.txt"})
	assert.Error(t, cmd.Execute())
	assert.Contains(t, stderr.String(), "input file does-not-exist.txt missing")
}
