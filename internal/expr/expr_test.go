package expr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval(t *testing.T) {
	for _, tc := range []struct {
		src    string
		expect Value
	}{
		{`1 + 2 * 3`, int64(7)},
		{`(1 + 2) * 3`, int64(9)},
		{`7 / 2`, int64(3)},
		{`-7 // 2`, int64(-4)},
		{`-7 % 3`, int64(2)},
		{`7.0 / 2`, 3.5},
		{`2 ** 10`, int64(1024)},
		{`"a" "b" + 'c'`, "abc"},
		{`'ab' * 2`, "abab"},
		{`"html" == "html"`, true},
		{`"html5" != "html5"`, false},
		{`1 < 2 <= 2`, true},
		{`3 > 2 > 2`, false},
		{`"x" in "xyz"`, true},
		{`"docbook" not in ["html", "xhtml"]`, true},
		{`None is None`, true},
		{`1 is not None`, true},
		{`not 0`, true},
		{`0 or "x"`, "x"},
		{`1 and ""`, ""},
		{`"a" if 0 else "b"`, "b"},
		{`len("hello")`, int64(5)},
		{`str(40 + 2)`, "42"},
		{`int("12") + 1`, int64(13)},
		{`float("1.5")`, 1.5},
		{`max(3, 9, 4)`, int64(9)},
		{`"Hello".lower()`, "hello"},
		{`"hello world".title()`, "Hello World"},
		{`"a,b".split(",")`, []Value{"a", "b"}},
		{`"-".join(["a", "b"])`, "a-b"},
		{`"abcdef"[1:3]`, "bc"},
		{`"abc"[-1]`, "c"},
		{`[1, 2][0]`, int64(1)},
		{`"%s-%d" % ["v", 2]`, "v-2"},
		{`True + 1`, int64(2)},
		{`0x10`, int64(16)},
		{`None`, nil},
	} {
		t.Run(tc.src, func(t *testing.T) {
			v, err := Eval(tc.src)
			require.NoError(t, err)
			assert.Equal(t, tc.expect, v)
		})
	}
}

func TestEval_errors(t *testing.T) {
	for _, src := range []string{
		``,
		`1 +`,
		`foo`,
		`foo(1)`,
		`1 / 0`,
		`"a" < 1`,
		`"abc".nope()`,
		`(1`,
		`1 2`,
		`!x`,
		`"%s" % ("tuples", "unsupported")`,
	} {
		t.Run(src, func(t *testing.T) {
			_, err := Eval(src)
			assert.Error(t, err)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "True", Format(true))
	assert.Equal(t, "None", Format(nil))
	assert.Equal(t, "2.0", Format(2.0))
	assert.Equal(t, "0.1", Format(0.1))
	assert.Equal(t, "['a', 1]", Format([]Value{"a", int64(1)}))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy([]Value{}))
	assert.True(t, Truthy("0"))
}

func ExampleParse() {
	node, err := Parse(`"{backend}" == "html" and not 1 > 2`)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(node)
	// Output:
	// BinaryOp(Compare(Literal('{backend}') == Literal('html')) and UnaryOp(not Compare(Literal(1) > Literal(2))))
}
