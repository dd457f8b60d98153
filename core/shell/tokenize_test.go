package shell

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func lineOf(s string) []byte {
	l := NewLine(DefaultLineMax)
	for i := 0; i < len(s); i++ {
		l.Append(s[i])
	}
	return l.Bytes()
}

func TestTokenize(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected []string
	}{
		{"simple", "ls -l foo", []string{"ls", "-l", "foo"}},
		{"empty", "", []string{}},
		{"all spaces", "     ", []string{}},
		{"leading and trailing", "  echo  hi  ", []string{"echo", "hi"}},
		{"tabs", "cat\tfile", []string{"cat", "file"}},
		{"no quoting", `echo "a b"`, []string{"echo", `"a`, `b"`}},
		{"exactly max", "1 2 3 4 5 6 7 8 9", []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"}},
		{"over max", "1 2 3 4 5 6 7 8 9 10 11 12", []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			argv := Tokenize(lineOf(tc.input), DefaultMaxArgs)

			assert.Equal(t, len(tc.expected), argv.Len())
			assert.Equal(t, tc.expected, argv.Strings())
		})
	}
}

func TestTokenize_destructive(t *testing.T) {
	buf := lineOf("ls -l foo")

	argv := Tokenize(buf, DefaultMaxArgs)

	assert.Equal(t, 3, argv.Len())
	assert.Equal(t, "ls\x00-l\x00foo\x00", string(buf[:10]))
}

func TestTokenize_unterminatedSlice(t *testing.T) {
	argv := Tokenize([]byte("echo hi"), DefaultMaxArgs)

	assert.Equal(t, []string{"echo", "hi"}, argv.Strings())
}

func TestLine(t *testing.T) {
	l := NewLine(4)

	assert.True(t, l.Append('a'))
	assert.True(t, l.Append('b'))
	assert.True(t, l.Append('c'))
	assert.True(t, l.Full())
	assert.False(t, l.Append('d'))
	assert.Equal(t, "abc", l.String())
	assert.Equal(t, byte(0), l.Bytes()[3])

	clone := l.Clone()
	l.Reset()
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, []byte{0, 0, 0, 0}, l.Bytes())
	assert.Equal(t, "abc", clone.String())
}

func TestLine_capacity(t *testing.T) {
	l := NewLine(DefaultLineMax)
	for _, c := range []byte(strings.Repeat("x", 2*DefaultLineMax)) {
		l.Append(c)
	}

	assert.Equal(t, DefaultLineMax-1, l.Len())
}
