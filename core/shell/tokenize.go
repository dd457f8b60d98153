package shell

const (
	// DefaultLineMax is the capacity of the input buffer, including the
	// terminating NUL.
	DefaultLineMax = 100
	// DefaultMaxArgs bounds the argument vector to DefaultMaxArgs-1 entries.
	DefaultMaxArgs = 10
)

// Line is a fixed capacity input buffer. The byte after the last stored byte
// is always NUL.
type Line struct {
	buf []byte
	n   int
}

// NewLine creates a buffer holding up to capacity-1 bytes.
func NewLine(capacity int) *Line {
	if capacity < 1 {
		capacity = 1
	}
	return &Line{buf: make([]byte, capacity)}
}

// Reset zero fills the buffer.
func (l *Line) Reset() {
	for i := range l.buf {
		l.buf[i] = 0
	}
	l.n = 0
}

// Full reports whether another byte would overwrite the terminator.
func (l *Line) Full() bool {
	return l.n >= len(l.buf)-1
}

// Append stores c, returning false if the buffer is full.
func (l *Line) Append(c byte) bool {
	if l.Full() {
		return false
	}
	l.buf[l.n] = c
	l.n++
	return true
}

// Len returns the number of bytes stored.
func (l *Line) Len() int {
	return l.n
}

// Bytes returns the whole buffer, terminator included. Tokenize writes into it.
func (l *Line) Bytes() []byte {
	return l.buf
}

func (l *Line) String() string {
	return string(l.buf[:l.n])
}

// Clone returns a deep copy of the buffer.
func (l *Line) Clone() *Line {
	return &Line{buf: append([]byte(nil), l.buf...), n: l.n}
}

type span struct {
	start, end int
}

// ArgumentVector is a list of views into a tokenized line. It's only valid
// until the line is reset.
type ArgumentVector struct {
	line  []byte
	spans []span
}

// Len is the number of arguments.
func (v ArgumentVector) Len() int {
	return len(v.spans)
}

// Arg returns argument i, argument 0 is the command name.
func (v ArgumentVector) Arg(i int) string {
	s := v.spans[i]
	return string(v.line[s.start:s.end])
}

// Strings copies the arguments out of the line.
func (v ArgumentVector) Strings() []string {
	out := make([]string, 0, len(v.spans))
	for i := range v.spans {
		out = append(out, v.Arg(i))
	}
	return out
}

// rebind points the vector at a copy of the line it was built from.
func (v ArgumentVector) rebind(line []byte) ArgumentVector {
	return ArgumentVector{
		line:  line,
		spans: append([]span(nil), v.spans...),
	}
}

func isDelim(c byte) bool {
	return c == ' ' || c == '\t'
}

// Tokenize splits a NUL terminated line on runs of blanks, keeping at most
// maxArgs-1 arguments and silently dropping the rest.
//
// Tokenize is destructive: it overwrites the delimiter following each
// argument with NUL.
func Tokenize(line []byte, maxArgs int) ArgumentVector {
	v := ArgumentVector{line: line}

	p := 0
	for p < len(line) && line[p] != 0 && len(v.spans) < maxArgs-1 {
		for p < len(line) && isDelim(line[p]) {
			p++
		}
		if p == len(line) || line[p] == 0 {
			break
		}

		start := p
		for p < len(line) && line[p] != 0 && !isDelim(line[p]) {
			p++
		}
		v.spans = append(v.spans, span{start, p})

		if p < len(line) && line[p] != 0 {
			line[p] = 0
			p++
		}
	}

	return v
}
