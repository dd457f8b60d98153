// Package console binds a host terminal, pipe or network session to a
// machine's descriptors 0, 1 and 2.
package console

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/abiosoft/readline"
	"github.com/josephlewis42/tinyos/core/kernel"
	"golang.org/x/term"
)

// Options configures a console.
type Options struct {
	In  io.Reader
	Out io.Writer

	// LineEditing reads input a line at a time through readline. The
	// partial output line before each read becomes the readline prompt.
	LineEditing bool
	// Raw is set when the console owns the host terminal's raw mode, it's
	// only meaningful with LineEditing.
	Raw bool
	// Width reports the terminal width for line editing.
	Width func() int

	// CRLF translates "\n" written by the machine into "\r\n".
	CRLF bool

	// OnEOF is called once, the first time the input is exhausted.
	OnEOF func()
}

// Console implements kernel.VIO over a host stream.
type Console struct {
	out     *outputWriter
	in      io.ReadCloser
	rl      *readline.Instance
	eofOnce sync.Once
	onEOF   func()
}

var _ kernel.VIO = (*Console)(nil)

// IsTerminal reports whether f is a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// New creates a console.
func New(opts Options) (*Console, error) {
	c := &Console{
		onEOF: opts.OnEOF,
	}

	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	if opts.CRLF {
		out = &crlfWriter{w: out}
	}
	c.out = &outputWriter{w: out, holdPartial: opts.LineEditing}

	in := opts.In
	if in == nil {
		in = bytes.NewReader(nil)
	}

	if !opts.LineEditing {
		c.in = &eofReader{r: in, console: c}
		return c, nil
	}

	cfg := &readline.Config{
		Stdin:           readline.NewCancelableStdin(in),
		Stdout:          out,
		Stderr:          out,
		InterruptPrompt: "^C",
		HistoryLimit:    100,
		FuncGetWidth:    opts.Width,
		FuncIsTerminal: func() bool {
			return true
		},
	}
	if !opts.Raw {
		cfg.FuncMakeRaw = func() error { return nil }
		cfg.FuncExitRaw = func() error { return nil }
	}
	if cfg.FuncGetWidth == nil {
		cfg.FuncGetWidth = func() int { return 80 }
	}
	if err := cfg.Init(); err != nil {
		return nil, err
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}
	c.rl = rl
	c.in = &lineReader{console: c}
	return c, nil
}

func (c *Console) Stdin() io.ReadCloser {
	return c.in
}

func (c *Console) Stdout() io.WriteCloser {
	return c.out
}

func (c *Console) Stderr() io.WriteCloser {
	return c.out
}

// Close flushes pending output and releases the line editor.
func (c *Console) Close() error {
	err := c.out.flush()
	if c.rl != nil {
		if closeErr := c.rl.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}

func (c *Console) eof() {
	c.eofOnce.Do(func() {
		if c.onEOF != nil {
			c.onEOF()
		}
	})
}

// eofReader passes reads through and reports the end of input.
type eofReader struct {
	r       io.Reader
	console *Console
}

func (r *eofReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && n == 0 {
		r.console.eof()
	}
	return n, err
}

func (r *eofReader) Close() error {
	return nil
}

// lineReader serves reads from lines returned by readline.
type lineReader struct {
	console *Console

	mu      sync.Mutex
	pending []byte
}

func (r *lineReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pending) == 0 {
		rl := r.console.rl
		rl.SetPrompt(r.console.out.takePartial())

		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			line = ""
		case err != nil:
			r.console.eof()
			return 0, err
		}
		r.pending = append([]byte(line), '\n')
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *lineReader) Close() error {
	return nil
}

// outputWriter optionally holds back the last partial line so it can be used
// as a prompt.
type outputWriter struct {
	mu          sync.Mutex
	w           io.Writer
	holdPartial bool
	partial     []byte
}

func (o *outputWriter) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.holdPartial {
		return o.w.Write(p)
	}

	o.partial = append(o.partial, p...)
	idx := bytes.LastIndexByte(o.partial, '\n')
	if idx < 0 {
		return len(p), nil
	}

	complete := o.partial[:idx+1]
	if _, err := o.w.Write(complete); err != nil {
		return 0, err
	}
	o.partial = append([]byte(nil), o.partial[idx+1:]...)
	return len(p), nil
}

func (o *outputWriter) takePartial() string {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := string(o.partial)
	o.partial = nil
	return out
}

func (o *outputWriter) flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.partial) == 0 {
		return nil
	}
	_, err := o.w.Write(o.partial)
	o.partial = nil
	return err
}

func (o *outputWriter) Close() error {
	return nil
}

// crlfWriter translates bare line feeds into CRLF for raw terminals.
type crlfWriter struct {
	w io.Writer
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	translated := bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))
	if _, err := c.w.Write(translated); err != nil {
		return 0, err
	}
	return len(p), nil
}
