// Package shell implements the interactive command interpreter.
package shell

import (
	"fmt"

	"github.com/josephlewis42/tinyos/core/kernel"
)

const (
	// DefaultPrompt is written before every line is read.
	DefaultPrompt = "$ "
	// BuiltinExit ends the shell with status 0.
	BuiltinExit = "exit"
)

// State is a state of the shell loop.
type State int

const (
	StatePrompt State = iota
	StateReadLine
	StateParse
	StateAwaitChild
	StateTerminate
)

func (s State) String() string {
	switch s {
	case StatePrompt:
		return "prompt"
	case StateReadLine:
		return "read-line"
	case StateParse:
		return "parse"
	case StateAwaitChild:
		return "await-child"
	case StateTerminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// Options configures the shell. Every field is used as given, start from
// DefaultOptions.
type Options struct {
	// Prompt is written before every line is read, it may be empty.
	Prompt string
	// LineMax is the line buffer capacity, including the terminating NUL.
	LineMax int
	// MaxArgs bounds a line to MaxArgs-1 arguments.
	MaxArgs int
}

// DefaultOptions returns the standard shell configuration.
func DefaultOptions() Options {
	return Options{
		Prompt:  DefaultPrompt,
		LineMax: DefaultLineMax,
		MaxArgs: DefaultMaxArgs,
	}
}

// Validate reports options the shell can't run with.
func (o Options) Validate() error {
	if o.LineMax < 2 {
		return fmt.Errorf("line max %d: must hold one byte and the terminator", o.LineMax)
	}
	if o.MaxArgs < 2 || o.MaxArgs-1 > kernel.MaxExecArgs {
		return fmt.Errorf("max args %d: must be between 2 and %d", o.MaxArgs, kernel.MaxExecArgs+1)
	}
	return nil
}

// Loop is the shell's read-tokenize-spawn-reap state machine. Each Step makes
// exactly one transition.
type Loop struct {
	opts Options

	state State
	line  *Line
	argv  ArgumentVector

	// Last holds the most recent launch, for inspection.
	Last Result
}

var _ kernel.Forkable = (*Loop)(nil)

// New creates a shell in the Prompt state.
func New(opts Options) (*Loop, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return newLoop(opts), nil
}

func newLoop(opts Options) *Loop {
	return &Loop{
		opts:  opts,
		state: StatePrompt,
		line:  NewLine(opts.LineMax),
	}
}

// Loader validates opts once and creates a fresh shell for every exec.
func Loader(opts Options) (kernel.Loader, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return func([]string) kernel.Image {
		return newLoop(opts)
	}, nil
}

// State returns the state the next Step will run.
func (l *Loop) State() State {
	return l.state
}

// Line returns the current input buffer.
func (l *Loop) Line() *Line {
	return l.line
}

// Args returns the arguments of the last parsed line.
func (l *Loop) Args() ArgumentVector {
	return l.argv
}

func (l *Loop) Clone() kernel.Image {
	clone := *l
	clone.line = l.line.Clone()
	clone.argv = l.argv.rebind(clone.line.Bytes())
	return &clone
}

func (l *Loop) Step(p kernel.Proc) {
	switch l.state {
	case StatePrompt:
		p.Write(1, []byte(l.opts.Prompt))
		l.state = StateReadLine

	case StateReadLine:
		l.readLine(p)
		l.state = StateParse

	case StateParse:
		l.argv = Tokenize(l.line.Bytes(), l.opts.MaxArgs)
		switch {
		case l.argv.Len() == 0:
			l.state = StatePrompt
		case l.argv.Arg(0) == BuiltinExit:
			l.state = StateTerminate
		default:
			l.state = StateAwaitChild
		}

	case StateAwaitChild:
		res := SpawnAndExecute(p, l.argv.Arg(0), l.argv.Strings())
		if res.Outcome == Detached {
			return
		}
		l.Last = res
		l.state = StatePrompt

	case StateTerminate:
		p.Exit(0)
	}
}

// readLine reads bytes until a line terminator, a full buffer or a read that
// returns no data, which ends the line the same way a terminator does.
func (l *Loop) readLine(p kernel.Proc) {
	l.line.Reset()

	var c [1]byte
	for !l.line.Full() {
		if n, _ := p.Read(0, c[:]); n < 1 {
			break
		}
		if c[0] == '\n' || c[0] == '\r' {
			break
		}
		l.line.Append(c[0])
	}
}
