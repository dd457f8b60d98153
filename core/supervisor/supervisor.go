// Package supervisor implements init, the root process that keeps the shell
// running.
package supervisor

import (
	"errors"

	"github.com/josephlewis42/tinyos/core/kernel"
	"github.com/juju/ratelimit"
)

const (
	msgStarting   = "init: starting\n"
	msgForkFailed = "init: fork failed\n"
)

// State is a state of the supervisor.
type State int

const (
	StateLaunch State = iota
	StateChildFailed
	StateSupervise
	// StateIdle is entered by a child whose exec failed. It never leaves it.
	StateIdle
)

func (s State) String() string {
	switch s {
	case StateLaunch:
		return "launch"
	case StateChildFailed:
		return "child-failed"
	case StateSupervise:
		return "supervise"
	case StateIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// Options configures the supervisor.
type Options struct {
	// Argv is the supervised command, Argv[0] is also the path.
	// Defaults to ["sh"].
	Argv []string
	// Throttle limits how fast the command is relaunched, nil means no limit.
	Throttle *ratelimit.Bucket
}

// Supervisor launches a command and relaunches it every time it exits.
// It never exits itself.
type Supervisor struct {
	argv     []string
	throttle *ratelimit.Bucket

	announced  bool
	state      State
	supervised kernel.Pid
}

var _ kernel.Forkable = (*Supervisor)(nil)

// New creates a supervisor in the Launch state.
func New(opts Options) *Supervisor {
	argv := opts.Argv
	if len(argv) == 0 {
		argv = []string{"sh"}
	}
	return &Supervisor{
		argv:     append([]string(nil), argv...),
		throttle: opts.Throttle,
		state:    StateLaunch,
	}
}

// Loader creates a fresh supervisor for every exec.
func Loader(opts Options) kernel.Loader {
	return func([]string) kernel.Image {
		return New(opts)
	}
}

// State returns the state the next Step will run.
func (s *Supervisor) State() State {
	return s.state
}

// Supervised returns the pid of the running command, 0 before the first
// launch.
func (s *Supervisor) Supervised() kernel.Pid {
	return s.supervised
}

func (s *Supervisor) Clone() kernel.Image {
	clone := *s
	clone.argv = append([]string(nil), s.argv...)
	return &clone
}

func (s *Supervisor) Step(p kernel.Proc) {
	if !s.announced {
		p.Write(1, []byte(msgStarting))
		s.announced = true
		return
	}

	switch s.state {
	case StateLaunch:
		s.launch(p)

	case StateChildFailed:
		p.Write(1, []byte(msgForkFailed))
		s.relaunch()

	case StateSupervise:
		rec, err := p.Wait()
		if errors.Is(err, kernel.ErrNoChildren) {
			// The supervised pid is no longer a child, no report can ever
			// match it. Stay in Supervise without spinning.
			p.Pause()
			return
		}
		if err != nil || rec.Pid != s.supervised {
			return
		}
		s.relaunch()

	case StateIdle:
		p.Pause()
	}
}

func (s *Supervisor) launch(p kernel.Proc) {
	res := p.Fork()
	switch res.Side {
	case kernel.ForkFailed:
		s.state = StateChildFailed

	case kernel.ForkChild:
		if err := p.Exec(s.argv[0], s.argv); err != nil {
			p.Write(1, []byte("init: exec "+s.argv[0]+" failed\n"))
			s.state = StateIdle
		}

	case kernel.ForkParent:
		s.supervised = res.Child
		s.state = StateSupervise
	}
}

func (s *Supervisor) relaunch() {
	if s.throttle != nil {
		s.throttle.Wait(1)
	}
	s.state = StateLaunch
}
