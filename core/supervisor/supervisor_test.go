package supervisor

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/josephlewis42/tinyos/core/kernel"
	"github.com/josephlewis42/tinyos/core/kernel/kerneltest"
	"github.com/juju/ratelimit"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
)

func announced(t *testing.T, p *kerneltest.FakeProc, s *Supervisor) {
	t.Helper()
	s.Step(p)
	assert.Equal(t, "init: starting\n", p.Output.String())
	p.Output.Reset()
}

func TestSupervisor_announcesOnce(t *testing.T) {
	p := kerneltest.NewFakeProc("")
	p.Forks = []kernel.ForkResult{{Side: kernel.ForkParent, Child: 2}}
	s := New(Options{})

	announced(t, p, s)
	assert.Equal(t, StateLaunch, s.State())
	assert.Equal(t, 0, p.ForkCalls)

	s.Step(p)
	assert.Empty(t, p.Output.String())
	assert.Equal(t, StateSupervise, s.State())
	assert.Equal(t, kernel.Pid(2), s.Supervised())
}

func TestSupervisor_forkFailedRetries(t *testing.T) {
	p := kerneltest.NewFakeProc("")
	s := New(Options{})
	announced(t, p, s)

	s.Step(p)
	assert.Equal(t, StateChildFailed, s.State())

	s.Step(p)
	assert.Equal(t, "init: fork failed\n", p.Output.String())
	assert.Equal(t, StateLaunch, s.State())
}

func TestSupervisor_childExecs(t *testing.T) {
	p := kerneltest.NewFakeProc("")
	p.Forks = []kernel.ForkResult{{Side: kernel.ForkChild}}
	s := New(Options{})
	announced(t, p, s)

	s.Step(p)

	assert.Equal(t, []kerneltest.ExecCall{{Path: "sh", Argv: []string{"sh"}}}, p.Execs)
	assert.False(t, p.Exited)
}

func TestSupervisor_childExecFailsIdles(t *testing.T) {
	p := kerneltest.NewFakeProc("")
	p.Forks = []kernel.ForkResult{{Side: kernel.ForkChild}}
	p.ExecErrs = []error{kernel.ErrExecFormat}
	s := New(Options{})
	announced(t, p, s)

	s.Step(p)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, "init: exec sh failed\n", p.Output.String())

	for i := 0; i < 3; i++ {
		s.Step(p)
	}
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 3, p.Paused)
	assert.Equal(t, 1, p.ForkCalls)
	assert.False(t, p.Exited)
}

func TestSupervisor_discardsOtherPids(t *testing.T) {
	p := kerneltest.NewFakeProc("")
	p.Forks = []kernel.ForkResult{{Side: kernel.ForkParent, Child: 5}}
	p.Waits = []kerneltest.WaitResult{
		{Record: kernel.ExitRecord{Pid: 9, Status: 0}},
		{Err: kernel.ErrNoChildren},
		{Record: kernel.ExitRecord{Pid: 12, Status: 1}},
	}
	s := New(Options{})
	announced(t, p, s)
	s.Step(p)

	for i := 0; i < 3; i++ {
		s.Step(p)
		assert.Equal(t, StateSupervise, s.State())
		assert.Equal(t, kernel.Pid(5), s.Supervised())
	}
	assert.Equal(t, 3, p.WaitCalls)
	assert.Equal(t, 1, p.ForkCalls)
}

func TestSupervisor_noChildrenPauses(t *testing.T) {
	p := kerneltest.NewFakeProc("")
	p.Forks = []kernel.ForkResult{{Side: kernel.ForkParent, Child: 5}}
	s := New(Options{})
	announced(t, p, s)
	s.Step(p)

	// An empty Wait queue reports ErrNoChildren.
	s.Step(p)

	assert.Equal(t, StateSupervise, s.State())
	assert.Equal(t, kernel.Pid(5), s.Supervised())
	assert.Equal(t, []string{"fork", "wait", "pause"}, p.Calls)
	assert.Equal(t, 1, p.ForkCalls)
	assert.Empty(t, p.Output.String())
}

func TestSupervisor_otherWaitErrorsDontPause(t *testing.T) {
	p := kerneltest.NewFakeProc("")
	p.Forks = []kernel.ForkResult{{Side: kernel.ForkParent, Child: 5}}
	p.Waits = []kerneltest.WaitResult{{Err: kernel.ErrImageGone}}
	s := New(Options{})
	announced(t, p, s)
	s.Step(p)

	s.Step(p)

	assert.Equal(t, StateSupervise, s.State())
	assert.Equal(t, 0, p.Paused)
}

func TestSupervisor_respawnsForever(t *testing.T) {
	const cycles = 100

	p := kerneltest.NewFakeProc("")
	for i := 0; i < cycles; i++ {
		pid := kernel.Pid(i + 2)
		p.Forks = append(p.Forks, kernel.ForkResult{Side: kernel.ForkParent, Child: pid})
		p.Waits = append(p.Waits, kerneltest.WaitResult{Record: kernel.ExitRecord{Pid: pid, Status: i % 3}})
	}
	s := New(Options{})
	announced(t, p, s)

	for i := 0; i < cycles; i++ {
		s.Step(p)
		assert.Equal(t, StateSupervise, s.State())
		assert.Equal(t, kernel.Pid(i+2), s.Supervised())

		s.Step(p)
		assert.Equal(t, StateLaunch, s.State())
	}
	assert.False(t, p.Exited)
	assert.Equal(t, cycles, p.ForkCalls)
}

func TestSupervisor_throttle(t *testing.T) {
	bucket := ratelimit.NewBucketWithQuantum(time.Hour, 1, 1)
	p := kerneltest.NewFakeProc("")
	p.Forks = []kernel.ForkResult{{Side: kernel.ForkParent, Child: 2}}
	p.Waits = []kerneltest.WaitResult{{Record: kernel.ExitRecord{Pid: 2}}}
	s := New(Options{Throttle: bucket})
	announced(t, p, s)

	s.Step(p)
	s.Step(p)

	assert.Equal(t, StateLaunch, s.State())
	assert.Equal(t, int64(0), bucket.Available())
}

func TestSupervisor_clone(t *testing.T) {
	s := New(Options{Argv: []string{"sh", "-x"}})
	clone := s.Clone().(*Supervisor)
	s.argv[1] = "changed"

	assert.Equal(t, []string{"sh", "-x"}, clone.argv)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSupervisorOnKernel(t *testing.T) {
	runs := make(chan kernel.Pid, 10)
	shell := kernel.ProcessFunc(func(p kernel.Proc) int {
		runs <- p.Getpid()
		return 1
	})
	images := map[string]kernel.Loader{
		"init": Loader(Options{}),
		"sh":   shell.Load,
	}
	k, _, err := kerneltest.NewDeterministicKernel(func(name string) kernel.Loader {
		return images[name]
	}, "init", "sh")
	assert.NoError(t, err)

	booted := make(chan error, 1)
	go func() { booted <- k.Boot(context.Background()) }()

	var pids []kernel.Pid
	for len(pids) < 3 {
		pids = append(pids, <-runs)
	}
	k.Halt(nil)

	assert.NoError(t, <-booted)
	assert.Equal(t, []kernel.Pid{2, 3, 4}, pids)
}

func TestSupervisorOnKernel_execFails(t *testing.T) {
	fsys := afero.NewMemMapFs()
	assert.NoError(t, kernel.Mkfs(fsys, []string{"init"}))

	out := &syncBuffer{}
	k := kernel.New(kernel.Options{
		FS: fsys,
		Resolver: func(name string) kernel.Loader {
			if name == "init" {
				return Loader(Options{Argv: []string{"nosuch"}})
			}
			return nil
		},
		Console: kernel.NewVIOAdapter(nil, out, out),
	})

	booted := make(chan error, 1)
	go func() { booted <- k.Boot(context.Background()) }()

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "init: exec nosuch failed\n")
	}, time.Second, time.Millisecond)

	// init and its idle child
	assert.Len(t, k.Procs(), 2)

	k.Halt(nil)
	assert.NoError(t, <-booted)
	assert.Equal(t, "init: starting\ninit: exec nosuch failed\n", out.String())
}
