// Package kernel simulates the process-control half of a small Unix-like
// kernel: a process table, fork, exec, wait and exit, and console I/O.
//
// Every process runs on its own goroutine. Images are state machines driven
// one Step at a time, which is what lets fork duplicate a running program.
package kernel

import (
	"context"
	"fmt"
	"io/fs"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	// DefaultMaxProcs is the default size of the process table.
	DefaultMaxProcs = 64
	// DefaultInitPath is the image booted as pid 1.
	DefaultInitPath = "init"
	// ExitPanic is the exit status of a process whose image panicked.
	ExitPanic = 134
)

// Options configures a new Kernel.
type Options struct {
	// FS holds the program images, defaults to an empty in-memory filesystem.
	FS afero.Fs
	// Resolver maps image names to loaders.
	Resolver Resolver
	// Console is bound to descriptors 0-2 of init.
	Console VIO
	// MaxProcs bounds the process table, including zombies.
	MaxProcs int
	// Logger receives process lifecycle events.
	Logger *zap.Logger
	// InitPath and InitArgs are the program booted as pid 1.
	InitPath string
	InitArgs []string
	// BootID names the machine in its logs, a random one is used if empty.
	BootID string
}

// Kernel is a simulated machine.
type Kernel struct {
	mu   sync.Mutex
	cond *sync.Cond

	procs    map[Pid]*proc
	lastPid  Pid
	maxProcs int
	initProc *proc

	fs       afero.Fs
	resolve  Resolver
	console  VIO
	initPath string
	initArgs []string

	bootID string
	log    *zap.Logger

	halted  bool
	haltErr error
	done    chan struct{}
}

// New creates a machine, it doesn't start any process.
func New(opts Options) *Kernel {
	if opts.FS == nil {
		opts.FS = afero.NewMemMapFs()
	}
	if opts.Resolver == nil {
		opts.Resolver = func(string) Loader { return nil }
	}
	if opts.Console == nil {
		opts.Console = NewNullIO()
	}
	if opts.MaxProcs <= 0 {
		opts.MaxProcs = DefaultMaxProcs
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.InitPath == "" {
		opts.InitPath = DefaultInitPath
	}
	if len(opts.InitArgs) == 0 {
		opts.InitArgs = []string{opts.InitPath}
	}

	bootID := opts.BootID
	if bootID == "" {
		bootID = uuid.NewString()
	}
	k := &Kernel{
		procs:    make(map[Pid]*proc),
		maxProcs: opts.MaxProcs,
		fs:       opts.FS,
		resolve:  opts.Resolver,
		console:  opts.Console,
		initPath: opts.InitPath,
		initArgs: opts.InitArgs,
		bootID:   bootID,
		log:      opts.Logger.With(zap.String("boot_id", bootID)),
		done:     make(chan struct{}),
	}
	k.cond = sync.NewCond(&k.mu)
	return k
}

// BootID uniquely identifies this machine in the logs.
func (k *Kernel) BootID() string {
	return k.bootID
}

// Boot starts init on the console and blocks until the machine halts or ctx
// is done. Cancelling ctx is a clean power off and returns nil.
func (k *Kernel) Boot(ctx context.Context) error {
	k.log.Info("boot", zap.String("init", k.initPath), zap.Strings("argv", k.initArgs))

	if _, err := k.spawn(k.initPath, k.initArgs, k.console, true); err != nil {
		k.Halt(err)
		return err
	}

	select {
	case <-ctx.Done():
		k.Halt(nil)
		return nil
	case <-k.done:
		return k.Err()
	}
}

// Run starts a program with no parent and blocks until it exits, returning
// its exit status.
func (k *Kernel) Run(path string, argv []string, files VIO) (int, error) {
	if files == nil {
		files = NewNullIO()
	}

	p, err := k.spawn(path, argv, files, false)
	if err != nil {
		return 0, err
	}
	<-p.done

	k.mu.Lock()
	defer k.mu.Unlock()

	if !p.exited {
		if k.haltErr != nil {
			return 0, k.haltErr
		}
		return 0, ErrHalted
	}
	delete(k.procs, p.pid)
	return p.status, nil
}

// Halt stops the machine. Blocked calls return ErrHalted and processes stop
// once their current step returns.
func (k *Kernel) Halt(err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.haltLocked(err)
}

// Done is closed when the machine halts.
func (k *Kernel) Done() <-chan struct{} {
	return k.done
}

// Err returns the reason the machine halted, nil for a clean halt.
func (k *Kernel) Err() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.haltErr
}

// Procs returns a snapshot of the process table ordered by pid.
func (k *Kernel) Procs() []ProcInfo {
	k.mu.Lock()
	defer k.mu.Unlock()

	var out []ProcInfo
	for _, p := range k.sortedProcsLocked() {
		out = append(out, p.info())
	}
	return out
}

func (k *Kernel) haltLocked(err error) {
	if k.halted {
		return
	}
	k.halted = true
	k.haltErr = err
	k.cond.Broadcast()
	close(k.done)

	if err != nil {
		k.log.Warn("halt", zap.Error(err))
	} else {
		k.log.Info("halt")
	}
}

// load checks and loads the image at path without touching the process table.
func (k *Kernel) load(file string, argv []string) (Image, []string, error) {
	wire, err := EncodeArgv(argv)
	if err != nil {
		return nil, nil, &fs.PathError{Op: "exec", Path: file, Err: err}
	}

	resolved := ResolvePath(file)
	if err := findExecutable(k.fs, resolved); err != nil {
		return nil, nil, &fs.PathError{Op: "exec", Path: file, Err: unwrapPathError(err)}
	}

	name, err := readImageName(k.fs, resolved)
	if err != nil {
		return nil, nil, &fs.PathError{Op: "exec", Path: file, Err: unwrapPathError(err)}
	}

	loader := k.resolve(name)
	if loader == nil {
		return nil, nil, &fs.PathError{Op: "exec", Path: file, Err: ErrExecFormat}
	}

	args, err := DecodeArgv(wire)
	if err != nil {
		return nil, nil, &fs.PathError{Op: "exec", Path: file, Err: err}
	}

	return loader(args), args, nil
}

func unwrapPathError(err error) error {
	if pe, ok := err.(*fs.PathError); ok {
		return pe.Err
	}
	return err
}

func (k *Kernel) spawn(file string, argv []string, files VIO, asInit bool) (*proc, error) {
	img, args, err := k.load(file, argv)
	if err != nil {
		k.log.Warn("spawn failed", zap.String("path", file), zap.Error(err))
		return nil, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	switch {
	case k.halted:
		return nil, ErrHalted
	case len(k.procs) >= k.maxProcs:
		return nil, ErrProcLimit
	}

	p := k.newProcLocked(0, img, ResolvePath(file), args, files)
	p.owned = true
	if asInit {
		k.initProc = p
	}

	k.log.Info("spawn", zap.Int("pid", int(p.pid)), zap.String("path", p.path), zap.Strings("argv", args))
	go k.run(p)
	return p, nil
}

func (k *Kernel) newProcLocked(ppid Pid, img Image, file string, argv []string, files VIO) *proc {
	k.lastPid++
	p := &proc{
		pid:   k.lastPid,
		ppid:  ppid,
		image: img,
		path:  file,
		argv:  argv,
		files: files,
		done:  make(chan struct{}),
	}
	k.procs[p.pid] = p
	return p
}

func (k *Kernel) sortedProcsLocked() []*proc {
	out := make([]*proc, 0, len(k.procs))
	for _, p := range k.procs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].pid < out[j].pid
	})
	return out
}

// run drives a process until it exits or the machine halts.
func (k *Kernel) run(p *proc) {
	defer close(p.done)

	for {
		k.mu.Lock()
		img, live := p.image, !p.exited && !k.halted
		k.mu.Unlock()

		if !live || !k.step(p, img) {
			return
		}
	}
}

func (k *Kernel) step(p *proc, img Image) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			k.log.Error("panic",
				zap.Int("pid", int(p.pid)),
				zap.String("path", p.path),
				zap.String("panic", fmt.Sprint(r)),
				zap.ByteString("stack", debug.Stack()))

			k.mu.Lock()
			k.exitLocked(p, ExitPanic)
			k.mu.Unlock()
			ok = false
		}
	}()

	img.Step(&handle{k: k, p: p})
	return true
}

// reaperLocked picks the new parent for the children of an exiting process.
func (k *Kernel) reaperLocked(exiting *proc) Pid {
	if init := k.initProc; init != nil && init != exiting && !init.exited {
		return init.pid
	}
	return 0
}

func (k *Kernel) exitLocked(p *proc, status int) {
	if p.exited {
		return
	}
	p.exited = true
	p.status = status
	p.image = nil

	k.log.Info("exit",
		zap.Int("pid", int(p.pid)),
		zap.Int("ppid", int(p.ppid)),
		zap.String("path", p.path),
		zap.Int("status", status))

	reaper := k.reaperLocked(p)
	for _, c := range k.sortedProcsLocked() {
		if c.ppid != p.pid {
			continue
		}
		c.ppid = reaper
		k.log.Debug("reparent", zap.Int("pid", int(c.pid)), zap.Int("ppid", int(reaper)))

		// Nobody is left to reap it.
		if reaper == 0 && c.exited && !c.owned {
			delete(k.procs, c.pid)
		}
	}

	if p.ppid == 0 && !p.owned {
		delete(k.procs, p.pid)
	}

	k.cond.Broadcast()

	if p == k.initProc {
		k.haltLocked(ErrInitExited)
	}
}
