package kernel

import (
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// handle is the Proc given to a single Step call.
type handle struct {
	k *Kernel
	p *proc

	// gone is set once the image exited or was replaced during this step.
	gone bool
}

var _ Proc = (*handle)(nil)

func (h *handle) Fork() ForkResult {
	k, p := h.k, h.p
	k.mu.Lock()
	defer k.mu.Unlock()

	if p.forkPending {
		p.forkPending = false
		return ForkResult{Side: ForkChild}
	}

	fail := func(err error) ForkResult {
		k.log.Warn("fork failed", zap.Int("pid", int(p.pid)), zap.Error(err))
		return ForkResult{Side: ForkFailed, Err: err}
	}

	if h.gone {
		return ForkResult{Side: ForkFailed, Err: ErrImageGone}
	}
	if k.halted {
		return fail(ErrHalted)
	}
	f, ok := p.image.(Forkable)
	if !ok {
		return fail(ErrNotForkable)
	}
	if len(k.procs) >= k.maxProcs {
		return fail(ErrProcLimit)
	}

	child := k.newProcLocked(p.pid, f.Clone(), p.path, append([]string(nil), p.argv...), p.files)
	child.forkPending = true

	k.log.Info("fork", zap.Int("pid", int(p.pid)), zap.Int("child", int(child.pid)))
	go k.run(child)

	return ForkResult{Side: ForkParent, Child: child.pid}
}

func (h *handle) Exec(path string, argv []string) error {
	if h.gone {
		return ErrImageGone
	}
	k, p := h.k, h.p

	img, args, err := k.load(path, argv)
	if err != nil {
		k.log.Info("exec failed",
			zap.Int("pid", int(p.pid)),
			zap.String("path", path),
			zap.Error(err))
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.halted {
		return ErrHalted
	}

	p.image = img
	p.path = ResolvePath(path)
	p.argv = args
	p.forkPending = false
	h.gone = true

	k.log.Info("exec",
		zap.Int("pid", int(p.pid)),
		zap.String("path", p.path),
		zap.Strings("argv", args))
	return nil
}

func (h *handle) Wait() (ExitRecord, error) {
	if h.gone {
		return ExitRecord{}, ErrImageGone
	}
	k, p := h.k, h.p
	k.mu.Lock()
	defer k.mu.Unlock()

	for {
		if k.halted {
			return ExitRecord{}, ErrHalted
		}

		children := 0
		for _, c := range k.sortedProcsLocked() {
			if c.ppid != p.pid {
				continue
			}
			children++
			if !c.exited {
				continue
			}

			delete(k.procs, c.pid)
			k.log.Info("reap",
				zap.Int("pid", int(p.pid)),
				zap.Int("child", int(c.pid)),
				zap.Int("status", c.status))
			return ExitRecord{Pid: c.pid, Status: c.status}, nil
		}

		if children == 0 {
			return ExitRecord{}, ErrNoChildren
		}
		k.cond.Wait()
	}
}

func (h *handle) Read(fd int, b []byte) (int, error) {
	if h.gone {
		return 0, ErrImageGone
	}
	if fd != 0 {
		return 0, ErrBadFD
	}
	return h.p.files.Stdin().Read(b)
}

func (h *handle) Write(fd int, b []byte) (int, error) {
	if h.gone {
		return 0, ErrImageGone
	}
	switch fd {
	case 1:
		return h.p.files.Stdout().Write(b)
	case 2:
		return h.p.files.Stderr().Write(b)
	default:
		return 0, ErrBadFD
	}
}

func (h *handle) Exit(status int) {
	if h.gone {
		return
	}
	h.gone = true

	h.k.mu.Lock()
	defer h.k.mu.Unlock()
	h.k.exitLocked(h.p, status)
}

func (h *handle) Pause() {
	if h.gone {
		return
	}
	k := h.k
	k.mu.Lock()
	defer k.mu.Unlock()

	for !k.halted {
		k.cond.Wait()
	}
}

func (h *handle) Getpid() Pid {
	return h.p.pid
}

func (h *handle) Args() []string {
	h.k.mu.Lock()
	defer h.k.mu.Unlock()
	return append([]string(nil), h.p.argv...)
}

func (h *handle) FS() afero.Fs {
	return afero.NewReadOnlyFs(h.k.fs)
}
