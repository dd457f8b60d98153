package kernel

import (
	"github.com/spf13/afero"
)

// Pid identifies a process to the kernel.
type Pid int

// ForkSide tells the caller of Fork which side of the duplication it is on.
type ForkSide int

const (
	// ForkFailed means no child was created, see ForkResult.Err.
	ForkFailed ForkSide = iota
	// ForkParent means a child was created, see ForkResult.Child.
	ForkParent
	// ForkChild means the caller is the newly created child.
	ForkChild
)

func (s ForkSide) String() string {
	switch s {
	case ForkParent:
		return "parent"
	case ForkChild:
		return "child"
	default:
		return "failed"
	}
}

// ForkResult is the outcome of duplicating the calling process.
type ForkResult struct {
	Side ForkSide
	// Child is set on the parent side.
	Child Pid
	// Err is set when Side is ForkFailed.
	Err error
}

// ExitRecord is a reaped child and its exit status.
type ExitRecord struct {
	Pid    Pid
	Status int
}

// Sys is the system call surface available to a running image.
type Sys interface {
	// Fork duplicates the calling process.
	Fork() ForkResult

	// Exec replaces the calling process's image. A nil return means the image
	// was replaced: the caller must return from Step without issuing further
	// calls, all of which fail with ErrImageGone.
	Exec(path string, argv []string) error

	// Wait blocks until any child terminates and reaps it. It returns
	// ErrNoChildren immediately if the caller has no children.
	Wait() (ExitRecord, error)

	// Read reads from descriptor fd, only 0 is readable.
	Read(fd int, p []byte) (int, error)

	// Write writes to descriptor fd, 1 and 2 are writable.
	Write(fd int, p []byte) (int, error)

	// Exit terminates the calling process with the given status. The caller
	// must return from Step afterwards.
	Exit(status int)

	// Pause blocks until the machine halts.
	Pause()

	// Getpid returns the pid of the calling process.
	Getpid() Pid
}

// Proc is the view of its process an image runs with.
type Proc interface {
	Sys

	// Args holds the argument vector the image was loaded with, including
	// the program name as Args[0].
	Args() []string

	// FS is a read-only view of the machine's filesystem.
	FS() afero.Fs
}

// Image is a program loaded into a process.
type Image interface {
	// Step runs one transition of the program. The kernel calls Step until
	// the process exits, replaces its image or the machine halts.
	Step(p Proc)
}

// Forkable is an image that can be duplicated by Fork.
//
// Clone is called with the kernel locked while the parent is inside Step, it
// must not make system calls. The child re-enters the step that called Fork
// and gets ForkChild from its first Fork call, so a forking step must make
// Fork its first system call.
type Forkable interface {
	Image
	Clone() Image
}

// Loader creates a fresh image for the given argument vector.
type Loader func(argv []string) Image

// Resolver looks up a loader by image name, it returns nil if no image was
// found.
type Resolver func(name string) Loader

// ProcessFunc is a straight-line program, its return value is the exit status.
type ProcessFunc func(Proc) int

// Load implements Loader.
func (f ProcessFunc) Load(argv []string) Image {
	return &funcImage{f}
}

type funcImage struct {
	fn ProcessFunc
}

func (i *funcImage) Step(p Proc) {
	p.Exit(i.fn(p))
}

// ProcInfo is a snapshot of a process table entry.
type ProcInfo struct {
	Pid    Pid
	PPid   Pid
	Path   string
	Args   []string
	Zombie bool
	Status int
}

type proc struct {
	pid  Pid
	ppid Pid

	image Image
	path  string
	argv  []string
	files VIO

	// forkPending is set on a fresh child until its first Fork call.
	forkPending bool
	// owned processes are reaped by the kernel itself through Run or Boot.
	owned bool

	exited bool
	status int

	done chan struct{}
}

func (p *proc) info() ProcInfo {
	return ProcInfo{
		Pid:    p.pid,
		PPid:   p.ppid,
		Path:   p.path,
		Args:   append([]string(nil), p.argv...),
		Zombie: p.exited,
		Status: p.status,
	}
}
