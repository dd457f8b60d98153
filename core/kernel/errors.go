package kernel

import "errors"

var (
	// ErrNoChildren is returned by Wait when the caller has no children.
	ErrNoChildren = errors.New("no child processes")
	// ErrHalted is returned by blocking calls once the machine halts.
	ErrHalted = errors.New("machine halted")
	// ErrProcLimit is returned by Fork when the process table is full.
	ErrProcLimit = errors.New("process table full")
	// ErrNotForkable is returned by Fork when the running image can't be
	// duplicated.
	ErrNotForkable = errors.New("image cannot be duplicated")
	// ErrImageGone is returned by calls made after Exit or a successful Exec.
	ErrImageGone = errors.New("process image is gone")
	// ErrBadFD is returned for reads or writes on an unknown descriptor.
	ErrBadFD = errors.New("bad file descriptor")
	// ErrExecFormat is returned when a file isn't a loadable image.
	ErrExecFormat = errors.New("exec format error")
	// ErrArgListTooLong is returned when argv exceeds MaxExecArgs.
	ErrArgListTooLong = errors.New("argument list too long")
	// ErrInvalidArg is returned when an argument can't cross the exec boundary.
	ErrInvalidArg = errors.New("invalid argument")
	// ErrInitExited halts the machine when pid 1 terminates.
	ErrInitExited = errors.New("init exited")
)
