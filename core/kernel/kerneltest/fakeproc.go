package kerneltest

import (
	"bytes"
	"io"

	"github.com/josephlewis42/tinyos/core/kernel"
	"github.com/spf13/afero"
)

// WaitResult is a scripted response to Wait.
type WaitResult struct {
	Record kernel.ExitRecord
	Err    error
}

// ExecCall records a call to Exec.
type ExecCall struct {
	Path string
	Argv []string
}

// FakeProc is a scripted Proc for driving a single image step by step
// without a kernel. Scripted queues are consumed in order, an empty Fork
// queue fails with ErrProcLimit and an empty Wait queue fails with
// ErrNoChildren.
type FakeProc struct {
	Pid   kernel.Pid
	Argv  []string
	Files afero.Fs

	Input  io.Reader
	Output bytes.Buffer

	Forks    []kernel.ForkResult
	Waits    []WaitResult
	ExecErrs []error

	Execs     []ExecCall
	Calls     []string
	Exited    bool
	Status    int
	Paused    int
	ForkCalls int
	WaitCalls int
}

var _ kernel.Proc = (*FakeProc)(nil)

// NewFakeProc creates a fake process reading input.
func NewFakeProc(input string, argv ...string) *FakeProc {
	return &FakeProc{
		Pid:   2,
		Argv:  argv,
		Files: afero.NewMemMapFs(),
		Input: bytes.NewBufferString(input),
	}
}

func (f *FakeProc) Fork() kernel.ForkResult {
	f.Calls = append(f.Calls, "fork")
	f.ForkCalls++
	if len(f.Forks) == 0 {
		return kernel.ForkResult{Side: kernel.ForkFailed, Err: kernel.ErrProcLimit}
	}
	res := f.Forks[0]
	f.Forks = f.Forks[1:]
	return res
}

func (f *FakeProc) Exec(path string, argv []string) error {
	f.Calls = append(f.Calls, "exec")
	f.Execs = append(f.Execs, ExecCall{Path: path, Argv: append([]string(nil), argv...)})
	if len(f.ExecErrs) == 0 {
		return nil
	}
	err := f.ExecErrs[0]
	f.ExecErrs = f.ExecErrs[1:]
	return err
}

func (f *FakeProc) Wait() (kernel.ExitRecord, error) {
	f.Calls = append(f.Calls, "wait")
	f.WaitCalls++
	if len(f.Waits) == 0 {
		return kernel.ExitRecord{}, kernel.ErrNoChildren
	}
	res := f.Waits[0]
	f.Waits = f.Waits[1:]
	return res.Record, res.Err
}

func (f *FakeProc) Read(fd int, b []byte) (int, error) {
	if fd != 0 {
		return 0, kernel.ErrBadFD
	}
	if f.Input == nil {
		return 0, io.EOF
	}
	return f.Input.Read(b)
}

func (f *FakeProc) Write(fd int, b []byte) (int, error) {
	if fd != 1 && fd != 2 {
		return 0, kernel.ErrBadFD
	}
	return f.Output.Write(b)
}

func (f *FakeProc) Exit(status int) {
	f.Calls = append(f.Calls, "exit")
	f.Exited = true
	f.Status = status
}

func (f *FakeProc) Pause() {
	f.Calls = append(f.Calls, "pause")
	f.Paused++
}

func (f *FakeProc) Getpid() kernel.Pid {
	return f.Pid
}

func (f *FakeProc) Args() []string {
	return append([]string(nil), f.Argv...)
}

func (f *FakeProc) FS() afero.Fs {
	return afero.NewReadOnlyFs(f.Files)
}
