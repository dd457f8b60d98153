// Package kerneltest has helpers for testing programs that run on the
// simulated kernel.
package kerneltest

import (
	"bytes"
	"io"

	"github.com/josephlewis42/tinyos/core/kernel"
	"github.com/spf13/afero"
)

// SingleImageResolver resolves every image name to loader.
func SingleImageResolver(loader kernel.Loader) kernel.Resolver {
	return func(string) kernel.Loader {
		return loader
	}
}

// NewDeterministicKernel creates a machine with an in-memory filesystem
// holding one executable per image name.
func NewDeterministicKernel(resolver kernel.Resolver, images ...string) (*kernel.Kernel, afero.Fs, error) {
	fsys := afero.NewMemMapFs()
	if err := kernel.Mkfs(fsys, images); err != nil {
		return nil, nil, err
	}

	k := kernel.New(kernel.Options{
		FS:       fsys,
		Resolver: resolver,
	})
	return k, fsys, nil
}

// Cmd is similar to exec.Cmd.
type Cmd struct {
	// Loader creates the program image.
	Loader kernel.Loader
	// Process arguments, the first argument should be the process name.
	Argv []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	ExitStatus int

	// Setup can populate the filesystem before the program starts.
	Setup func(afero.Fs) error
}

// Command runs a straight-line program.
func Command(process kernel.ProcessFunc, name string, arg ...string) *Cmd {
	return ImageCommand(process.Load, name, arg...)
}

// ImageCommand runs an arbitrary image.
func ImageCommand(loader kernel.Loader, name string, arg ...string) *Cmd {
	return &Cmd{
		Loader: loader,
		Argv:   append([]string{name}, arg...),
	}
}

func (c *Cmd) CombinedOutput() ([]byte, error) {
	// stdout, stderr
	buf := &bytes.Buffer{}
	c.Stdout = buf
	c.Stderr = buf

	err := c.Run()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Run starts the command and waits for it to complete.
func (c *Cmd) Run() error {
	k, fsys, err := NewDeterministicKernel(SingleImageResolver(c.Loader), c.Argv[0])
	if err != nil {
		return err
	}
	defer k.Halt(nil)

	if c.Setup != nil {
		if err := c.Setup(fsys); err != nil {
			return err
		}
	}

	status, err := k.Run(c.Argv[0], c.Argv, kernel.NewVIOAdapter(c.Stdin, c.Stdout, c.Stderr))
	if err != nil {
		return err
	}
	c.ExitStatus = status
	return nil
}
