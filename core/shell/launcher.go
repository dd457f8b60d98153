package shell

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/josephlewis42/tinyos/core/kernel"
)

// Outcome says what SpawnAndExecute did.
type Outcome int

const (
	// Reaped means a child ran and the parent collected it.
	Reaped Outcome = iota
	// ForkFailed means no child was created.
	ForkFailed
	// Detached is returned on the child side once it replaced its image or
	// exited. The caller must return from its step immediately.
	Detached
)

// Result is the outcome of SpawnAndExecute.
type Result struct {
	Outcome Outcome
	// Record holds the reaped child, its status is informational only.
	Record kernel.ExitRecord
	// Err is set for ForkFailed, and for Reaped if Wait failed.
	Err error
}

// SpawnAndExecute runs path as a child of p and waits for a child to exit.
// It must be the first system call of the caller's step.
//
// The wait isn't filtered by pid, so the caller must not have any other
// children.
func SpawnAndExecute(p kernel.Proc, path string, argv []string) Result {
	res := p.Fork()
	switch res.Side {
	case kernel.ForkFailed:
		fmt.Fprint(kernel.Stdout(p), "fork failed\n")
		return Result{Outcome: ForkFailed, Err: res.Err}

	case kernel.ForkChild:
		if err := p.Exec(path, argv); err != nil {
			fmt.Fprintf(kernel.Stdout(p), "exec failed: %s: %v\n", path, describe(err))
			p.Exit(1)
		}
		return Result{Outcome: Detached}
	}

	rec, err := p.Wait()
	return Result{Outcome: Reaped, Record: rec, Err: err}
}

func describe(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	return err
}
