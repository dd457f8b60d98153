package commands

import (
	"fmt"
	"io"

	"github.com/josephlewis42/tinyos/core/kernel"
)

// Cat implements the UNIX cat command.
func Cat(p kernel.Proc) int {
	cmd := &SimpleCommand{
		Use:   "cat [FILE]...",
		Short: "Concatenate FILE(s) to standard output.",
	}

	opts := cmd.Flags()

	return cmd.Run(p, func() int {
		files := opts.Args()
		if len(files) == 0 {
			files = []string{"-"}
		}

		exitCode := 0
		for _, arg := range files {
			if arg == "-" {
				io.Copy(kernel.Stdout(p), kernel.Stdin(p))
				continue
			}

			fd, err := p.FS().Open(kernel.ResolvePath(arg))
			if err != nil {
				fmt.Fprintf(kernel.Stderr(p), "cat: %v\n", err)
				exitCode = 1
				continue
			}

			io.Copy(kernel.Stdout(p), fd)
			fd.Close()
		}

		return exitCode
	})
}

var _ CommandFunc = Cat

func init() {
	addCmd("cat", Cat)
}
