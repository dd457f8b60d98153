package commands

import (
	"fmt"

	"github.com/josephlewis42/tinyos/core/kernel"
)

// No-op commands.
type NoOpCommand struct {
	Name     string
	Use      string
	Short    string
	Stdout   string
	ExitCode int
}

// Convert the no-op command description to a functioning command.
func (c *NoOpCommand) ToCommand() CommandFunc {
	return func(p kernel.Proc) int {
		cmd := &SimpleCommand{
			Use:   c.Use,
			Short: c.Short,
			// Never bail, even if args are bad.
			NeverBail: true,
		}

		return cmd.Run(p, func() int {
			if c.Stdout != "" {
				fmt.Fprintln(kernel.Stdout(p), c.Stdout)
			}

			return c.ExitCode
		})
	}
}

var noOpCommands = []NoOpCommand{
	{
		Name:     "true",
		Use:      "true",
		Short:    "Exit with a status code indicating success.",
		ExitCode: 0,
	},
	{
		Name:     "false",
		Use:      "false",
		Short:    "Exit with a status code indicating failure.",
		ExitCode: 1,
	},
}

func init() {
	for i := range noOpCommands {
		cmd := noOpCommands[i]
		addCmd(cmd.Name, cmd.ToCommand())
	}
}
