package cmd

import (
	"os"

	"github.com/josephlewis42/tinyos/core"
	"github.com/josephlewis42/tinyos/core/kernel"
	"github.com/spf13/cobra"
)

// runCmd runs a single program without booting init
var runCmd = &cobra.Command{
	Use:   "run PROGRAM [ARG]...",
	Short: "Run a single program on a fresh machine and exit with its status.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, err := loadConfigOrDefault()
		if err != nil {
			return err
		}

		appLogger, closeLog, err := openAppLogger(configuration)
		if err != nil {
			return err
		}

		machine, err := core.NewMachine(configuration, "", nil, appLogger)
		if err != nil {
			closeLog()
			return err
		}

		files := kernel.NewVIOAdapter(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		status, err := machine.Run(args[0], args, files)
		machine.Halt(nil)
		closeLog()

		if err != nil {
			return err
		}
		if status != 0 {
			os.Exit(status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Everything after the program name belongs to the program.
	runCmd.Flags().SetInterspersed(false)
}
