package cmd

import (
	"fmt"

	"github.com/josephlewis42/tinyos/core"
	"github.com/spf13/cobra"
)

// programsCmd lists the installed images
var programsCmd = &cobra.Command{
	Use:   "programs",
	Short: "List the programs installed on every machine.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range core.Images() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(programsCmd)
}
