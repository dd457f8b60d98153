package cmd

import (
	"log"
	"os"
	"time"

	"github.com/josephlewis42/tinyos/core/ttylog"
	"github.com/spf13/cobra"
)

var (
	idleTimeLimit time.Duration
	noDelay       bool
)

// replayCmd plays back a recorded console session
var replayCmd = &cobra.Command{
	Use:   "replay FILE.cast",
	Short: "Replay a recorded console session in the terminal.",
	Long:  `Plays a session recorded with boot --record or serve --record back to the current terminal.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		fd, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer fd.Close()

		sink := ttylog.NewClientOutput(cmd.OutOrStdout())
		if !noDelay {
			sink = ttylog.NewRealTimePlayback(idleTimeLimit, sink)
		}
		source := ttylog.NewAsciicastLogSource(fd)
		header, err := source.Header()
		if err != nil {
			log.Printf("Unreadable header: %v", err)
		} else {
			log.Printf("Replaying %q recorded %s (%dx%d)", header.Title,
				time.Unix(header.Timestamp, 0).UTC().Format(time.RFC3339), header.Width, header.Height)
		}

		return ttylog.Replay(source, sink)
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().DurationVarP(&idleTimeLimit, "idle-time-limit", "i", 3*time.Second, "Maximum time output can be idle. (e.g. 3s, 2m, 100ms)")
	replayCmd.Flags().BoolVar(&noDelay, "no-delay", false, "print the whole session at once")
}
