package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/josephlewis42/tinyos/core"
	"github.com/josephlewis42/tinyos/core/console"
	"github.com/josephlewis42/tinyos/core/kernel"
	"github.com/josephlewis42/tinyos/core/ttylog"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	haltOnEOF  bool
	recordPath string
)

// bootCmd boots a machine on the local terminal
var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Boot a machine on the local terminal.",
	Long: `Boot a machine on the local terminal.

Init starts a shell and restarts it every time it exits. The machine powers
off when the input ends (Ctrl-D on a terminal) unless --halt-on-eof=false.`,
	Args: cobra.ExactArgs(0),
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
		defer closeLog()

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		isTerminal := console.IsTerminal(os.Stdin) && console.IsTerminal(os.Stdout)
		opts := console.Options{
			In:          cmd.InOrStdin(),
			Out:         cmd.OutOrStdout(),
			LineEditing: isTerminal,
			Raw:         isTerminal,
			Width: func() int {
				width, _ := terminalSize()
				return width
			},
		}
		if haltOnEOF {
			opts.OnEOF = cancel
		}

		con, err := console.New(opts)
		if err != nil {
			return err
		}
		defer con.Close()

		bootID := core.NewBootID()
		var vio kernel.VIO = con
		if recordPath != "" {
			fd, err := os.Create(recordPath)
			if err != nil {
				return err
			}
			defer fd.Close()
			log.Printf("Recording to %s\n", recordPath)
			width, height := terminalSize()
			header := ttylog.MachineHeader(bootID, os.Getenv("TERM"), width, height)
			vio = ttylog.NewRecorder(con, ttylog.NewAsciicastLogSink(fd, header))
		}

		machine, err := core.NewMachine(configuration, bootID, vio, appLogger)
		if err != nil {
			return err
		}

		appLogger.Info("console", zap.Bool("terminal", isTerminal), zap.String("record", recordPath))
		if err := machine.Boot(ctx); err != nil {
			return fmt.Errorf("machine %s halted: %w", machine.BootID(), err)
		}
		return nil
	},
}

// terminalSize reports the size of stdout, 80x24 if it isn't a terminal.
func terminalSize() (width, height int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80, 24
	}
	return width, height
}

func init() {
	rootCmd.AddCommand(bootCmd)

	bootCmd.Flags().BoolVar(&haltOnEOF, "halt-on-eof", true, "power off when the input ends; if false the shell re-prompts at end of input")
	bootCmd.Flags().StringVar(&recordPath, "record", "", "record the session to an asciicast file")
}
