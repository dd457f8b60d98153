package cmd

import (
	"errors"
	"io/fs"
	"log"

	"github.com/josephlewis42/tinyos/core/config"
	"github.com/josephlewis42/tinyos/core/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cfgPath string

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)

	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Couldn't load config: did you run init?")
	}

	return configuration, err
}

// loadConfigOrDefault falls back to the built in configuration if the config
// directory wasn't initialized.
func loadConfigOrDefault() (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Println("No config found, using the built in defaults; logs won't be saved.")
		return config.Default(), nil
	}
	return configuration, err
}

// openAppLogger creates a logger appending to the configuration's app log.
// The returned function flushes and closes it.
func openAppLogger(configuration *config.Configuration) (*zap.Logger, func(), error) {
	fd, err := configuration.OpenAppLog()
	if err != nil {
		return nil, nil, err
	}

	appLogger, err := logger.NewLogger(logger.Config{
		Level:  configuration.Log.Level,
		Format: configuration.Log.Format,
	}, fd)
	if err != nil {
		fd.Close()
		return nil, nil, err
	}

	return appLogger, func() {
		appLogger.Sync()
		fd.Close()
	}, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tinyos",
	Short: "A tiny teaching operating system",
	Long: `A tiny teaching operating system: a simulated process table running
an init that supervises an interactive shell.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".", "config path")
}
