// Package core assembles machines from their configuration and serves them
// over SSH.
package core

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/josephlewis42/tinyos/commands"
	"github.com/josephlewis42/tinyos/core/config"
	"github.com/josephlewis42/tinyos/core/kernel"
	"github.com/josephlewis42/tinyos/core/shell"
	"github.com/josephlewis42/tinyos/core/supervisor"
	"github.com/juju/ratelimit"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	// ShellImage is the interactive shell.
	ShellImage = "sh"
	// InitImage is the supervisor booted as pid 1.
	InitImage = "init"
)

// Images lists every image installed on a machine.
func Images() []string {
	out := append(commands.Images(), ShellImage, InitImage)
	sort.Strings(out)
	return out
}

// NewResolver maps image names to programs configured by cfg.
func NewResolver(cfg *config.Configuration) (kernel.Resolver, error) {
	argv, err := cfg.Init.Argv()
	if err != nil {
		return nil, fmt.Errorf("init.command: %w", err)
	}

	var throttle *ratelimit.Bucket
	if rate := cfg.Init.RespawnRate; rate > 0 {
		throttle = ratelimit.NewBucketWithRate(rate, cfg.Init.RespawnBurst)
	}

	sh, err := shell.Loader(shell.Options{
		Prompt:  cfg.Shell.Prompt,
		LineMax: cfg.Shell.LineMax,
		MaxArgs: cfg.Shell.MaxArgs,
	})
	if err != nil {
		return nil, fmt.Errorf("shell: %w", err)
	}
	initLoader := supervisor.Loader(supervisor.Options{
		Argv:     argv,
		Throttle: throttle,
	})

	return func(name string) kernel.Loader {
		switch name {
		case ShellImage:
			return sh
		case InitImage:
			return initLoader
		default:
			return commands.Resolver(name)
		}
	}, nil
}

// NewBootID generates an identifier for a machine that's about to be created.
func NewBootID() string {
	return uuid.NewString()
}

// NewMachine creates a machine with every image installed and console bound
// to init's descriptors. It isn't booted. An empty bootID gets a random one.
func NewMachine(cfg *config.Configuration, bootID string, console kernel.VIO, log *zap.Logger) (*kernel.Kernel, error) {
	resolver, err := NewResolver(cfg)
	if err != nil {
		return nil, err
	}

	fsys := afero.NewMemMapFs()
	if err := kernel.Mkfs(fsys, Images()); err != nil {
		return nil, err
	}

	return kernel.New(kernel.Options{
		FS:       fsys,
		Resolver: resolver,
		Console:  console,
		MaxProcs: cfg.Kernel.MaxProcs,
		Logger:   log,
		InitPath: cfg.Kernel.InitPath,
		BootID:   bootID,
	}), nil
}
