package core

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/josephlewis42/tinyos/core/config"
	"github.com/josephlewis42/tinyos/core/console"
	"github.com/josephlewis42/tinyos/core/kernel"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestImages(t *testing.T) {
	assert.Equal(t, []string{"cat", "echo", "false", "init", "ls", "sh", "true", "wc"}, Images())
}

func TestNewResolver(t *testing.T) {
	resolve, err := NewResolver(config.Default())
	assert.NoError(t, err)

	for _, name := range Images() {
		assert.NotNil(t, resolve(name), name)
	}
	assert.Nil(t, resolve("missing"))
}

func TestNewResolver_badInitCommand(t *testing.T) {
	cfg := config.Default()
	cfg.Init.Command = `sh "unterminated`

	_, err := NewResolver(cfg)
	assert.Error(t, err)
}

func TestNewResolver_badShellOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Shell.MaxArgs = 1

	_, err := NewResolver(cfg)
	assert.EqualError(t, err, "shell: max args 1: must be between 2 and 17")
}

func TestNewResolver_emptyPrompt(t *testing.T) {
	cfg := config.Default()
	cfg.Shell.Prompt = ""

	machine, err := NewMachine(cfg, "", nil, zap.NewNop())
	assert.NoError(t, err)
	defer machine.Halt(nil)

	var out bytes.Buffer
	status, err := machine.Run("sh", []string{"sh"}, kernel.NewVIOAdapter(strings.NewReader("echo hi\nexit\n"), &out, &out))
	assert.NoError(t, err)
	assert.Equal(t, 0, status)
	assert.Equal(t, "hi\n", out.String())
}

func TestNewMachine_run(t *testing.T) {
	machine, err := NewMachine(config.Default(), "", nil, zap.NewNop())
	assert.NoError(t, err)
	defer machine.Halt(nil)

	var out bytes.Buffer
	status, err := machine.Run("echo", []string{"echo", "hello"}, kernel.NewVIOAdapter(nil, &out, &out))
	assert.NoError(t, err)
	assert.Equal(t, 0, status)
	assert.Equal(t, "hello\n", out.String())
}

func TestNewMachine_boot(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := &syncBuffer{}
	con, err := console.New(console.Options{
		In:    strings.NewReader("echo hello world\nnope\n"),
		Out:   out,
		OnEOF: cancel,
	})
	assert.NoError(t, err)

	machine, err := NewMachine(config.Default(), "", con, zap.NewNop())
	assert.NoError(t, err)

	assert.NoError(t, machine.Boot(ctx))
	assert.NotEqual(t, context.DeadlineExceeded, ctx.Err(), "halted by the timeout")

	got := out.String()
	assert.True(t, strings.HasPrefix(got, "init: starting\n$ hello world\n$ exec failed: nope: file does not exist\n$ "), got)
}

func TestNewMachine_customShell(t *testing.T) {
	cfg := config.Default()
	cfg.Shell.Prompt = "tinyos> "
	cfg.Init.Command = "sh --ignored"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := &syncBuffer{}
	con, err := console.New(console.Options{
		In:    strings.NewReader("true\n"),
		Out:   out,
		OnEOF: cancel,
	})
	assert.NoError(t, err)

	machine, err := NewMachine(cfg, "", con, zap.NewNop())
	assert.NoError(t, err)
	assert.NoError(t, machine.Boot(ctx))

	assert.True(t, strings.HasPrefix(out.String(), "init: starting\ntinyos> tinyos> "), out.String())
}

func TestNewMachine_bootID(t *testing.T) {
	id := NewBootID()
	machine, err := NewMachine(config.Default(), id, nil, zap.NewNop())
	assert.NoError(t, err)
	defer machine.Halt(nil)

	assert.Equal(t, id, machine.BootID())
	assert.NotEqual(t, id, NewBootID())
}
