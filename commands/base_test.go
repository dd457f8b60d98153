package commands

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/josephlewis42/tinyos/core/kernel"
	"github.com/josephlewis42/tinyos/core/kernel/kerneltest"
	"github.com/sebdah/goldie/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
)

func ExampleBytesToHuman() {

	// < 1k is presented directly
	fmt.Println(BytesToHuman(512))

	// Multiples > 10 are shown without decimal.
	fmt.Println(BytesToHuman(23 * 10e8))

	// Multiples < 10 are shown with decimal.
	fmt.Println(BytesToHuman(5 * 1024))

	// Output: 512
	// 23G
	// 5.1K
}

func TestAllCommands(t *testing.T) {
	for _, name := range Images() {
		t.Run(name, func(t *testing.T) {
			if AllCommands[name] == nil {
				t.Fatal("nil command", name)
			}
			assert.NotNil(t, Resolver(name))
		})
	}

	assert.Nil(t, Resolver("does-not-exist"))
}

func TestImages(t *testing.T) {
	assert.Equal(t, []string{"cat", "echo", "false", "ls", "true", "wc"}, Images())
}

type goldenTestSuite map[string]goldenTest

type goldenTest struct {
	Args  []string
	Stdin string
	// Files are written to the filesystem before the command runs.
	Files map[string]string
}

func (gts goldenTestSuite) Run(t *testing.T, cmd kernel.ProcessFunc) {
	t.Helper()

	g := goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)

	for tn, tc := range gts {
		t.Run(tn, func(t *testing.T) {
			cmd := kerneltest.Command(cmd, tc.Args[0], tc.Args[1:]...)
			cmd.Stdin = strings.NewReader(tc.Stdin)
			cmd.Setup = writeFiles(tc.Files)

			out, err := cmd.CombinedOutput()
			if err != nil {
				t.Fatal(err)
			}

			g.Assert(t, tn, out)
		})
	}
}

func writeFiles(files map[string]string) func(afero.Fs) error {
	return func(fsys afero.Fs) error {
		for name, contents := range files {
			if err := afero.WriteFile(fsys, name, []byte(contents), 0644); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestSimpleCommand_RunE(t *testing.T) {
	failing := func(p kernel.Proc) int {
		cmd := &SimpleCommand{Use: "fail", Short: "Always fails."}
		return cmd.RunE(p, func() error {
			return fmt.Errorf("something broke")
		})
	}

	cmd := kerneltest.Command(failing, "fail")
	out, err := cmd.CombinedOutput()

	assert.NoError(t, err)
	assert.Equal(t, 1, cmd.ExitStatus)
	assert.Equal(t, "fail: something broke\n", string(out))
}

func TestSimpleCommand_badFlag(t *testing.T) {
	cmd := kerneltest.Command(Echo, "echo", "-x")
	out, err := cmd.CombinedOutput()

	assert.NoError(t, err)
	assert.Equal(t, 1, cmd.ExitStatus)
	assert.True(t, strings.HasPrefix(string(out), "error: unknown option: -x\n\nusage: echo"), string(out))
}
