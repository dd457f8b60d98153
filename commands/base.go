// Package commands holds the user programs installed on every machine.
package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/josephlewis42/tinyos/core/kernel"
	getopt "github.com/pborman/getopt/v2"
)

// CommandFunc is a straight-line user program.
type CommandFunc = kernel.ProcessFunc

// AllCommands holds every registered program by image name.
var AllCommands = make(map[string]CommandFunc)

// addCmd registers a program, it's installed at /<name>.
func addCmd(name string, cmd CommandFunc) {
	if _, ok := AllCommands[name]; ok {
		panic(fmt.Sprintf("command %q registered twice", name))
	}
	AllCommands[name] = cmd
}

// Images lists the registered image names in order.
func Images() []string {
	var out []string
	for name := range AllCommands {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Resolver resolves registered programs.
func Resolver(name string) kernel.Loader {
	if cmd, ok := AllCommands[name]; ok {
		return cmd.Load
	}
	return nil
}

func BytesToHuman(bytes int64) string {
	for _, e := range []struct {
		unit  string
		power int64
	}{
		{"P", 1e15},
		{"T", 1e12},
		{"G", 1e9},
		{"M", 1e6},
		{"K", 1e3},
	} {
		quotient := bytes / e.power
		switch {
		case quotient == 0:
			continue
		case quotient > 10:
			return fmt.Sprintf("%d%s", quotient, e.unit)
		default:
			return fmt.Sprintf("%0.1f%s", float64(bytes)/float64(e.power), e.unit)
		}
	}

	return fmt.Sprintf("%d", bytes)
}

type SimpleCommand struct {
	// Use holds a one line usage string
	Use string
	// Short holds a one line description of the command.
	Short string
	// ShowHelp sets whether help is displayed or not.
	// If this is non-nil when Run() is called, then the default help flag isn't
	// added.
	ShowHelp *bool
	// NeverBail always runs the callback, even if flag parsing failed.
	NeverBail bool

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (s *SimpleCommand) Flags() *getopt.Set {
	if s.flags == nil {
		s.flags = getopt.New()
	}

	return s.flags
}

// PrintHelp writes help for the command to the given writer.
func (s *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, s.Use)
	fmt.Fprintln(w, s.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	s.Flags().PrintOptions(w)
}

// Run the command, if flag parsing was succcessful call the callback.
func (s *SimpleCommand) Run(p kernel.Proc, callback func() int) int {
	opts := s.Flags()

	// Add help flag if not overridden.
	if s.ShowHelp == nil {
		s.ShowHelp = opts.BoolLong("help", 'h', "show this help and exit")
	}

	err := opts.Getopt(p.Args(), nil)
	if err != nil && !s.NeverBail {
		fmt.Fprintf(kernel.Stderr(p), "error: %s\n\n", err)

		s.PrintHelp(kernel.Stdout(p))
		return 1
	}

	if *s.ShowHelp {
		s.PrintHelp(kernel.Stdout(p))
		return 0
	}

	return callback()
}

// RunE is like Run, but a callback error is printed and exits with status 1.
func (s *SimpleCommand) RunE(p kernel.Proc, callback func() error) int {
	return s.Run(p, func() int {
		if err := callback(); err != nil {
			fmt.Fprintf(kernel.Stderr(p), "%s: %v\n", programName(p), err)
			return 1
		}
		return 0
	})
}

func programName(p kernel.Proc) string {
	if args := p.Args(); len(args) > 0 {
		return args[0]
	}
	return "?"
}

const (
	colorAlways = "always"
	colorAuto   = "auto"
	colorNever  = "never"
)

var (
	ColorBoldBlue  = color.New(color.FgBlue, color.Bold)
	ColorBoldGreen = color.New(color.FgGreen, color.Bold)
)

type ColorPrinter struct {
	value *string
}

// Init adds the --color flag.
func (c *ColorPrinter) Init(flags *getopt.Set) {
	c.value = flags.EnumLong(
		"color",
		rune(0), // No short flag.
		[]string{colorAlways, colorAuto, colorNever},
		colorAuto,
		"colorize the output")
}

// ShouldColor reports whether output is colored. Descriptors carry no
// terminal information, so auto never colors.
func (c *ColorPrinter) ShouldColor() bool {
	return c.value != nil && *c.value == colorAlways
}

func (c *ColorPrinter) Sprintf(col *color.Color, format string, a ...interface{}) string {
	if !c.ShouldColor() {
		return fmt.Sprintf(format, a...)
	}

	// Colors check the host's stdout otherwise.
	forced := *col
	forced.EnableColor()
	return forced.Sprintf(format, a...)
}
