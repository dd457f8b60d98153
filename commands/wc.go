package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/josephlewis42/tinyos/core/kernel"
)

// wcTally accumulates the counts for one input.
type wcTally struct {
	Lines int
	Words int
	Bytes int
	Chars int

	inWord bool
}

var _ io.Writer = (*wcTally)(nil)

func (t *wcTally) Write(data []byte) (int, error) {
	for _, c := range data {
		t.Bytes++

		// UTF-8 continuation bytes are 0b10xxxxxx.
		if c&0xC0 != 0x80 {
			t.Chars++
		}

		switch c {
		case '\n':
			t.Lines++
			t.inWord = false
		case ' ', '\t', '\r', '\v', '\f':
			t.inWord = false
		default:
			if !t.inWord {
				t.Words++
			}
			t.inWord = true
		}
	}

	return len(data), nil
}

// Add folds other into the running total.
func (t *wcTally) Add(other *wcTally) {
	t.Lines += other.Lines
	t.Words += other.Words
	t.Bytes += other.Bytes
	t.Chars += other.Chars
}

// countFile tallies a single file, closing it before returning.
func countFile(p kernel.Proc, name string) (*wcTally, error) {
	fd, err := p.FS().Open(kernel.ResolvePath(name))
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	var tally wcTally
	if _, err := io.Copy(&tally, fd); err != nil {
		return nil, err
	}
	return &tally, nil
}

// Wc implements the POSIX command by the same name.
// https://pubs.opengroup.org/onlinepubs/009695399/utilities/wc.html
func Wc(p kernel.Proc) int {
	cmd := &SimpleCommand{
		Use:   "wc [-c|-m] [-lw] [FILE...]",
		Short: "Print newline, word, and byte counts for each file.",
	}

	opts := cmd.Flags()
	showLines := opts.Bool('l', "print the newline counts")
	showWords := opts.Bool('w', "print the word counts")
	showBytes := opts.Bool('c', "print the byte counts")
	showChars := opts.Bool('m', "print the character counts")

	return cmd.Run(p, func() int {
		defaults := !(*showLines || *showWords || *showBytes || *showChars)
		stdout := kernel.Stdout(p)

		report := func(t *wcTally, name string) {
			var fields []string
			if *showLines || defaults {
				fields = append(fields, fmt.Sprint(t.Lines))
			}
			if *showWords || defaults {
				fields = append(fields, fmt.Sprint(t.Words))
			}
			if *showBytes || defaults {
				fields = append(fields, fmt.Sprint(t.Bytes))
			}
			if *showChars {
				fields = append(fields, fmt.Sprint(t.Chars))
			}
			if name != "" {
				fields = append(fields, name)
			}
			fmt.Fprintln(stdout, strings.Join(fields, " "))
		}

		files := opts.Args()
		if len(files) == 0 {
			var tally wcTally
			if _, err := io.Copy(&tally, kernel.Stdin(p)); err != nil {
				fmt.Fprintf(kernel.Stderr(p), "wc: read error: %v\n", err)
				return 1
			}
			report(&tally, "")
			return 0
		}

		status := 0
		var total wcTally
		for _, name := range files {
			tally, err := countFile(p, name)
			if err != nil {
				fmt.Fprintf(kernel.Stderr(p), "wc: cannot open '%s': %v\n", name, unwrapErr(err))
				status = 1
				continue
			}
			total.Add(tally)
			report(tally, name)
		}

		if len(files) > 1 {
			report(&total, "total")
		}
		return status
	})
}

var _ CommandFunc = Wc

func init() {
	addCmd("wc", Wc)
}
