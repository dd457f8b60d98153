package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	fcolor "github.com/fatih/color"
	"github.com/josephlewis42/tinyos/core/kernel"
	"github.com/spf13/afero"
)

// Ls implements the UNIX ls command.
func Ls(p kernel.Proc) int {
	cmd := &SimpleCommand{
		Use:   "ls [OPTION]... [FILE]...",
		Short: "List information about the FILEs (/ by default).",
	}

	opts := cmd.Flags()
	listAll := opts.Bool('a', "don't ignore entries starting with .")
	longListing := opts.Bool('l', "use a long listing format")
	humanSize := opts.BoolLong("human-readable", 'h', "print human readable sizes")
	cmd.ShowHelp = opts.BoolLong("help", '?', "show this help and exit")

	var color ColorPrinter
	color.Init(opts)

	return cmd.Run(p, func() int {
		toList := opts.Args()
		if len(toList) == 0 {
			toList = append(toList, "/")
		}
		sort.Strings(toList)

		sizeFmt := func(bytes int64) string {
			return fmt.Sprintf("%d", bytes)
		}
		if *humanSize {
			sizeFmt = BytesToHuman
		}

		w := kernel.Stdout(p)
		fsys := p.FS()
		exitCode := 0

		writeEntries := func(entries []os.FileInfo) {
			if !*longListing {
				for _, f := range entries {
					fmt.Fprintln(w, color.Sprintf(Dircolor(f), "%s", f.Name()))
				}
				return
			}

			var totalSize int64
			for _, f := range entries {
				totalSize += f.Size()
			}
			fmt.Fprintf(w, "total %s\n", sizeFmt(totalSize))

			tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
			for _, f := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\n",
					f.Mode().String(),
					sizeFmt(f.Size()),
					color.Sprintf(Dircolor(f), "%s", f.Name()))
			}
			tw.Flush()
		}

		var files []os.FileInfo
		var dirs []string
		for _, name := range toList {
			info, err := fsys.Stat(kernel.ResolvePath(name))
			if err != nil {
				fmt.Fprintf(kernel.Stderr(p), "ls: cannot access '%s': %v\n", name, unwrapErr(err))
				exitCode = 1
				continue
			}

			if info.IsDir() {
				dirs = append(dirs, name)
			} else {
				files = append(files, namedInfo{info, name})
			}
		}

		if len(files) > 0 {
			writeEntries(files)
		}

		showDirectoryNames := len(toList) > 1
		for i, dir := range dirs {
			if showDirectoryNames {
				if i > 0 || len(files) > 0 {
					fmt.Fprintln(w)
				}
				fmt.Fprintf(w, "%s:\n", dir)
			}

			entries, err := afero.ReadDir(fsys, kernel.ResolvePath(dir))
			if err != nil {
				fmt.Fprintf(kernel.Stderr(p), "ls: cannot open directory '%s': %v\n", dir, unwrapErr(err))
				exitCode = 1
				continue
			}

			var shown []os.FileInfo
			for _, entry := range entries {
				if !*listAll && strings.HasPrefix(entry.Name(), ".") {
					continue
				}
				shown = append(shown, entry)
			}
			writeEntries(shown)
		}

		return exitCode
	})
}

// unwrapErr strips the operation and path, they're already in the message.
func unwrapErr(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	return err
}

// namedInfo overrides the entry name with the operand the user typed.
type namedInfo struct {
	os.FileInfo
	name string
}

func (n namedInfo) Name() string {
	return n.name
}

// Color listing comes from: https://askubuntu.com/a/884513
var dircolors = []struct {
	color *fcolor.Color
	test  func(fileInfo os.FileInfo) bool
}{
	// Directories are bold blue.
	{color: ColorBoldBlue, test: os.FileInfo.IsDir},
	// Executables are bold green.
	{color: ColorBoldGreen, test: func(fi os.FileInfo) bool {
		return fi.Mode().Perm()&0111 > 0
	}},
}

// Dircolor picks the color of an entry in a listing.
func Dircolor(fileInfo os.FileInfo) *fcolor.Color {
	for _, dc := range dircolors {
		if dc.test(fileInfo) {
			return dc.color
		}
	}

	// Anything else defaults to white.
	return fcolor.New(fcolor.FgHiWhite)
}

var _ CommandFunc = Ls

func init() {
	addCmd("ls", Ls)
}
