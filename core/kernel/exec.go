package kernel

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/spf13/afero"
)

const (
	// MaxExecArgs is the largest argument vector Exec accepts.
	MaxExecArgs = 16

	// ImageMagic starts every executable file, it's followed by the name of
	// the image to load.
	ImageMagic = "#!tinyos "

	maxHeaderLen = 128
)

// ResolvePath resolves an exec path against the root directory. There is no
// search path and no working directory.
func ResolvePath(file string) string {
	return path.Join("/", file)
}

func findExecutable(fsys afero.Fs, file string) error {
	d, err := fsys.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0111 != 0 {
		return nil
	}
	return fs.ErrPermission
}

func readImageName(fsys afero.Fs, file string) (string, error) {
	fd, err := fsys.Open(file)
	if err != nil {
		return "", err
	}
	defer fd.Close()

	header, err := bufio.NewReaderSize(fd, maxHeaderLen).ReadSlice('\n')
	switch {
	case errors.Is(err, bufio.ErrBufferFull):
		return "", ErrExecFormat
	case err != nil && len(header) == 0:
		return "", ErrExecFormat
	}

	if !bytes.HasPrefix(header, []byte(ImageMagic)) {
		return "", ErrExecFormat
	}

	name := strings.TrimSpace(string(header[len(ImageMagic):]))
	if name == "" {
		return "", ErrExecFormat
	}
	return name, nil
}

// Mkfs installs an executable header file for each image at /<name>.
func Mkfs(fsys afero.Fs, images []string) error {
	for _, name := range images {
		contents := fmt.Sprintf("%s%s\n", ImageMagic, name)
		if err := afero.WriteFile(fsys, ResolvePath(name), []byte(contents), 0755); err != nil {
			return err
		}
	}
	return nil
}

// EncodeArgv converts argv to the form it takes crossing the exec boundary:
// an array of NUL terminated strings ending with a nil entry.
func EncodeArgv(argv []string) ([][]byte, error) {
	if len(argv) > MaxExecArgs {
		return nil, ErrArgListTooLong
	}

	out := make([][]byte, 0, len(argv)+1)
	for _, arg := range argv {
		if strings.IndexByte(arg, 0) >= 0 {
			return nil, ErrInvalidArg
		}
		out = append(out, append([]byte(arg), 0))
	}
	return append(out, nil), nil
}

// DecodeArgv reads a nil terminated argument array produced by EncodeArgv.
func DecodeArgv(wire [][]byte) ([]string, error) {
	var out []string
	for _, entry := range wire {
		if entry == nil {
			return out, nil
		}
		if len(out) == MaxExecArgs {
			return nil, ErrArgListTooLong
		}
		end := bytes.IndexByte(entry, 0)
		if len(entry) == 0 || end != len(entry)-1 {
			return nil, ErrInvalidArg
		}
		out = append(out, string(entry[:end]))
	}
	return nil, ErrInvalidArg
}
