package server

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// ListingProvider produces the text of a LIST reply for an absolute,
// already sandbox-checked path. Each returned string is one line without
// its terminator.
type ListingProvider interface {
	List(path string) ([]string, error)
}

// ListingFunc adapts a function to the ListingProvider interface.
type ListingFunc func(path string) ([]string, error)

// List calls f(path).
func (f ListingFunc) List(path string) ([]string, error) {
	return f(path)
}

// CommandListing runs an external ls-like command and returns its standard
// output. The path is appended as the last argument.
type CommandListing struct {
	argv []string
}

// NewCommandListing creates a CommandListing for argv, e.g. ["ls", "-l"].
// The program is looked up in PATH once, here.
func NewCommandListing(argv ...string) (*CommandListing, error) {
	if len(argv) == 0 {
		return nil, errors.New("listing command is empty")
	}
	bin, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, errors.Wrapf(err, "look up %s failed", argv[0])
	}
	full := append([]string{bin}, argv[1:]...)
	return &CommandListing{argv: full}, nil
}

// List runs the command for path.
func (c *CommandListing) List(path string) ([]string, error) {
	args := append(append([]string{}, c.argv[1:]...), path)
	cmd := exec.Command(c.argv[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrapf(err, "%s failed: %s", strings.Join(cmd.Args, " "), strings.TrimSpace(stderr.String()))
	}
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, errors.Wrap(scanner.Err(), "read listing output failed")
}

// FileInfoListing formats a Unix-style long listing from file metadata.
// It is used when no listing command is available.
type FileInfoListing struct {
	fs afero.Fs
}

// NewFileInfoListing creates a FileInfoListing reading through fs.
func NewFileInfoListing(fs afero.Fs) *FileInfoListing {
	return &FileInfoListing{fs: fs}
}

// List returns one line per directory entry, or a single line for a file.
func (l *FileInfoListing) List(path string) ([]string, error) {
	info, err := l.fs.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s failed", path)
	}
	if !info.IsDir() {
		return []string{formatEntry(info)}, nil
	}
	entries, err := afero.ReadDir(l.fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "read dir %s failed", path)
	}
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, fmt.Sprintf("total %d", len(entries)))
	for _, entry := range entries {
		lines = append(lines, formatEntry(entry))
	}
	return lines, nil
}

func formatEntry(info os.FileInfo) string {
	return fmt.Sprintf("%s 1 owner group %d %s %s",
		info.Mode().String(), info.Size(), info.ModTime().Format("Jan 02 15:04"), info.Name())
}
