package server

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var (
	errOutsideHome = errors.New("path is outside the ftp home")
	errBrokenPath  = errors.New("path cannot be canonicalized")
)

// PathResolver maps client pathnames onto the host filesystem and enforces
// the sandbox: every path handed to the filesystem must be the home root
// itself or one of its descendants, after symlinks and ".." are resolved.
type PathResolver struct {
	home string
}

// NewPathResolver creates a resolver rooted at home. The home directory
// must exist; it is stored in canonical form.
func NewPathResolver(home string) (*PathResolver, error) {
	abs, err := filepath.Abs(home)
	if err != nil {
		return nil, errors.Wrap(err, "resolve home failed")
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, errors.Wrap(err, "resolve home failed")
	}
	return &PathResolver{home: canonical}, nil
}

// Home returns the canonical home root.
func (r *PathResolver) Home() string {
	return r.home
}

// Resolve returns the canonical absolute path for pathname as seen from the
// client working directory cwd. Absolute pathnames are taken relative to the
// home root; relative ones relative to home+cwd.
//
// The final components of the path do not need to exist (STOR targets),
// but every component that does exist is resolved through symlinks.
// Resolve does not check the sandbox; callers use IsAccessible.
func (r *PathResolver) Resolve(cwd, pathname string) (string, error) {
	var p string
	if strings.HasPrefix(pathname, "/") {
		p = filepath.Join(r.home, pathname)
	} else {
		p = filepath.Join(r.home, cwd, pathname)
	}
	return canonicalize(p)
}

// canonicalize resolves symlinks in the longest existing prefix of p and
// appends the remaining, not yet existing, components.
func canonicalize(p string) (string, error) {
	p = filepath.Clean(p)
	var rest []string
	for {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", errors.Wrap(errBrokenPath, err.Error())
		}
		// A component that exists but cannot be followed is a dangling
		// symlink. Creating through it would write wherever it points.
		if _, lerr := os.Lstat(p); lerr == nil {
			return "", errors.Wrapf(errBrokenPath, "dangling symlink %s", p)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", errors.Wrap(errBrokenPath, err.Error())
		}
		rest = append([]string{filepath.Base(p)}, rest...)
		p = parent
	}
}

// IsAccessible reports whether abs, a canonical path, is the home root or
// lies beneath it.
func (r *PathResolver) IsAccessible(abs string) bool {
	if abs == r.home {
		return true
	}
	prefix := r.home
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(abs, prefix)
}

// IsReadable reports whether abs exists and the process may read it.
func (r *PathResolver) IsReadable(abs string) bool {
	return unix.Access(abs, unix.R_OK) == nil
}

// IsWritable reports whether abs exists and the process may write it.
func (r *PathResolver) IsWritable(abs string) bool {
	return unix.Access(abs, unix.W_OK) == nil
}

// Virtual converts a canonical path inside the home root into the
// "/"-rooted form clients see.
func (r *PathResolver) Virtual(abs string) string {
	rel, err := filepath.Rel(r.home, abs)
	if err != nil || rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}

// resolveAccessible resolves pathname and applies the sandbox check.
func (r *PathResolver) resolveAccessible(cwd, pathname string) (string, error) {
	abs, err := r.Resolve(cwd, pathname)
	if err != nil {
		return "", err
	}
	if !r.IsAccessible(abs) {
		return "", errors.Wrap(errOutsideHome, pathname)
	}
	return abs, nil
}
