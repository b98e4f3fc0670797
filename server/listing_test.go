package server

import (
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileInfoListing(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/srv/ftp/sub", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/srv/ftp/a.txt", []byte("hello"), 0o644))
	mtime := time.Date(2024, time.March, 5, 14, 7, 0, 0, time.Local)
	require.NoError(t, fs.Chtimes("/srv/ftp/a.txt", mtime, mtime))

	l := NewFileInfoListing(fs)

	lines, err := l.List("/srv/ftp")
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "total 2", lines[0])
	assert.Equal(t, "-rw-r--r-- 1 owner group 5 Mar 05 14:07 a.txt", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "drwxr-xr-x 1 owner group "), lines[2])
	assert.True(t, strings.HasSuffix(lines[2], " sub"), lines[2])

	lines, err = l.List("/srv/ftp/a.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"-rw-r--r-- 1 owner group 5 Mar 05 14:07 a.txt"}, lines)

	_, err = l.List("/srv/ftp/missing")
	assert.Error(t, err)
}

func TestCommandListing(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("ls"); err != nil {
		t.Skip("ls not available")
	}
	home := t.TempDir()
	writeFile(t, home, "listed.txt", []byte("x"))

	l, err := NewCommandListing("ls", "-l")
	require.NoError(t, err)

	lines, err := l.List(home)
	require.NoError(t, err)
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasSuffix(lines[len(lines)-1], "listed.txt"), lines)

	_, err = l.List(filepath.Join(home, "missing"))
	assert.Error(t, err)
}

func TestCommandListingErrors(t *testing.T) {
	t.Parallel()
	_, err := NewCommandListing()
	assert.Error(t, err)

	_, err = NewCommandListing("definitely-not-a-listing-command-on-path")
	assert.Error(t, err)
}

func TestDefaultListingFallback(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t.TempDir())
	cfg.ListCommand = []string{"definitely-not-a-listing-command-on-path"}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })

	assert.IsType(t, &FileInfoListing{}, s.listing)
}
