package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkdir(t *testing.T, home, name string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(home, name), 0o755))
}

func writeFile(t *testing.T, home, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(home, name), data, 0o644))
}

func TestCWDAndPWD(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	mkdir(t, home, "docs/reports")
	writeFile(t, home, "docs/readme.txt", []byte("hi"))
	_, addr := startServer(t, testConfig(home))
	c := dialRaw(t, addr)
	c.login()

	tests := []struct {
		line string
		code int
		pwd  string
	}{
		{"CWD docs", 250, "/docs"},
		{"CWD reports", 250, "/docs/reports"},
		{"CWD ..", 250, "/docs"},
		{"CWD /", 250, "/"},
		{"CWD /docs/reports/../reports", 250, "/docs/reports"},
		{"CWD missing", 550, "/docs/reports"},
		{"CWD /docs/readme.txt", 550, "/docs/reports"},
		{"CWD ../../..", 550, "/docs/reports"},
		{"CWD /../../etc", 550, "/docs/reports"},
	}

	for _, tt := range tests {
		code, msg := c.cmd(tt.line)
		assert.Equal(t, tt.code, code, "%s: %s", tt.line, msg)
		if code == 550 {
			assert.Equal(t, "Failed to change directory.", msg)
		}
		assert.Equal(t, quotePath(tt.pwd)+" is the current directory.", c.expect("PWD", 257), tt.line)
	}
}

func TestCWDSymlinkEscape(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(home, "escape")))
	mkdir(t, home, "inside")
	require.NoError(t, os.Symlink(filepath.Join(home, "inside"), filepath.Join(home, "alias")))

	_, addr := startServer(t, testConfig(home))
	c := dialRaw(t, addr)
	c.login()

	c.expect("CWD escape", 550)
	c.expect("CWD alias", 250)
	assert.Equal(t, `"/inside" is the current directory.`, c.expect("PWD", 257))
}

func TestSIZE(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	writeFile(t, home, "file.bin", make([]byte, 1234))
	mkdir(t, home, "dir")
	_, addr := startServer(t, testConfig(home))
	c := dialRaw(t, addr)
	c.login()

	assert.Equal(t, "1234", c.expect("SIZE file.bin", 213))
	assert.Equal(t, "1234", c.expect("SIZE /file.bin", 213))
	assert.Equal(t, "Could not get file size.", c.expect("SIZE missing", 550))
	c.expect("SIZE dir", 550)
	c.expect("SIZE ../../../etc/passwd", 550)
}

func TestDELE(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	writeFile(t, home, "doomed.txt", []byte("x"))
	outside := t.TempDir()
	writeFile(t, outside, "victim.txt", []byte("x"))
	_, addr := startServer(t, testConfig(home))
	c := dialRaw(t, addr)
	c.login()

	assert.Equal(t, "Deleted OK.", c.expect("DELE doomed.txt", 250))
	assert.NoFileExists(t, filepath.Join(home, "doomed.txt"))

	assert.Equal(t, "Deletion failed.", c.expect("DELE doomed.txt", 550))

	rel, err := filepath.Rel(home, filepath.Join(outside, "victim.txt"))
	require.NoError(t, err)
	c.expect("DELE "+rel, 550)
	assert.FileExists(t, filepath.Join(outside, "victim.txt"))

	c.expect("DELE /", 550)
	assert.DirExists(t, home)
}

func TestRename(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	writeFile(t, home, "a.txt", []byte("payload"))
	mkdir(t, home, "sub")
	_, addr := startServer(t, testConfig(home))
	c := dialRaw(t, addr)
	c.login()

	assert.Equal(t, "Requested file action pending further information.", c.expect("RNFR a.txt", 350))
	c.expect("CWD sub", 250)
	assert.Equal(t, "Renamed OK.", c.expect("RNTO b.txt", 250))

	assert.NoFileExists(t, filepath.Join(home, "a.txt"))
	got, err := os.ReadFile(filepath.Join(home, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	// The pending state was consumed.
	c.expect("RNTO c.txt", 550)
	assert.FileExists(t, filepath.Join(home, "sub", "b.txt"))
}

func TestRNTOWithoutRNFR(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	writeFile(t, home, "keep.txt", []byte("x"))
	_, addr := startServer(t, testConfig(home))
	c := dialRaw(t, addr)
	c.login()

	assert.Equal(t, "Rename failed.", c.expect("RNTO new.txt", 550))
	assert.FileExists(t, filepath.Join(home, "keep.txt"))
	assert.NoFileExists(t, filepath.Join(home, "new.txt"))
}

func TestRenameSecondRNFROverwrites(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	writeFile(t, home, "first.txt", []byte("1"))
	writeFile(t, home, "second.txt", []byte("2"))
	_, addr := startServer(t, testConfig(home))
	c := dialRaw(t, addr)
	c.login()

	c.expect("RNFR first.txt", 350)
	c.expect("RNFR second.txt", 350)
	c.expect("RNTO third.txt", 250)

	assert.FileExists(t, filepath.Join(home, "first.txt"))
	assert.NoFileExists(t, filepath.Join(home, "second.txt"))
	assert.FileExists(t, filepath.Join(home, "third.txt"))
}

func TestRenameFailures(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	writeFile(t, home, "a.txt", []byte("x"))
	_, addr := startServer(t, testConfig(home))
	c := dialRaw(t, addr)
	c.login()

	c.expect("RNFR missing.txt", 550)
	c.expect("RNFR ../../../etc/passwd", 550)

	// A refused target still clears the pending rename.
	c.expect("RNFR a.txt", 350)
	c.expect("RNTO ../../outside.txt", 550)
	c.expect("RNTO b.txt", 550)
	assert.FileExists(t, filepath.Join(home, "a.txt"))
}

func TestReadOnly(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	writeFile(t, home, "a.txt", []byte("x"))
	cfg := testConfig(home)
	cfg.ReadOnly = true
	_, addr := startServer(t, cfg)
	c := dialRaw(t, addr)
	c.login()

	c.expect("DELE a.txt", 550)
	c.expect("RNFR a.txt", 350)
	c.expect("RNTO b.txt", 550)
	assert.FileExists(t, filepath.Join(home, "a.txt"))

	dataAddr := c.pasv()
	c.expect("STOR new.txt", 450)
	assert.NoFileExists(t, filepath.Join(home, "new.txt"))

	got, _ := c.retrieve(dataAddr, "RETR a.txt")
	assert.Equal(t, "x", string(got))
}
