package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	path := filepath.Join(t.TempDir(), "myftpd.yaml")
	yaml := "ftp_home: " + home + `
port: 2121
public_host: 203.0.113.10
pasv_min_port: 30000
pasv_max_port: 30100
read_only: true
max_connections: 8
restrict_active_ip: true
idle_timeout: 5m
max_bandwidth: 1048576
session_bandwidth: 65536
list_command: [ls, -la]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, home, cfg.HomeRoot)
	assert.Equal(t, 2121, cfg.Port)
	assert.Equal(t, "203.0.113.10", cfg.PublicHost)
	assert.Equal(t, 30000, cfg.PasvMinPort)
	assert.Equal(t, 30100, cfg.PasvMaxPort)
	assert.True(t, cfg.ReadOnly)
	assert.Equal(t, 8, cfg.MaxConnections)
	assert.True(t, cfg.RestrictActiveIP)
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeout)
	assert.EqualValues(t, 1048576, cfg.MaxBandwidth)
	assert.EqualValues(t, 65536, cfg.SessionBandwidth)
	assert.Equal(t, []string{"ls", "-la"}, cfg.ListCommand)

	// Defaults survive for keys the file does not set.
	assert.Equal(t, "my-ftpd", cfg.ServerName)
	assert.Equal(t, "0.0.1", cfg.Version)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("no_such_key: 1\n"), 0o600))
	_, err = LoadConfig(unknown)
	assert.Error(t, err, "unknown keys are rejected")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("port: [1, 2\n"), 0o600))
	_, err = LoadConfig(bad)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	home := t.TempDir()
	file := filepath.Join(home, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty home", func(c *Config) { c.HomeRoot = "" }, true},
		{"missing home", func(c *Config) { c.HomeRoot = filepath.Join(home, "missing") }, true},
		{"home is a file", func(c *Config) { c.HomeRoot = file }, true},
		{"port too large", func(c *Config) { c.Port = 70000 }, true},
		{"negative port", func(c *Config) { c.Port = -1 }, true},
		{"inverted range", func(c *Config) { c.PasvMinPort, c.PasvMaxPort = 3000, 2000 }, true},
		{"range too large", func(c *Config) { c.PasvMinPort, c.PasvMaxPort = 3000, 70000 }, true},
		{"valid range", func(c *Config) { c.PasvMinPort, c.PasvMaxPort = 3000, 3010 }, false},
		{"negative max connections", func(c *Config) { c.MaxConnections = -1 }, true},
		{"negative bandwidth", func(c *Config) { c.MaxBandwidth = -1 }, true},
		{"negative session bandwidth", func(c *Config) { c.SessionBandwidth = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(home)
			tt.mutate(&cfg)
			_, err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCanonicalizesHome(t *testing.T) {
	t.Parallel()
	target := t.TempDir()
	link := filepath.Join(t.TempDir(), "link")
	require.NoError(t, os.Symlink(target, link))

	cfg := testConfig(link + "/.")
	cfg.ServerName = ""
	got, err := cfg.Validate()
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)
	assert.Equal(t, want, got.HomeRoot)
	assert.Equal(t, "my-ftpd", got.ServerName)
	assert.Equal(t, link+"/.", cfg.HomeRoot, "receiver is not modified")
}

func TestConfigGreeting(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	assert.Equal(t, "(my-ftpd 0.0.1)", cfg.greeting())
	cfg.Version = ""
	assert.Equal(t, "(my-ftpd)", cfg.greeting())
}

func TestAddr(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	assert.Equal(t, ":21", cfg.Addr())
	cfg.Host, cfg.Port = "::1", 2121
	assert.Equal(t, "[::1]:2121", cfg.Addr())
}
