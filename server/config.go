package server

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// DefaultPort is the standard FTP control port.
const DefaultPort = 21

// Config is the server configuration.
//
// A Config is built once at startup (from flags, a YAML file, or both),
// validated, and handed to NewServer by value. Sessions only ever read it.
type Config struct {
	// HomeRoot is the directory every session is confined to.
	// Validate replaces it with its canonical absolute form.
	HomeRoot string `yaml:"ftp_home"`

	// Host is the address to listen on. Empty means all interfaces.
	Host string `yaml:"host"`

	// Port is the control connection port.
	Port int `yaml:"port"`

	// ServerName and Version appear in the 220 greeting.
	ServerName string `yaml:"server_name"`
	Version    string `yaml:"version"`

	// PublicHost is the IPv4 address or hostname advertised in PASV replies.
	// If empty, the local address of the control connection is used.
	// Required when behind NAT or in containerized environments.
	PublicHost string `yaml:"public_host"`

	// PasvMinPort and PasvMaxPort bound the passive listener ports.
	// If either is 0, the OS assigns a port.
	PasvMinPort int `yaml:"pasv_min_port"`
	PasvMaxPort int `yaml:"pasv_max_port"`

	// ReadOnly rejects every operation that would modify the filesystem.
	ReadOnly bool `yaml:"read_only"`

	// MaxConnections is the maximum number of simultaneous control
	// connections. If 0, there is no limit.
	MaxConnections int `yaml:"max_connections"`

	// RestrictActiveIP requires PORT and EPRT to name the IP address of the
	// control connection peer. This prevents FTP bounce attacks.
	RestrictActiveIP bool `yaml:"restrict_active_ip"`

	// IdleTimeout closes control connections that send nothing for this long.
	// If 0, a session may wait for its next command forever.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// MaxBandwidth caps the combined RETR and STOR throughput of all
	// sessions, in bytes per second. If 0, there is no cap.
	MaxBandwidth int64 `yaml:"max_bandwidth"`

	// SessionBandwidth caps the throughput of each session's transfers, in
	// bytes per second. If 0, there is no cap.
	SessionBandwidth int64 `yaml:"session_bandwidth"`

	// ListCommand is the argv used to produce LIST output. The resolved
	// path is appended as the last argument.
	ListCommand []string `yaml:"list_command"`
}

// DefaultConfig returns a Config serving the current directory on port 21.
func DefaultConfig() Config {
	home, err := os.Getwd()
	if err != nil {
		home = "."
	}
	return Config{
		HomeRoot:    home,
		Port:        DefaultPort,
		ServerName:  "my-ftpd",
		Version:     "0.0.1",
		ListCommand: []string{"ls", "-l"},
	}
}

// LoadConfig reads a YAML configuration file. Keys missing from the file
// keep their DefaultConfig values.
//
// Example file:
//
//	ftp_home: /srv/ftp
//	port: 2121
//	public_host: 203.0.113.10
//	pasv_min_port: 30000
//	pasv_max_port: 30100
//	session_bandwidth: 1048576
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s failed", path)
	}
	if err := yaml.UnmarshalStrict(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s failed", path)
	}
	return cfg, nil
}

// Validate checks the configuration and canonicalizes HomeRoot.
// It returns the validated copy; the receiver is left untouched.
func (c Config) Validate() (Config, error) {
	if c.HomeRoot == "" {
		return c, errors.New("ftp home is required")
	}
	abs, err := filepath.Abs(c.HomeRoot)
	if err != nil {
		return c, errors.Wrap(err, "resolve ftp home failed")
	}
	home, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return c, errors.Wrap(err, "resolve ftp home failed")
	}
	info, err := os.Stat(home)
	if err != nil {
		return c, errors.Wrap(err, "stat ftp home failed")
	}
	if !info.IsDir() {
		return c, errors.Errorf("ftp home is not a directory: %s", home)
	}
	c.HomeRoot = home

	if c.Port < 0 || c.Port > 65535 {
		return c, errors.Errorf("invalid port %d", c.Port)
	}
	if c.PasvMinPort < 0 || c.PasvMaxPort > 65535 || c.PasvMaxPort < 0 {
		return c, errors.Errorf("invalid passive port range [%d, %d]", c.PasvMinPort, c.PasvMaxPort)
	}
	if c.PasvMinPort > 0 && c.PasvMaxPort > 0 && c.PasvMaxPort < c.PasvMinPort {
		return c, errors.Errorf("invalid passive port range [%d, %d]", c.PasvMinPort, c.PasvMaxPort)
	}
	if c.MaxConnections < 0 {
		return c, errors.Errorf("invalid max connections %d", c.MaxConnections)
	}
	if c.MaxBandwidth < 0 || c.SessionBandwidth < 0 {
		return c, errors.Errorf("invalid bandwidth limits %d, %d", c.MaxBandwidth, c.SessionBandwidth)
	}
	if c.ServerName == "" {
		c.ServerName = "my-ftpd"
	}
	return c, nil
}

// Addr returns the control listen address in host:port form.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// greeting is the text of the 220 reply sent on connect.
func (c Config) greeting() string {
	if c.Version == "" {
		return "(" + c.ServerName + ")"
	}
	return "(" + c.ServerName + " " + c.Version + ")"
}

func (c Config) hasPassiveRange() bool {
	return c.PasvMinPort > 0 && c.PasvMaxPort >= c.PasvMinPort
}
