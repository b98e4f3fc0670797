package ftp

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Client is a connection to an FTP server. A Client is not safe for
// concurrent use: the reply to one request must be read before the next
// request is sent.
type Client struct {
	// conn is the control connection
	conn net.Conn

	// reader buffers the control connection
	reader *bufio.Reader

	timeout time.Duration
	logger  logrus.FieldLogger
	dialer  *net.Dialer

	// host is the server host, used for EPSV and as the PASV fallback
	host string
	port string

	activeMode  bool
	disableEPSV bool

	// currentType caches the last TYPE sent so transfers skip redundant ones
	currentType string

	onResponse func(*Response)

	// mu guards the control connection
	mu sync.Mutex
}

// Dial connects to the FTP server at addr ("host:port") and reads its
// greeting.
//
// Example:
//
//	client, err := ftp.Dial("localhost:2121", ftp.WithTimeout(10*time.Second))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Quit()
func Dial(addr string, options ...Option) (*Client, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, errors.Wrap(err, "invalid address")
	}

	discard := logrus.New()
	discard.Out = io.Discard

	c := &Client{
		host:    host,
		port:    port,
		timeout: 30 * time.Second,
		dialer:  &net.Dialer{},
		logger:  discard,
	}

	for _, opt := range options {
		if err := opt(c); err != nil {
			return nil, errors.Wrap(err, "failed to apply option")
		}
	}

	c.dialer.Timeout = c.timeout
	c.logger = c.logger.WithField("server", addr)

	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// connect opens the control connection and expects a 220 greeting.
func (c *Client) connect() error {
	addr := net.JoinHostPort(c.host, c.port)
	c.logger.Debug("connecting")

	conn, err := c.dialer.Dial("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "failed to connect")
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)

	c.mu.Lock()
	resp, err := c.readReply()
	c.mu.Unlock()
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "failed to read greeting")
	}

	if resp.Code != 220 {
		conn.Close()
		return newProtocolError("CONNECT", resp)
	}
	return nil
}

// Login sends USER and, when the server asks for one, PASS.
func (c *Client) Login(username, password string) error {
	resp, err := c.sendCommand("USER", username)
	if err != nil {
		return err
	}

	// 230 means no password is required.
	if resp.Code == 230 {
		return nil
	}
	if resp.Code != 331 {
		return newProtocolError("USER", resp)
	}

	_, err = c.expectCode(230, "PASS", password)
	return err
}

// Quit sends QUIT and closes the control connection. The reply is not
// required: the connection is closed either way.
func (c *Client) Quit() error {
	if c.conn == nil {
		return nil
	}

	_, _ = c.sendCommand("QUIT")
	return c.conn.Close()
}

// Close closes the control connection without saying goodbye.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Type sets the representation type ("A" or "I"). The server stores the
// marker only; bytes are never translated in either direction.
func (c *Client) Type(transferType string) error {
	transferType = strings.ToUpper(transferType)
	if c.currentType == transferType {
		return nil
	}
	if _, err := c.expect2xx("TYPE", transferType); err != nil {
		return err
	}
	c.currentType = transferType
	return nil
}

// Noop sends NOOP.
func (c *Client) Noop() error {
	_, err := c.expect2xx("NOOP")
	return err
}

// Quote sends a raw request and returns the reply whatever its code.
// Verbs that need a data connection (LIST, RETR, STOR) must go through
// List, Retrieve and Store instead.
//
// Example:
//
//	resp, err := client.Quote("SYST")
func (c *Client) Quote(command string, args ...string) (*Response, error) {
	return c.sendCommand(command, args...)
}

// ChangeDir changes the working directory.
func (c *Client) ChangeDir(path string) error {
	_, err := c.expect2xx("CWD", path)
	return err
}

// CurrentDir returns the working directory reported by PWD, with doubled
// quotes collapsed.
func (c *Client) CurrentDir() (string, error) {
	resp, err := c.expectCode(257, "PWD")
	if err != nil {
		return "", err
	}
	return parsePWD(resp.Message)
}

// parsePWD extracts the quoted path from `"/a ""b""" is the current
// directory`.
func parsePWD(msg string) (string, error) {
	if !strings.HasPrefix(msg, `"`) {
		return "", errors.Errorf("invalid PWD response: %s", msg)
	}

	var b strings.Builder
	for i := 1; i < len(msg); i++ {
		if msg[i] != '"' {
			b.WriteByte(msg[i])
			continue
		}
		if i+1 < len(msg) && msg[i+1] == '"' {
			b.WriteByte('"')
			i++
			continue
		}
		return b.String(), nil
	}
	return "", errors.Errorf("invalid PWD response: %s", msg)
}

// Size returns the size of a regular file in bytes.
func (c *Client) Size(path string) (int64, error) {
	resp, err := c.expectCode(213, "SIZE", path)
	if err != nil {
		return 0, err
	}

	size, err := strconv.ParseInt(strings.TrimSpace(resp.Message), 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid SIZE response: %s", resp.Message)
	}
	return size, nil
}

// Delete removes a file.
func (c *Client) Delete(path string) error {
	_, err := c.expect2xx("DELE", path)
	return err
}

// Rename renames a file or directory with RNFR followed by RNTO.
func (c *Client) Rename(from, to string) error {
	if _, err := c.expectCode(350, "RNFR", from); err != nil {
		return err
	}

	_, err := c.expect2xx("RNTO", to)
	return err
}
