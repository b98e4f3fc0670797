package server

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// startServer serves home on a random 127.0.0.1 port until the test ends.
func startServer(t *testing.T, cfg Config, options ...Option) (*Server, string) {
	t.Helper()

	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	defaults := []Option{
		WithLogger(logger),
		WithListingProvider(NewFileInfoListing(afero.NewOsFs())),
	}

	s, err := NewServer(cfg, append(defaults, options...)...)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ln)
	}()
	t.Cleanup(func() {
		_ = s.Shutdown()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after Shutdown")
		}
	})

	return s, ln.Addr().String()
}

func testConfig(home string) Config {
	cfg := DefaultConfig()
	cfg.HomeRoot = home
	cfg.Port = 0
	return cfg
}

// rawClient speaks the control protocol line by line so tests can check
// exact reply codes and texts.
type rawClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dialRaw(t *testing.T, addr string) *rawClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	c := &rawClient{t: t, conn: conn, reader: bufio.NewReader(conn)}
	code, msg := c.read()
	require.Equal(t, 220, code, msg)
	return c
}

func (c *rawClient) send(line string) {
	c.t.Helper()
	_, err := io.WriteString(c.conn, line+"\r\n")
	require.NoError(c.t, err)
}

func (c *rawClient) read() (int, string) {
	c.t.Helper()
	line, err := c.reader.ReadString('\n')
	require.NoError(c.t, err)
	require.True(c.t, strings.HasSuffix(line, "\r\n"), "reply %q not CRLF-terminated", line)
	line = strings.TrimSuffix(line, "\r\n")
	require.GreaterOrEqual(c.t, len(line), 4, "short reply %q", line)
	require.Equal(c.t, byte(' '), line[3], "multi-line or malformed reply %q", line)
	code, err := strconv.Atoi(line[:3])
	require.NoError(c.t, err)
	return code, line[4:]
}

// cmd sends line and returns the reply.
func (c *rawClient) cmd(line string) (int, string) {
	c.t.Helper()
	c.send(line)
	return c.read()
}

// expect sends line and requires the reply code.
func (c *rawClient) expect(line string, want int) string {
	c.t.Helper()
	code, msg := c.cmd(line)
	require.Equal(c.t, want, code, "%s -> %d %s", line, code, msg)
	return msg
}

func (c *rawClient) login() {
	c.t.Helper()
	c.expect("USER anonymous", 331)
	c.expect("PASS guest", 230)
}

// pasv negotiates passive mode and returns the data endpoint.
func (c *rawClient) pasv() string {
	c.t.Helper()
	msg := c.expect("PASV", 227)
	start, end := strings.Index(msg, "("), strings.Index(msg, ")")
	require.True(c.t, start >= 0 && end > start, "bad PASV reply %q", msg)
	fields := strings.Split(msg[start+1:end], ",")
	require.Len(c.t, fields, 6)
	p1, _ := strconv.Atoi(fields[4])
	p2, _ := strconv.Atoi(fields[5])
	return fmt.Sprintf("127.0.0.1:%d", p1*256+p2)
}

// retrieve runs a data-receiving command (RETR, LIST) over a fresh
// connection to dataAddr and returns the received bytes and the 150 text.
func (c *rawClient) retrieve(dataAddr, line string) ([]byte, string) {
	c.t.Helper()
	data, err := net.DialTimeout("tcp", dataAddr, 5*time.Second)
	require.NoError(c.t, err)
	defer data.Close()

	prelim := c.expect(line, 150)
	got, err := io.ReadAll(data)
	require.NoError(c.t, err)
	c.expectFinal(226)
	return got, prelim
}

// store runs STOR over a fresh connection to dataAddr.
func (c *rawClient) store(dataAddr, line string, payload []byte) {
	c.t.Helper()
	data, err := net.DialTimeout("tcp", dataAddr, 5*time.Second)
	require.NoError(c.t, err)

	c.expect(line, 150)
	_, err = data.Write(payload)
	require.NoError(c.t, err)
	require.NoError(c.t, data.Close())
	c.expectFinal(226)
}

func (c *rawClient) expectFinal(want int) {
	c.t.Helper()
	code, msg := c.read()
	require.Equal(c.t, want, code, msg)
}
