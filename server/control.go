package server

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// MaxCommandLength is the maximum length of a command line.
const MaxCommandLength = 4096

var errCommandTooLong = errors.New("command too long")

// controlConn is the line-oriented request/reply side of a control
// connection.
type controlConn struct {
	conn        net.Conn
	reader      *bufio.Reader
	writer      *bufio.Writer
	idleTimeout time.Duration
}

func newControlConn(conn net.Conn, idleTimeout time.Duration) *controlConn {
	return &controlConn{
		conn:        conn,
		reader:      bufio.NewReader(conn),
		writer:      bufio.NewWriter(conn),
		idleTimeout: idleTimeout,
	}
}

// readLine reads one request line without its line terminator. Both CRLF
// and a bare LF end a line.
func (c *controlConn) readLine() (string, error) {
	if c.idleTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
	}
	var line []byte
	for {
		b, err := c.reader.ReadByte()
		if err != nil {
			return string(line), err
		}
		if b == '\n' {
			return strings.TrimRight(string(line), "\r"), nil
		}
		if len(line) >= MaxCommandLength {
			return "", errCommandTooLong
		}
		line = append(line, b)
	}
}

// writeReply sends a single-line reply and flushes it.
func (c *controlConn) writeReply(code int, message string) error {
	if _, err := fmt.Fprintf(c.writer, "%d %s\r\n", code, message); err != nil {
		return errors.Wrap(err, "write reply failed")
	}
	return errors.Wrap(c.writer.Flush(), "flush reply failed")
}
