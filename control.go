package ftp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Response is a complete reply read from the control connection.
type Response struct {
	// Code is the three-digit reply code (e.g., 220, 550)
	Code int

	// Message is the text after the code. Lines of a multi-line reply are
	// joined with "\n".
	Message string

	// Lines holds every raw line of the reply, without the CRLF.
	Lines []string
}

// Is1xx reports a positive preliminary reply.
func (r *Response) Is1xx() bool {
	return r.Code >= 100 && r.Code < 200
}

// Is2xx reports a positive completion reply.
func (r *Response) Is2xx() bool {
	return r.Code >= 200 && r.Code < 300
}

// Is3xx reports a positive intermediate reply.
func (r *Response) Is3xx() bool {
	return r.Code >= 300 && r.Code < 400
}

// Is4xx reports a transient negative reply.
func (r *Response) Is4xx() bool {
	return r.Code >= 400 && r.Code < 500
}

// Is5xx reports a permanent negative reply.
func (r *Response) Is5xx() bool {
	return r.Code >= 500 && r.Code < 600
}

// String returns the reply as the server sent it, one line per raw line.
func (r *Response) String() string {
	return strings.Join(r.Lines, "\n")
}

// readResponse reads one reply. A multi-line reply starts with "DDD-" and
// ends at the first line that starts with the same code and a space:
//
//	"211-Features:\r\n"
//	" EPSV\r\n"
//	"211 End\r\n"
func readResponse(r *bufio.Reader) (*Response, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}

	line = strings.TrimRight(line, "\r\n")
	if len(line) < 4 {
		// A bare "DDD" is legal, treat it as a reply with no text.
		if len(line) == 3 {
			code, convErr := strconv.Atoi(line)
			if convErr == nil {
				return &Response{Code: code, Lines: []string{line}}, nil
			}
		}
		return nil, errors.Errorf("invalid response line: %q", line)
	}

	code, err := strconv.Atoi(line[0:3])
	if err != nil {
		return nil, errors.Errorf("invalid response code: %q", line[0:3])
	}

	lines := []string{line}

	if line[3] == ' ' {
		return &Response{
			Code:    code,
			Message: line[4:],
			Lines:   lines,
		}, nil
	}

	if line[3] != '-' {
		return nil, errors.Errorf("invalid response format: %q", line)
	}

	if err := readMultiLine(r, code, &lines); err != nil {
		return nil, err
	}

	messageLines := make([]string, 0, len(lines))
	for _, l := range lines {
		switch {
		case strings.HasPrefix(l, line[0:3]) && len(l) >= 4:
			messageLines = append(messageLines, l[4:])
		default:
			messageLines = append(messageLines, strings.TrimPrefix(l, " "))
		}
	}

	return &Response{
		Code:    code,
		Message: strings.Join(messageLines, "\n"),
		Lines:   lines,
	}, nil
}

func readMultiLine(r *bufio.Reader, code int, lines *[]string) error {
	codeStr := fmt.Sprintf("%03d", code)

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return errors.New("unexpected EOF reading response")
			}
			return err
		}

		line = strings.TrimRight(line, "\r\n")
		*lines = append(*lines, line)

		// Only "DDD " terminates. Everything else, including lines that
		// carry another code or none at all, is continuation text.
		if len(line) >= 4 && line[0:3] == codeStr && line[3] == ' ' {
			return nil
		}
		if line == codeStr {
			return nil
		}
	}
}

// sendCommand writes one request line and reads the reply to it.
func (c *Client) sendCommand(command string, args ...string) (*Response, error) {
	cmd := command
	if len(args) > 0 {
		cmd = command + " " + strings.Join(args, " ")
	}
	if strings.ContainsAny(cmd, "\r\n") {
		return nil, errors.Errorf("command contains a line break: %q", cmd)
	}

	c.logger.WithField("cmd", maskCommand(command, cmd)).Debug("ftp_command")

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, errors.Wrap(err, "set write deadline failed")
		}
	}

	if _, err := fmt.Fprintf(c.conn, "%s\r\n", cmd); err != nil {
		return nil, errors.Wrap(err, "send command failed")
	}

	return c.readReply()
}

// readReply reads the next reply. The caller holds c.mu.
func (c *Client) readReply() (*Response, error) {
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, errors.Wrap(err, "set read deadline failed")
		}
	}

	resp, err := readResponse(c.reader)
	if err != nil {
		return nil, errors.Wrap(err, "read response failed")
	}

	c.logger.WithFields(logrus.Fields{
		"code":    resp.Code,
		"message": resp.Message,
	}).Debug("ftp_response")
	if c.onResponse != nil {
		c.onResponse(resp)
	}

	return resp, nil
}

// expectCode sends a command and fails unless the reply carries exactly
// expectedCode.
func (c *Client) expectCode(expectedCode int, command string, args ...string) (*Response, error) {
	resp, err := c.sendCommand(command, args...)
	if err != nil {
		return nil, err
	}

	if resp.Code != expectedCode {
		return resp, newProtocolError(command, resp)
	}

	return resp, nil
}

// expect2xx sends a command and fails unless the reply is a completion.
func (c *Client) expect2xx(command string, args ...string) (*Response, error) {
	resp, err := c.sendCommand(command, args...)
	if err != nil {
		return nil, err
	}

	if !resp.Is2xx() {
		return resp, newProtocolError(command, resp)
	}

	return resp, nil
}

// maskCommand hides the PASS argument from logs.
func maskCommand(command, line string) string {
	if strings.EqualFold(command, "PASS") && line != command {
		return "PASS ***"
	}
	return line
}
