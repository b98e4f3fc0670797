package ftp

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

var (
	// pasvRegex matches "227 Entering Passive Mode (h1,h2,h3,h4,p1,p2)".
	pasvRegex = regexp.MustCompile(`(\d+),(\d+),(\d+),(\d+),(\d+),(\d+)`)

	// epsvRegex matches "229 Entering Extended Passive Mode (|||port|)".
	epsvRegex = regexp.MustCompile(`\(\|\|\|(\d+)\|\)`)
)

// parsePASV returns the "host:port" announced in a 227 reply.
// "(192,168,1,1,195,149)" yields "192.168.1.1:50069".
func parsePASV(message string) (string, error) {
	matches := pasvRegex.FindStringSubmatch(message)
	if len(matches) != 7 {
		return "", errors.Errorf("invalid PASV response: %s", message)
	}

	var n [6]int
	for i := range n {
		val, err := strconv.Atoi(matches[i+1])
		if err != nil || val < 0 || val > 255 {
			return "", errors.Errorf("invalid PASV field: %s", matches[i+1])
		}
		n[i] = val
	}

	host := fmt.Sprintf("%d.%d.%d.%d", n[0], n[1], n[2], n[3])
	port := n[4]*256 + n[5]
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// parseEPSV returns the port announced in a 229 reply.
func parseEPSV(message string) (string, error) {
	matches := epsvRegex.FindStringSubmatch(message)
	if len(matches) != 2 {
		return "", errors.Errorf("invalid EPSV response: %s", message)
	}

	port, err := strconv.Atoi(matches[1])
	if err != nil || port < 1 || port > 65535 {
		return "", errors.Errorf("invalid EPSV port: %s", matches[1])
	}
	return matches[1], nil
}

// formatPORT turns "192.168.1.100:50000" into "192,168,1,100,195,80".
func formatPORT(addr string) (string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}

	ip := net.ParseIP(host).To4()
	if ip == nil {
		return "", errors.Errorf("PORT requires an IPv4 address: %s", host)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", errors.Errorf("invalid port: %s", portStr)
	}

	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", ip[0], ip[1], ip[2], ip[3], port/256, port%256), nil
}

// formatEPRT turns an address into "|1|host|port|" or "|2|host|port|".
func formatEPRT(addr string) (string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return "", errors.Errorf("invalid IP address: %s", host)
	}

	family := 2
	if ip.To4() != nil {
		family = 1
	}
	return fmt.Sprintf("|%d|%s|%s|", family, host, portStr), nil
}

// resolveDataAddr replaces an unspecified PASV host with the control host.
func resolveDataAddr(pasvAddr, controlHost string) string {
	host, port, err := net.SplitHostPort(pasvAddr)
	if err != nil {
		return pasvAddr
	}

	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		return net.JoinHostPort(controlHost, port)
	}
	return pasvAddr
}

// pendingData is a negotiated but not yet established data connection.
// Passive connections are dialed before the transfer request is sent;
// active ones are accepted after the server answers it with 1xx.
type pendingData struct {
	conn     net.Conn
	listener net.Listener
	timeout  time.Duration
}

// establish returns the data connection, accepting it first in active mode.
func (p *pendingData) establish() (net.Conn, error) {
	if p.conn != nil {
		return p.wrap(p.conn), nil
	}

	defer p.listener.Close()
	if p.timeout > 0 {
		if l, ok := p.listener.(*net.TCPListener); ok {
			_ = l.SetDeadline(time.Now().Add(p.timeout))
		}
	}
	conn, err := p.listener.Accept()
	if err != nil {
		return nil, errors.Wrap(err, "failed to accept data connection")
	}
	p.conn = conn
	return p.wrap(conn), nil
}

func (p *pendingData) wrap(conn net.Conn) net.Conn {
	if p.timeout > 0 {
		return &deadlineConn{Conn: conn, timeout: p.timeout}
	}
	return conn
}

// abort releases whatever was negotiated.
func (p *pendingData) abort() {
	if p.conn != nil {
		p.conn.Close()
	}
	if p.listener != nil {
		p.listener.Close()
	}
}

// openDataConn negotiates a data connection for the next transfer.
func (c *Client) openDataConn() (*pendingData, error) {
	if c.activeMode {
		return c.openActiveDataConn()
	}
	return c.openPassiveDataConn()
}

// openActiveDataConn listens next to the control connection and announces
// the address with PORT, or EPRT when the control connection is IPv6.
func (c *Client) openActiveDataConn() (*pendingData, error) {
	host, _, err := net.SplitHostPort(c.conn.LocalAddr().String())
	if err != nil {
		return nil, errors.Wrap(err, "invalid local address")
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create listener")
	}

	addr := listener.Addr().String()
	cmd, format := "PORT", formatPORT
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		cmd, format = "EPRT", formatEPRT
	}

	arg, err := format(addr)
	if err != nil {
		listener.Close()
		return nil, errors.Wrapf(err, "failed to format %s", cmd)
	}

	if _, err := c.expect2xx(cmd, arg); err != nil {
		listener.Close()
		return nil, err
	}

	return &pendingData{listener: listener, timeout: c.timeout}, nil
}

// openPassiveDataConn tries EPSV first and falls back to PASV when the
// server rejects it. A server that answers EPSV with 500 or 502 is not
// asked again.
func (c *Client) openPassiveDataConn() (*pendingData, error) {
	var addr string

	if !c.disableEPSV {
		resp, err := c.sendCommand("EPSV")
		if err != nil {
			return nil, err
		}
		switch {
		case resp.Code == 229:
			port, err := parseEPSV(resp.Message)
			if err != nil {
				return nil, err
			}
			addr = net.JoinHostPort(c.host, port)
		case resp.Code == 500 || resp.Code == 502:
			c.disableEPSV = true
		}
	}

	if addr == "" {
		resp, err := c.expectCode(227, "PASV")
		if err != nil {
			return nil, err
		}

		addr, err = parsePASV(resp.Message)
		if err != nil {
			return nil, err
		}
		addr = resolveDataAddr(addr, c.host)
	}

	conn, err := c.dialer.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to data port")
	}
	return &pendingData{conn: conn, timeout: c.timeout}, nil
}

// cmdDataConnFrom negotiates a data connection, sends the transfer request
// and returns the established connection once the server has accepted the
// request with a 1xx reply. The caller must pass the connection to
// finishDataConn.
func (c *Client) cmdDataConnFrom(cmd string, args ...string) (net.Conn, error) {
	pending, err := c.openDataConn()
	if err != nil {
		return nil, err
	}

	resp, err := c.sendCommand(cmd, args...)
	if err != nil {
		pending.abort()
		return nil, err
	}

	if !resp.Is1xx() {
		pending.abort()
		return nil, newProtocolError(cmd, resp)
	}

	conn, err := pending.establish()
	if err != nil {
		pending.abort()
		// The server still owes a final reply for the request.
		_, _ = c.readFinal()
		return nil, err
	}
	return conn, nil
}

// finishDataConn closes the data connection and reads the final reply of
// the transfer.
func (c *Client) finishDataConn(cmd string, dataConn net.Conn) error {
	closeErr := dataConn.Close()

	resp, err := c.readFinal()
	if err != nil {
		return errors.Wrap(err, "failed to read completion response")
	}
	if !resp.Is2xx() {
		return newProtocolError(cmd, resp)
	}
	if closeErr != nil {
		return errors.Wrap(closeErr, "failed to close data connection")
	}
	return nil
}

func (c *Client) readFinal() (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readReply()
}

// deadlineConn refreshes the deadline before every read and write.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}
