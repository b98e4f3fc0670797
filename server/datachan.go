package server

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// errNoDataMode is returned when a transfer is requested before PORT, EPRT,
// PASV or EPSV.
var errNoDataMode = errors.New("no data connection negotiated")

// dataMode is a negotiated way of obtaining data connections. A session
// keeps its mode across transfers until the client negotiates a new one.
type dataMode interface {
	// open returns a fresh data connection for one transfer.
	open() (net.Conn, error)
	// close releases any resources held by the mode.
	close() error
	String() string
}

// activeMode dials the client for every transfer.
type activeMode struct {
	addr string
}

func (m *activeMode) open() (net.Conn, error) {
	conn, err := net.Dial("tcp", m.addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s failed", m.addr)
	}
	return conn, nil
}

func (m *activeMode) close() error { return nil }

func (m *activeMode) String() string { return "active " + m.addr }

// passiveMode accepts one client connection per transfer on a listener that
// stays open until the mode is replaced or the session ends.
type passiveMode struct {
	ln     net.Listener
	server *Server
}

func (m *passiveMode) open() (net.Conn, error) {
	conn, err := m.ln.Accept()
	if err != nil {
		return nil, errors.Wrap(err, "accept passive connection failed")
	}
	return conn, nil
}

func (m *passiveMode) close() error {
	m.server.trackConnection(m.ln, false)
	return m.ln.Close()
}

func (m *passiveMode) String() string { return "passive " + m.ln.Addr().String() }

// port returns the listening port.
func (m *passiveMode) port() int {
	if addr, ok := m.ln.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	_, portStr, _ := net.SplitHostPort(m.ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return port
}

// ParsePORT parses a PORT argument of the form h1,h2,h3,h4,p1,p2 and returns
// the endpoint as host:port.
func ParsePORT(arg string) (string, error) {
	parts := strings.Split(arg, ",")
	if len(parts) != 6 {
		return "", errors.Errorf("PORT argument needs 6 fields, got %d", len(parts))
	}
	var b [6]int
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil || v < 0 || v > 255 {
			return "", errors.Errorf("invalid PORT field %q", part)
		}
		b[i] = v
	}
	port := b[4]*256 + b[5]
	if port == 0 {
		return "", errors.New("invalid PORT port 0")
	}
	host := fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// ParseEPRT parses an RFC 2428 EPRT argument, e.g. |1|132.235.1.2|6275|,
// and returns the endpoint as host:port.
//
// The first character is the delimiter. Between the delimiters come the
// network protocol (1 = IPv4, 2 = IPv6), the address and the port.
func ParseEPRT(arg string) (string, error) {
	if len(arg) < 4 {
		return "", errors.Errorf("EPRT argument too short: %q", arg)
	}
	delim := arg[:1]
	parts := strings.Split(arg, delim)
	// "|1|addr|port|" splits into ["", "1", "addr", "port", ""].
	if len(parts) != 5 || parts[0] != "" || parts[4] != "" {
		return "", errors.Errorf("malformed EPRT argument %q", arg)
	}
	proto, ipStr, portStr := parts[1], parts[2], parts[3]

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return "", errors.Errorf("invalid EPRT address %q", ipStr)
	}
	switch proto {
	case "1":
		if ip.To4() == nil {
			return "", errors.Errorf("EPRT protocol 1 with non-IPv4 address %q", ipStr)
		}
	case "2":
		if ip.To4() != nil {
			return "", errors.Errorf("EPRT protocol 2 with IPv4 address %q", ipStr)
		}
	default:
		return "", errors.Errorf("unsupported EPRT protocol %q", proto)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", errors.Errorf("invalid EPRT port %q", portStr)
	}
	return net.JoinHostPort(ip.String(), strconv.Itoa(port)), nil
}

// EncodePASV formats the argument of a 227 reply: four address octets and
// the port split into its high and low bytes. A nil or non-IPv4 address is
// sent as 0,0,0,0.
func EncodePASV(ip net.IP, port int) string {
	ip4 := ip.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", ip4[0], ip4[1], ip4[2], ip4[3], port/256, port%256)
}

// EncodeEPSV formats the argument of a 229 reply.
func EncodeEPSV(port int) string {
	return fmt.Sprintf("|||%d|", port)
}

// listenPassive opens a listener for passive mode, honoring the configured
// port range. Ports in the range are tried round-robin across sessions.
func (s *Server) listenPassive() (net.Listener, error) {
	if !s.cfg.hasPassiveRange() {
		ln, err := net.Listen("tcp", ":0")
		if err != nil {
			return nil, errors.Wrap(err, "listen passive failed")
		}
		return ln, nil
	}

	minPort, maxPort := s.cfg.PasvMinPort, s.cfg.PasvMaxPort
	rangeLen := int32(maxPort - minPort + 1)
	start := s.nextPassivePort.Add(1)
	for i := int32(0); i < rangeLen; i++ {
		offset := (start + i) % rangeLen
		if offset < 0 {
			offset += rangeLen
		}
		port := minPort + int(offset)
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			return ln, nil
		}
	}
	return nil, errors.Errorf("no available ports in range [%d, %d]", minPort, maxPort)
}

// passiveIP returns the IPv4 address to advertise in a PASV reply.
func (s *session) passiveIP() net.IP {
	host := s.cfg.PublicHost
	if host == "" {
		host, _, _ = net.SplitHostPort(s.conn.LocalAddr().String())
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.To4()
	}
	if host == s.lastPublicHost && s.resolvedIP != nil {
		return s.resolvedIP
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		s.logger.WithError(err).WithField("host", host).Warn("public_host_lookup_failed")
		return nil
	}
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			s.lastPublicHost = host
			s.resolvedIP = ip4
			return ip4
		}
	}
	return nil
}

// validateActiveIP ensures the data connection target matches the control
// connection source.
func (s *session) validateActiveIP(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	target := net.ParseIP(host)
	peer := net.ParseIP(s.remoteIP)
	if target == nil || peer == nil {
		return false
	}
	return target.Equal(peer)
}

// setDataMode replaces the session's data mode, releasing the old one.
func (s *session) setDataMode(m dataMode) {
	if s.data != nil {
		if err := s.data.close(); err != nil {
			s.logger.WithError(err).Debug("data_mode_close_failed")
		}
	}
	s.data = m
}

// openData obtains the data connection for one transfer.
func (s *session) openData() (net.Conn, error) {
	if s.data == nil {
		return nil, errNoDataMode
	}
	s.logger.WithField("mode", s.data.String()).Debug("opening data connection")
	conn, err := s.data.open()
	if err != nil {
		return nil, err
	}
	if !s.server.trackConnection(conn, true) {
		return nil, ErrServerClosed
	}
	return &trackingConn{Conn: conn, server: s.server}, nil
}
