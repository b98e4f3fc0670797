package server

import (
	"io"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/myftpd/myftpd/internal/ratelimit"
)

// transferMode is the nominal representation type set by TYPE.
// Transfers are byte streams whatever its value.
type transferMode int

const (
	modeBinary transferMode = iota
	modeASCII
)

func (m transferMode) String() string {
	if m == modeASCII {
		return "ASCII"
	}
	return "Binary"
}

// renameState tracks RNFR/RNTO. It is either renameIdle or renamePending.
type renameState interface {
	isRenameState()
}

type renameIdle struct{}

type renamePending struct {
	from string // canonical absolute source path
}

func (renameIdle) isRenameState()    {}
func (renamePending) isRenameState() {}

// session represents an FTP client session. It is owned by the goroutine
// running serve and is never shared.
type session struct {
	server   *Server
	cfg      *Config
	resolver *PathResolver
	conn     net.Conn
	ctrl     *controlConn
	logger   logrus.FieldLogger
	limiter  *ratelimit.Limiter

	// Session tracking
	id         string
	remoteIP   string
	remotePort int

	// State
	cwd          string // client view, "/"-rooted
	transferMode transferMode
	rename       renameState
	data         dataMode
	stop         bool
	lastCode     int // final reply code of the current request

	// Cache for PASV IP resolution
	lastPublicHost string
	resolvedIP     net.IP
}

// newSession creates a new session.
func newSession(server *Server, conn net.Conn) *session {
	id := uuid.New().String()

	remoteAddr := conn.RemoteAddr().String()
	remoteIP, portStr, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		remoteIP = remoteAddr
	}
	remotePort, _ := strconv.Atoi(portStr)

	return &session{
		server:     server,
		cfg:        &server.cfg,
		resolver:   server.resolver,
		conn:       conn,
		ctrl:       newControlConn(conn, server.cfg.IdleTimeout),
		id:         id,
		remoteIP:   remoteIP,
		remotePort: remotePort,
		logger: server.logger.WithFields(logrus.Fields{
			"session_id": id,
			"remote_ip":  remoteIP,
		}),
		cwd:     "/",
		rename:  renameIdle{},
		limiter: ratelimit.New(server.cfg.SessionBandwidth),
	}
}

// serve runs the session: greeting, then one request at a time until QUIT,
// a read error or a disconnect.
func (s *session) serve() {
	defer s.close()

	s.reply(220, s.cfg.greeting())
	s.logger.Info("session_started")

	for !s.stop {
		line, err := s.ctrl.readLine()
		if err != nil {
			if errors.Is(err, errCommandTooLong) {
				s.reply(500, "Command line too long.")
				return
			}
			if err != io.EOF && !isClosedConnError(err) {
				s.logger.WithError(err).Warn("read error")
			}
			return
		}
		if line == "" {
			continue
		}

		s.server.requestLog.LogRequest(s.remoteIP, s.remotePort, line)
		s.handleCommand(line)
	}
}

// close releases the data mode and the control connection.
func (s *session) close() {
	if s.data != nil {
		if err := s.data.close(); err != nil {
			s.logger.WithError(err).Debug("data_mode_close_failed")
		}
		s.data = nil
	}
	s.conn.Close()
	s.logger.Debug("session closed")
}

// reply sends a response to the client. A failed write ends the session.
func (s *session) reply(code int, message string) {
	s.lastCode = code
	if err := s.ctrl.writeReply(code, message); err != nil {
		s.logger.WithError(err).WithField("code", code).Warn("reply failed")
		s.stop = true
	}
}

// resolve maps a client pathname to a canonical host path inside the home
// root.
func (s *session) resolve(pathname string) (string, error) {
	return s.resolver.resolveAccessible(s.cwd, pathname)
}

// logTransfer logs a completed transfer and reports it to the metrics hook.
func (s *session) logTransfer(operation, path string, bytes int64, duration time.Duration) {
	throughputMBps := float64(0)
	if duration.Seconds() > 0 {
		throughputMBps = float64(bytes) / duration.Seconds() / 1024 / 1024
	}

	s.logger.WithFields(logrus.Fields{
		"operation":       operation,
		"path":            path,
		"bytes":           bytes,
		"duration_ms":     duration.Milliseconds(),
		"throughput_mbps": strconv.FormatFloat(throughputMBps, 'f', 2, 64),
	}).Info("transfer_complete")

	if s.server.metricsCollector != nil {
		s.server.metricsCollector.RecordTransfer(operation, bytes, duration)
	}
}
