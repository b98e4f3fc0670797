package server

import (
	"fmt"
	"io"
	"maps"
	"net"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/myftpd/myftpd/internal/ratelimit"
)

// Server is the FTP server.
//
// It handles listening for incoming connections and dispatching them to
// client sessions. Each connection runs in its own goroutine and owns its
// session state; goroutines share only the immutable Config and the
// injected collaborators.
//
// Lifecycle:
//  1. Build and validate a Config
//  2. Create server with NewServer()
//  3. Start with ListenAndServe() or Serve()
//  4. Stop with Shutdown()
//
// Basic example:
//
//	cfg := server.DefaultConfig()
//	cfg.HomeRoot = "/srv/ftp"
//	cfg.Port = 2121
//	s, err := server.NewServer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(s.ListenAndServe())
type Server struct {
	cfg      Config
	resolver *PathResolver

	logger           logrus.FieldLogger
	listing          ListingProvider
	requestLog       RequestLogger
	ownRequestLog    *AsyncRequestLogger
	metricsCollector MetricsCollector
	fs               afero.Fs

	// bandwidth is shared by every session. Nil means unlimited.
	bandwidth *ratelimit.Limiter

	// activeConns tracks the number of currently active control connections.
	activeConns atomic.Int32

	// nextPassivePort rotates the starting point in the passive port range.
	nextPassivePort atomic.Int32

	// Shutdown handling
	mu         sync.Mutex
	listener   net.Listener
	conns      map[io.Closer]struct{} // control, data and passive listeners
	inShutdown atomic.Bool
}

// ErrServerClosed is returned by the Server's Serve and ListenAndServe
// methods after a call to Shutdown.
var ErrServerClosed = errors.New("ftp: Server closed")

// NewServer creates a new FTP server for cfg.
//
// The configuration is validated and its home root canonicalized; the
// server keeps its own copy.
//
// Default collaborators:
//   - Logger: logrus.StandardLogger()
//   - Listing: cfg.ListCommand (FileInfoListing if the command is missing)
//   - Request log: AsyncRequestLogger over the logger
//   - Filesystem: afero.NewOsFs(), read-only if cfg.ReadOnly
func NewServer(cfg Config, options ...Option) (*Server, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, errors.Wrap(err, "validate config failed")
	}
	resolver, err := NewPathResolver(cfg.HomeRoot)
	if err != nil {
		return nil, errors.Wrap(err, "create path resolver failed")
	}

	s := &Server{
		cfg:       cfg,
		resolver:  resolver,
		logger:    logrus.StandardLogger(),
		conns:     make(map[io.Closer]struct{}),
		bandwidth: ratelimit.New(cfg.MaxBandwidth),
	}

	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, errors.Wrap(err, "apply Server option failed")
		}
	}

	if s.fs == nil {
		s.fs = afero.NewOsFs()
		if cfg.ReadOnly {
			s.fs = afero.NewReadOnlyFs(s.fs)
		}
	}
	if s.listing == nil {
		s.listing = s.defaultListing()
	}
	if s.requestLog == nil {
		s.ownRequestLog = NewAsyncRequestLogger(s.logger.WithField("component", "requests"), 256)
		s.requestLog = s.ownRequestLog
	}

	return s, nil
}

func (s *Server) defaultListing() ListingProvider {
	if len(s.cfg.ListCommand) > 0 {
		cl, err := NewCommandListing(s.cfg.ListCommand...)
		if err == nil {
			return cl
		}
		s.logger.WithError(err).Warn("listing command unavailable, using built-in listing")
	}
	return NewFileInfoListing(s.fs)
}

// Config returns the validated configuration the server runs with.
func (s *Server) Config() Config {
	return s.cfg
}

// ListenAndServe starts the FTP server on the configured address.
// It blocks until the server stops or an error occurs.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return errors.Wrapf(err, "listen on %s failed", s.cfg.Addr())
	}

	s.logger.WithFields(logrus.Fields{
		"addr":     ln.Addr().String(),
		"ftp_home": s.cfg.HomeRoot,
	}).Info("FTP server listening")
	return s.Serve(ln)
}

// Shutdown stops the server.
//
// It closes the listener and immediately closes all active connections,
// control and data. Errors from closing are combined into one.
func (s *Server) Shutdown() error {
	s.inShutdown.Store(true)

	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	conns := s.conns
	s.conns = make(map[io.Closer]struct{})
	s.mu.Unlock()

	var result *multierror.Error
	if ln != nil {
		if err := ln.Close(); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "close listener failed"))
		}
	}
	for c := range maps.Keys(conns) {
		if err := c.Close(); err != nil && !isClosedConnError(err) {
			result = multierror.Append(result, errors.Wrap(err, "close connection failed"))
		}
	}
	if s.ownRequestLog != nil {
		_ = s.ownRequestLog.Close()
	}
	return result.ErrorOrNil()
}

// Serve accepts incoming connections on the listener l.
// It blocks until the listener is closed or an error occurs.
//
// For graceful shutdown, call Shutdown from another goroutine:
//
//	ln, _ := net.Listen("tcp", ":21")
//	go func() {
//	    <-ctx.Done()
//	    s.Shutdown()
//	}()
//	s.Serve(ln)
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.inShutdown.Load() {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.listener == l {
			s.listener = nil
		}
		s.mu.Unlock()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			if isClosedConnError(err) {
				return errors.Wrap(err, "accept failed")
			}
			s.logger.WithError(err).Error("accept error")
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection runs one control connection to completion.
func (s *Server) handleConnection(conn net.Conn) {
	if !s.trackConnection(conn, true) {
		return
	}
	defer s.trackConnection(conn, false)

	active := s.activeConns.Add(1)
	defer s.activeConns.Add(-1)

	if s.cfg.MaxConnections > 0 && active > int32(s.cfg.MaxConnections) {
		ip, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		s.logger.WithFields(logrus.Fields{
			"remote_ip": ip,
			"reason":    "global_limit_reached",
			"limit":     s.cfg.MaxConnections,
		}).Warn("connection_rejected")
		if s.metricsCollector != nil {
			s.metricsCollector.RecordConnection(false, "global_limit_reached")
		}
		fmt.Fprintf(conn, "421 Too many users, sorry.\r\n")
		conn.Close()
		return
	}

	if s.metricsCollector != nil {
		s.metricsCollector.RecordConnection(true, "accepted")
	}

	newSession(s, conn).serve()
}

// trackConnection registers a connection or listener so Shutdown can close
// it. It returns false, having closed c, if we're shutting down.
func (s *Server) trackConnection(c io.Closer, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if add {
		if s.inShutdown.Load() {
			c.Close()
			return false
		}
		s.conns[c] = struct{}{}
		return true
	}
	delete(s.conns, c)
	return true
}

// trackingConn wraps a data connection to untrack it when closed.
type trackingConn struct {
	net.Conn
	server *Server
}

func (c *trackingConn) Close() error {
	c.server.trackConnection(c.Conn, false)
	return c.Conn.Close()
}

func isClosedConnError(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
