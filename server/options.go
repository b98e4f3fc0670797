package server

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Option is a functional option for configuring an FTP server.
type Option func(*Server) error

// WithLogger sets the logger for server and session events.
// If not specified, logrus.StandardLogger() is used.
//
// Example with debug logging:
//
//	logger := logrus.New()
//	logger.SetLevel(logrus.DebugLevel)
//	s, _ := server.NewServer(cfg, server.WithLogger(logger))
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Server) error {
		if logger == nil {
			return errors.New("logger is nil")
		}
		s.logger = logger
		return nil
	}
}

// WithListingProvider sets the source of LIST output.
// If not specified, the configured ListCommand is used, falling back to a
// FileInfoListing when the command cannot be found.
//
// Example:
//
//	s, _ := server.NewServer(cfg,
//	    server.WithListingProvider(server.ListingFunc(func(path string) ([]string, error) {
//	        return []string{"-rw-r--r-- 1 ftp ftp 0 Jan 01 00:00 empty"}, nil
//	    })),
//	)
func WithListingProvider(p ListingProvider) Option {
	return func(s *Server) error {
		if p == nil {
			return errors.New("listing provider is nil")
		}
		s.listing = p
		return nil
	}
}

// WithRequestLogger sets the sink for raw request lines.
// If not specified, an AsyncRequestLogger over the server logger is used.
func WithRequestLogger(l RequestLogger) Option {
	return func(s *Server) error {
		s.requestLog = l
		return nil
	}
}

// WithMetricsCollector sets a metrics collector for monitoring.
// If nil (default), no metrics are collected.
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(s *Server) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithFs sets the filesystem used for file transfers and deletions.
// Paths passed to it are absolute host paths inside the home root, so it
// must be backed by the host filesystem (afero.NewOsFs or a wrapper of it).
// If not specified, afero.NewOsFs() is used, wrapped in afero.NewReadOnlyFs
// when Config.ReadOnly is set.
func WithFs(fs afero.Fs) Option {
	return func(s *Server) error {
		if fs == nil {
			return errors.New("filesystem is nil")
		}
		s.fs = fs
		return nil
	}
}
