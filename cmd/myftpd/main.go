// Package main is the myftpd server entrypoint.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/myftpd/myftpd/internal/log"
	"github.com/myftpd/myftpd/server"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

type flags struct {
	home           string
	host           string
	port           int
	configPath     string
	logLevel       string
	publicHost     string
	pasvMinPort    int
	pasvMaxPort    int
	readOnly       bool
	maxConnections int
	maxBandwidth   int64
	sessionBW      int64
}

func newRootCmd() (*cobra.Command, *flags) {
	f := &flags{}
	cmd := &cobra.Command{
		Use:           "myftpd",
		Short:         "Serves a directory over FTP.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log.SetLogger(f.logLevel)
			cfg, err := buildConfig(cmd, f)
			if err != nil {
				return errors.Wrap(err, "build config failed")
			}
			return run(cmd.Context(), cfg)
		},
	}

	defaults := server.DefaultConfig()
	fs := cmd.Flags()
	fs.StringVarP(&f.home, "ftp-home", "f", defaults.HomeRoot, "directory to serve")
	fs.StringVar(&f.host, "host", "", "address to listen on (default all interfaces)")
	fs.IntVarP(&f.port, "port", "p", defaults.Port, "control connection port")
	fs.StringVarP(&f.configPath, "config", "c", "", "YAML configuration file")
	fs.StringVar(&f.logLevel, "log-level", "info", "trace, debug, info, warn or error")
	fs.StringVar(&f.publicHost, "public-host", "", "address advertised in PASV replies")
	fs.IntVar(&f.pasvMinPort, "pasv-min-port", 0, "lowest passive data port")
	fs.IntVar(&f.pasvMaxPort, "pasv-max-port", 0, "highest passive data port")
	fs.BoolVar(&f.readOnly, "read-only", false, "refuse every modifying request")
	fs.IntVar(&f.maxConnections, "max-connections", 0, "maximum simultaneous sessions (0 is unlimited)")
	fs.Int64Var(&f.maxBandwidth, "max-bandwidth", 0, "server-wide transfer cap in bytes per second (0 is unlimited)")
	fs.Int64Var(&f.sessionBW, "session-bandwidth", 0, "per-session transfer cap in bytes per second (0 is unlimited)")
	return cmd, f
}

// buildConfig starts from the config file, if any, and applies every flag
// given on the command line on top of it.
func buildConfig(cmd *cobra.Command, f *flags) (server.Config, error) {
	cfg := server.DefaultConfig()
	if f.configPath != "" {
		var err error
		cfg, err = server.LoadConfig(f.configPath)
		if err != nil {
			return cfg, err
		}
	}

	fs := cmd.Flags()
	if fs.Changed("ftp-home") || f.configPath == "" {
		cfg.HomeRoot = f.home
	}
	if fs.Changed("host") {
		cfg.Host = f.host
	}
	if fs.Changed("port") || f.configPath == "" {
		cfg.Port = f.port
	}
	if fs.Changed("public-host") {
		cfg.PublicHost = f.publicHost
	}
	if fs.Changed("pasv-min-port") {
		cfg.PasvMinPort = f.pasvMinPort
	}
	if fs.Changed("pasv-max-port") {
		cfg.PasvMaxPort = f.pasvMaxPort
	}
	if fs.Changed("read-only") {
		cfg.ReadOnly = f.readOnly
	}
	if fs.Changed("max-connections") {
		cfg.MaxConnections = f.maxConnections
	}
	if fs.Changed("max-bandwidth") {
		cfg.MaxBandwidth = f.maxBandwidth
	}
	if fs.Changed("session-bandwidth") {
		cfg.SessionBandwidth = f.sessionBW
	}

	return cfg.Validate()
}

// run serves until ctx is done, then shuts the server down.
func run(ctx context.Context, cfg server.Config) error {
	srv, err := server.NewServer(cfg, server.WithLogger(logger))
	if err != nil {
		return errors.Wrap(err, "new server failed")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		_ = srv.Shutdown()
		return errors.Wrap(err, "serve failed")
	case <-ctx.Done():
		logger.Info("shutting_down")
	}

	shutdownErr := srv.Shutdown()
	if err := <-errCh; err != nil && !errors.Is(err, server.ErrServerClosed) {
		return errors.Wrap(err, "serve failed")
	}
	return errors.Wrap(shutdownErr, "shutdown failed")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, _ := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		logger.Fatal(errors.Wrap(err, "execute root command failed"))
	}
}
