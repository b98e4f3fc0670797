// Package main is the myftp interactive client entrypoint.
package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	ftp "github.com/myftpd/myftpd"
	"github.com/myftpd/myftpd/internal/log"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

type flags struct {
	host     string
	port     int
	active   bool
	timeout  time.Duration
	localDir string
	logLevel string
}

func newRootCmd(stdin io.Reader, stdout io.Writer) (*cobra.Command, *flags) {
	f := &flags{}
	cmd := &cobra.Command{
		Use:           "myftp [HOST [PORT]]",
		Short:         "Sends raw FTP requests and prints the replies.",
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			log.SetLogger(f.logLevel)
			addr, err := f.addr(args)
			if err != nil {
				return err
			}
			return runClient(addr, f, stdin, stdout)
		},
	}

	cmd.SetOut(stdout)

	fs := cmd.Flags()
	fs.StringVar(&f.host, "host", "localhost", "server host")
	fs.IntVarP(&f.port, "port", "p", 21, "server port")
	fs.BoolVar(&f.active, "active", false, "use PORT/EPRT instead of EPSV/PASV")
	fs.DurationVar(&f.timeout, "timeout", 30*time.Second, "control and data timeout")
	fs.StringVarP(&f.localDir, "local-dir", "l", "", "directory RETR writes to and STOR reads from (default working directory)")
	fs.StringVar(&f.logLevel, "log-level", "warn", "trace, debug, info, warn or error")
	return cmd, f
}

// addr combines the flags with the optional HOST and PORT arguments, which
// take precedence.
func (f *flags) addr(args []string) (string, error) {
	host, port := f.host, f.port
	if len(args) > 0 {
		host = args[0]
	}
	if len(args) > 1 {
		p, err := strconv.Atoi(args[1])
		if err != nil {
			return "", errors.Wrapf(err, "invalid port %q", args[1])
		}
		port = p
	}
	if port < 1 || port > 65535 {
		return "", errors.Errorf("port %d out of range", port)
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

func runClient(addr string, f *flags, stdin io.Reader, stdout io.Writer) error {
	options := []ftp.Option{
		ftp.WithTimeout(f.timeout),
		ftp.WithLogger(logger),
		ftp.WithResponseHook(func(r *ftp.Response) { printResponse(stdout, r) }),
	}
	if f.active {
		options = append(options, ftp.WithActiveMode())
	}

	client, err := ftp.Dial(addr, options...)
	if err != nil {
		return errors.Wrapf(err, "connect to %s failed", addr)
	}
	defer client.Close()
	fmt.Fprintf(stdout, "my-ftp connected to %s.\n", addr)

	localDir := f.localDir
	if localDir == "" {
		if localDir, err = os.Getwd(); err != nil {
			return errors.Wrap(err, "get working directory failed")
		}
	}
	s := &shell{client: client, out: stdout, localDir: localDir}

	if file, ok := stdin.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		s.runPrompt()
		return nil
	}
	return s.runScript(stdin)
}

func main() {
	cmd, _ := newRootCmd(os.Stdin, os.Stdout)
	if err := cmd.Execute(); err != nil {
		logger.Fatal(errors.Wrap(err, "execute root command failed"))
	}
}
