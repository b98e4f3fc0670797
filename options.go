package ftp

import (
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithTimeout sets the timeout for dialing and for every control and data
// read or write. Zero disables deadlines.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout < 0 {
			return errors.Errorf("negative timeout: %v", timeout)
		}
		c.timeout = timeout
		return nil
	}
}

// WithLogger enables debug logging of every request and reply.
//
// Example:
//
//	logger := logrus.New()
//	logger.SetLevel(logrus.DebugLevel)
//	client, _ := ftp.Dial("localhost:21", ftp.WithLogger(logger))
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithDialer sets the net.Dialer used for the control connection and for
// passive data connections.
func WithDialer(dialer *net.Dialer) Option {
	return func(c *Client) error {
		if dialer == nil {
			return errors.New("dialer cannot be nil")
		}
		c.dialer = dialer
		return nil
	}
}

// WithActiveMode makes the client listen for data connections and announce
// them with PORT (IPv4) or EPRT (IPv6) instead of using EPSV/PASV.
func WithActiveMode() Option {
	return func(c *Client) error {
		c.activeMode = true
		return nil
	}
}

// WithDisableEPSV skips EPSV and negotiates passive mode with PASV only.
func WithDisableEPSV() Option {
	return func(c *Client) error {
		c.disableEPSV = true
		return nil
	}
}

// WithResponseHook registers fn to be called with every reply the client
// reads, including the greeting and the final reply of a transfer.
// Interactive front ends use it to echo the conversation.
func WithResponseHook(fn func(*Response)) Option {
	return func(c *Client) error {
		c.onResponse = fn
		return nil
	}
}
