package server

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/myftpd/myftpd/internal/ratelimit"
)

func (s *session) handleLIST(arg string) {
	pathname := stripListOptions(arg)
	if pathname == "" {
		pathname = s.cwd
	}

	abs, err := s.resolve(pathname)
	if err != nil || !s.resolver.IsReadable(abs) {
		s.reply(550, "Requested action not taken. File unavailable.")
		return
	}
	if s.data == nil {
		s.reply(codeCantOpenData, transferMessages[codeCantOpenData])
		return
	}

	lines, err := s.server.listing.List(abs)
	if err != nil {
		s.replyTransferError("LIST", localError(err))
		return
	}

	s.reply(150, "Here comes the directory listing.")
	start := time.Now()
	n, err := s.transfer(func(conn net.Conn) (int64, error) {
		return sendLines(conn, lines)
	})
	if err != nil {
		s.replyTransferError("LIST", err)
		return
	}
	s.logTransfer("LIST", s.resolver.Virtual(abs), n, time.Since(start))
	s.reply(226, "Directory send OK.")
}

// stripListOptions drops leading "-la" style option words some clients send
// with LIST and returns the path that follows, if any.
func stripListOptions(arg string) string {
	for strings.HasPrefix(arg, "-") {
		_, rest, _ := strings.Cut(arg, " ")
		arg = strings.TrimSpace(rest)
	}
	return arg
}

func (s *session) handleRETR(pathname string) {
	abs, err := s.resolve(pathname)
	if err != nil || !s.resolver.IsReadable(abs) {
		s.reply(550, "Failed to open file.")
		return
	}
	info, err := s.server.fs.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		s.reply(550, "Failed to open file.")
		return
	}
	if s.data == nil {
		s.reply(codeCantOpenData, transferMessages[codeCantOpenData])
		return
	}

	file, err := s.server.fs.Open(abs)
	if err != nil {
		s.logger.WithError(err).WithField("path", pathname).Warn("open_failed")
		s.reply(550, "Failed to open file.")
		return
	}
	defer file.Close()

	s.reply(150, fmt.Sprintf("Opening BINARY mode data connection for %s (%d bytes).", pathname, info.Size()))
	start := time.Now()
	n, err := s.transfer(func(conn net.Conn) (int64, error) {
		return sendFile(conn, ratelimit.NewReader(file, s.limiter, s.server.bandwidth))
	})
	if err != nil {
		s.replyTransferError("RETR", err)
		return
	}
	s.logTransfer("RETR", s.resolver.Virtual(abs), n, time.Since(start))
	s.reply(226, "Transfer complete.")
}

// handleSTOR receives into a temporary file next to the target and renames
// it into place only after the whole stream arrived, so a failed transfer
// leaves any existing file untouched.
func (s *session) handleSTOR(pathname string) {
	abs, err := s.resolve(pathname)
	if err != nil {
		s.reply(450, "Requested action not taken.")
		return
	}
	if s.data == nil {
		s.reply(codeCantOpenData, transferMessages[codeCantOpenData])
		return
	}

	perm := os.FileMode(0o644)
	info, err := s.server.fs.Stat(abs)
	switch {
	case err == nil && (info.IsDir() || !s.resolver.IsWritable(abs)):
		s.reply(450, "Requested action not taken.")
		return
	case err == nil:
		perm = info.Mode().Perm()
	case !os.IsNotExist(err):
		s.logger.WithError(err).WithField("path", pathname).Warn("stat_failed")
		s.reply(450, "Requested action not taken.")
		return
	}

	file, err := afero.TempFile(s.server.fs, filepath.Dir(abs), ".myftpd-upload-*")
	if err != nil {
		s.logger.WithError(err).WithField("path", pathname).Warn("create_failed")
		s.reply(450, "Requested action not taken.")
		return
	}
	tmp := file.Name()

	s.reply(150, fmt.Sprintf("Opening BINARY mode data connection for %s.", pathname))
	start := time.Now()
	n, err := s.transfer(func(conn net.Conn) (int64, error) {
		n, err := receiveFile(ratelimit.NewWriter(file, s.limiter, s.server.bandwidth), conn)
		if err != nil {
			return n, err
		}
		if err := file.Close(); err != nil {
			return n, localError(errors.Wrap(err, "close file failed"))
		}
		if err := s.server.fs.Chmod(tmp, perm); err != nil {
			return n, localError(errors.Wrap(err, "chmod upload failed"))
		}
		if err := s.server.fs.Rename(tmp, abs); err != nil {
			return n, localError(errors.Wrap(err, "rename upload failed"))
		}
		return n, nil
	})
	if err != nil {
		_ = file.Close()
		_ = s.server.fs.Remove(tmp)
		s.replyTransferError("STOR", err)
		return
	}
	s.logTransfer("STOR", s.resolver.Virtual(abs), n, time.Since(start))
	s.reply(226, "Transfer complete.")
}

func (s *session) handlePORT(arg string) {
	addr, err := ParsePORT(arg)
	if err != nil {
		s.logger.WithError(err).Debug("port_rejected")
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}
	s.setActive("PORT", addr)
}

func (s *session) handleEPRT(arg string) {
	addr, err := ParseEPRT(arg)
	if err != nil {
		s.logger.WithError(err).Debug("eprt_rejected")
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}
	s.setActive("EPRT", addr)
}

func (s *session) setActive(cmd, addr string) {
	if s.cfg.RestrictActiveIP && !s.validateActiveIP(addr) {
		s.logger.WithFields(logrus.Fields{
			"cmd":    cmd,
			"target": addr,
		}).Warn("active_mode_rejected")
		s.reply(500, "Illegal "+cmd+" command.")
		return
	}
	s.setDataMode(&activeMode{addr: addr})
	s.reply(200, cmd+" command successful.")
}

func (s *session) handlePASV(_ string) {
	mode, ok := s.enterPassive()
	if !ok {
		return
	}
	s.reply(227, fmt.Sprintf("Entering Passive Mode (%s).", EncodePASV(s.passiveIP(), mode.port())))
}

func (s *session) handleEPSV(_ string) {
	mode, ok := s.enterPassive()
	if !ok {
		return
	}
	s.reply(229, fmt.Sprintf("Entering Extended Passive Mode (%s).", EncodeEPSV(mode.port())))
}

// enterPassive opens a new passive listener and makes it the data mode.
// On failure it has already replied.
func (s *session) enterPassive() (*passiveMode, bool) {
	ln, err := s.server.listenPassive()
	if err != nil {
		s.logger.WithError(err).Error("passive_listen_failed")
		s.reply(425, "Can't open passive connection.")
		return nil, false
	}
	if !s.server.trackConnection(ln, true) {
		s.reply(425, "Can't open passive connection.")
		return nil, false
	}
	mode := &passiveMode{ln: ln, server: s.server}
	s.setDataMode(mode)
	return mode, true
}
