package server

import (
	"strconv"

	"github.com/sirupsen/logrus"
)

func (s *session) handleCWD(pathname string) {
	abs, err := s.resolve(pathname)
	if err != nil || !s.resolver.IsReadable(abs) {
		s.logger.WithError(err).WithField("path", pathname).Debug("cwd_denied")
		s.reply(550, "Failed to change directory.")
		return
	}
	info, err := s.server.fs.Stat(abs)
	if err != nil || !info.IsDir() {
		s.reply(550, "Failed to change directory.")
		return
	}
	s.cwd = s.resolver.Virtual(abs)
	s.reply(250, "Directory successfully changed.")
}

func (s *session) handleSIZE(pathname string) {
	abs, err := s.resolve(pathname)
	if err != nil || !s.resolver.IsReadable(abs) {
		s.reply(550, "Could not get file size.")
		return
	}
	info, err := s.server.fs.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		s.reply(550, "Could not get file size.")
		return
	}
	s.reply(213, strconv.FormatInt(info.Size(), 10))
}

func (s *session) handleDELE(pathname string) {
	abs, err := s.resolve(pathname)
	if err != nil || abs == s.resolver.Home() || !s.resolver.IsWritable(abs) {
		s.reply(550, "Deletion failed.")
		return
	}
	if err := s.server.fs.Remove(abs); err != nil {
		s.logger.WithError(err).WithField("path", pathname).Warn("delete_failed")
		s.reply(550, "Deletion failed.")
		return
	}
	s.logger.WithField("path", s.resolver.Virtual(abs)).Info("file_deleted")
	s.reply(250, "Deleted OK.")
}

// handleRNFR records the source of a rename. A second RNFR replaces the
// pending one.
func (s *session) handleRNFR(pathname string) {
	abs, err := s.resolve(pathname)
	if err != nil || abs == s.resolver.Home() || !s.resolver.IsWritable(abs) {
		s.reply(550, "Rename failed.")
		return
	}
	s.rename = renamePending{from: abs}
	s.reply(350, "Requested file action pending further information.")
}

// handleRNTO completes a pending rename. The pending state is cleared
// whatever the outcome.
func (s *session) handleRNTO(pathname string) {
	pending, ok := s.rename.(renamePending)
	s.rename = renameIdle{}
	if !ok {
		s.reply(550, "Rename failed.")
		return
	}

	to, err := s.resolve(pathname)
	if err != nil || to == s.resolver.Home() {
		s.reply(550, "Rename failed.")
		return
	}
	if err := s.server.fs.Rename(pending.from, to); err != nil {
		s.logger.WithError(err).WithField("path", pathname).Warn("rename_failed")
		s.reply(550, "Rename failed.")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"from": s.resolver.Virtual(pending.from),
		"to":   s.resolver.Virtual(to),
	}).Info("file_renamed")
	s.reply(250, "Renamed OK.")
}
