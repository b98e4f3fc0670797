package server

import (
	"fmt"
	"strings"
)

// USER and PASS always succeed; there is no authentication.

func (s *session) handleUSER(user string) {
	s.logger.WithField("user", user).Debug("user_announced")
	s.reply(331, "Please specify the password.")
}

func (s *session) handlePASS(_ string) {
	s.logger.Info("login_success")
	s.reply(230, "Login successful.")
}

func (s *session) handleSYST(_ string) {
	s.reply(215, "UNIX Type: L8")
}

// MODE and STRU are acknowledged only. Stream mode and file structure are
// the only ones ever used.

func (s *session) handleMODE(_ string) {
	s.reply(200, "Mode set to Stream.")
}

func (s *session) handleSTRU(_ string) {
	s.reply(200, "Structure set to File.")
}

// handleTYPE records the representation type. Data is always sent as-is.
func (s *session) handleTYPE(arg string) {
	if arg == "A" || strings.HasPrefix(arg, "A ") {
		s.transferMode = modeASCII
	} else {
		s.transferMode = modeBinary
	}
	s.reply(200, fmt.Sprintf("Switching to %s mode.", s.transferMode))
}

func (s *session) handleNOOP(_ string) {
	s.reply(200, "NOOP command successful.")
}

func (s *session) handleQUIT(_ string) {
	s.reply(221, "Goodbye.")
	s.stop = true
}

func (s *session) handlePWD(_ string) {
	s.reply(257, quotePath(s.cwd)+" is the current directory.")
}

// quotePath encloses a pathname in double quotes, doubling any embedded
// quote (RFC 959 appendix II).
func quotePath(p string) string {
	return `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
}
