package server

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// commandHandlers maps FTP verbs to their handler functions.
// All handlers have the signature: func(s *session, arg string)
// Verbs are matched case-sensitively.
var commandHandlers = map[string]func(*session, string){
	// Access control and information
	"USER": (*session).handleUSER,
	"PASS": (*session).handlePASS,
	"SYST": (*session).handleSYST,
	"NOOP": (*session).handleNOOP,
	"QUIT": (*session).handleQUIT,

	// Transfer parameters
	"MODE": (*session).handleMODE,
	"STRU": (*session).handleSTRU,
	"TYPE": (*session).handleTYPE,
	"PORT": (*session).handlePORT,
	"EPRT": (*session).handleEPRT,
	"PASV": (*session).handlePASV,
	"EPSV": (*session).handleEPSV,

	// File management
	"PWD":  (*session).handlePWD,
	"CWD":  (*session).handleCWD,
	"SIZE": (*session).handleSIZE,
	"DELE": (*session).handleDELE,
	"RNFR": (*session).handleRNFR,
	"RNTO": (*session).handleRNTO,

	// File transfer
	"LIST": (*session).handleLIST,
	"RETR": (*session).handleRETR,
	"STOR": (*session).handleSTOR,
}

// argumentRequired lists the verbs that answer 501 when sent bare.
var argumentRequired = map[string]bool{
	"PORT": true,
	"EPRT": true,
	"CWD":  true,
	"SIZE": true,
	"DELE": true,
	"RNFR": true,
	"RNTO": true,
	"RETR": true,
	"STOR": true,
}

// Verbs returns the verbs the server implements, sorted.
func Verbs() []string {
	return slices.Sorted(maps.Keys(commandHandlers))
}

// parseCommand splits a request line into its verb and argument. The
// argument is the rest of the line after the first run of whitespace,
// trimmed.
func parseCommand(line string) (verb, arg string) {
	line = strings.TrimSpace(line)
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i+1:])
}

// handleCommand parses and dispatches one request line.
func (s *session) handleCommand(line string) {
	verb, arg := parseCommand(line)
	if verb == "" {
		return
	}

	logArg := arg
	if verb == "PASS" {
		logArg = "***"
	}
	s.logger.WithField("cmd", verb).WithField("arg", logArg).Debug("command received")

	handler, ok := commandHandlers[verb]
	switch {
	case !ok:
		s.reply(202, "Command not implemented, superfluous at this site.")
		return
	case argumentRequired[verb] && arg == "":
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}

	start := time.Now()
	s.lastCode = 0
	handler(s, arg)

	if s.server.metricsCollector != nil {
		s.server.metricsCollector.RecordCommand(verb, s.lastCode > 0 && s.lastCode < 400, time.Since(start))
	}
}
