package server

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// RequestLogger receives every request line read from a control
// connection, together with the peer address. Implementations must not
// block: the session calls LogRequest inline before handling the request.
type RequestLogger interface {
	LogRequest(host string, port int, line string)
}

type requestEntry struct {
	host string
	port int
	line string
}

// AsyncRequestLogger writes request lines to a logrus logger from a
// background goroutine. When its buffer is full, entries are dropped and
// counted rather than delaying the session.
type AsyncRequestLogger struct {
	logger  logrus.FieldLogger
	entries chan requestEntry

	mu      sync.Mutex
	dropped int
	closed  bool
	done    chan struct{}
}

// NewAsyncRequestLogger starts a request logger with the given buffer size.
func NewAsyncRequestLogger(logger logrus.FieldLogger, buffer int) *AsyncRequestLogger {
	if buffer <= 0 {
		buffer = 1
	}
	l := &AsyncRequestLogger{
		logger:  logger,
		entries: make(chan requestEntry, buffer),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *AsyncRequestLogger) run() {
	defer close(l.done)
	for e := range l.entries {
		l.logger.WithFields(logrus.Fields{
			"peer_host": e.host,
			"peer_port": e.port,
		}).Info(e.line)
	}
}

// LogRequest queues the entry, or drops it if the queue is full.
func (l *AsyncRequestLogger) LogRequest(host string, port int, line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.entries <- requestEntry{host: host, port: port, line: maskRequest(line)}:
	default:
		l.dropped++
	}
}

// Dropped returns the number of entries discarded because the queue was full.
func (l *AsyncRequestLogger) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close stops accepting entries and waits for queued ones to be written.
func (l *AsyncRequestLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.entries)
	l.mu.Unlock()
	<-l.done
	return nil
}

// maskRequest hides PASS arguments.
func maskRequest(line string) string {
	if verb, _, ok := strings.Cut(line, " "); ok && verb == "PASS" {
		return "PASS ***"
	}
	return line
}
