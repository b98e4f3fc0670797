package server

import "time"

// MetricsCollector is an optional interface for collecting server metrics.
// Implementations can send metrics to monitoring systems like Prometheus,
// StatsD, DataDog, etc.
//
// Methods are called inline from sessions and should be non-blocking.
// If a method takes significant time, it should dispatch the work
// asynchronously.
type MetricsCollector interface {
	// RecordCommand records one handled request.
	// cmd is the verb (e.g., "RETR", "CWD"); success is true for 1xx-3xx
	// final replies.
	RecordCommand(cmd string, success bool, duration time.Duration)

	// RecordTransfer records a completed data transfer.
	// operation is "LIST", "RETR" or "STOR".
	RecordTransfer(operation string, bytes int64, duration time.Duration)

	// RecordConnection records a control connection attempt.
	// reason is "accepted" or "global_limit_reached".
	RecordConnection(accepted bool, reason string)
}
