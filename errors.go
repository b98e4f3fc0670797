package ftp

import "fmt"

// ProtocolError is returned when the server answers a request with a reply
// code the operation does not accept.
type ProtocolError struct {
	// Command is the verb that was sent (e.g., "STOR")
	Command string

	// Response is the reply text (e.g., "Requested action not taken.")
	Response string

	// Code is the numeric reply code (e.g., 450)
	Code int
}

func newProtocolError(command string, resp *Response) *ProtocolError {
	return &ProtocolError{
		Command:  command,
		Response: resp.Message,
		Code:     resp.Code,
	}
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ftp: %s failed: %s (code %d)", e.Command, e.Response, e.Code)
}

// IsTemporary reports a 4xx reply; the same request may succeed later.
func (e *ProtocolError) IsTemporary() bool {
	return e.Code >= 400 && e.Code < 500
}

// IsPermanent reports a 5xx reply.
func (e *ProtocolError) IsPermanent() bool {
	return e.Code >= 500 && e.Code < 600
}
