package server

import (
	"bufio"
	"io"
	"net"

	"github.com/pkg/errors"
)

// transferError carries the reply code a failed transfer is answered with.
type transferError struct {
	code int
	err  error
}

func (e *transferError) Error() string { return e.err.Error() }

func (e *transferError) Unwrap() error { return e.err }

// Failure classes for transfers that have already been announced with 150.
const (
	codeCantOpenData = 425
	codeAborted      = 426
	codeLocalError   = 451
)

var transferMessages = map[int]string{
	codeCantOpenData: "Can't open data connection.",
	codeAborted:      "Connection closed; transfer aborted.",
	codeLocalError:   "Requested action aborted: local error in processing.",
}

func localError(err error) error {
	return &transferError{code: codeLocalError, err: err}
}

// transfer obtains one data connection, runs stream over it and closes it.
// The connection is closed before transfer returns, so the caller's final
// reply always follows the end of the data stream.
func (s *session) transfer(stream func(conn net.Conn) (int64, error)) (int64, error) {
	conn, err := s.openData()
	if err != nil {
		return 0, &transferError{code: codeCantOpenData, err: err}
	}

	n, err := stream(conn)
	closeErr := conn.Close()
	if err != nil {
		var te *transferError
		if errors.As(err, &te) {
			return n, err
		}
		return n, &transferError{code: codeAborted, err: err}
	}
	if closeErr != nil {
		return n, &transferError{code: codeAborted, err: errors.Wrap(closeErr, "close data connection failed")}
	}
	return n, nil
}

// replyTransferError answers a failed transfer and logs the cause.
func (s *session) replyTransferError(operation string, err error) {
	code := codeAborted
	var te *transferError
	if errors.As(err, &te) {
		code = te.code
	}
	s.logger.WithError(err).WithField("operation", operation).Warn("transfer_failed")
	s.reply(code, transferMessages[code])
}

// sendLines writes each line followed by CRLF.
func sendLines(w io.Writer, lines []string) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, line := range lines {
		written, err := bw.WriteString(line)
		n += int64(written)
		if err != nil {
			return n, errors.Wrap(err, "write listing failed")
		}
		written, err = bw.WriteString("\r\n")
		n += int64(written)
		if err != nil {
			return n, errors.Wrap(err, "write listing failed")
		}
	}
	return n, errors.Wrap(bw.Flush(), "flush listing failed")
}

// sendFile copies src to the data connection verbatim.
func sendFile(conn net.Conn, src io.Reader) (int64, error) {
	n, err := io.Copy(conn, src)
	return n, errors.Wrap(err, "send file failed")
}

// receiveFile copies the data connection into dst until the peer closes it.
func receiveFile(dst io.Writer, conn net.Conn) (int64, error) {
	n, err := io.Copy(dst, conn)
	return n, errors.Wrap(err, "receive file failed")
}
