package ftp

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Store uploads r to remotePath in binary mode.
//
// Example:
//
//	file, err := os.Open("local.txt")
//	if err != nil {
//	    return err
//	}
//	defer file.Close()
//
//	err = client.Store("remote.txt", file)
func (c *Client) Store(remotePath string, r io.Reader) error {
	if err := c.Type("I"); err != nil {
		return errors.Wrap(err, "failed to set binary mode")
	}

	dataConn, err := c.cmdDataConnFrom("STOR", remotePath)
	if err != nil {
		return err
	}

	n, copyErr := io.Copy(dataConn, r)
	finishErr := c.finishDataConn("STOR", dataConn)

	if copyErr != nil {
		return errors.Wrap(copyErr, "upload failed")
	}
	if finishErr != nil {
		return finishErr
	}

	c.logger.WithField("path", remotePath).WithField("bytes", n).Debug("stored")
	return nil
}

// StoreFrom uploads the local file at localPath to remotePath.
func (c *Client) StoreFrom(remotePath, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return errors.Wrap(err, "failed to open local file")
	}
	defer file.Close()

	return c.Store(remotePath, file)
}

// Retrieve downloads remotePath into w in binary mode.
func (c *Client) Retrieve(remotePath string, w io.Writer) error {
	if err := c.Type("I"); err != nil {
		return errors.Wrap(err, "failed to set binary mode")
	}

	dataConn, err := c.cmdDataConnFrom("RETR", remotePath)
	if err != nil {
		return err
	}

	n, copyErr := io.Copy(w, dataConn)
	finishErr := c.finishDataConn("RETR", dataConn)

	if copyErr != nil {
		return errors.Wrap(copyErr, "download failed")
	}
	if finishErr != nil {
		return finishErr
	}

	c.logger.WithField("path", remotePath).WithField("bytes", n).Debug("retrieved")
	return nil
}

// RetrieveTo downloads remotePath into the local file at localPath. The
// local file is removed again when the download fails.
func (c *Client) RetrieveTo(remotePath, localPath string) error {
	file, err := os.Create(localPath)
	if err != nil {
		return errors.Wrap(err, "failed to create local file")
	}

	err = c.Retrieve(remotePath, file)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(localPath)
		return err
	}
	return nil
}

// List returns the raw lines of a LIST of path, or of the working
// directory when path is empty. Lines are returned as the server sent
// them, without the line terminator; no listing format is assumed.
func (c *Client) List(path string) ([]string, error) {
	args := []string{}
	if path != "" {
		args = append(args, path)
	}

	dataConn, err := c.cmdDataConnFrom("LIST", args...)
	if err != nil {
		return nil, err
	}

	var lines []string
	scanner := bufio.NewScanner(dataConn)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	scanErr := scanner.Err()

	if err := c.finishDataConn("LIST", dataConn); err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, errors.Wrap(scanErr, "failed to read directory listing")
	}

	return lines, nil
}
