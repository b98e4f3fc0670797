// Package ftp implements a small FTP client for plain RFC 959 servers.
//
// # Overview
//
// The client speaks the subset of FTP that the myftpd server in this
// module implements:
//   - Control channel requests with multi-line reply parsing
//   - Passive data connections (EPSV, falling back to PASV)
//   - Active data connections (PORT, or EPRT over IPv6)
//   - LIST, RETR and STOR transfers in binary mode
//   - ProtocolError for replies an operation does not accept
//
// # Basic Usage
//
//	client, err := ftp.Dial("localhost:2121")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Quit()
//
//	if err := client.Login("anonymous", "anonymous"); err != nil {
//	    log.Fatal(err)
//	}
//
//	lines, err := client.List("/pub")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, line := range lines {
//	    fmt.Println(line)
//	}
//
// # Listings
//
// List returns the raw lines the server produced. Servers are free to
// format LIST output as they like, so no parsing is attempted.
//
// # Error Handling
//
// Unexpected replies are returned as *ProtocolError:
//
//	err := client.Delete("missing.txt")
//	var pe *ftp.ProtocolError
//	if errors.As(err, &pe) && pe.IsPermanent() {
//	    fmt.Println("server refused:", pe.Response)
//	}
//
// # Logging
//
// WithLogger accepts any logrus.FieldLogger; every request and reply is
// logged at debug level with PASS arguments masked. WithResponseHook
// exposes the replies themselves, which is what the interactive myftp
// command uses to echo the conversation.
package ftp
