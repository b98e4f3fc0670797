// Package server implements a minimal RFC 959 FTP server.
//
// # Overview
//
// The server confines every session to one home directory and supports the
// core command set: USER, PASS, SYST, MODE, STRU, TYPE, PWD, CWD, SIZE,
// DELE, RNFR, RNTO, LIST, RETR, STOR, PORT, EPRT, PASV, EPSV, NOOP and QUIT.
// There is no authentication; USER and PASS always succeed. Transfers are
// always binary byte streams whatever TYPE says.
//
// # Getting Started
//
//	package main
//
//	import (
//	    "log"
//	    "github.com/myftpd/myftpd/server"
//	)
//
//	func main() {
//	    cfg := server.DefaultConfig()
//	    cfg.HomeRoot = "/srv/ftp"
//	    cfg.Port = 2121
//
//	    s, err := server.NewServer(cfg)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    log.Fatal(s.ListenAndServe())
//	}
//
// Configuration may also come from a YAML file:
//
//	cfg, err := server.LoadConfig("/etc/myftpd.yaml")
//
// # Sandbox
//
// Client pathnames are resolved against the working directory, joined to the
// home root and canonicalized (".." and symlinks resolved) before any
// filesystem access. A path whose canonical form is not the home root or a
// descendant of it is refused with the command's failure code. Targets that
// do not exist yet, such as STOR destinations, are canonicalized through
// their longest existing parent.
//
// # Data Connections
//
// PORT and EPRT select active mode: the server dials the given endpoint for
// each transfer. PASV and EPSV select passive mode: the server opens a
// listener and accepts one connection per transfer. The listener stays open
// until the next PORT, EPRT, PASV or EPSV or the end of the session, so
// several transfers can follow one PASV.
//
// Behind NAT, set PublicHost and a passive port range:
//
//	cfg.PublicHost = "203.0.113.10"
//	cfg.PasvMinPort = 30000
//	cfg.PasvMaxPort = 30100
//
// # Listings
//
// LIST output comes from a ListingProvider. By default the server runs
// "ls -l <path>"; if no ls binary is found it formats the listing itself
// with FileInfoListing. A custom provider can be injected:
//
//	s, _ := server.NewServer(cfg, server.WithListingProvider(myProvider))
//
// # Logging
//
// Server and session events go to a logrus.FieldLogger (WithLogger).
// Every request line is also passed to a RequestLogger together with the
// peer address; the default AsyncRequestLogger never blocks a session and
// masks PASS arguments.
//
// # Shutdown
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	go func() {
//	    <-ctx.Done()
//	    s.Shutdown()
//	}()
//	if err := s.ListenAndServe(); !errors.Is(err, server.ErrServerClosed) {
//	    log.Fatal(err)
//	}
package server
