// Package server implements the netfiles Access Manager: a shared,
// mutex-protected table of open files that mediates concurrent access from
// many client connections, plus the TCP worker loop that dispatches the
// framed open/read/write/close protocol against it.
//
// # Overview
//
// A Server accepts TCP connections and spawns one worker goroutine per
// connection. All workers share a single Server.am (*AccessManager), which
// is the only cross-worker state: a path-keyed and fd-keyed index over
// fileRecords, guarded by one mutex. The compatibility rules a record
// enforces across SharingMode and Permission are described on
// AccessManager.Open.
//
// # Basic usage
//
//	srv, err := server.NewServer(":20000", server.WithRoot("/srv/netfiles"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(srv.ListenAndServe())
package server
