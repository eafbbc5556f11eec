// Package netfiles is a client library for the netfiles remote file-access
// protocol: a single persistent TCP connection per client process, carrying
// four primitives (open, read, write, close) over a length-prefixed framed
// wire format. The server side's Access Manager and sharing-mode policy are
// implemented in the netfiles/server package.
//
// # Basic usage
//
//	c, err := netfiles.Dial("localhost:20000", netfiles.Transaction)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	f, err := c.Open("report.txt", netfiles.ReadWrite)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//
//	data, err := io.ReadAll(f)
package netfiles
