package netfiles

import (
	"bytes"
	"io"
)

// File is an open remote file, identified by the fd the server returned
// from Open. It implements io.ReadWriteCloser: the first Read fetches the
// file's entire contents and later Reads consume that same snapshot
// without fetching again (the protocol has no streaming or offset), and
// Write overwrites the file from the start without truncating it.
type File struct {
	client *Client
	fd     int64
	path   string

	readBuf *bytes.Reader
}

// Path returns the path this File was opened with.
func (f *File) Path() string { return f.path }

// Read fills p from the file's current full contents, fetched from the
// server on the first Read and buffered locally for subsequent calls,
// matching io.Reader's incremental-consumption contract over a protocol
// whose Read primitive has no offset or partial-read concept of its own.
func (f *File) Read(p []byte) (int, error) {
	if f.readBuf == nil {
		data, err := f.client.readFD(f.fd)
		if err != nil {
			return 0, err
		}
		f.readBuf = bytes.NewReader(data)
	}
	return f.readBuf.Read(p)
}

// Write sends data to the server as a single Write request, overwriting the
// file from the start; bytes past len(data) left from longer earlier
// contents remain. It does not buffer or chunk: the whole slice is sent as
// one wire frame.
func (f *File) Write(data []byte) (int, error) {
	return f.client.writeFD(f.fd, data)
}

// Close releases this handle. After Close, fd is no longer valid and a
// second Close returns a ProtocolError with IsBadHandle true.
func (f *File) Close() error {
	return f.client.closeFD(f.fd)
}

var _ io.ReadWriteCloser = (*File)(nil)
