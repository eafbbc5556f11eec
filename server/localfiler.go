package server

import "io"

// LocalFile is a single open local file as seen by the Access Manager: the
// whole-file read/write primitives spec.md's Read and Write operations are
// defined in terms of, isolated from *os.File so policy logic can be tested
// against a fake.
type LocalFile interface {
	io.Closer

	// ReadAll seeks to the start of the file and returns its entire
	// current contents.
	ReadAll() ([]byte, error)

	// WriteFromStart seeks to the start of the file and writes data,
	// returning the number of bytes written. It does not truncate: bytes
	// beyond len(data) left over from a previous, longer write remain.
	WriteFromStart(data []byte) (int, error)
}

// LocalFiler opens local files by the path a client requested, after any
// jailing/validation the implementation chooses to apply. It is the
// production seam the teacher's Driver/ClientContext pair models: the
// Access Manager depends only on this interface, never on *os.File
// directly.
type LocalFiler interface {
	Open(path string) (LocalFile, error)
}
