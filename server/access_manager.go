package server

import (
	"sync"
)

// AccessManager is the process-wide table of open files: a path-keyed and
// fd-keyed index over fileRecords, guarded by one mutex for the whole
// duration of every operation, including the underlying local file
// syscalls — per the concurrency model, local I/O happens inside the
// critical section and only socket I/O happens outside it.
type AccessManager struct {
	mu      sync.Mutex
	byPath  map[string]*fileRecord
	byFD    map[int64]*fileRecord
	nextFD  int64
	nextTok int64

	filer   LocalFiler
	metrics MetricsCollector
}

// NewAccessManager builds an empty table backed by filer.
func NewAccessManager(filer LocalFiler, metrics MetricsCollector) *AccessManager {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &AccessManager{
		byPath:  make(map[string]*fileRecord),
		byFD:    make(map[int64]*fileRecord),
		nextFD:  3,
		filer:   filer,
		metrics: metrics,
	}
}

// NewSessionToken issues a fresh, process-unique identifier for a newly
// accepted connection. It is opaque to everything but the Access Manager;
// workers only ever pass it back in as an opaque argument.
func (am *AccessManager) NewSessionToken() int64 {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.nextTok++
	return am.nextTok
}

func (am *AccessManager) allocFD() int64 {
	fd := am.nextFD
	am.nextFD++
	return fd
}

// Open admits or denies a request to open path under the connection's
// negotiated sharingMode with the requested permission, and returns the
// table's fd for path on success.
//
// Rules, checked in order, for an existing record r:
//
//  1. If r already has a handle for this session's token, deny: a
//     connection may not hold the same path open twice, regardless of
//     whether the second request's permission would otherwise agree.
//  2. (No record exists.) Open the local file, create a fresh record, and
//     admit unconditionally — there is nothing yet to conflict with.
//  3. If r's current max sharing mode is Transaction, or this request's
//     sharing mode is Transaction, deny: Transaction is exclusive of every
//     other holder, including other Transaction holders.
//  4. If the requested permission is ReadOnly, admit: readers never
//     conflict with each other.
//  5. Otherwise this request wants to write. If this session's sharing
//     mode is Exclusive, or r's current max sharing mode is Exclusive, deny
//     when admitting would leave more than one writer on the file.
//  6. Otherwise (both sides Unrestricted) admit.
func (am *AccessManager) Open(path string, mode SharingMode, perm Permission, token int64) (int64, error) {
	am.mu.Lock()
	defer am.mu.Unlock()

	if rec, ok := am.byPath[path]; ok {
		if _, already := rec.owner(token); already {
			am.metrics.RecordOpen(false)
			return 0, ErrPolicyDenied
		}
		if rec.maxSharingMode == Transaction || mode == Transaction {
			am.metrics.RecordOpen(false)
			return 0, ErrPolicyDenied
		}
		if perm == ReadOnly {
			rec.addHandle(token, perm, mode)
			am.metrics.RecordOpen(true)
			return rec.fd, nil
		}
		if mode == Exclusive || rec.maxSharingMode == Exclusive {
			if rec.writerCount()+1 > 1 {
				am.metrics.RecordOpen(false)
				return 0, ErrPolicyDenied
			}
		}
		rec.addHandle(token, perm, mode)
		am.metrics.RecordOpen(true)
		return rec.fd, nil
	}

	file, err := am.filer.Open(path)
	if err != nil {
		am.metrics.RecordOpen(false)
		return 0, err
	}
	fd := am.allocFD()
	rec := newFileRecord(path, fd, file)
	rec.addHandle(token, perm, mode)
	am.byPath[path] = rec
	am.byFD[fd] = rec
	am.metrics.RecordOpen(true)
	am.metrics.SetOpenFileCount(len(am.byFD))
	return fd, nil
}

// Close releases token's handle on fd. When the last handle on a record is
// released, the record is dropped from both indices and the underlying
// local file is closed, all inside the same critical section.
func (am *AccessManager) Close(fd int64, token int64) error {
	am.mu.Lock()
	defer am.mu.Unlock()

	rec, ok := am.byFD[fd]
	if !ok {
		return ErrBadHandle
	}
	if _, ok := rec.owner(token); !ok {
		return ErrBadHandle
	}
	rec.removeHandle(token)
	am.metrics.RecordClose()

	if rec.refCount() == 0 {
		delete(am.byFD, fd)
		delete(am.byPath, rec.path)
		am.metrics.SetOpenFileCount(len(am.byFD))
		return rec.file.Close()
	}
	return nil
}

// Read returns fd's current full contents, provided token holds a handle
// on it with read permission.
func (am *AccessManager) Read(fd int64, token int64) ([]byte, error) {
	am.mu.Lock()
	defer am.mu.Unlock()

	rec, ok := am.byFD[fd]
	if !ok {
		return nil, ErrBadHandle
	}
	h, ok := rec.owner(token)
	if !ok {
		return nil, ErrBadHandle
	}
	if !h.permission.canRead() {
		am.metrics.RecordPolicyDenied()
		return nil, ErrPolicyDenied
	}
	return rec.file.ReadAll()
}

// Write overwrites fd's contents from the start with data, provided token
// holds a handle on it with write permission.
func (am *AccessManager) Write(fd int64, data []byte, token int64) (int, error) {
	am.mu.Lock()
	defer am.mu.Unlock()

	rec, ok := am.byFD[fd]
	if !ok {
		return 0, ErrBadHandle
	}
	h, ok := rec.owner(token)
	if !ok {
		return 0, ErrBadHandle
	}
	if !h.permission.canWrite() {
		am.metrics.RecordPolicyDenied()
		return 0, ErrPolicyDenied
	}
	return rec.file.WriteFromStart(data)
}

// releaseAll drops every handle token holds, as if each had been
// individually Closed. It is used to clean up after a connection is lost
// without an explicit Close for every fd it still held.
func (am *AccessManager) releaseAll(token int64, fds []int64) {
	for _, fd := range fds {
		_ = am.Close(fd, token)
	}
}
