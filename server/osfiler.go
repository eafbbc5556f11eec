package server

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// osFiler implements LocalFiler over the real filesystem, jailed to a root
// directory via os.Root so a client-supplied path can never escape it,
// mirroring the teacher's FSDriver/fsContext use of os.OpenRoot.
type osFiler struct {
	root *os.Root
}

// newOSFiler opens rootPath as an os.Root. Every subsequent Open is
// resolved relative to it.
func newOSFiler(rootPath string) (*osFiler, error) {
	root, err := os.OpenRoot(rootPath)
	if err != nil {
		return nil, errors.Wrapf(err, "netfiles: open root %q", rootPath)
	}
	return &osFiler{root: root}, nil
}

func (f *osFiler) Close() error {
	return f.root.Close()
}

func (f *osFiler) Open(path string) (LocalFile, error) {
	rel, err := jailPath(path)
	if err != nil {
		return nil, err
	}
	file, err := f.root.OpenFile(rel, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	return &osFile{f: file}, nil
}

// jailPath rejects obviously escaping paths before they ever reach
// os.Root, which then enforces the jail itself; this is a cheap first
// rejection that produces a clean error rather than relying solely on
// os.Root's own error text.
func jailPath(path string) (string, error) {
	cleaned := filepath.Clean(strings.TrimPrefix(path, "/"))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", os.ErrPermission
	}
	return cleaned, nil
}

type osFile struct {
	f *os.File
}

func (o *osFile) ReadAll() ([]byte, error) {
	if _, err := o.f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(o.f)
}

func (o *osFile) WriteFromStart(data []byte) (int, error) {
	if _, err := o.f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return o.f.Write(data)
}

func (o *osFile) Close() error {
	return o.f.Close()
}
