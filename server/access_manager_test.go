package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memFiler is an in-memory LocalFiler for testing the Access Manager's
// policy logic without touching a real filesystem.
type memFiler struct {
	files map[string]*memFile
}

func newMemFiler() *memFiler {
	return &memFiler{files: make(map[string]*memFile)}
}

func (m *memFiler) Open(path string) (LocalFile, error) {
	f, ok := m.files[path]
	if !ok {
		f = &memFile{}
		m.files[path] = f
	}
	f.opens++
	return f, nil
}

type memFile struct {
	data   []byte
	opens  int
	closed bool
}

func (f *memFile) ReadAll() ([]byte, error) {
	out := make([]byte, len(f.data))
	copy(out, f.data)
	return out, nil
}

func (f *memFile) WriteFromStart(data []byte) (int, error) {
	if len(data) > len(f.data) {
		f.data = append(f.data, make([]byte, len(data)-len(f.data))...)
	}
	copy(f.data, data)
	return len(data), nil
}

func (f *memFile) Close() error {
	f.closed = true
	return nil
}

func newTestAM() (*AccessManager, *memFiler) {
	filer := newMemFiler()
	return NewAccessManager(filer, nil), filer
}

func TestOpenFreshPathAdmitsUnconditionally(t *testing.T) {
	am, _ := newTestAM()
	fd, err := am.Open("a.txt", Unrestricted, ReadWrite, 1)
	require.NoError(t, err)
	assert.NotZero(t, fd)
}

func TestOpenDuplicateByConnectionDenied(t *testing.T) {
	am, _ := newTestAM()
	_, err := am.Open("a.txt", Unrestricted, ReadOnly, 1)
	require.NoError(t, err)

	_, err = am.Open("a.txt", Unrestricted, ReadOnly, 1)
	assert.ErrorIs(t, err, ErrPolicyDenied)
}

func TestOpenTransactionExcludesEveryone(t *testing.T) {
	am, _ := newTestAM()
	_, err := am.Open("a.txt", Transaction, ReadOnly, 1)
	require.NoError(t, err)

	_, err = am.Open("a.txt", Unrestricted, ReadOnly, 2)
	assert.ErrorIs(t, err, ErrPolicyDenied)
}

func TestOpenTransactionRequestDeniedAgainstExistingHolder(t *testing.T) {
	am, _ := newTestAM()
	_, err := am.Open("a.txt", Unrestricted, ReadOnly, 1)
	require.NoError(t, err)

	_, err = am.Open("a.txt", Transaction, ReadOnly, 2)
	assert.ErrorIs(t, err, ErrPolicyDenied)
}

func TestOpenReadOnlyAlwaysAdmitted(t *testing.T) {
	am, _ := newTestAM()
	_, err := am.Open("a.txt", Exclusive, WriteOnly, 1)
	require.NoError(t, err)

	_, err = am.Open("a.txt", Unrestricted, ReadOnly, 2)
	assert.NoError(t, err)
}

func TestOpenExclusiveAllowsOnlyOneWriter(t *testing.T) {
	am, _ := newTestAM()
	_, err := am.Open("a.txt", Exclusive, WriteOnly, 1)
	require.NoError(t, err)

	_, err = am.Open("a.txt", Exclusive, WriteOnly, 2)
	assert.ErrorIs(t, err, ErrPolicyDenied)
}

func TestOpenExclusiveViaExistingMaxDeniesSecondWriter(t *testing.T) {
	am, _ := newTestAM()
	_, err := am.Open("a.txt", Exclusive, WriteOnly, 1)
	require.NoError(t, err)

	_, err = am.Open("a.txt", Unrestricted, ReadWrite, 2)
	assert.ErrorIs(t, err, ErrPolicyDenied)
}

func TestOpenUnrestrictedAllowsMultipleWriters(t *testing.T) {
	am, _ := newTestAM()
	_, err := am.Open("a.txt", Unrestricted, WriteOnly, 1)
	require.NoError(t, err)

	_, err = am.Open("a.txt", Unrestricted, WriteOnly, 2)
	assert.NoError(t, err)
}

func TestCloseReleasesAndLastCloseClosesLocalFile(t *testing.T) {
	am, filer := newTestAM()
	fd1, err := am.Open("a.txt", Unrestricted, ReadOnly, 1)
	require.NoError(t, err)
	fd2, err := am.Open("a.txt", Unrestricted, ReadOnly, 2)
	require.NoError(t, err)
	require.Equal(t, fd1, fd2)

	require.NoError(t, am.Close(fd1, 1))
	assert.False(t, filer.files["a.txt"].closed)

	require.NoError(t, am.Close(fd2, 2))
	assert.True(t, filer.files["a.txt"].closed)
}

func TestCloseTwiceIsBadHandle(t *testing.T) {
	am, _ := newTestAM()
	fd, err := am.Open("a.txt", Unrestricted, ReadOnly, 1)
	require.NoError(t, err)

	require.NoError(t, am.Close(fd, 1))
	assert.ErrorIs(t, am.Close(fd, 1), ErrBadHandle)
}

func TestCloseUnknownFDIsBadHandle(t *testing.T) {
	am, _ := newTestAM()
	assert.ErrorIs(t, am.Close(999, 1), ErrBadHandle)
}

func TestCloseByNonOwnerIsBadHandle(t *testing.T) {
	am, _ := newTestAM()
	fd, err := am.Open("a.txt", Unrestricted, ReadOnly, 1)
	require.NoError(t, err)
	assert.ErrorIs(t, am.Close(fd, 2), ErrBadHandle)
}

func TestReadRequiresReadPermission(t *testing.T) {
	am, _ := newTestAM()
	fd, err := am.Open("a.txt", Unrestricted, WriteOnly, 1)
	require.NoError(t, err)

	_, err = am.Read(fd, 1)
	assert.ErrorIs(t, err, ErrPolicyDenied)
}

func TestWriteRequiresWritePermission(t *testing.T) {
	am, _ := newTestAM()
	fd, err := am.Open("a.txt", Unrestricted, ReadOnly, 1)
	require.NoError(t, err)

	_, err = am.Write(fd, []byte("x"), 1)
	assert.ErrorIs(t, err, ErrPolicyDenied)
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	am, _ := newTestAM()
	fd, err := am.Open("a.txt", Unrestricted, ReadWrite, 1)
	require.NoError(t, err)

	n, err := am.Write(fd, []byte("hello"), 1)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	data, err := am.Read(fd, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestReleaseAllOnDisconnectFreesEveryHeldFD(t *testing.T) {
	am, filer := newTestAM()
	fd1, err := am.Open("a.txt", Unrestricted, ReadOnly, 1)
	require.NoError(t, err)
	fd2, err := am.Open("b.txt", Unrestricted, ReadOnly, 1)
	require.NoError(t, err)

	am.releaseAll(1, []int64{fd1, fd2})

	assert.True(t, filer.files["a.txt"].closed)
	assert.True(t, filer.files["b.txt"].closed)
	assert.ErrorIs(t, am.Close(fd1, 1), ErrBadHandle)
}

func TestMemFilerReadWriteSanity(t *testing.T) {
	var f memFile
	n, err := f.WriteFromStart([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	data, err := f.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(data))

	// A shorter subsequent write overwrites only the prefix; trailing
	// bytes from the previous write remain, matching WriteFromStart's
	// no-truncate contract.
	_, err = f.WriteFromStart([]byte("XY"))
	require.NoError(t, err)
	data, err = f.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "XYcdef", string(data))
}
