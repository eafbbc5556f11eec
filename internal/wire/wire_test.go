package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		[]byte("hello"),
		bytes.Repeat([]byte("x"), 4096),
	}
	for _, payload := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteFrame(&buf, payload))

		got, err := ReadFrame(&buf)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	}
}

func TestReadFrameShortLength(t *testing.T) {
	r := bytes.NewReader([]byte{1, 2})
	_, err := ReadFrame(r)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestReadFrameShortBody(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello")))
	truncated := buf.Bytes()[:len(buf.Bytes())-2]

	_, err := ReadFrame(bytes.NewReader(truncated))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestReadFrameCleanEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShortRead)
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenRequestRoundTrip(t *testing.T) {
	payload := EncodeOpen("some/file.txt", ModeReadWrite)
	path, mode, err := ParseOpen(payload)
	require.NoError(t, err)
	assert.Equal(t, "some/file.txt", path)
	assert.Equal(t, ModeReadWrite, mode)
}

func TestOpenRequestPathWithComma(t *testing.T) {
	payload := EncodeOpen("weird,name.txt", ModeReadOnly)
	path, mode, err := ParseOpen(payload)
	require.NoError(t, err)
	assert.Equal(t, "weird,name.txt", path)
	assert.Equal(t, ModeReadOnly, mode)
}

func TestFDRequestRoundTrip(t *testing.T) {
	payload := EncodeFDRequest(TagClose, 42)
	fd, err := ParseFDRequest(payload, TagClose)
	require.NoError(t, err)
	assert.EqualValues(t, 42, fd)

	_, err = ParseFDRequest(payload, TagRead)
	assert.Error(t, err)
}

func TestWriteDataRoundTrip(t *testing.T) {
	data := []byte("arbitrary, binary\x00bytes")
	payload := EncodeWriteData(data)
	got, err := ParseWriteData(payload)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestResponseRoundTrip(t *testing.T) {
	ok := EncodeSuccessInt(-7)
	resp, err := ParseResponse(ok)
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, "-7", string(resp.Data))

	fail := EncodeFailure(13)
	resp, err = ParseResponse(fail)
	require.NoError(t, err)
	assert.False(t, resp.OK)
	code, err := resp.Code()
	require.NoError(t, err)
	assert.Equal(t, 13, code)
}

func TestHandshakeRoundTrip(t *testing.T) {
	payload := EncodeHandshake(ModeExclusive)
	mode, err := ParseHandshake(payload)
	require.NoError(t, err)
	assert.Equal(t, ModeExclusive, mode)

	_, err = ParseHandshake([]byte{'0', '1'})
	assert.Error(t, err)
}
