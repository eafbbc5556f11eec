// Package wire implements the length-prefixed framed protocol shared by the
// netfiles client and server: a 4-byte little-endian length followed by
// that many bytes of a comma-delimited textual payload.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// Request tags, matching the single-character function codes on the wire.
const (
	TagOpen  byte = 'O'
	TagClose byte = 'C'
	TagRead  byte = 'R'
	TagWrite byte = 'W'
)

// Open permission characters, carried as the mode byte of an Open request.
const (
	ModeReadOnly  byte = 'R'
	ModeWriteOnly byte = 'W'
	ModeReadWrite byte = 'B'
)

// Response status bytes.
const (
	StatusSuccess byte = 'S'
	StatusFailure byte = 'F'
)

// Sharing-mode handshake bytes, sent as the single-byte first frame on a
// new connection.
const (
	ModeUnrestricted byte = '0'
	ModeExclusive    byte = '1'
	ModeTransaction  byte = '2'
)

// Separator is the field delimiter used inside a frame's payload.
const Separator byte = ','

// MaxFrameLength bounds a single frame's payload so a corrupt or hostile
// length prefix can't force an unbounded allocation.
const MaxFrameLength = 64 << 20 // 64 MiB

// ErrShortRead is returned when a peer closes or a link fails mid-frame,
// whether while reading the length prefix or the payload body.
var ErrShortRead = errors.New("wire: short read")

// shortReadError wraps the underlying io error (often io.EOF or
// io.ErrUnexpectedEOF) alongside ErrShortRead, so callers can match
// either with errors.Is without losing the original cause.
type shortReadError struct {
	cause error
}

func (e *shortReadError) Error() string {
	return fmt.Sprintf("%s: %s", ErrShortRead, e.cause)
}

func (e *shortReadError) Unwrap() []error {
	return []error{ErrShortRead, e.cause}
}

func wrapShortRead(cause error) error {
	return &shortReadError{cause: cause}
}

// ErrFrameTooLarge is returned when a frame's declared length exceeds
// MaxFrameLength.
var ErrFrameTooLarge = errors.New("wire: frame too large")

// ReadFrame reads one length-prefixed frame and returns its payload.
// Any failure to read the full 4-byte length or the full payload body is
// reported as ErrShortRead, per the protocol's framing rule: a short read
// of either the length or the body means the peer closed or the link
// failed.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, wrapShortRead(err)
	}

	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxFrameLength {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, wrapShortRead(err)
		}
	}
	return payload, nil
}

// WriteFrame writes the 4-byte little-endian length prefix followed by
// payload in a single logical write sequence.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return wrapShortRead(err)
	}
	if _, err := w.Write(payload); err != nil {
		return wrapShortRead(err)
	}
	return nil
}

// EncodeHandshake builds the single-byte session sharing-mode frame sent
// immediately after connecting.
func EncodeHandshake(mode byte) []byte {
	return []byte{mode}
}

// ParseHandshake checks that a handshake frame is exactly one byte long and
// returns that byte. It does not check the byte's value.
func ParseHandshake(payload []byte) (byte, error) {
	if len(payload) != 1 {
		return 0, errors.Errorf("wire: invalid handshake frame length %d", len(payload))
	}
	return payload[0], nil
}

// EncodeOpen builds an Open request payload: "O,<path>,<mode>".
func EncodeOpen(path string, mode byte) []byte {
	buf := make([]byte, 0, len(path)+4)
	buf = append(buf, TagOpen, Separator)
	buf = append(buf, path...)
	buf = append(buf, Separator, mode)
	return buf
}

// ParseOpen decodes an Open request payload.
func ParseOpen(payload []byte) (path string, mode byte, err error) {
	if len(payload) < 4 || payload[0] != TagOpen || payload[1] != Separator {
		return "", 0, errors.New("wire: malformed open request")
	}
	rest := payload[2:]
	sep := lastIndex(rest, Separator)
	if sep < 0 || sep != len(rest)-2 {
		return "", 0, errors.New("wire: malformed open request")
	}
	return string(rest[:sep]), rest[sep+1], nil
}

// EncodeFDRequest builds a Close or Read request payload: "<tag>,<fd>".
func EncodeFDRequest(tag byte, fd int64) []byte {
	buf := make([]byte, 0, 12)
	buf = append(buf, tag, Separator)
	buf = strconv.AppendInt(buf, fd, 10)
	return buf
}

// ParseFDRequest decodes a Close or Read request payload, verifying the tag
// matches wantTag.
func ParseFDRequest(payload []byte, wantTag byte) (fd int64, err error) {
	if len(payload) < 3 || payload[0] != wantTag || payload[1] != Separator {
		return 0, errors.Errorf("wire: malformed %c request", wantTag)
	}
	fd, err = strconv.ParseInt(string(payload[2:]), 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "wire: invalid file descriptor")
	}
	return fd, nil
}

// EncodeWriteData builds the second frame of a Write request, carrying the
// raw bytes to be written after the "W," prefix.
func EncodeWriteData(data []byte) []byte {
	buf := make([]byte, 0, len(data)+2)
	buf = append(buf, TagWrite, Separator)
	buf = append(buf, data...)
	return buf
}

// ParseWriteData decodes the second frame of a Write request.
func ParseWriteData(payload []byte) ([]byte, error) {
	if len(payload) < 2 || payload[0] != TagWrite || payload[1] != Separator {
		return nil, errors.New("wire: malformed write data frame")
	}
	return payload[2:], nil
}

// EncodeSuccess builds a success response payload: "S,<data>".
func EncodeSuccess(data []byte) []byte {
	buf := make([]byte, 0, len(data)+2)
	buf = append(buf, StatusSuccess, Separator)
	buf = append(buf, data...)
	return buf
}

// EncodeSuccessInt builds a success response carrying a decimal integer,
// as used by Open (negated fd) and Write (byte count).
func EncodeSuccessInt(n int64) []byte {
	return EncodeSuccess(strconv.AppendInt(nil, n, 10))
}

// EncodeFailure builds a failure response payload: "F,<code>".
func EncodeFailure(code int) []byte {
	buf := make([]byte, 0, 8)
	buf = append(buf, StatusFailure, Separator)
	buf = strconv.AppendInt(buf, int64(code), 10)
	return buf
}

// Response is a parsed server response frame.
type Response struct {
	OK   bool
	Data []byte
}

// ParseResponse decodes a response payload of either shape.
func ParseResponse(payload []byte) (Response, error) {
	if len(payload) < 2 || payload[1] != Separator {
		return Response{}, errors.New("wire: malformed response")
	}
	switch payload[0] {
	case StatusSuccess:
		return Response{OK: true, Data: payload[2:]}, nil
	case StatusFailure:
		return Response{OK: false, Data: payload[2:]}, nil
	default:
		return Response{}, errors.Errorf("wire: unknown response status %q", payload[0])
	}
}

// Code parses a response's data as a decimal integer: the error code of a
// failure response, or the negated fd (Open) or byte count (Write) of a
// success response.
func (r Response) Code() (int, error) {
	n, err := strconv.Atoi(string(r.Data))
	if err != nil {
		return 0, errors.Wrap(err, "wire: invalid error code")
	}
	return n, nil
}

func lastIndex(b []byte, c byte) int {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] == c {
			return i
		}
	}
	return -1
}
