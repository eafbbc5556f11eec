package server

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/snyderdan/netfiles/internal/wire"
)

// InvalidFileMode is the error code sent back when a handshake or Open
// request carries a mode byte outside the protocol's alphabet. It is not a
// real errno; the original protocol reserves this negative value for
// exactly this case.
const InvalidFileMode = -55

// session is the per-connection worker: one goroutine owns a session for
// the lifetime of its TCP connection, driving the protocol's
// AwaitMode -> Ready -> Closed state machine. Only the fields under heldMu
// are ever touched by anyone other than that goroutine, since the session
// itself performs no concurrent reads/writes on its own connection.
type session struct {
	id    uuid.UUID
	conn  net.Conn
	srv   *Server
	token int64

	mode SharingMode

	heldMu sync.Mutex
	held   map[int64]struct{}
}

func newSession(srv *Server, conn net.Conn) *session {
	return &session{
		id:    uuid.New(),
		conn:  conn,
		srv:   srv,
		token: srv.am.NewSessionToken(),
		held:  make(map[int64]struct{}),
	}
}

// serve runs the session to completion: the handshake, then the
// request/response loop, then cleanup. It never returns an error; all
// failures end the connection.
func (s *session) serve() {
	defer s.cleanup()

	log := s.srv.logger.With("session", s.id, "remote", s.conn.RemoteAddr())

	if !s.awaitMode(log) {
		return
	}
	log.Debug("session ready", "mode", s.mode)

	for {
		if s.srv.idleTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.srv.idleTimeout))
		}
		payload, err := wire.ReadFrame(s.conn)
		if err != nil {
			log.Debug("connection closed", "err", err)
			return
		}
		if fatal := s.dispatch(payload, log); fatal {
			return
		}
	}
}

// awaitMode handles the AwaitMode state: the single handshake frame that
// fixes this session's sharing mode for its whole lifetime.
func (s *session) awaitMode(log *slog.Logger) bool {
	payload, err := wire.ReadFrame(s.conn)
	if err != nil {
		log.Debug("connection closed before handshake", "err", err)
		return false
	}
	b, err := wire.ParseHandshake(payload)
	if err != nil {
		_ = wire.WriteFrame(s.conn, wire.EncodeFailure(InvalidFileMode))
		return false
	}
	mode, err := parseSharingMode(b)
	if err != nil {
		_ = wire.WriteFrame(s.conn, wire.EncodeFailure(InvalidFileMode))
		return false
	}
	s.mode = mode
	return wire.WriteFrame(s.conn, wire.EncodeSuccess(nil)) == nil
}

// dispatch handles one request frame. It returns true when the connection
// must be torn down: either the frame was malformed past the point a
// failure response can resync the stream, or the link was lost mid
// multi-frame request.
func (s *session) dispatch(payload []byte, log *slog.Logger) (fatal bool) {
	if len(payload) == 0 {
		s.sendFailure(int(syscall.EINVAL))
		return false
	}
	switch payload[0] {
	case wire.TagOpen:
		return s.handleOpen(payload, log)
	case wire.TagClose:
		return s.handleClose(payload, log)
	case wire.TagRead:
		return s.handleRead(payload, log)
	case wire.TagWrite:
		return s.handleWrite(payload, log)
	default:
		s.sendFailure(int(syscall.EINVAL))
		return false
	}
}

func (s *session) handleOpen(payload []byte, log *slog.Logger) bool {
	path, modeByte, err := wire.ParseOpen(payload)
	if err != nil {
		return true
	}
	perm, err := parsePermission(modeByte)
	if err != nil {
		s.sendFailure(InvalidFileMode)
		return false
	}

	fd, err := s.srv.am.Open(path, s.mode, perm, s.token)
	if err != nil {
		log.Debug("open denied", "path", path, "err", err)
		s.sendError(err)
		return false
	}

	s.heldMu.Lock()
	s.held[fd] = struct{}{}
	s.heldMu.Unlock()

	return wire.WriteFrame(s.conn, wire.EncodeSuccessInt(-fd)) != nil
}

func (s *session) handleClose(payload []byte, log *slog.Logger) bool {
	fd, err := wire.ParseFDRequest(payload, wire.TagClose)
	if err != nil {
		return true
	}
	if err := s.srv.am.Close(fd, s.token); err != nil {
		s.sendError(err)
		return false
	}
	s.heldMu.Lock()
	delete(s.held, fd)
	s.heldMu.Unlock()
	return wire.WriteFrame(s.conn, wire.EncodeSuccess(nil)) != nil
}

func (s *session) handleRead(payload []byte, log *slog.Logger) bool {
	fd, err := wire.ParseFDRequest(payload, wire.TagRead)
	if err != nil {
		return true
	}
	data, err := s.srv.am.Read(fd, s.token)
	if err != nil {
		s.sendError(err)
		return false
	}
	return wire.WriteFrame(s.conn, wire.EncodeSuccess(data)) != nil
}

// handleWrite consumes both frames of a Write request: the already-read
// "W,<fd>" frame in payload, then the data frame that must immediately
// follow it. A malformed or missing second frame is always fatal, since
// there is no way to resynchronize to the next request's frame boundary.
func (s *session) handleWrite(payload []byte, log *slog.Logger) bool {
	fd, err := wire.ParseFDRequest(payload, wire.TagWrite)
	if err != nil {
		return true
	}

	dataFrame, err := wire.ReadFrame(s.conn)
	if err != nil {
		log.Debug("write data frame lost", "err", err)
		return true
	}
	data, err := wire.ParseWriteData(dataFrame)
	if err != nil {
		return true
	}

	n, err := s.srv.am.Write(fd, data, s.token)
	if err != nil {
		s.sendError(err)
		return false
	}
	return wire.WriteFrame(s.conn, wire.EncodeSuccessInt(int64(n))) != nil
}

func (s *session) sendFailure(code int) {
	_ = wire.WriteFrame(s.conn, wire.EncodeFailure(code))
}

func (s *session) sendError(err error) {
	_ = wire.WriteFrame(s.conn, wire.EncodeFailure(errnoCode(err)))
}

// errnoCode maps a server-side error to the numeric code sent across the
// wire in a failure response.
func errnoCode(err error) int {
	switch {
	case errors.Is(err, ErrPolicyDenied):
		return int(syscall.EACCES)
	case errors.Is(err, ErrBadHandle):
		return int(syscall.EBADF)
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return int(syscall.EIO)
}

// cleanup releases every handle this session still held, as spec.md's
// disconnect rule requires, then closes the connection and deregisters it
// from the server's tracking set.
func (s *session) cleanup() {
	s.heldMu.Lock()
	fds := make([]int64, 0, len(s.held))
	for fd := range s.held {
		fds = append(fds, fd)
	}
	s.held = nil
	s.heldMu.Unlock()

	s.srv.am.releaseAll(s.token, fds)
	_ = s.conn.Close()
	s.srv.untrack(s.conn)
}
