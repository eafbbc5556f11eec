package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/snyderdan/netfiles/internal/ratelimit"
	"golang.org/x/sync/errgroup"
)

// Server accepts TCP connections and dispatches each to its own session
// goroutine against a shared AccessManager.
type Server struct {
	addr   string
	logger *slog.Logger
	am     *AccessManager

	filer LocalFiler

	maxConnections int
	idleTimeout    time.Duration

	globalLimiter *ratelimit.Limiter
	connLimitBps  int64

	metrics MetricsCollector

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	active   atomic.Int32

	inShutdown atomic.Bool

	eg *errgroup.Group
}

// NewServer builds a Server listening on addr once started. At least one
// of WithRoot or WithLocalFiler must supply the Access Manager's local
// filesystem backend.
func NewServer(addr string, opts ...Option) (*Server, error) {
	s := &Server{
		addr:    addr,
		logger:  slog.Default(),
		conns:   make(map[net.Conn]struct{}),
		metrics: noopMetrics{},
	}
	eg, _ := errgroup.WithContext(context.Background())
	s.eg = eg

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.filer == nil {
		return nil, errors.New("netfiles: server requires WithRoot or WithLocalFiler")
	}
	s.am = NewAccessManager(s.filer, s.metrics)
	return s, nil
}

// ListenAndServe opens a TCP listener on the server's configured address
// and serves it until Shutdown is called or a fatal accept error occurs.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("netfiles: listen %s: %w", s.addr, err)
	}
	return s.Serve(l)
}

// Serve accepts connections from l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	for {
		conn, err := l.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return nil
			}
			return err
		}

		if s.maxConnections > 0 && int(s.active.Load()) >= s.maxConnections {
			s.metrics.RecordConnection(false, "max_connections")
			_ = conn.Close()
			continue
		}

		s.metrics.RecordConnection(true, "")
		wrapped := s.wrapConn(conn)
		s.track(wrapped)
		sess := newSession(s, wrapped)
		s.eg.Go(func() error {
			sess.serve()
			return nil
		})
	}
}

// wrapConn layers per-connection bandwidth limiting over the shared global
// limit, if either is configured, around a freshly accepted connection.
func (s *Server) wrapConn(conn net.Conn) net.Conn {
	if s.globalLimiter == nil && s.connLimitBps <= 0 {
		return conn
	}
	perConn := ratelimit.New(s.connLimitBps)

	var r io.Reader = conn
	var w io.Writer = conn
	r = ratelimit.NewReader(r, s.globalLimiter)
	w = ratelimit.NewWriter(w, s.globalLimiter)
	r = ratelimit.NewReader(r, perConn)
	w = ratelimit.NewWriter(w, perConn)

	return &limitedConn{Conn: conn, reader: r, writer: w}
}

func newLimiterOrNil(bytesPerSecond int64) *ratelimit.Limiter {
	return ratelimit.New(bytesPerSecond)
}

// Shutdown stops accepting new connections and waits for in-flight
// sessions to finish, until ctx is done; any still running are then force
// closed. This mirrors the teacher's graceful-drain Shutdown, replacing
// its busy-poll wait loop with errgroup.Wait.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)

	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l != nil {
		_ = l.Close()
	}

	done := make(chan error, 1)
	go func() { done <- s.eg.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		s.mu.Lock()
		conns := s.conns
		s.conns = make(map[net.Conn]struct{})
		s.mu.Unlock()
		for c := range conns {
			_ = c.Close()
		}
		return ctx.Err()
	}
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	s.active.Add(1)
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.active.Add(-1)
}

// limitedConn wraps a net.Conn's Read/Write through rate-limited
// io.Reader/io.Writer, leaving every other net.Conn method (deadlines,
// addresses, Close) untouched.
type limitedConn struct {
	net.Conn
	reader interface{ Read([]byte) (int, error) }
	writer interface{ Write([]byte) (int, error) }
}

func (c *limitedConn) Read(p []byte) (int, error)  { return c.reader.Read(p) }
func (c *limitedConn) Write(p []byte) (int, error) { return c.writer.Write(p) }
