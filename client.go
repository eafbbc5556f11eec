package netfiles

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/snyderdan/netfiles/internal/ratelimit"
	"github.com/snyderdan/netfiles/internal/wire"
)

// Client is a single persistent connection to a netfiles server, negotiated
// once at Dial time to a fixed SharingMode. A Client is safe for concurrent
// use by multiple goroutines; requests are serialized internally, matching
// the one-connection-per-process model the protocol assumes.
type Client struct {
	conn   net.Conn
	r      *bufio.Reader
	mode   SharingMode
	mu     sync.Mutex
	closed bool
}

// Option configures a Client at Dial time.
type Option func(*Client, *dialConfig)

type dialConfig struct {
	dialTimeout  time.Duration
	bandwidthBps int64
}

// WithDialTimeout bounds how long Dial waits to establish the TCP
// connection and complete the handshake.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client, cfg *dialConfig) { cfg.dialTimeout = d }
}

// WithBandwidthLimit caps this connection's throughput in bytes per
// second, mirroring the server's per-connection limit option.
func WithBandwidthLimit(bytesPerSecond int64) Option {
	return func(c *Client, cfg *dialConfig) { cfg.bandwidthBps = bytesPerSecond }
}

// Dial connects to addr, negotiates mode as this connection's sharing
// mode, and returns a ready Client.
func Dial(addr string, mode SharingMode, opts ...Option) (*Client, error) {
	cfg := &dialConfig{}
	c := &Client{mode: mode}
	for _, opt := range opts {
		opt(c, cfg)
	}

	dialer := net.Dialer{Timeout: cfg.dialTimeout}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("netfiles: dial %s: %w", addr, err)
	}

	if cfg.bandwidthBps > 0 {
		limiter := ratelimit.New(cfg.bandwidthBps)
		conn = &rateLimitedConn{Conn: conn, limiter: limiter}
	}

	c.conn = conn
	c.r = bufio.NewReader(conn)
	if cfg.dialTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(cfg.dialTimeout))
	}

	if err := wire.WriteFrame(c.conn, wire.EncodeHandshake(mode.wireByte())); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("netfiles: handshake: %w", err)
	}
	resp, err := c.readResponse()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("netfiles: handshake: %w", err)
	}
	if !resp.OK {
		_ = conn.Close()
		code, _ := resp.Code()
		return nil, &ProtocolError{Op: "dial", Code: code}
	}
	if cfg.dialTimeout > 0 {
		_ = conn.SetDeadline(time.Time{})
	}

	return c, nil
}

// Close tears down the underlying connection. It does not send any wire
// message; the server observes the closed socket and releases every
// handle this connection still held, the same cleanup path it runs for
// any other lost connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// Open requests fd for path under perm, admitted or denied per the
// server's sharing-mode policy for this connection's SharingMode.
func (c *Client) Open(path string, perm Permission) (*File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := wire.WriteFrame(c.conn, wire.EncodeOpen(path, perm.wireByte())); err != nil {
		return nil, fmt.Errorf("netfiles: open %s: %w", path, err)
	}
	resp, err := c.readResponse()
	if err != nil {
		return nil, fmt.Errorf("netfiles: open %s: %w", path, err)
	}
	if !resp.OK {
		code, _ := resp.Code()
		return nil, &ProtocolError{Op: "open", Code: code}
	}
	negated, err := resp.Code()
	if err != nil {
		return nil, fmt.Errorf("netfiles: open %s: %w", path, err)
	}
	return &File{client: c, fd: -int64(negated), path: path}, nil
}

func (c *Client) closeFD(fd int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := wire.WriteFrame(c.conn, wire.EncodeFDRequest(wire.TagClose, fd)); err != nil {
		return fmt.Errorf("netfiles: close: %w", err)
	}
	resp, err := c.readResponse()
	if err != nil {
		return fmt.Errorf("netfiles: close: %w", err)
	}
	if !resp.OK {
		code, _ := resp.Code()
		return &ProtocolError{Op: "close", Code: code}
	}
	return nil
}

func (c *Client) readFD(fd int64) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := wire.WriteFrame(c.conn, wire.EncodeFDRequest(wire.TagRead, fd)); err != nil {
		return nil, fmt.Errorf("netfiles: read: %w", err)
	}
	resp, err := c.readResponse()
	if err != nil {
		return nil, fmt.Errorf("netfiles: read: %w", err)
	}
	if !resp.OK {
		code, _ := resp.Code()
		return nil, &ProtocolError{Op: "read", Code: code}
	}
	return resp.Data, nil
}

func (c *Client) writeFD(fd int64, data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := wire.WriteFrame(c.conn, wire.EncodeFDRequest(wire.TagWrite, fd)); err != nil {
		return 0, fmt.Errorf("netfiles: write: %w", err)
	}
	if err := wire.WriteFrame(c.conn, wire.EncodeWriteData(data)); err != nil {
		return 0, fmt.Errorf("netfiles: write: %w", err)
	}
	resp, err := c.readResponse()
	if err != nil {
		return 0, fmt.Errorf("netfiles: write: %w", err)
	}
	if !resp.OK {
		code, _ := resp.Code()
		return 0, &ProtocolError{Op: "write", Code: code}
	}
	n, err := resp.Code()
	if err != nil {
		return 0, fmt.Errorf("netfiles: write: %w", err)
	}
	return n, nil
}

func (c *Client) readResponse() (wire.Response, error) {
	payload, err := wire.ReadFrame(c.r)
	if err != nil {
		return wire.Response{}, err
	}
	return wire.ParseResponse(payload)
}

// rateLimitedConn applies a ratelimit.Limiter to both directions of a
// net.Conn, for WithBandwidthLimit.
type rateLimitedConn struct {
	net.Conn
	limiter *ratelimit.Limiter
}

func (c *rateLimitedConn) Read(p []byte) (int, error) {
	return ratelimit.NewReader(c.Conn, c.limiter).Read(p)
}

func (c *rateLimitedConn) Write(p []byte) (int, error) {
	return ratelimit.NewWriter(c.Conn, c.limiter).Write(p)
}
