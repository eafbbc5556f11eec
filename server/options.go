package server

import (
	"log/slog"
	"time"
)

// Option configures a Server at construction time via NewServer.
type Option func(*Server) error

// WithLogger sets the structured logger used for connection and session
// lifecycle events. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithRoot jails the Access Manager's local file I/O to root using
// os.Root, rejecting any path that would escape it. Mutually exclusive
// with WithLocalFiler; whichever option runs last wins.
func WithRoot(root string) Option {
	return func(s *Server) error {
		filer, err := newOSFiler(root)
		if err != nil {
			return err
		}
		s.filer = filer
		return nil
	}
}

// WithLocalFiler injects a non-OS-backed LocalFiler, for tests or
// alternate storage backends. Mutually exclusive with WithRoot; whichever
// option runs last wins.
func WithLocalFiler(filer LocalFiler) Option {
	return func(s *Server) error {
		s.filer = filer
		return nil
	}
}

// WithMaxConnections caps the number of simultaneously accepted
// connections; additional connections are accepted then immediately
// closed. Zero (the default) means unlimited.
func WithMaxConnections(max int) Option {
	return func(s *Server) error {
		s.maxConnections = max
		return nil
	}
}

// WithIdleTimeout sets the read deadline applied before each request
// frame; a session that produces no request within the timeout is
// dropped as unresponsive. Zero (the default) disables the deadline.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) error {
		s.idleTimeout = d
		return nil
	}
}

// WithBandwidthLimit caps aggregate and per-connection throughput in
// bytes per second. A non-positive value disables the corresponding
// limit.
func WithBandwidthLimit(globalBytesPerSecond, perConnBytesPerSecond int64) Option {
	return func(s *Server) error {
		s.globalLimiter = newLimiterOrNil(globalBytesPerSecond)
		s.connLimitBps = perConnBytesPerSecond
		return nil
	}
}

// WithMetricsCollector attaches a MetricsCollector. The default is a
// no-op collector; a nil mc also selects it.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(s *Server) error {
		if mc == nil {
			mc = noopMetrics{}
		}
		s.metrics = mc
		return nil
	}
}
