// Package ratelimit throttles data transfer to a configured bytes-per-second
// rate, for both the netfiles client and server.
//
// This package is used internally by both ends of a connection to cap
// transfer speed and prevent a single session from saturating the link.
package ratelimit

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// Limiter wraps golang.org/x/time/rate.Limiter, sized in bytes rather than
// abstract events, with burst equal to one second of the configured rate.
type Limiter struct {
	rl *rate.Limiter
}

// New creates a rate limiter capped at bytesPerSecond. New returns nil for
// a non-positive rate, matching NewReader/NewWriter's "nil limiter means
// unlimited" contract.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	return &Limiter{rl: rate.NewLimiter(rate.Limit(bytesPerSecond), int(bytesPerSecond))}
}

// take blocks until n bytes worth of tokens are available.
func (l *Limiter) take(n int) {
	if l == nil || n <= 0 {
		return
	}
	// WaitN rejects any n above the burst, so larger requests (the
	// wrappers' chunks can exceed a low rate's burst) wait in burst-sized
	// steps.
	burst := l.rl.Burst()
	for n > 0 {
		step := min(n, burst)
		_ = l.rl.WaitN(context.Background(), step)
		n -= step
	}
}

// reader wraps an io.Reader to limit read speed.
type reader struct {
	r       io.Reader
	limiter *Limiter
}

// NewReader creates a rate-limited reader.
// If limiter is nil, returns the original reader unchanged.
func NewReader(r io.Reader, limiter *Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &reader{
		r:       r,
		limiter: limiter,
	}
}

// Read implements io.Reader with rate limiting.
func (r *reader) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}

	// Limit chunk size to avoid excessive waits
	const maxChunkSize = 8 * 1024 // 8KB chunks
	readSize := len(p)
	if readSize > maxChunkSize {
		readSize = maxChunkSize
	}

	n, err = r.r.Read(p[:readSize])
	r.limiter.take(n)

	return n, err
}

// writer wraps an io.Writer to limit write speed.
type writer struct {
	w       io.Writer
	limiter *Limiter
}

// NewWriter creates a rate-limited writer.
// If limiter is nil, returns the original writer unchanged.
func NewWriter(w io.Writer, limiter *Limiter) io.Writer {
	if limiter == nil {
		return w
	}
	return &writer{
		w:       w,
		limiter: limiter,
	}
}

// Write implements io.Writer with rate limiting.
func (w *writer) Write(p []byte) (n int, err error) {
	const maxChunkSize = 64 * 1024 // 64KB chunks

	totalWritten := 0
	for totalWritten < len(p) {
		remaining := len(p) - totalWritten
		chunkSize := remaining
		if chunkSize > maxChunkSize {
			chunkSize = maxChunkSize
		}

		w.limiter.take(chunkSize)

		written, err := w.w.Write(p[totalWritten : totalWritten+chunkSize])
		totalWritten += written
		if err != nil {
			return totalWritten, err
		}
	}

	return totalWritten, nil
}
