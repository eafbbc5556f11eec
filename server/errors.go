package server

import "github.com/pkg/errors"

// Sentinel errors raised by the Access Manager. Workers map these to wire
// response codes; they never carry a stack trace across the connection.
var (
	// ErrPolicyDenied is returned when an Open would violate the sharing
	// mode or permission compatibility rules, or when a Read/Write is
	// attempted against a handle whose permission forbids it.
	ErrPolicyDenied = errors.New("netfiles: operation denied by sharing policy")

	// ErrBadHandle is returned when a Close/Read/Write references a file
	// descriptor the Access Manager has no record of, or one the calling
	// session never opened.
	ErrBadHandle = errors.New("netfiles: bad file descriptor")

	// ErrInvalidMode is returned when a handshake or Open request carries
	// a mode byte outside the protocol's defined alphabet.
	ErrInvalidMode = errors.New("netfiles: invalid mode")
)
