package server

import (
	"fmt"

	"github.com/snyderdan/netfiles/internal/wire"
)

// SharingMode is the per-connection concurrency discipline negotiated at
// connect time. The three modes form the total order used throughout the
// Access Manager's admission rules: Unrestricted < Exclusive < Transaction.
type SharingMode int

const (
	Unrestricted SharingMode = iota
	Exclusive
	Transaction
)

func (m SharingMode) String() string {
	switch m {
	case Unrestricted:
		return "unrestricted"
	case Exclusive:
		return "exclusive"
	case Transaction:
		return "transaction"
	default:
		return fmt.Sprintf("SharingMode(%d)", int(m))
	}
}

func parseSharingMode(b byte) (SharingMode, error) {
	switch b {
	case wire.ModeUnrestricted:
		return Unrestricted, nil
	case wire.ModeExclusive:
		return Exclusive, nil
	case wire.ModeTransaction:
		return Transaction, nil
	default:
		return 0, ErrInvalidMode
	}
}

// Permission is the per-file access a client requests on Open.
type Permission int

const (
	ReadOnly Permission = iota
	WriteOnly
	ReadWrite
)

func (p Permission) String() string {
	switch p {
	case ReadOnly:
		return "read-only"
	case WriteOnly:
		return "write-only"
	case ReadWrite:
		return "read-write"
	default:
		return fmt.Sprintf("Permission(%d)", int(p))
	}
}

func (p Permission) canRead() bool {
	return p == ReadOnly || p == ReadWrite
}

func (p Permission) canWrite() bool {
	return p == WriteOnly || p == ReadWrite
}

func parsePermission(b byte) (Permission, error) {
	switch b {
	case wire.ModeReadOnly:
		return ReadOnly, nil
	case wire.ModeWriteOnly:
		return WriteOnly, nil
	case wire.ModeReadWrite:
		return ReadWrite, nil
	default:
		return 0, ErrInvalidMode
	}
}
