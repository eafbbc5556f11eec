package netfiles

import "github.com/snyderdan/netfiles/internal/wire"

// SharingMode is the concurrency discipline a Client negotiates once, at
// Dial time, for the lifetime of its connection.
type SharingMode int

const (
	// Unrestricted allows any number of concurrent readers and writers.
	Unrestricted SharingMode = iota
	// Exclusive allows concurrent readers but at most one writer.
	Exclusive
	// Transaction excludes every other holder of the same file, reader
	// or writer, including other Transaction holders.
	Transaction
)

func (m SharingMode) wireByte() byte {
	switch m {
	case Exclusive:
		return wire.ModeExclusive
	case Transaction:
		return wire.ModeTransaction
	default:
		return wire.ModeUnrestricted
	}
}

// Permission is the access a client requests when opening a file.
type Permission int

const (
	ReadOnly Permission = iota
	WriteOnly
	ReadWrite
)

func (p Permission) wireByte() byte {
	switch p {
	case WriteOnly:
		return wire.ModeWriteOnly
	case ReadWrite:
		return wire.ModeReadWrite
	default:
		return wire.ModeReadOnly
	}
}
