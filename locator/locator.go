// Package locator maps block IDs to the physical location of their data:
// a file on local disk, or a remote worker address. Implementations back
// the lookup with an in-memory skipmap or a persistent Bitcask store.
package locator

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// BlockID mirrors the stream package's block identifier.
type BlockID = uint64

// Kind says where a block's bytes live.
type Kind uint8

const (
	// KindLocal blocks are read from a file path on this machine.
	KindLocal Kind = iota
	// KindRemote blocks are fetched from a worker over the network.
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRemote:
		return "remote"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Location describes one block's placement. Size is the immutable block
// length in bytes; Checksum is the xxhash64 of the block content, 0 when
// unknown.
type Location struct {
	Kind     Kind
	Size     int64
	Checksum uint64
	Path     string // block file path (KindLocal)
	Addr     string // worker host:port (KindRemote)
}

// ErrNotFound is returned when no location is registered for a block.
var ErrNotFound = errors.New("block location not found")

// Locator is the block-location registry.
type Locator interface {
	// Get fills loc for the block (caller provides Location to avoid allocation).
	// Returns ErrNotFound when the block is unknown.
	Get(id BlockID, loc *Location) error

	// Put inserts or replaces the location for a block.
	Put(id BlockID, loc Location) error

	// Delete removes a block's location. Unknown blocks are a no-op.
	Delete(id BlockID) error

	// ForEach visits every registered block. Iteration stops on the first
	// error, which is returned.
	ForEach(fn func(id BlockID, loc Location) error) error

	Close() error
}

// encodeLocation encodes kind, size, checksum, and the two address strings
func encodeLocation(loc Location) []byte {
	buf := make([]byte, 0, 1+8+8+2+len(loc.Path)+2+len(loc.Addr))
	buf = append(buf, byte(loc.Kind))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(loc.Size))
	buf = binary.LittleEndian.AppendUint64(buf, loc.Checksum)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(loc.Path)))
	buf = append(buf, loc.Path...)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(loc.Addr)))
	buf = append(buf, loc.Addr...)
	return buf
}

// decodeLocation decodes an encoded entry into loc
func decodeLocation(buf []byte, loc *Location) error {
	if len(buf) < 1+8+8+2 {
		return fmt.Errorf("location entry truncated: %d bytes", len(buf))
	}
	loc.Kind = Kind(buf[0])
	loc.Size = int64(binary.LittleEndian.Uint64(buf[1:9]))
	loc.Checksum = binary.LittleEndian.Uint64(buf[9:17])

	rest := buf[17:]
	pathLen := int(binary.LittleEndian.Uint16(rest[0:2]))
	rest = rest[2:]
	if len(rest) < pathLen+2 {
		return fmt.Errorf("location entry truncated: path length %d", pathLen)
	}
	loc.Path = string(rest[:pathLen])
	rest = rest[pathLen:]

	addrLen := int(binary.LittleEndian.Uint16(rest[0:2]))
	rest = rest[2:]
	if len(rest) < addrLen {
		return fmt.Errorf("location entry truncated: addr length %d", addrLen)
	}
	loc.Addr = string(rest[:addrLen])
	return nil
}

// key returns the fixed-width Bitcask key for a block. Big-endian so keys
// sort in block ID order.
func key(id BlockID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}
