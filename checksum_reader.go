package blockstream

import (
	"errors"
	"fmt"
	"hash"
	"io"

	"github.com/cespare/xxhash/v2"
)

// ErrChecksumMismatch is returned when a verified block read produced
// bytes that do not match the registered checksum.
var ErrChecksumMismatch = errors.New("block checksum mismatch")

// Hasher produces the hash used for whole-block verification.
type Hasher func() hash.Hash64

// checksumVerifyingReader wraps a reader and verifies the block checksum
// on the read that reaches EOF.
type checksumVerifyingReader struct {
	r        io.Reader
	hash     hash.Hash64
	expected uint64
	err      error // Cached error from checksum mismatch
}

// NewVerifyingReader wraps r so that the read hitting EOF fails with
// ErrChecksumMismatch unless the bytes seen so far hash (xxhash64) to
// expected. Intended for full-block reads; a stream that was seeked or
// skipped will not hash the whole block and must not be verified this way.
func NewVerifyingReader(r io.Reader, expected uint64) io.Reader {
	return newChecksumVerifyingReader(r, func() hash.Hash64 { return xxhash.New() }, expected)
}

func newChecksumVerifyingReader(r io.Reader, hasher Hasher, expected uint64) io.Reader {
	return &checksumVerifyingReader{
		r:        r,
		hash:     hasher(),
		expected: expected,
	}
}

// Read implements io.Reader, computing the checksum incrementally.
// Returns the mismatch error on the Read() that hits EOF.
func (c *checksumVerifyingReader) Read(p []byte) (n int, err error) {
	// Keep returning a previously detected mismatch
	if c.err != nil {
		return 0, c.err
	}

	n, err = c.r.Read(p)
	if n > 0 {
		c.hash.Write(p[:n])
	}

	if err == io.EOF {
		computed := c.hash.Sum64()
		if computed != c.expected {
			c.err = fmt.Errorf("%w: expected %d, got %d", ErrChecksumMismatch, c.expected, computed)
			return n, c.err
		}
	}

	return n, err
}

// BlockChecksum computes the xxhash64 checksum stored alongside a block's
// location entry.
func BlockChecksum(data []byte) uint64 {
	return xxhash.Sum64(data)
}
