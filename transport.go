package blockstream

import "io"

// Transport fetches block bytes from wherever the block physically lives
// (local file, remote worker). A stream owns exactly one transport and
// closes it when the stream closes.
//
// Implementations must be usable from a single goroutine at a time; the
// owning stream serializes all calls. Errors are propagated verbatim to
// the read that triggered the call — no retries happen at this layer.
type Transport interface {
	io.Closer

	// Refill fills p with block bytes starting at absolute offset off.
	// A short count is allowed only when the block ends inside p; it must
	// never return (0, nil) for an in-range offset.
	Refill(p []byte, off int64) (int, error)

	// ReadDirect services a bypass read straight into the caller's buffer,
	// without involving the stream's internal buffer. Same offset and
	// short-count contract as Refill.
	ReadDirect(p []byte, off int64) (int, error)
}
