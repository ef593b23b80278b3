package blockstream

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Wire protocol between RemoteTransport and Worker. Single request in
// flight per connection, which matches the single-threaded stream model.
//
//	request:  op(1) | blockID(8) | offset(8) | length(4)
//	response: status(1) | n(4) | payload(n) | xxhash64(8)   on statusOK
//	          status(1) | msgLen(4) | msg                   otherwise
const (
	opRead = 1

	statusOK       = 0
	statusNotFound = 1
	statusError    = 2

	reqFrameSize    = 21
	respHeaderSize  = 5
	maxRequestBytes = 64 << 20 // refuse absurd lengths before allocating
)

func encodeRequest(buf *[reqFrameSize]byte, op byte, blockID BlockID, off int64, length int) {
	buf[0] = op
	binary.LittleEndian.PutUint64(buf[1:9], blockID)
	binary.LittleEndian.PutUint64(buf[9:17], uint64(off))
	binary.LittleEndian.PutUint32(buf[17:21], uint32(length))
}

func decodeRequest(buf *[reqFrameSize]byte) (op byte, blockID BlockID, off int64, length int) {
	op = buf[0]
	blockID = binary.LittleEndian.Uint64(buf[1:9])
	off = int64(binary.LittleEndian.Uint64(buf[9:17]))
	length = int(binary.LittleEndian.Uint32(buf[17:21]))
	return op, blockID, off, length
}

// RemoteTransport fetches block bytes from a Worker over TCP. One
// connection per transport; the owning stream serializes requests on it.
// Payloads are verified against a per-frame xxhash64 before they are
// handed to the stream.
type RemoteTransport struct {
	conn    net.Conn
	blockID BlockID
	timeout time.Duration
}

var _ Transport = (*RemoteTransport)(nil)

// DialRemoteTransport connects to a worker serving the given block.
func DialRemoteTransport(addr string, blockID BlockID, opts ...Option) (*RemoteTransport, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	conn, err := net.DialTimeout("tcp", addr, cfg.RemoteTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to dial block worker %s: %w", addr, err)
	}

	return &RemoteTransport{
		conn:    conn,
		blockID: blockID,
		timeout: cfg.RemoteTimeout,
	}, nil
}

// Refill implements Transport.
func (t *RemoteTransport) Refill(p []byte, off int64) (int, error) {
	return t.fetch(p, off)
}

// ReadDirect implements Transport.
func (t *RemoteTransport) ReadDirect(p []byte, off int64) (int, error) {
	return t.fetch(p, off)
}

func (t *RemoteTransport) fetch(p []byte, off int64) (int, error) {
	if t.timeout > 0 {
		if err := t.conn.SetDeadline(time.Now().Add(t.timeout)); err != nil {
			return 0, err
		}
	}

	var req [reqFrameSize]byte
	encodeRequest(&req, opRead, t.blockID, off, len(p))
	if _, err := t.conn.Write(req[:]); err != nil {
		return 0, fmt.Errorf("failed to send read request for block %d: %w", t.blockID, err)
	}

	var hdr [respHeaderSize]byte
	if _, err := io.ReadFull(t.conn, hdr[:]); err != nil {
		return 0, fmt.Errorf("failed to read response header for block %d: %w", t.blockID, err)
	}
	status := hdr[0]
	n := int(binary.LittleEndian.Uint32(hdr[1:5]))

	switch status {
	case statusOK:
	case statusNotFound:
		t.discard(n)
		return 0, fmt.Errorf("%w: block %d on %s", ErrBlockNotFound, t.blockID, t.conn.RemoteAddr())
	default:
		msg := make([]byte, n)
		if _, err := io.ReadFull(t.conn, msg); err != nil {
			return 0, fmt.Errorf("worker error (unreadable detail) for block %d: %w", t.blockID, err)
		}
		return 0, fmt.Errorf("worker error for block %d: %s", t.blockID, msg)
	}

	if n > len(p) {
		return 0, fmt.Errorf("worker returned %d bytes for a %d byte request on block %d",
			n, len(p), t.blockID)
	}
	if _, err := io.ReadFull(t.conn, p[:n]); err != nil {
		return 0, fmt.Errorf("failed to read payload for block %d: %w", t.blockID, err)
	}

	var sum [8]byte
	if _, err := io.ReadFull(t.conn, sum[:]); err != nil {
		return 0, fmt.Errorf("failed to read payload checksum for block %d: %w", t.blockID, err)
	}
	expected := binary.LittleEndian.Uint64(sum[:])
	if computed := xxhash.Sum64(p[:n]); computed != expected {
		return 0, fmt.Errorf("payload checksum mismatch for block %d: expected %d, got %d",
			t.blockID, expected, computed)
	}

	return n, nil
}

// discard drains n bytes of an unwanted payload so the connection stays
// usable for the next request.
func (t *RemoteTransport) discard(n int) {
	if n > 0 {
		_, _ = io.CopyN(io.Discard, t.conn, int64(n))
	}
}

// Close closes the worker connection.
func (t *RemoteTransport) Close() error {
	return t.conn.Close()
}
