package blockstream

import (
	"fmt"
	"io"
)

// BlockID identifies a block. Opaque to this package; used only for
// location lookups and log/metrics context.
type BlockID = uint64

// BlockInStream is a buffered, seekable, bounded read stream over a single
// fixed-size block. Small reads are served from an internal buffer; reads
// larger than the currently buffered content bypass the buffer and go
// straight to the transport. The stream knows its own length and enforces
// it on every operation.
//
// Not thread safe. One stream is owned by one consumer for its lifetime.
type BlockInStream struct {
	blockID   BlockID
	blockSize int64
	transport Transport
	metrics   *Metrics

	buf    []byte // fixed-capacity read buffer, allocated at construction
	bufPos int64  // absolute block offset of buf[0]
	bufLen int    // valid bytes in buf; 0 means the window is empty
	pos    int64  // absolute stream position in [0, blockSize]
	closed bool
}

var (
	_ io.Reader     = (*BlockInStream)(nil)
	_ io.ByteReader = (*BlockInStream)(nil)
	_ io.Closer     = (*BlockInStream)(nil)
)

// NewBlockInStream creates a stream over a block of blockSize bytes served
// by transport. The stream takes ownership of the transport and closes it
// on Close.
func NewBlockInStream(blockID BlockID, blockSize int64, transport Transport, opts ...Option) *BlockInStream {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	bufSize := cfg.ReadBufferSize
	if bufSize <= 0 {
		bufSize = defaultConfig().ReadBufferSize
	}

	cfg.Metrics.observeStreamOpened()

	return &BlockInStream{
		blockID:   blockID,
		blockSize: blockSize,
		transport: transport,
		metrics:   cfg.Metrics,
		buf:       make([]byte, bufSize),
	}
}

// BlockID returns the identity of the block this stream reads.
func (s *BlockInStream) BlockID() BlockID {
	return s.blockID
}

// Remaining returns the number of unread bytes left in the block.
func (s *BlockInStream) Remaining() int64 {
	return s.blockSize - s.pos
}

// buffered returns how many buffered bytes are usable at the current
// position. Zero whenever the window is empty or does not cover pos,
// which is exactly the stale-after-seek/skip/bypass case.
func (s *BlockInStream) buffered() int64 {
	if s.bufLen == 0 {
		return 0
	}
	off := s.pos - s.bufPos
	if off < 0 || off >= int64(s.bufLen) {
		return 0
	}
	return int64(s.bufLen) - off
}

// refill repopulates the buffer window starting exactly at the current
// position. The window is invalidated up front so a transport failure can
// never leave a half-written window that looks valid.
func (s *BlockInStream) refill() error {
	want := s.blockSize - s.pos
	if want > int64(len(s.buf)) {
		want = int64(len(s.buf))
	}

	s.bufLen = 0
	n, err := s.transport.Refill(s.buf[:want], s.pos)
	if err != nil {
		return err
	}
	if n <= 0 {
		return fmt.Errorf("transport refill returned %d bytes at offset %d of block %d: %w",
			n, s.pos, s.blockID, io.ErrUnexpectedEOF)
	}

	s.bufPos = s.pos
	s.bufLen = n
	s.metrics.observeRefill()
	return nil
}

// ReadByte reads a single byte. Reaching the end of the block auto-closes
// the stream and returns io.EOF; this is the only operation that
// auto-closes (bulk reads leave close to the caller).
func (s *BlockInStream) ReadByte() (byte, error) {
	if s.closed {
		return 0, fmt.Errorf("%w: block %d", ErrClosed, s.blockID)
	}
	if s.pos == s.blockSize {
		if err := s.Close(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}

	if s.buffered() == 0 {
		if err := s.refill(); err != nil {
			return 0, err
		}
	}

	b := s.buf[s.pos-s.bufPos]
	s.pos++
	s.metrics.observeBuffered(1)
	return b, nil
}

// ReadInto reads up to n bytes into p[off:off+n] and returns the count
// actually read. The count is short only when fewer than n bytes remain in
// the block; at end of block it returns (0, nil) without closing the
// stream.
//
// When n exceeds the buffered content available at the current position,
// the read bypasses the internal buffer and is serviced whole by the
// transport. The buffer window is invalidated afterward, so a later
// buffered read always refills at the then-current position.
func (s *BlockInStream) ReadInto(p []byte, off, n int) (int, error) {
	if s.closed {
		return 0, fmt.Errorf("%w: block %d", ErrClosed, s.blockID)
	}
	if p == nil {
		return 0, fmt.Errorf("%w: nil read buffer", ErrInvalidArgument)
	}
	if off < 0 || n < 0 || off+n > len(p) {
		return 0, fmt.Errorf("%w: buffer length %d, offset %d, length %d",
			ErrInvalidArgument, len(p), off, n)
	}
	if n == 0 {
		return 0, nil
	}

	toRead := n
	if remaining := s.blockSize - s.pos; int64(toRead) > remaining {
		toRead = int(remaining)
	}
	if toRead == 0 {
		return 0, nil
	}

	if int64(n) > s.buffered() {
		read, err := s.transport.ReadDirect(p[off:off+toRead], s.pos)
		if err != nil {
			return 0, err
		}
		s.pos += int64(read)
		s.bufLen = 0 // window no longer trustworthy after a bypass read
		s.metrics.observeBypass(read)
		return read, nil
	}

	start := s.pos - s.bufPos
	copy(p[off:off+toRead], s.buf[start:start+int64(toRead)])
	s.pos += int64(toRead)
	s.metrics.observeBuffered(toRead)
	return toRead, nil
}

// Read implements io.Reader. Unlike ReadInto it reports io.EOF at end of
// block, but it still does not auto-close the stream.
func (s *BlockInStream) Read(p []byte) (int, error) {
	n, err := s.ReadInto(p, 0, len(p))
	if err != nil {
		return n, err
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Seek moves the stream to an absolute block offset in [0, blockSize].
// The buffer is reconciled lazily: the next read detects whether the
// window still covers the new position and refills if not.
func (s *BlockInStream) Seek(pos int64) error {
	if s.closed {
		return fmt.Errorf("%w: block %d", ErrClosed, s.blockID)
	}
	if pos < 0 {
		return fmt.Errorf("%w: seek position is negative: %d", ErrInvalidArgument, pos)
	}
	if pos > s.blockSize {
		return fmt.Errorf("%w: seek position %d is past end of block (%d)",
			ErrInvalidArgument, pos, s.blockSize)
	}
	s.pos = pos
	return nil
}

// Skip advances the stream by up to n bytes, clamped to the remaining
// block length, and returns the amount skipped. Non-positive n is a no-op.
func (s *BlockInStream) Skip(n int64) (int64, error) {
	if s.closed {
		return 0, fmt.Errorf("%w: block %d", ErrClosed, s.blockID)
	}
	if n <= 0 {
		return 0, nil
	}

	toSkip := s.Remaining()
	if n < toSkip {
		toSkip = n
	}
	s.pos += toSkip
	return toSkip, nil
}

// Close releases the stream buffer and closes the transport. Idempotent;
// calls after the first return nil without side effects.
func (s *BlockInStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.buf = nil
	s.bufLen = 0
	return s.transport.Close()
}
