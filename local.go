package blockstream

import (
	"fmt"
	"io"
	"os"

	"github.com/ncw/directio"
)

// LocalTransport serves a block from a file on local disk. With direct I/O
// enabled the file is opened with O_DIRECT and unaligned reads go through
// an aligned scratch buffer; aligned reads land straight in the caller's
// buffer.
type LocalTransport struct {
	file    *os.File
	size    int64
	direct  bool
	scratch []byte // aligned scratch, grown on demand, reused across reads
}

var _ Transport = (*LocalTransport)(nil)

// OpenLocalTransport opens the block file at path. The block size is taken
// from the file length; streams over this transport should be constructed
// with that size.
func OpenLocalTransport(path string, opts ...Option) (*LocalTransport, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	var file *os.File
	var err error
	if cfg.DirectIO {
		file, err = directio.OpenFile(path, os.O_RDONLY, 0)
	} else {
		file, err = os.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open block file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat block file: %w", err)
	}

	// Advisory only; block streams are read mostly front to back.
	_ = Fadvise(file.Fd(), 0, info.Size(), FadvSequential)

	return &LocalTransport{
		file:   file,
		size:   info.Size(),
		direct: cfg.DirectIO,
	}, nil
}

// Size returns the block file length in bytes.
func (t *LocalTransport) Size() int64 {
	return t.size
}

// Refill implements Transport.
func (t *LocalTransport) Refill(p []byte, off int64) (int, error) {
	return t.readAt(p, off)
}

// ReadDirect implements Transport.
func (t *LocalTransport) ReadDirect(p []byte, off int64) (int, error) {
	return t.readAt(p, off)
}

func (t *LocalTransport) readAt(p []byte, off int64) (int, error) {
	if t.direct {
		return t.readAtAligned(p, off)
	}
	n, err := t.file.ReadAt(p, off)
	if err == io.EOF && n > 0 {
		// Short fill at end of block is part of the transport contract.
		err = nil
	}
	return n, err
}

// readAtAligned reads under O_DIRECT, which requires offset, length, and
// destination memory all aligned to the filesystem block size.
func (t *LocalTransport) readAtAligned(p []byte, off int64) (int, error) {
	if off&alignMask == 0 && len(p)&alignMask == 0 && isAligned(p) {
		n, err := t.file.ReadAt(p, off)
		if err == io.EOF && n > 0 {
			err = nil
		}
		return n, err
	}

	alignedOff, alignedLen, lead := alignForDirectRead(off, int64(len(p)))
	if int64(cap(t.scratch)) < alignedLen {
		t.scratch = directio.AlignedBlock(int(alignedLen))
	}
	scratch := t.scratch[:alignedLen]

	n, err := t.file.ReadAt(scratch, alignedOff)
	if err != nil && err != io.EOF {
		return 0, err
	}
	if int64(n) <= lead {
		return 0, io.EOF
	}

	copied := copy(p, scratch[lead:n])
	return copied, nil
}

// Close closes the underlying block file.
func (t *LocalTransport) Close() error {
	return t.file.Close()
}
