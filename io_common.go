package blockstream

import (
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/ncw/directio"
)

const alignMask = directio.BlockSize - 1

type FadviseHint int

const (
	FadvSequential FadviseHint = iota
	FadvDontNeed
)

// alignForDirectRead widens [offset, offset+length) to filesystem block
// boundaries for O_DIRECT reads. Returns the aligned offset, the aligned
// length, and the lead-in from alignedOffset to the requested offset.
func alignForDirectRead(offset, length int64) (alignedOffset, alignedLength, lead int64) {
	alignedOffset = offset &^ alignMask
	lead = offset - alignedOffset
	alignedLength = (lead + length + alignMask) &^ alignMask
	return alignedOffset, alignedLength, lead
}

// IsTransientIOError returns true if the error is likely temporary and the
// read might succeed if reissued. Streams never retry internally (spinning
// inside a read hides the failure from the owner); this helper lets the
// consumer make that call.
func IsTransientIOError(err error) bool {
	if err == nil {
		return false
	}

	// Specific transient syscall errors
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EINTR, // Interrupted system call
			syscall.EAGAIN, // Try again
			syscall.EBUSY,  // Device or resource busy
			syscall.EMFILE, // Too many open files (process limit)
			syscall.ENFILE: // Too many open files (system limit)
			return true
		}
	}

	// Network timeouts from a remote transport
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// ErrUnexpectedEOF means the block is shorter than the registered
	// size - permanent for this block, not a system condition.
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return false
	}

	return false
}
