//go:build darwin

package blockstream

import (
	"syscall"
)

// Fadvise on darwin is less flexible than linux in that it's a global, file
// descriptor based operation. We keep the same signature as linux and
// ignore the offset and length.
func Fadvise(fd uintptr, offset, length int64, hint FadviseHint) error {
	switch hint {
	case FadvDontNeed:
		// F_NOCACHE: 1 turns the page cache off for this descriptor
		_, _, errno := syscall.Syscall(syscall.SYS_FCNTL, fd, uintptr(syscall.F_NOCACHE), 1)
		if errno != 0 {
			return errno
		}
		return nil
	case FadvSequential:
		// F_RDAHEAD turns on the read-ahead engine.
		_, _, errno := syscall.Syscall(syscall.SYS_FCNTL, fd, uintptr(syscall.F_RDAHEAD), 1)
		if errno != 0 {
			return errno
		}
		return nil
	default:
		return nil // Unsupported hints are ignored on Darwin
	}
}

// isAligned always returns true on Darwin as F_NOCACHE does not enforce
// the same strict memory-alignment rules as Linux O_DIRECT.
func isAligned(block []byte) bool {
	return true
}
