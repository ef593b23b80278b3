//go:build linux

package blockstream

import (
	"unsafe"

	"github.com/ncw/directio"
	"golang.org/x/sys/unix"
)

// Fadvise passes a read-pattern hint to the kernel for a file range.
// Errors are advisory; callers typically ignore them.
func Fadvise(fd uintptr, offset, length int64, hint FadviseHint) error {
	switch hint {
	case FadvSequential:
		return unix.Fadvise(int(fd), offset, length, unix.FADV_SEQUENTIAL)
	case FadvDontNeed:
		return unix.Fadvise(int(fd), offset, length, unix.FADV_DONTNEED)
	default:
		return nil
	}
}

// isAligned checks if block is aligned in memory for DirectIO
func isAligned(block []byte) bool {
	if len(block) == 0 {
		return true
	}
	alignment := int(uintptr(unsafe.Pointer(&block[0])) & uintptr(directio.AlignSize-1))
	return alignment == 0
}
