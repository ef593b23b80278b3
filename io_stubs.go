//go:build !linux && !darwin

package blockstream

import (
	"unsafe"

	"github.com/ncw/directio"
)

// Fadvise is a no-op on unsupported platforms
func Fadvise(fd uintptr, offset, length int64, hint FadviseHint) error {
	return nil
}

// isAligned checks if block is aligned in memory for DirectIO
func isAligned(block []byte) bool {
	if len(block) == 0 {
		return true
	}
	alignment := int(uintptr(unsafe.Pointer(&block[0])) & uintptr(directio.AlignSize-1))
	return alignment == 0
}
