//go:build unix

package memalloc

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// AllocPages requests size bytes of anonymous, zero-filled memory from the
// OS. A zero-sized request yields nil, nil per the page allocator
// contract. Failures other than out-of-memory abort with a diagnostic:
// higher layers assume only OOM is recoverable at this layer.
func AllocPages(size uintptr) (unsafe.Pointer, error) {
	if size == 0 {
		return nil, nil
	}
	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		if err == unix.ENOMEM {
			return nil, fmt.Errorf("memalloc: mmap: %w", err)
		}
		panic(fmt.Sprintf("memalloc: mmap failed unrecoverably: %v", err))
	}
	ptr := unsafe.Pointer(&b[0])
	pageTrackMu.Lock()
	pageTrack[ptr] = b
	pageTrackMu.Unlock()
	return ptr, nil
}

// FreePages returns a mapping obtained from AllocPages to the OS.
func FreePages(ptr unsafe.Pointer, size uintptr) error {
	if ptr == nil {
		return nil
	}
	pageTrackMu.Lock()
	b, ok := pageTrack[ptr]
	delete(pageTrack, ptr)
	pageTrackMu.Unlock()
	if !ok {
		panic("memalloc: free of untracked page pointer")
	}
	return unix.Munmap(b)
}
