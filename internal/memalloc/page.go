// Package memalloc implements the memory substrate: page, bump and slab
// allocators backing the TCP input buffers and the listener's
// per-connection slots.
package memalloc

import (
	"os"
	"sync"
	"unsafe"
)

var pageSize = uintptr(os.Getpagesize())

// PageSize returns the platform's page size, cached once at package init
// the way the teacher's mmapQueues caches os.Getpagesize().
func PageSize() uintptr {
	return pageSize
}

// RoundUpToPage rounds size up to the next multiple of the page size.
func RoundUpToPage(size uintptr) uintptr {
	ps := pageSize
	return (size + ps - 1) &^ (ps - 1)
}

// pageTrack records the byte slice backing each live mapping so it can be
// handed back to the platform unmap call, which on POSIX needs the
// original slice rather than the bare pointer.
var (
	pageTrackMu sync.Mutex
	pageTrack   = map[unsafe.Pointer][]byte{}
)

func alignUp(v, align uintptr) uintptr {
	return (v + align - 1) &^ (align - 1)
}
