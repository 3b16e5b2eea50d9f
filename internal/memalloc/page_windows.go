//go:build windows

package memalloc

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// AllocPages reserves and commits size bytes of anonymous memory via
// VirtualAlloc. A zero-sized request yields nil, nil.
func AllocPages(size uintptr) (unsafe.Pointer, error) {
	if size == 0 {
		return nil, nil
	}
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		panic(fmt.Sprintf("memalloc: VirtualAlloc failed unrecoverably: %v", err))
	}
	return unsafe.Pointer(addr), nil
}

// FreePages releases a mapping obtained from AllocPages.
func FreePages(ptr unsafe.Pointer, size uintptr) error {
	if ptr == nil {
		return nil
	}
	return windows.VirtualFree(uintptr(ptr), 0, windows.MEM_RELEASE)
}
