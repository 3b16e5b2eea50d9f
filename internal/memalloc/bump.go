package memalloc

import "unsafe"

const ptrAlign = unsafe.Sizeof(uintptr(0))

// Bump is a constant-time allocator over a caller-supplied region: alloc
// advances an offset and never frees individually; reset releases every
// allocation at once without running finalisers, so the caller must
// finalise objects before resetting.
type Bump struct {
	basePtr unsafe.Pointer
	off     uintptr // bytes from basePtr
	end     uintptr // capacity, in bytes from basePtr
}

// NewBump initializes a bump allocator over region, which the caller must
// keep alive for the allocator's lifetime. The usable base is the first
// pointer-aligned byte of region; capacity shrinks accordingly.
func NewBump(region []byte) *Bump {
	if len(region) == 0 {
		return &Bump{}
	}
	raw := unsafe.Pointer(&region[0])
	skip := alignUp(uintptr(raw), ptrAlign) - uintptr(raw)
	size := uintptr(len(region))
	if skip > size {
		skip = size
	}
	return &Bump{
		basePtr: unsafe.Add(raw, skip),
		end:     size - skip,
	}
}

// Alloc reserves n bytes, rounded up to pointer alignment, returning the
// pre-advance address or nil if the region is exhausted.
func (b *Bump) Alloc(n uintptr) unsafe.Pointer {
	size := alignUp(n, ptrAlign)
	next := b.off + size
	if next < b.off || next > b.end {
		return nil
	}
	ptr := unsafe.Add(b.basePtr, b.off)
	b.off = next
	return ptr
}

// Reset returns the allocator to its initial offset.
func (b *Bump) Reset() {
	b.off = 0
}

// Base returns the allocator's aligned base address.
func (b *Bump) Base() unsafe.Pointer { return b.basePtr }

// Capacity returns the total usable region size.
func (b *Bump) Capacity() uintptr { return b.end }

// Used returns the number of bytes handed out since the last reset.
func (b *Bump) Used() uintptr { return b.off }

// Free returns the number of bytes still available before the next alloc
// would fail.
func (b *Bump) Free() uintptr { return b.end - b.off }
