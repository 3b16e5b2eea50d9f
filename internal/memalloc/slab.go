package memalloc

import (
	"sync"
	"unsafe"

	"github.com/ehrlich-b/ah/internal/constants"
)

type slotState uint8

const (
	slotFree slotState = iota
	slotAllocated
)

// slotHeader precedes every slot's payload bytes within a bank.
type slotHeader struct {
	state slotState
	next  *slotHeader // freelist link; valid only while state == slotFree
}

const slotHeaderSize = unsafe.Sizeof(slotHeader{})

// bankNode tracks one page-aligned region obtained from the page
// allocator, so Term can return it once every slot has been visited.
type bankNode struct {
	next *bankNode
	base unsafe.Pointer
	size uintptr
}

// Visitor is invoked once per allocated slot when a slab's reference
// count drops to zero. It is permitted to call Free on other slots of the
// same slab; those slots are skipped by the remainder of the walk.
type Visitor func(ptr unsafe.Pointer)

// Slab is a reference-counted, fixed-slot pool issuing addresses that
// remain valid for the pool's lifetime, even across bank growth. It backs
// the TCP connections' input buffers and a listener's per-connection
// slots.
type Slab struct {
	mu           sync.Mutex
	slotSize     uintptr // user payload size, pointer-aligned
	recordSize   uintptr // header + payload, pointer-aligned
	bankPayload  uintptr // page-aligned bytes requested per bank
	slotsPerBank int
	banks        *bankNode
	free         *slotHeader
	refcount     int32
}

// NewSlab creates a slab whose slots are at least slotSize bytes,
// targeting constants.SlabBankSlotTarget slots per bank rounded up to a
// whole number of pages. The returned slab starts with a reference count
// of one.
func NewSlab(slotSize uintptr) *Slab {
	slotSize = alignUp(slotSize, ptrAlign)
	if slotSize == 0 {
		slotSize = ptrAlign
	}
	recordSize := alignUp(slotHeaderSize+slotSize, ptrAlign)
	bankPayload := RoundUpToPage(recordSize * constants.SlabBankSlotTarget)
	slotsPerBank := int(bankPayload / recordSize)
	if slotsPerBank < 1 {
		bankPayload = RoundUpToPage(recordSize)
		slotsPerBank = int(bankPayload / recordSize)
	}
	return &Slab{
		slotSize:     slotSize,
		recordSize:   recordSize,
		bankPayload:  bankPayload,
		slotsPerBank: slotsPerBank,
		refcount:     1,
	}
}

// SlotSize returns the payload size slots were created with, after
// pointer-alignment rounding.
func (s *Slab) SlotSize() uintptr { return s.slotSize }

// growLocked allocates a new bank and threads every one of its slots into
// the freelist. Caller must hold s.mu.
func (s *Slab) growLocked() error {
	base, err := AllocPages(s.bankPayload)
	if err != nil {
		return err
	}
	for i := s.slotsPerBank - 1; i >= 0; i-- {
		rec := unsafe.Add(base, uintptr(i)*s.recordSize)
		hdr := (*slotHeader)(rec)
		hdr.state = slotFree
		hdr.next = s.free
		s.free = hdr
	}
	s.banks = &bankNode{next: s.banks, base: base, size: s.bankPayload}
	return nil
}

// Alloc pops a slot off the freelist, growing the slab by one bank if the
// freelist is empty. The returned pointer is valid until Free is called on
// it or the slab is terminated.
func (s *Slab) Alloc() (unsafe.Pointer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.free == nil {
		if err := s.growLocked(); err != nil {
			return nil, err
		}
	}
	hdr := s.free
	s.free = hdr.next
	hdr.state = slotAllocated
	hdr.next = nil
	return unsafe.Add(unsafe.Pointer(hdr), slotHeaderSize), nil
}

// Free pushes ptr's slot back onto the freelist. ptr must have been
// returned by Alloc on this slab and not already freed.
func (s *Slab) Free(ptr unsafe.Pointer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hdr := (*slotHeader)(unsafe.Add(ptr, -int(slotHeaderSize)))
	hdr.state = slotFree
	hdr.next = s.free
	s.free = hdr
}

// Ref increments the slab's reference count; used by accepted connections
// that outlive the listener's own reference.
func (s *Slab) Ref() {
	s.mu.Lock()
	s.refcount++
	s.mu.Unlock()
}

// Term decrements the reference count. When it reaches zero, visit (if
// non-nil) is called for every still-allocated slot, then every bank is
// returned to the page allocator.
func (s *Slab) Term(visit Visitor) {
	s.mu.Lock()
	s.refcount--
	if s.refcount > 0 {
		s.mu.Unlock()
		return
	}
	banks := s.banks
	slotsPerBank := s.slotsPerBank
	recordSize := s.recordSize
	s.banks = nil
	s.free = nil
	s.mu.Unlock()

	if visit != nil {
		for b := banks; b != nil; b = b.next {
			for i := 0; i < slotsPerBank; i++ {
				rec := unsafe.Add(b.base, uintptr(i)*recordSize)
				hdr := (*slotHeader)(rec)
				if hdr.state == slotAllocated {
					visit(unsafe.Add(rec, slotHeaderSize))
				}
			}
		}
	}

	for b := banks; b != nil; {
		next := b.next
		_ = FreePages(b.base, b.size)
		b = next
	}
}
