package memalloc

import (
	"testing"
	"unsafe"
)

func TestSlabAddressStability(t *testing.T) {
	s := NewSlab(64)

	ptrs := make([]unsafe.Pointer, 100)
	for i := range ptrs {
		p, err := s.Alloc()
		if err != nil {
			t.Fatalf("alloc %d failed: %v", i, err)
		}
		ptrs[i] = p
	}

	// Free every other slot.
	for i := 0; i < len(ptrs); i += 2 {
		s.Free(ptrs[i])
	}

	// Allocate 50 new slots, which should reuse the freed ones.
	for i := 0; i < 50; i++ {
		if _, err := s.Alloc(); err != nil {
			t.Fatalf("re-alloc %d failed: %v", i, err)
		}
	}

	// The still-held odd-indexed pointers must be unchanged and
	// dereferenceable: write and read back a byte through each.
	for i := 1; i < len(ptrs); i += 2 {
		b := (*byte)(ptrs[i])
		*b = 0x42
		if *b != 0x42 {
			t.Errorf("pointer at index %d is not dereferenceable", i)
		}
	}

	s.Term(nil)
}

func TestSlabDistinctAllocations(t *testing.T) {
	s := NewSlab(16)
	defer s.Term(nil)

	seen := make(map[unsafe.Pointer]bool)
	for i := 0; i < 200; i++ {
		p, err := s.Alloc()
		if err != nil {
			t.Fatalf("alloc %d failed: %v", i, err)
		}
		if seen[p] {
			t.Fatalf("alloc %d returned duplicate address %p", i, p)
		}
		seen[p] = true
	}
}

func TestSlabRefcountedTerm(t *testing.T) {
	s := NewSlab(8)
	s.Ref() // simulate a second owner

	visited := 0
	s.Term(func(unsafe.Pointer) { visited++ })
	// One reference remains; banks must not be released or visited yet.
	if visited != 0 {
		t.Errorf("expected 0 visits while a reference remains, got %d", visited)
	}

	p, err := s.Alloc()
	if err != nil {
		t.Fatalf("alloc after partial term failed: %v", err)
	}

	s.Term(func(ptr unsafe.Pointer) {
		if ptr != p {
			t.Errorf("visited unexpected pointer %p, want %p", ptr, p)
		}
		visited++
	})
	if visited != 1 {
		t.Errorf("expected 1 visit after final term, got %d", visited)
	}
}
