package memalloc

import (
	"testing"
	"unsafe"
)

func TestBumpExhaustion(t *testing.T) {
	region := make([]byte, 32)
	b := NewBump(region)
	base := b.Base()

	var got [3]unsafe.Pointer
	for i := 0; i < 3; i++ {
		p := b.Alloc(8)
		if p == nil {
			t.Fatalf("alloc %d: expected success, got nil", i)
		}
		got[i] = p
	}

	if p := b.Alloc(16); p != nil {
		t.Errorf("fourth alloc of 16 bytes: expected nil, got %p", p)
	}

	b.Reset()
	p := b.Alloc(8)
	if p == nil {
		t.Fatal("alloc after reset: expected success, got nil")
	}
	if p != base {
		t.Errorf("alloc after reset: expected base address %p, got %p", base, p)
	}
}

func TestBumpDistinctAlignedPointers(t *testing.T) {
	region := make([]byte, 4096)
	b := NewBump(region)

	seen := make(map[uintptr]bool)
	var usedSum uintptr
	sizes := []uintptr{1, 3, 8, 16, 5, 32}
	for _, n := range sizes {
		p := b.Alloc(n)
		if p == nil {
			t.Fatalf("alloc(%d) returned nil", n)
		}
		addr := uintptr(p)
		if addr%ptrAlign != 0 {
			t.Errorf("alloc(%d) returned unaligned pointer %#x", n, addr)
		}
		if seen[addr] {
			t.Errorf("alloc(%d) returned duplicate address %#x", n, addr)
		}
		seen[addr] = true
		usedSum += alignUp(n, ptrAlign)
	}

	if b.Used() != usedSum {
		t.Errorf("Used() = %d, want %d", b.Used(), usedSum)
	}
}
