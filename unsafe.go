package ah

import "unsafe"

// unsafeSlice views a slab-allocated region as a byte slice. The slab
// guarantees the address is stable for the slot's lifetime, so the slice
// header is safe to hand out and hold onto.
func unsafeSlice(ptr unsafe.Pointer, n int) []byte {
	if ptr == nil || n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), n)
}

// unsafePtr recovers the base pointer of a slice previously produced by
// unsafeSlice, for returning the slot to its slab.
func unsafePtr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}
