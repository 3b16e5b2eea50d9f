// Package queue provides the oversized-write buffer pool used for
// OutputDescriptors larger than one page. Writes at or below one page are
// sent straight from the caller's own buffer and never touch this pool;
// buffers handled here have no stable-address requirement and benefit
// from sync.Pool's GC-aware reuse.
package queue

import "sync"

// Buffer size thresholds: four page-multiple buckets, adapted from the
// teacher's 128KB/256KB/512KB/1MB ladder down to sizes that actually occur
// above a single 4KB page in this domain.
const (
	size4k   = 4 * 1024
	size16k  = 16 * 1024
	size64k  = 64 * 1024
	size256k = 256 * 1024
)

var globalPool = struct {
	pool4k   sync.Pool
	pool16k  sync.Pool
	pool64k  sync.Pool
	pool256k sync.Pool
}{
	pool4k:   sync.Pool{New: func() any { b := make([]byte, size4k); return &b }},
	pool16k:  sync.Pool{New: func() any { b := make([]byte, size16k); return &b }},
	pool64k:  sync.Pool{New: func() any { b := make([]byte, size64k); return &b }},
	pool256k: sync.Pool{New: func() any { b := make([]byte, size256k); return &b }},
}

// GetBuffer returns a pooled buffer of at least the requested size. The
// caller must call PutBuffer when done.
func GetBuffer(size uint32) []byte {
	switch {
	case size <= size4k:
		return (*globalPool.pool4k.Get().(*[]byte))[:size]
	case size <= size16k:
		return (*globalPool.pool16k.Get().(*[]byte))[:size]
	case size <= size64k:
		return (*globalPool.pool64k.Get().(*[]byte))[:size]
	case size <= size256k:
		return (*globalPool.pool256k.Get().(*[]byte))[:size]
	default:
		// Larger than every bucket: a plain allocation, which PutBuffer
		// drops because its capacity matches no bucket.
		return make([]byte, size)
	}
}

// PutBuffer returns a buffer to the pool matching its capacity. Buffers
// with a non-standard capacity (not obtained from GetBuffer) are simply
// dropped.
func PutBuffer(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case size4k:
		globalPool.pool4k.Put(&buf)
	case size16k:
		globalPool.pool16k.Put(&buf)
	case size64k:
		globalPool.pool64k.Put(&buf)
	case size256k:
		globalPool.pool256k.Put(&buf)
	}
}
