// Package bufc implements a read/write cursor over a contiguous byte
// region, with length-checked, endian-aware integer I/O. It never
// allocates.
package bufc

import "encoding/binary"

// Cursor is a three-pointer view `r <= w <= e` into one region: readable
// is [r,w), writable is [w,e). Every operation preserves that invariant.
type Cursor struct {
	buf []byte
	r   int
	w   int
}

// New wraps buf as an empty cursor: nothing readable, the whole buffer
// writable.
func New(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Wrap treats buf as fully readable and not writable — useful for parsing
// a buffer someone else filled.
func Wrap(buf []byte) *Cursor {
	return &Cursor{buf: buf, w: len(buf)}
}

// Len returns the cursor's total capacity.
func (c *Cursor) Len() int { return len(c.buf) }

// Readable returns the current readable slice [r,w).
func (c *Cursor) Readable() []byte { return c.buf[c.r:c.w] }

// Writable returns the current writable slice [w,e).
func (c *Cursor) Writable() []byte { return c.buf[c.w:] }

// ReadLen returns w-r, the number of unread bytes.
func (c *Cursor) ReadLen() int { return c.w - c.r }

// WriteLen returns the number of bytes that can still be written before
// the region is exhausted.
func (c *Cursor) WriteLen() int { return len(c.buf) - c.w }

// Advance moves w forward by n bytes, as if n bytes had been written
// directly into Writable(). n must not exceed WriteLen().
func (c *Cursor) Advance(n int) {
	c.w += n
}

// Consume moves r forward by n bytes, marking them read. n must not
// exceed ReadLen().
func (c *Cursor) Consume(n int) {
	c.r += n
}

// Repack moves the unread bytes [r,w) to the start of the region,
// freeing up write space without reallocating.
func (c *Cursor) Repack() {
	if c.r == 0 {
		return
	}
	n := copy(c.buf, c.buf[c.r:c.w])
	c.r = 0
	c.w = n
}

// Reset empties the cursor, discarding any readable bytes.
func (c *Cursor) Reset() {
	c.r, c.w = 0, 0
}

// Write appends p to the writable region, returning false without
// modifying the cursor if there is not enough room.
func (c *Cursor) Write(p []byte) bool {
	if len(p) > c.WriteLen() {
		return false
	}
	copy(c.buf[c.w:], p)
	c.w += len(p)
	return true
}

// WriteU16BE writes v as two big-endian bytes; reports whether there was
// room.
func (c *Cursor) WriteU16BE(v uint16) bool {
	if c.WriteLen() < 2 {
		return false
	}
	binary.BigEndian.PutUint16(c.buf[c.w:], v)
	c.w += 2
	return true
}

// WriteU32BE writes v as four big-endian bytes; reports whether there was
// room.
func (c *Cursor) WriteU32BE(v uint32) bool {
	if c.WriteLen() < 4 {
		return false
	}
	binary.BigEndian.PutUint32(c.buf[c.w:], v)
	c.w += 4
	return true
}

// WriteU64BE writes v as eight big-endian bytes; reports whether there
// was room.
func (c *Cursor) WriteU64BE(v uint64) bool {
	if c.WriteLen() < 8 {
		return false
	}
	binary.BigEndian.PutUint64(c.buf[c.w:], v)
	c.w += 8
	return true
}

// WriteU16LE writes v as two little-endian bytes; reports whether there
// was room.
func (c *Cursor) WriteU16LE(v uint16) bool {
	if c.WriteLen() < 2 {
		return false
	}
	binary.LittleEndian.PutUint16(c.buf[c.w:], v)
	c.w += 2
	return true
}

// WriteU32LE writes v as four little-endian bytes; reports whether there
// was room.
func (c *Cursor) WriteU32LE(v uint32) bool {
	if c.WriteLen() < 4 {
		return false
	}
	binary.LittleEndian.PutUint32(c.buf[c.w:], v)
	c.w += 4
	return true
}

// WriteU64LE writes v as eight little-endian bytes; reports whether there
// was room.
func (c *Cursor) WriteU64LE(v uint64) bool {
	if c.WriteLen() < 8 {
		return false
	}
	binary.LittleEndian.PutUint64(c.buf[c.w:], v)
	c.w += 8
	return true
}

// ReadU16BE reads two big-endian bytes, advancing r. On underflow it
// returns 0 and leaves r unchanged.
func (c *Cursor) ReadU16BE() uint16 {
	if c.ReadLen() < 2 {
		return 0
	}
	v := binary.BigEndian.Uint16(c.buf[c.r:])
	c.r += 2
	return v
}

// ReadU32BE reads four big-endian bytes, advancing r. On underflow it
// returns 0 and leaves r unchanged.
func (c *Cursor) ReadU32BE() uint32 {
	if c.ReadLen() < 4 {
		return 0
	}
	v := binary.BigEndian.Uint32(c.buf[c.r:])
	c.r += 4
	return v
}

// ReadU64BE reads eight big-endian bytes, advancing r. On underflow it
// returns 0 and leaves r unchanged.
func (c *Cursor) ReadU64BE() uint64 {
	if c.ReadLen() < 8 {
		return 0
	}
	v := binary.BigEndian.Uint64(c.buf[c.r:])
	c.r += 8
	return v
}

// ReadU16LE reads two little-endian bytes, advancing r. On underflow it
// returns 0 and leaves r unchanged.
func (c *Cursor) ReadU16LE() uint16 {
	if c.ReadLen() < 2 {
		return 0
	}
	v := binary.LittleEndian.Uint16(c.buf[c.r:])
	c.r += 2
	return v
}

// ReadU32LE reads four little-endian bytes, advancing r. On underflow it
// returns 0 and leaves r unchanged.
func (c *Cursor) ReadU32LE() uint32 {
	if c.ReadLen() < 4 {
		return 0
	}
	v := binary.LittleEndian.Uint32(c.buf[c.r:])
	c.r += 4
	return v
}

// ReadU64LE reads eight little-endian bytes, advancing r. On underflow it
// returns 0 and leaves r unchanged.
func (c *Cursor) ReadU64LE() uint64 {
	if c.ReadLen() < 8 {
		return 0
	}
	v := binary.LittleEndian.Uint64(c.buf[c.r:])
	c.r += 8
	return v
}
