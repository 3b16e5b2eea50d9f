package bufc

import "testing"

func TestCursorInvariant(t *testing.T) {
	c := New(make([]byte, 16))
	if !c.Write([]byte("hello")) {
		t.Fatal("write failed unexpectedly")
	}
	c.Consume(2)
	if c.ReadLen() != 3 {
		t.Errorf("ReadLen() = %d, want 3", c.ReadLen())
	}
	if c.WriteLen() != 11 {
		t.Errorf("WriteLen() = %d, want 11", c.WriteLen())
	}
}

func TestCursorOverflowGuard(t *testing.T) {
	c := Wrap(make([]byte, 7))

	if v := c.ReadU64BE(); v != 0 {
		t.Errorf("ReadU64BE() on a 7-byte region = %d, want 0", v)
	}
	if c.ReadLen() != 7 {
		t.Errorf("ReadU64BE() on underflow must not advance r; ReadLen() = %d, want 7", c.ReadLen())
	}

	v := c.ReadU32BE()
	_ = v
	if c.ReadLen() != 3 {
		t.Errorf("ReadU32BE() should advance r by 4; ReadLen() = %d, want 3", c.ReadLen())
	}
}

func TestCursorRepack(t *testing.T) {
	c := New(make([]byte, 8))
	c.Write([]byte("abcdefgh"))
	c.Consume(6)
	c.Repack()
	if c.ReadLen() != 2 {
		t.Fatalf("ReadLen() after repack = %d, want 2", c.ReadLen())
	}
	if string(c.Readable()) != "gh" {
		t.Errorf("Readable() after repack = %q, want %q", c.Readable(), "gh")
	}
	if c.WriteLen() != 6 {
		t.Errorf("WriteLen() after repack = %d, want 6", c.WriteLen())
	}
}

func TestCursorRoundTripEndian(t *testing.T) {
	be := New(make([]byte, 8))
	be.WriteU64BE(0x0102030405060708)
	if got := be.ReadU64BE(); got != 0x0102030405060708 {
		t.Errorf("big-endian round trip = %#x, want %#x", got, 0x0102030405060708)
	}

	le := New(make([]byte, 8))
	le.WriteU64LE(0x0102030405060708)
	if got := le.ReadU64LE(); got != 0x0102030405060708 {
		t.Errorf("little-endian round trip = %#x, want %#x", got, 0x0102030405060708)
	}
}
