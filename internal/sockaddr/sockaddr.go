// Package sockaddr implements the tagged IPv4/IPv6 address model: a
// fixed-layout value type with explicit byte-order-free accessors, in the
// same descriptor style the teacher uses for its fixed ublk wire structs.
package sockaddr

import (
	"fmt"

	"github.com/ehrlich-b/ah/internal/bufc"
)

// Family is the address-family tag; its value is the tag of the union.
type Family uint8

const (
	FamilyIPv4 Family = 4
	FamilyIPv6 Family = 6
)

// SockAddr is a tagged union over IPv4 and IPv6 endpoints. Only the
// fields belonging to Family are meaningful.
type SockAddr struct {
	Family   Family
	Port     uint16
	Addr4    [4]byte
	Addr6    [16]byte
	FlowInfo uint32
	ZoneID   uint32
}

// IPv4 constructs an IPv4 endpoint.
func IPv4(port uint16, b [4]byte) SockAddr {
	return SockAddr{Family: FamilyIPv4, Port: port, Addr4: b}
}

// IPv6 constructs an IPv6 endpoint with flow label and zone.
func IPv6(port uint16, b [16]byte, flow, zone uint32) SockAddr {
	return SockAddr{Family: FamilyIPv6, Port: port, Addr6: b, FlowInfo: flow, ZoneID: zone}
}

var (
	ipv4Loopback = [4]byte{127, 0, 0, 1}
	ipv6Loopback = [16]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}
)

// IPv4Loopback returns 127.0.0.1 bound to port.
func IPv4Loopback(port uint16) SockAddr { return IPv4(port, ipv4Loopback) }

// IPv4Wildcard returns 0.0.0.0 bound to port.
func IPv4Wildcard(port uint16) SockAddr { return IPv4(port, [4]byte{}) }

// IPv6Loopback returns ::1 bound to port.
func IPv6Loopback(port uint16) SockAddr { return IPv6(port, ipv6Loopback, 0, 0) }

// IPv6Wildcard returns :: bound to port.
func IPv6Wildcard(port uint16) SockAddr { return IPv6(port, [16]byte{}, 0, 0) }

// IsWildcard reports whether the address portion (ignoring port) is the
// all-zero wildcard address for its family.
func (a SockAddr) IsWildcard() bool {
	switch a.Family {
	case FamilyIPv4:
		return a.Addr4 == [4]byte{}
	case FamilyIPv6:
		return a.Addr6 == [16]byte{}
	default:
		return false
	}
}

// IsPortZero reports whether the port is unset (ephemeral-port request).
func (a SockAddr) IsPortZero() bool {
	return a.Port == 0
}

// Equal compares two addresses field-by-field within their shared family.
func (a SockAddr) Equal(b SockAddr) bool {
	if a.Family != b.Family || a.Port != b.Port {
		return false
	}
	switch a.Family {
	case FamilyIPv4:
		return a.Addr4 == b.Addr4
	case FamilyIPv6:
		return a.Addr6 == b.Addr6 && a.FlowInfo == b.FlowInfo && a.ZoneID == b.ZoneID
	default:
		return false
	}
}

// Stringify produces the canonical text form ("1.2.3.4:80", or for IPv6
// all eight groups zero-padded and uncompressed, as in
// "[0000:0000:0000:0000:0000:0000:0000:0001]:80"), building the digits through a bufc.Cursor rather than
// fmt.Sprintf to keep the hot accept/connect path allocation-light.
func (a SockAddr) Stringify() string {
	var scratch [64]byte
	c := bufc.New(scratch[:])
	switch a.Family {
	case FamilyIPv4:
		for i, octet := range a.Addr4 {
			if i > 0 {
				c.Write([]byte{'.'})
			}
			writeDecimal(c, uint64(octet))
		}
		c.Write([]byte{':'})
		writeDecimal(c, uint64(a.Port))
	case FamilyIPv6:
		c.Write([]byte{'['})
		for i := 0; i < 16; i += 2 {
			if i > 0 {
				c.Write([]byte{':'})
			}
			writeHex16(c, uint16(a.Addr6[i])<<8|uint16(a.Addr6[i+1]))
		}
		c.Write([]byte{']', ':'})
		writeDecimal(c, uint64(a.Port))
	default:
		return fmt.Sprintf("ERR[unknown family %d]", a.Family)
	}
	return string(c.Readable())
}

func writeDecimal(c *bufc.Cursor, v uint64) {
	var digits [20]byte
	n := len(digits)
	if v == 0 {
		c.Write([]byte{'0'})
		return
	}
	for v > 0 {
		n--
		digits[n] = byte('0' + v%10)
		v /= 10
	}
	c.Write(digits[n:])
}

func writeHex16(c *bufc.Cursor, v uint16) {
	const hexDigits = "0123456789abcdef"
	var out [4]byte
	for i := 3; i >= 0; i-- {
		out[i] = hexDigits[v&0xf]
		v >>= 4
	}
	c.Write(out[:])
}
