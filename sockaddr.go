package ah

import "github.com/ehrlich-b/ah/internal/sockaddr"

// SockAddr is a tagged union over IPv4/IPv6 addresses, re-exported from
// internal/sockaddr so callers never need to import the internal package
// directly.
type SockAddr = sockaddr.SockAddr

// Family discriminates the address variants.
type Family = sockaddr.Family

const (
	FamilyIPv4 = sockaddr.FamilyIPv4
	FamilyIPv6 = sockaddr.FamilyIPv6
)

// IPv4 builds an IPv4 address from its four octets.
func IPv4(port uint16, b [4]byte) SockAddr { return sockaddr.IPv4(port, b) }

// IPv6 builds an IPv6 address from its sixteen bytes, flow label and zone.
func IPv6(port uint16, b [16]byte, flow, zone uint32) SockAddr {
	return sockaddr.IPv6(port, b, flow, zone)
}

// Well-known constants per family.
func IPv4Loopback(port uint16) SockAddr { return sockaddr.IPv4Loopback(port) }
func IPv4Wildcard(port uint16) SockAddr { return sockaddr.IPv4Wildcard(port) }
func IPv6Loopback(port uint16) SockAddr { return sockaddr.IPv6Loopback(port) }
func IPv6Wildcard(port uint16) SockAddr { return sockaddr.IPv6Wildcard(port) }
