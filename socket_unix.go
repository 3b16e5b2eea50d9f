//go:build unix

package ah

import (
	"golang.org/x/sys/unix"
)

func createSocket(family Family) (int, error) {
	domain := unix.AF_INET
	if family == FamilyIPv6 {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, unix.IPPROTO_TCP)
	if err != nil {
		return -1, WrapError("socket", err)
	}
	return fd, nil
}

func bindSocket(fd int, addr SockAddr) error {
	var sa unix.Sockaddr
	if addr.Family == FamilyIPv6 {
		sa = &unix.SockaddrInet6{Port: int(addr.Port), ZoneId: addr.ZoneID, Addr: addr.Addr6}
	} else {
		sa = &unix.SockaddrInet4{Port: int(addr.Port), Addr: addr.Addr4}
	}
	if err := unix.Bind(fd, sa); err != nil {
		return WrapError("bind", err)
	}
	return nil
}

func listenSocket(fd int, backlog int) error {
	if err := unix.Listen(fd, backlog); err != nil {
		return WrapError("listen", err)
	}
	return nil
}

func closeSocket(fd int) error {
	return unix.Close(fd)
}

func localAddr(fd int, family Family) (SockAddr, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return SockAddr{}, WrapError("getsockname", err)
	}
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return IPv4(uint16(v.Port), v.Addr), nil
	case *unix.SockaddrInet6:
		return IPv6(uint16(v.Port), v.Addr, 0, v.ZoneId), nil
	default:
		return SockAddr{}, NewError("getsockname", KindAfNoSupport, "unrecognized sockaddr variant")
	}
}

func peerAddr(fd int, isIPv6 bool) (SockAddr, error) {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return SockAddr{}, WrapError("getpeername", err)
	}
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return IPv4(uint16(v.Port), v.Addr), nil
	case *unix.SockaddrInet6:
		return IPv6(uint16(v.Port), v.Addr, 0, v.ZoneId), nil
	default:
		return SockAddr{}, NewError("getpeername", KindAfNoSupport, "unrecognized sockaddr variant")
	}
}

func setKeepalive(fd int, on bool) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, boolToInt(on)); err != nil {
		return WrapError("setsockopt", err)
	}
	return nil
}

func setNodelay(fd int, on bool) error {
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, boolToInt(on)); err != nil {
		return WrapError("setsockopt", err)
	}
	return nil
}

func setReuseaddr(fd int, on bool) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, boolToInt(on)); err != nil {
		return WrapError("setsockopt", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
