//go:build windows

package ah

import (
	"golang.org/x/sys/windows"
)

func createSocket(family Family) (int, error) {
	domain := windows.AF_INET
	if family == FamilyIPv6 {
		domain = windows.AF_INET6
	}
	fd, err := windows.Socket(domain, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		return -1, WrapError("socket", err)
	}
	return int(fd), nil
}

func bindSocket(fd int, addr SockAddr) error {
	var sa windows.Sockaddr
	if addr.Family == FamilyIPv6 {
		sa = &windows.SockaddrInet6{Port: int(addr.Port), ZoneId: addr.ZoneID, Addr: addr.Addr6}
	} else {
		sa = &windows.SockaddrInet4{Port: int(addr.Port), Addr: addr.Addr4}
	}
	if err := windows.Bind(windows.Handle(fd), sa); err != nil {
		return WrapError("bind", err)
	}
	return nil
}

func listenSocket(fd int, backlog int) error {
	if err := windows.Listen(windows.Handle(fd), backlog); err != nil {
		return WrapError("listen", err)
	}
	return nil
}

func closeSocket(fd int) error {
	return windows.Closesocket(windows.Handle(fd))
}

func localAddr(fd int, family Family) (SockAddr, error) {
	sa, err := windows.Getsockname(windows.Handle(fd))
	if err != nil {
		return SockAddr{}, WrapError("getsockname", err)
	}
	switch v := sa.(type) {
	case *windows.SockaddrInet4:
		return IPv4(uint16(v.Port), v.Addr), nil
	case *windows.SockaddrInet6:
		return IPv6(uint16(v.Port), v.Addr, 0, v.ZoneId), nil
	default:
		return SockAddr{}, NewError("getsockname", KindAfNoSupport, "unrecognized sockaddr variant")
	}
}

func peerAddr(fd int, isIPv6 bool) (SockAddr, error) {
	sa, err := windows.Getpeername(windows.Handle(fd))
	if err != nil {
		return SockAddr{}, WrapError("getpeername", err)
	}
	switch v := sa.(type) {
	case *windows.SockaddrInet4:
		return IPv4(uint16(v.Port), v.Addr), nil
	case *windows.SockaddrInet6:
		return IPv6(uint16(v.Port), v.Addr, 0, v.ZoneId), nil
	default:
		return SockAddr{}, NewError("getpeername", KindAfNoSupport, "unrecognized sockaddr variant")
	}
}

func setKeepalive(fd int, on bool) error {
	if err := windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_KEEPALIVE, boolToInt(on)); err != nil {
		return WrapError("setsockopt", err)
	}
	return nil
}

func setNodelay(fd int, on bool) error {
	if err := windows.SetsockoptInt(windows.Handle(fd), windows.IPPROTO_TCP, windows.TCP_NODELAY, boolToInt(on)); err != nil {
		return WrapError("setsockopt", err)
	}
	return nil
}

func setReuseaddr(fd int, on bool) error {
	if err := windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, boolToInt(on)); err != nil {
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
