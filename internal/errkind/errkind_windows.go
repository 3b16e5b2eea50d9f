//go:build windows

package errkind

import "golang.org/x/sys/windows"

// FromErrno maps a Winsock/NT error code to the closed Kind enumeration.
func FromErrno(errno windows.Errno) Kind {
	switch errno {
	case 0:
		return Ok
	case windows.WSAEAGAIN:
		return Again
	case windows.WSAEALREADY:
		return Already
	case windows.WSAEADDRINUSE:
		return AddrInUse
	case windows.WSAEADDRNOTAVAIL:
		return AddrNotAvail
	case windows.WSAEAFNOSUPPORT:
		return AfNoSupport
	case windows.WSAECONNABORTED:
		return ConnAborted
	case windows.WSAECONNREFUSED:
		return ConnRefused
	case windows.WSAECONNRESET:
		return ConnReset
	case windows.WSAEHOSTUNREACH:
		return HostUnreach
	case windows.WSAENETDOWN:
		return NetDown
	case windows.WSAENETRESET:
		return NetReset
	case windows.WSAENETUNREACH:
		return NetUnreach
	case windows.WSAENOBUFS:
		return NoBufs
	case windows.WSAENOTCONN:
		return NotConn
	case windows.WSAEACCES:
		return PermDenied
	case windows.WSAETIMEDOUT:
		return TimedOut
	case windows.WSAEINVAL:
		return Invalid
	case windows.WSAEPROTOTYPE:
		return ProtoType
	case windows.WSAEPROTONOSUPPORT:
		return ProtoNoSupport
	case windows.ERROR_NOT_ENOUGH_MEMORY, windows.ERROR_OUTOFMEMORY:
		return NoMem
	case windows.WAIT_TIMEOUT:
		return TimedOut
	case windows.ERROR_OPERATION_ABORTED:
		return Cancelled
	default:
		return Internal
	}
}
