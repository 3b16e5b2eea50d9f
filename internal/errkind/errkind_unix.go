//go:build unix

package errkind

import "golang.org/x/sys/unix"

// FromErrno maps a POSIX errno to the closed Kind enumeration, direct
// structural kin of the teacher's mapErrnoToCode switch. Codes with no
// entry below are reported as Internal.
func FromErrno(errno unix.Errno) Kind {
	switch errno {
	case 0:
		return Ok
	case unix.ECANCELED:
		return Cancelled
	case unix.EAGAIN:
		return Again
	case unix.EALREADY:
		return Already
	case unix.EADDRINUSE:
		return AddrInUse
	case unix.EADDRNOTAVAIL:
		return AddrNotAvail
	case unix.EAFNOSUPPORT:
		return AfNoSupport
	case unix.ECONNABORTED:
		return ConnAborted
	case unix.ECONNREFUSED:
		return ConnRefused
	case unix.ECONNRESET:
		return ConnReset
	case unix.EHOSTUNREACH:
		return HostUnreach
	case unix.ENETDOWN:
		return NetDown
	case unix.ENETRESET:
		return NetReset
	case unix.ENETUNREACH:
		return NetUnreach
	case unix.ENOBUFS:
		return NoBufs
	case unix.ENOMEM:
		return NoMem
	case unix.ENOTCONN:
		return NotConn
	case unix.EACCES, unix.EPERM:
		return PermDenied
	case unix.ETIMEDOUT:
		return TimedOut
	case unix.EINVAL:
		return Invalid
	case unix.EPROTOTYPE:
		return ProtoType
	case unix.EPROTONOSUPPORT:
		return ProtoNoSupport
	default:
		return Internal
	}
}
