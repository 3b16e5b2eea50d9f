// Package errkind defines the closed error-kind enumeration (spec.md
// §3/§7) and the per-platform errno mapping table feeding it, grounded on
// the teacher's UblkErrorCode/mapErrnoToCode pair in errors.go.
package errkind

import "fmt"

// Kind is the closed error-kind enumeration: exactly one value is
// returned by every operation that can fail. It is a defined string
// type, matching the teacher's UblkErrorCode texture rather than an iota
// int, so %s formatting and the mapping table fall out for free.
type Kind string

const (
	Ok        Kind = "ok"
	Cancelled Kind = "cancelled"
	Eof       Kind = "eof"
	Internal  Kind = "internal"
	State     Kind = "state"
	Syntax    Kind = "syntax"
	Dep       Kind = "dep"

	Again          Kind = "resource temporarily unavailable"
	Already        Kind = "operation already in progress"
	AddrInUse      Kind = "address in use"
	AddrNotAvail   Kind = "address not available"
	AfNoSupport    Kind = "address family not supported"
	ConnAborted    Kind = "connection aborted"
	ConnRefused    Kind = "connection refused"
	ConnReset      Kind = "connection reset"
	HostUnreach    Kind = "host unreachable"
	NetDown        Kind = "network down"
	NetReset       Kind = "network reset"
	NetUnreach     Kind = "network unreachable"
	NoBufs         Kind = "no buffer space available"
	NoMem          Kind = "out of memory"
	NotConn        Kind = "not connected"
	PermDenied     Kind = "permission denied"
	TimedOut       Kind = "timed out"
	Overflow       Kind = "input buffer overflow"
	Range          Kind = "out of range"
	Invalid        Kind = "invalid argument"
	ProtoType      Kind = "wrong protocol type"
	ProtoNoSupport Kind = "protocol not supported"
)

// Describe formats a platform code with no entry in the mapping table,
// per spec.md §4.4: "ERR[%d]" followed by the platform's own
// description.
func Describe(code int, platformMsg string) string {
	return fmt.Sprintf("ERR[%d] %s", code, platformMsg)
}
