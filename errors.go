package ah

import (
	"errors"
	"fmt"

	"github.com/ehrlich-b/ah/internal/errkind"
)

// Kind is the closed error-kind enumeration every fallible operation
// reports through. It is a defined string type, not an iota int, so the
// platform mapping tables and %s formatting are free.
type Kind = errkind.Kind

const (
	KindOk             = errkind.Ok
	KindCancelled      = errkind.Cancelled
	KindEof            = errkind.Eof
	KindInternal       = errkind.Internal
	KindState          = errkind.State
	KindSyntax         = errkind.Syntax
	KindDep            = errkind.Dep
	KindAgain          = errkind.Again
	KindAlready        = errkind.Already
	KindAddrInUse      = errkind.AddrInUse
	KindAddrNotAvail   = errkind.AddrNotAvail
	KindAfNoSupport    = errkind.AfNoSupport
	KindConnAborted    = errkind.ConnAborted
	KindConnRefused    = errkind.ConnRefused
	KindConnReset      = errkind.ConnReset
	KindHostUnreach    = errkind.HostUnreach
	KindNetDown        = errkind.NetDown
	KindNetReset       = errkind.NetReset
	KindNetUnreach     = errkind.NetUnreach
	KindNoBufs         = errkind.NoBufs
	KindNoMem          = errkind.NoMem
	KindNotConn        = errkind.NotConn
	KindPermDenied     = errkind.PermDenied
	KindTimedOut       = errkind.TimedOut
	KindOverflow       = errkind.Overflow
	KindRange          = errkind.Range
	KindInvalid        = errkind.Invalid
	KindProtoType      = errkind.ProtoType
	KindProtoNoSupport = errkind.ProtoNoSupport
)

// Error is a structured failure carrying the operation that failed, its
// Kind, the originating errno (if any) and an optional wrapped cause. A
// direct generalization of the teacher's *Error/UblkErrorCode pair from
// nine device-lifecycle codes to the full POSIX-derived Kind set.
type Error struct {
	Op    string // operation that failed, e.g. "open", "connect", "write"
	Kind  Kind
	Errno int // platform errno, 0 if not applicable
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		return fmt.Sprintf("ah: %s: %s", e.Op, msg)
	}
	return fmt.Sprintf("ah: %s", msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

// Is makes errors.Is(err, target) match any *Error target with the same
// Kind, regardless of Op or Msg. Targets of any other type never match;
// use IsKind to test against a bare Kind value.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Kind == te.Kind
	}
	return false
}

// NewError builds a structured error for the given operation and kind.
func NewError(op string, kind Kind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// NewErrnoError builds a structured error carrying a raw platform errno
// alongside the Kind the caller supplies; it does no mapping itself.
func NewErrnoError(op string, kind Kind, errno int, msg string) *Error {
	return &Error{Op: op, Kind: kind, Errno: errno, Msg: msg}
}

// WrapError attaches operation context to an existing error, preserving
// structure if inner is already an *Error.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ae, ok := inner.(*Error); ok {
		return &Error{Op: op, Kind: ae.Kind, Errno: ae.Errno, Msg: ae.Msg, Inner: ae.Inner}
	}
	return &Error{Op: op, Kind: KindInternal, Msg: inner.Error(), Inner: inner}
}

// IsKind reports whether err is an *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}
