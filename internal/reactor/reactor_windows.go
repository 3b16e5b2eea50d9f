//go:build windows

package reactor

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/ehrlich-b/ah/internal/errkind"
)

// overlappedOp pairs a pending Submission with the OVERLAPPED structure
// the kernel writes a completion through; GetQueuedCompletionStatus hands
// that OVERLAPPED address back (the completion key itself is unused), and
// since it is the first field it recovers the whole op and its
// Submission — the IOCP analogue of the teacher's tag-indexed
// tagStates/ioCmds arrays in runner.go.
type overlappedOp struct {
	ov        windows.Overlapped
	sub       Submission
	acceptSoc windows.Handle // socket pre-created for an in-flight AcceptEx
	wsabuf    windows.WSABuf
}

type windowsBackend struct {
	mu            sync.Mutex
	iocp          windows.Handle
	associated    map[windows.Handle]bool
	byUser        map[uint64]*overlappedOp
	acceptExPtr   uintptr
	connectExPtr  uintptr
	fnResolveOnce sync.Once
	fnResolveErr  error
}

func newBackend() (Backend, error) {
	iocp, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("reactor: CreateIoCompletionPort: %w", err)
	}
	return &windowsBackend{
		iocp:       iocp,
		associated: make(map[windows.Handle]bool),
		byUser:     make(map[uint64]*overlappedOp),
	}, nil
}

func (b *windowsBackend) Close() error {
	return windows.CloseHandle(b.iocp)
}

func (b *windowsBackend) associate(fd windows.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.associated[fd] {
		return nil
	}
	if _, err := windows.CreateIoCompletionPort(fd, b.iocp, 0, 0); err != nil {
		return err
	}
	b.associated[fd] = true
	return nil
}

// resolveExtensionFns loads AcceptEx/ConnectEx via the
// SIO_GET_EXTENSION_FUNCTION_POINTER WSAIoctl, the standard way to reach
// these Microsoft socket extension functions from Go.
func (b *windowsBackend) resolveExtensionFns(fd windows.Handle) error {
	b.fnResolveOnce.Do(func() {
		var bytes uint32
		acceptExGUID := windows.WSAID_ACCEPTEX
		if err := windows.WSAIoctl(fd, windows.SIO_GET_EXTENSION_FUNCTION_POINTER,
			(*byte)(unsafe.Pointer(&acceptExGUID)), uint32(unsafe.Sizeof(acceptExGUID)),
			(*byte)(unsafe.Pointer(&b.acceptExPtr)), uint32(unsafe.Sizeof(b.acceptExPtr)),
			&bytes, nil, 0); err != nil {
			b.fnResolveErr = fmt.Errorf("reactor: resolve AcceptEx: %w", err)
			return
		}
		connectExGUID := windows.WSAID_CONNECTEX
		if err := windows.WSAIoctl(fd, windows.SIO_GET_EXTENSION_FUNCTION_POINTER,
			(*byte)(unsafe.Pointer(&connectExGUID)), uint32(unsafe.Sizeof(connectExGUID)),
			(*byte)(unsafe.Pointer(&b.connectExPtr)), uint32(unsafe.Sizeof(b.connectExPtr)),
			&bytes, nil, 0); err != nil {
			b.fnResolveErr = fmt.Errorf("reactor: resolve ConnectEx: %w", err)
			return
		}
	})
	return b.fnResolveErr
}

func (b *windowsBackend) track(op *overlappedOp) {
	b.mu.Lock()
	b.byUser[op.sub.UserData] = op
	b.mu.Unlock()
}

func (b *windowsBackend) untrack(op *overlappedOp) {
	b.mu.Lock()
	delete(b.byUser, op.sub.UserData)
	b.mu.Unlock()
}

func (b *windowsBackend) Submit(op Submission) error {
	fd := windows.Handle(op.Fd)

	switch op.Kind {
	case OpAccept:
		if err := b.associate(fd); err != nil {
			return err
		}
		if err := b.resolveExtensionFns(fd); err != nil {
			return err
		}
		accepted, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
		if err != nil {
			return fmt.Errorf("reactor: accept socket: %w", err)
		}
		o := &overlappedOp{sub: op, acceptSoc: accepted}
		b.track(o)
		const addrLen = uint32(unsafe.Sizeof(windows.RawSockaddrAny{}) + 16)
		buf := make([]byte, addrLen*2)
		var bytes uint32
		r, _, e := syscall.Syscall9(b.acceptExPtr, 8,
			uintptr(fd), uintptr(accepted), uintptr(unsafe.Pointer(&buf[0])),
			0, uintptr(addrLen), uintptr(addrLen), uintptr(unsafe.Pointer(&bytes)), uintptr(unsafe.Pointer(&o.ov)), 0)
		if r == 0 && e != 0 && e != windows.ERROR_IO_PENDING {
			b.untrack(o)
			return fmt.Errorf("reactor: AcceptEx: %w", e)
		}
	case OpConnect:
		if err := b.associate(fd); err != nil {
			return err
		}
		if err := b.resolveExtensionFns(fd); err != nil {
			return err
		}
		_ = windows.Bind(fd, &windows.SockaddrInet4{})
		ptr, ln := rawAddrToRaw(op.Addr)
		o := &overlappedOp{sub: op}
		b.track(o)
		r, _, e := syscall.Syscall9(b.connectExPtr, 7,
			uintptr(fd), uintptr(ptr), uintptr(ln), 0, 0, 0, uintptr(unsafe.Pointer(&o.ov)), 0, 0)
		if r == 0 && e != 0 && e != windows.ERROR_IO_PENDING {
			b.untrack(o)
			return fmt.Errorf("reactor: ConnectEx: %w", e)
		}
	case OpRead:
		if err := b.associate(fd); err != nil {
			return err
		}
		o := &overlappedOp{sub: op, wsabuf: windows.WSABuf{Len: uint32(len(op.Buf)), Buf: bufPtr(op.Buf)}}
		b.track(o)
		var bytes, flags uint32
		if err := windows.WSARecv(fd, &o.wsabuf, 1, &bytes, &flags, &o.ov, nil); err != nil && err != windows.ERROR_IO_PENDING {
			b.untrack(o)
			return fmt.Errorf("reactor: WSARecv: %w", err)
		}
	case OpWrite:
		if err := b.associate(fd); err != nil {
			return err
		}
		o := &overlappedOp{sub: op, wsabuf: windows.WSABuf{Len: uint32(len(op.Buf)), Buf: bufPtr(op.Buf)}}
		b.track(o)
		var bytes uint32
		if err := windows.WSASend(fd, &o.wsabuf, 1, &bytes, 0, &o.ov, nil); err != nil && err != windows.ERROR_IO_PENDING {
			b.untrack(o)
			return fmt.Errorf("reactor: WSASend: %w", err)
		}
	case OpClose:
		err := windows.Closesocket(fd)
		b.mu.Lock()
		delete(b.associated, fd)
		b.mu.Unlock()
		return b.synthesizeImmediate(op.UserData, err)
	case OpShutdown:
		err := windows.Shutdown(fd, shutdownHowToWindows(op.How))
		return b.synthesizeImmediate(op.UserData, err)
	case OpCancel:
		b.mu.Lock()
		o, ok := b.byUser[op.CancelID]
		b.mu.Unlock()
		if ok {
			_ = windows.CancelIoEx(windows.Handle(o.sub.Fd), &o.ov)
		}
	default:
		return fmt.Errorf("reactor: unknown submission kind %d", op.Kind)
	}
	return nil
}

// synthesizeImmediate posts a completion packet for a synchronous Win32
// call (closesocket/shutdown have no overlapped variant) so it surfaces
// through the same WaitForCompletions drain as everything else.
func (b *windowsBackend) synthesizeImmediate(userData uint64, err error) error {
	o := &overlappedOp{sub: Submission{UserData: userData}}
	res := uint32(0)
	if err != nil {
		res = 0xffffffff
	}
	return windows.PostQueuedCompletionStatus(b.iocp, res, 0, &o.ov)
}

func (b *windowsBackend) Flush() error { return nil }

func (b *windowsBackend) WaitForCompletions(timeoutMillis int) ([]Completion, error) {
	var out []Completion
	timeout := uint32(windows.INFINITE)
	if timeoutMillis >= 0 {
		timeout = uint32(timeoutMillis)
	}

	for {
		var bytes uint32
		var key uintptr
		var ovPtr *windows.Overlapped
		err := windows.GetQueuedCompletionStatus(b.iocp, &bytes, &key, &ovPtr, timeout)
		if ovPtr == nil {
			if err == windows.WAIT_TIMEOUT {
				return out, nil
			}
			return out, fmt.Errorf("reactor: GetQueuedCompletionStatus: %w", err)
		}
		op := (*overlappedOp)(unsafe.Pointer(ovPtr))
		b.untrack(op)

		c := Completion{UserData: op.sub.UserData, Result: int(bytes), Kind: errkind.Ok}
		if err != nil {
			if errno, ok := err.(syscall.Errno); ok {
				c.Result = -int(errno)
				c.Kind = errkind.FromErrno(errno)
			} else {
				c.Kind = errkind.Internal
			}
		} else if op.sub.Kind == OpAccept {
			c.Result = int(op.acceptSoc)
		}
		out = append(out, c)
		timeout = 0 // drain everything already queued without blocking again
	}
}

func bufPtr(b []byte) *byte {
	if len(b) == 0 {
		return nil
	}
	return &b[0]
}

func shutdownHowToWindows(how ShutdownHow) int {
	switch how {
	case ShutdownRd:
		return windows.SHUT_RD
	case ShutdownWr:
		return windows.SHUT_WR
	default:
		return windows.SHUT_RDWR
	}
}

func htons(port uint16) uint16 {
	return (port << 8) | (port >> 8)
}

// rawAddrToRaw renders a RawAddr as a raw Winsock sockaddr, the form
// ConnectEx expects.
func rawAddrToRaw(a RawAddr) (unsafe.Pointer, int32) {
	if a.Family == 6 {
		sa := &windows.RawSockaddrInet6{Family: windows.AF_INET6, Addr: a.Addr6, Scope_id: a.Zone}
		sa.Port = htons(a.Port)
		return unsafe.Pointer(sa), int32(unsafe.Sizeof(*sa))
	}
	sa := &windows.RawSockaddrInet4{Family: windows.AF_INET, Addr: a.Addr4}
	sa.Port = htons(a.Port)
	return unsafe.Pointer(sa), int32(unsafe.Sizeof(*sa))
}
