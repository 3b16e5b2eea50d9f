//go:build linux

package reactor

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/pawelgaczynski/giouring"
	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/ah/internal/errkind"
)

// ringEntries sizes the submission/completion queue pair; it bounds the
// number of operations in flight per loop.
const ringEntries = 256

type linuxBackend struct {
	ring    *giouring.Ring
	pending int

	// connectAddrs pins the sockaddr built for each in-flight OpConnect,
	// keyed by its UserData. io_uring reads the address asynchronously
	// when it processes the SQE, not synchronously when the SQE is built,
	// so the backing struct must stay reachable (and unmoved) until the
	// completion for that UserData arrives; converting its address to a
	// uintptr for PrepareConnect hides it from the garbage collector, so
	// this map is what actually keeps it alive in the meantime.
	connectAddrs map[uint64]unsafe.Pointer
}

func newBackend() (Backend, error) {
	ring, err := giouring.CreateRing(ringEntries)
	if err != nil {
		return nil, fmt.Errorf("reactor: io_uring setup: %w", err)
	}
	return &linuxBackend{ring: ring}, nil
}

func (b *linuxBackend) Close() error {
	b.ring.QueueExit()
	return nil
}

func (b *linuxBackend) Submit(op Submission) error {
	sqe := b.ring.GetSQE()
	if sqe == nil {
		// Submission queue is full; flush what we have and retry once.
		if _, err := b.ring.Submit(); err != nil {
			return fmt.Errorf("reactor: submission queue full: %w", err)
		}
		sqe = b.ring.GetSQE()
		if sqe == nil {
			return fmt.Errorf("reactor: submission queue full after flush")
		}
	}

	switch op.Kind {
	case OpAccept:
		sqe.PrepareAccept(op.Fd, 0, 0, 0)
	case OpConnect:
		addr, addrLen := rawAddrToSockaddr(op.Addr)
		if b.connectAddrs == nil {
			b.connectAddrs = make(map[uint64]unsafe.Pointer)
		}
		b.connectAddrs[op.UserData] = addr
		sqe.PrepareConnect(op.Fd, uintptr(addr), addrLen)
	case OpRead:
		sqe.PrepareRecv(op.Fd, op.Buf, 0)
	case OpWrite:
		sqe.PrepareSend(op.Fd, op.Buf, 0)
	case OpClose:
		sqe.PrepareClose(op.Fd)
	case OpShutdown:
		sqe.PrepareShutdown(op.Fd, int(op.How))
	case OpCancel:
		sqe.PrepareCancel64(op.CancelID, 0)
	default:
		return fmt.Errorf("reactor: unknown submission kind %d", op.Kind)
	}
	sqe.UserData = op.UserData
	b.pending++
	return nil
}

func (b *linuxBackend) Flush() error {
	if b.pending == 0 {
		return nil
	}
	if _, err := b.ring.Submit(); err != nil {
		return fmt.Errorf("reactor: io_uring_enter: %w", err)
	}
	b.pending = 0
	return nil
}

func (b *linuxBackend) WaitForCompletions(timeoutMillis int) ([]Completion, error) {
	if err := b.Flush(); err != nil {
		return nil, err
	}

	var first *giouring.CQEvent
	var err error
	switch {
	case timeoutMillis < 0:
		first, err = b.ring.WaitCQE()
	case timeoutMillis == 0:
		first, err = b.ring.PeekCQE()
	default:
		ts := unix.NsecToTimespec(int64(timeoutMillis) * int64(time.Millisecond))
		first, err = b.ring.WaitCQETimeout(ts)
	}
	if err == unix.ETIME || err == unix.EAGAIN {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reactor: wait for completions: %w", err)
	}
	if first == nil {
		return nil, nil
	}

	out := make([]Completion, 0, 4)
	out = append(out, toCompletion(first))
	b.ring.SeenCQE(first)
	b.releaseConnectAddr(first.UserData)

	for {
		cqe, err := b.ring.PeekCQE()
		if err != nil || cqe == nil {
			break
		}
		out = append(out, toCompletion(cqe))
		b.ring.SeenCQE(cqe)
		b.releaseConnectAddr(cqe.UserData)
	}
	return out, nil
}

// releaseConnectAddr unpins the sockaddr (if any) submitted for an
// OpConnect under userData, now that its completion has arrived. A no-op
// for every other completion kind.
func (b *linuxBackend) releaseConnectAddr(userData uint64) {
	if b.connectAddrs == nil {
		return
	}
	delete(b.connectAddrs, userData)
}

func toCompletion(cqe *giouring.CQEvent) Completion {
	c := Completion{UserData: cqe.UserData, Result: int(cqe.Res)}
	switch {
	case cqe.Res >= 0:
		c.Kind = errkind.Ok
	case unix.Errno(-cqe.Res) == unix.ECANCELED:
		c.Kind = errkind.Cancelled
		c.Cancelled = true
	default:
		c.Kind = errkind.FromErrno(unix.Errno(-cqe.Res))
	}
	return c
}

// rawAddrToSockaddr renders a RawAddr into the kernel's wire format. The
// returned pointer must stay pinned until the matching completion
// arrives (see linuxBackend.connectAddrs): io_uring reads the address at
// SQE-processing time, not at SQE-build time, so its backing memory
// would otherwise be eligible for collection before the kernel uses it.
func rawAddrToSockaddr(a RawAddr) (unsafe.Pointer, uint32) {
	if a.Family == 6 {
		sa := &unix.RawSockaddrInet6{
			Family: unix.AF_INET6,
			Addr:   a.Addr6,
		}
		sa.Port = htons(a.Port)
		sa.Scope_id = a.Zone
		return unsafe.Pointer(sa), uint32(unsafe.Sizeof(*sa))
	}
	sa := &unix.RawSockaddrInet4{
		Family: unix.AF_INET,
		Addr:   a.Addr4,
	}
	sa.Port = htons(a.Port)
	return unsafe.Pointer(sa), uint32(unsafe.Sizeof(*sa))
}

func htons(port uint16) uint16 {
	return (port << 8) | (port >> 8)
}
