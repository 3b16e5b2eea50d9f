//go:build darwin

package reactor

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/ah/internal/errkind"
)

// kqueue is readiness-based, not completion-based: Submit only records
// what the caller wants to happen and registers interest; the actual
// accept/read/write/connect-check syscall runs once kqueue reports the
// fd ready, inside WaitForCompletions. This mirrors the dispatch-on-
// readiness shape of a classic reactor loop (accept/read/write performed
// from the poll callback, not the registration call).
type pendKey struct {
	fd     int
	filter int16
}

type darwinBackend struct {
	kq      int
	changes []unix.Kevent_t
	pending map[pendKey]Submission
	byUser  map[uint64]pendKey
	ready   []Completion
}

func newBackend() (Backend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("reactor: kqueue: %w", err)
	}
	return &darwinBackend{
		kq:      kq,
		pending: make(map[pendKey]Submission),
		byUser:  make(map[uint64]pendKey),
	}, nil
}

func (b *darwinBackend) Close() error {
	return unix.Close(b.kq)
}

func (b *darwinBackend) registerPending(op Submission, filter int16) {
	key := pendKey{fd: op.Fd, filter: filter}
	b.pending[key] = op
	b.byUser[op.UserData] = key
	b.changes = append(b.changes, unix.Kevent_t{
		Ident:  uint64(op.Fd),
		Filter: filter,
		Flags:  unix.EV_ADD | unix.EV_ONESHOT,
	})
}

func (b *darwinBackend) takePending(fd int, filter int16) (Submission, bool) {
	key := pendKey{fd: fd, filter: filter}
	op, ok := b.pending[key]
	if ok {
		delete(b.pending, key)
		delete(b.byUser, op.UserData)
	}
	return op, ok
}

func (b *darwinBackend) Submit(op Submission) error {
	switch op.Kind {
	case OpAccept:
		b.registerPending(op, unix.EVFILT_READ)
	case OpRead:
		b.registerPending(op, unix.EVFILT_READ)
	case OpWrite:
		b.registerPending(op, unix.EVFILT_WRITE)
	case OpConnect:
		err := unix.Connect(op.Fd, rawAddrToSockaddr(op.Addr))
		if err == nil {
			b.ready = append(b.ready, Completion{UserData: op.UserData, Kind: errkind.Ok})
			return nil
		}
		if err != unix.EINPROGRESS {
			b.ready = append(b.ready, errCompletion(op.UserData, err))
			return nil
		}
		b.registerPending(op, unix.EVFILT_WRITE)
	case OpClose:
		if err := unix.Close(op.Fd); err != nil {
			b.ready = append(b.ready, errCompletion(op.UserData, err))
		} else {
			b.ready = append(b.ready, Completion{UserData: op.UserData, Kind: errkind.Ok})
		}
	case OpShutdown:
		if err := unix.Shutdown(op.Fd, int(op.How)); err != nil {
			b.ready = append(b.ready, errCompletion(op.UserData, err))
		} else {
			b.ready = append(b.ready, Completion{UserData: op.UserData, Kind: errkind.Ok})
		}
	case OpCancel:
		if key, ok := b.byUser[op.CancelID]; ok {
			delete(b.pending, key)
			delete(b.byUser, op.CancelID)
			b.changes = append(b.changes, unix.Kevent_t{Ident: uint64(key.fd), Filter: key.filter, Flags: unix.EV_DELETE})
		}
	default:
		return fmt.Errorf("reactor: unknown submission kind %d", op.Kind)
	}
	return nil
}

// Flush is a no-op: pending kevent registrations ride along as the
// changelist argument of the next Kevent call in WaitForCompletions.
func (b *darwinBackend) Flush() error { return nil }

func (b *darwinBackend) WaitForCompletions(timeoutMillis int) ([]Completion, error) {
	out := append([]Completion(nil), b.ready...)
	b.ready = b.ready[:0]

	events := make([]unix.Kevent_t, 64)
	var ts *unix.Timespec
	if timeoutMillis >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMillis) * int64(time.Millisecond))
		ts = &t
	}

	n, err := unix.Kevent(b.kq, b.changes, events, ts)
	b.changes = b.changes[:0]
	if err != nil && err != unix.EINTR {
		return out, fmt.Errorf("reactor: kevent: %w", err)
	}

	for i := 0; i < n; i++ {
		ev := events[i]
		op, ok := b.takePending(int(ev.Ident), ev.Filter)
		if !ok {
			continue
		}
		out = append(out, b.perform(op))
	}
	return out, nil
}

func (b *darwinBackend) perform(op Submission) Completion {
	switch op.Kind {
	case OpAccept:
		nfd, _, err := unix.Accept(op.Fd)
		if err != nil {
			return errCompletion(op.UserData, err)
		}
		_ = unix.SetNonblock(nfd, true)
		return Completion{UserData: op.UserData, Result: nfd, Kind: errkind.Ok}
	case OpRead:
		n, err := unix.Read(op.Fd, op.Buf)
		if err != nil {
			return errCompletion(op.UserData, err)
		}
		return Completion{UserData: op.UserData, Result: n, Kind: errkind.Ok}
	case OpWrite:
		n, err := unix.Write(op.Fd, op.Buf)
		if err != nil {
			return errCompletion(op.UserData, err)
		}
		return Completion{UserData: op.UserData, Result: n, Kind: errkind.Ok}
	case OpConnect:
		errno, gerr := unix.GetsockoptInt(op.Fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if gerr != nil {
			return errCompletion(op.UserData, gerr)
		}
		if errno != 0 {
			return errCompletion(op.UserData, unix.Errno(errno))
		}
		return Completion{UserData: op.UserData, Kind: errkind.Ok}
	default:
		return Completion{UserData: op.UserData, Result: -1, Kind: errkind.Internal}
	}
}

func errCompletion(userData uint64, err error) Completion {
	errno, ok := err.(unix.Errno)
	if !ok {
		return Completion{UserData: userData, Result: -1, Kind: errkind.Internal}
	}
	return Completion{UserData: userData, Result: -int(errno), Kind: errkind.FromErrno(errno)}
}

func rawAddrToSockaddr(a RawAddr) unix.Sockaddr {
	if a.Family == 6 {
		return &unix.SockaddrInet6{Port: int(a.Port), ZoneId: a.Zone, Addr: a.Addr6}
	}
	return &unix.SockaddrInet4{Port: int(a.Port), Addr: a.Addr4}
}
