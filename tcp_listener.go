package ah

import (
	"unsafe"

	"github.com/ehrlich-b/ah/internal/memalloc"
)

// connSlab is the listener's per-accepted-connection storage: an
// arena+index over Go-managed *TCPConn values (GC-safe — unlike completion
// closures, storing a *TCPConn in a plain map costs nothing extra and
// avoids putting Go pointers inside manually managed memory), paired with
// a memalloc.Slab issuing one small opaque slot per accepted connection so
// the slab's reference-counted teardown (spec §4.3/§4.9) is exercised for
// real: the listener holds the slab's founding reference, each accepted
// connection holds one more, and the slab's banks are only returned to the
// page allocator once the listener and every connection it bore have
// released theirs.
type connSlab struct {
	slab      *memalloc.Slab
	slots     map[int]unsafe.Pointer
	conns     map[int]*TCPConn
	nextIndex int
}

func newConnSlab() *connSlab {
	return &connSlab{
		slab:  memalloc.NewSlab(ptrSlotSize),
		slots: make(map[int]unsafe.Pointer),
		conns: make(map[int]*TCPConn),
	}
}

const ptrSlotSize = 8

func (s *connSlab) acquire(c *TCPConn) (int, error) {
	ptr, err := s.slab.Alloc()
	if err != nil {
		return -1, WrapError("listener.accept", err)
	}
	s.slab.Ref()
	idx := s.nextIndex
	s.nextIndex++
	s.slots[idx] = ptr
	s.conns[idx] = c
	return idx, nil
}

func (s *connSlab) release(idx int) {
	ptr, ok := s.slots[idx]
	if !ok {
		return
	}
	delete(s.slots, idx)
	delete(s.conns, idx)
	s.slab.Free(ptr)
	s.slab.Term(nil)
}

// term releases the listener's own founding reference; banks are returned
// to the page allocator once every accepted connection has also released
// its reference via release().
func (s *connSlab) term() {
	s.slab.Term(nil)
}

// listenerState is the TCPListener lifecycle state machine (spec §3/§4.9).
type listenerState int

const (
	listenerTerminated listenerState = iota
	listenerInitialized
	listenerClosing
	listenerClosed
	listenerOpen
	listenerListening
)

// AcceptInfo is reported to ListenerObserver.OnAccept: the new connection,
// its remote address, and a slot the observer must populate with an
// observer for the new connection before returning, or the accept is
// rejected and State is reported to the listener.
type AcceptInfo struct {
	Conn       *TCPConn
	RemoteAddr SockAddr
	Observer   ConnObserver // must be set by the callback before it returns
}

// ListenerObserver receives lifecycle and accept events for one
// TCPListener.
type ListenerObserver interface {
	OnOpen(l *TCPListener, err error)
	OnAccept(l *TCPListener, info *AcceptInfo)
	OnClose(l *TCPListener, err error)
}

// TCPListener owns a loop reference, transport, observer, per-connection
// slab, address family flag, state and platform fd. It keeps exactly one
// accept outstanding at a time.
type TCPListener struct {
	loop      *Loop
	transport Transport
	observer  ListenerObserver

	conns  *connSlab
	isIPv6 bool
	state  listenerState
	fd     int
}

// NewTCPListener returns a listener in Terminated state.
func NewTCPListener() *TCPListener {
	return &TCPListener{state: listenerTerminated, fd: -1}
}

// Init transitions Terminated -> Initialized, creating the per-connection
// slab.
func (l *TCPListener) Init(loop *Loop, transport Transport, observer ListenerObserver) error {
	if l.state != listenerTerminated {
		return NewError("listener.init", KindState, "listener is not Terminated")
	}
	if loop == nil || transport == nil || observer == nil {
		return NewError("listener.init", KindInvalid, "loop, transport and observer are required")
	}
	l.loop = loop
	l.transport = transport
	l.observer = observer
	l.conns = newConnSlab()
	l.state = listenerInitialized
	return nil
}

// Open binds to laddr. Valid from Initialized.
func (l *TCPListener) Open(laddr SockAddr) error {
	if l.state != listenerInitialized {
		return NewError("listener.open", KindState, "listener is not Initialized")
	}
	l.isIPv6 = laddr.Family == FamilyIPv6
	fd, err := l.transport.Bind(l.loop, laddr.Family, laddr)
	if err != nil {
		l.observer.OnOpen(l, err)
		return err
	}
	l.fd = fd
	l.state = listenerOpen
	l.observer.OnOpen(l, nil)
	return nil
}

// Listen submits a listen and an accept; thereafter every completed accept
// allocates a connection slot, asks the transport to prepare an inner
// transport for it, reports on_accept, and immediately submits another
// accept.
func (l *TCPListener) Listen(backlog int) error {
	if l.state != listenerOpen {
		return NewError("listener.listen", KindState, "listener is not Open")
	}
	if backlog == 0 {
		backlog = DefaultBacklog
	}
	if backlog > MaxBacklog {
		backlog = MaxBacklog
	}
	if err := l.transport.Listen(l.fd, backlog); err != nil {
		return err
	}
	l.state = listenerListening
	return l.submitAccept()
}

// LocalAddr returns the address the listener's socket is bound to,
// resolving any ephemeral port-0 request to the port the OS actually
// assigned.
func (l *TCPListener) LocalAddr() (SockAddr, error) {
	family := FamilyIPv4
	if l.isIPv6 {
		family = FamilyIPv6
	}
	return localAddr(l.fd, family)
}

func (l *TCPListener) submitAccept() error {
	return l.transport.Accept(l.loop, l.fd, func(result int, kind Kind) {
		l.onAcceptCompletion(result, kind)
	})
}

func (l *TCPListener) onAcceptCompletion(acceptedFd int, kind Kind) {
	if l.state != listenerListening {
		return
	}
	if kind != KindOk {
		// A failed accept leaves the listener listening unless the error
		// is terminal; we treat every accept error as non-terminal here
		// and simply resubmit.
		_ = l.submitAccept()
		return
	}

	inner, err := l.transport.PrepareAccept(l)
	if err != nil {
		_ = l.transport.Close(l.loop, acceptedFd, func(int, Kind) {})
		_ = l.submitAccept()
		return
	}

	conn := &TCPConn{
		loop:      l.loop,
		transport: inner,
		fd:        acceptedFd,
		isIPv6:    l.isIPv6,
		state:     connConnected,
	}
	idx, err := l.conns.acquire(conn)
	if err != nil {
		_ = inner.Close(l.loop, acceptedFd, func(int, Kind) {})
		_ = l.submitAccept()
		return
	}
	conn.owningSlab = l.conns
	conn.slabSlot = idx

	remote, _ := peerAddr(acceptedFd, l.isIPv6)
	info := &AcceptInfo{Conn: conn, RemoteAddr: remote}
	l.observer.OnAccept(l, info)
	if info.Observer == nil {
		l.conns.release(idx)
		_ = inner.Close(l.loop, acceptedFd, func(int, Kind) {})
		l.observer.OnClose(l, NewError("listener.accept", KindState, "observer not set before handler returned"))
		_ = l.submitAccept()
		return
	}
	conn.observer = info.Observer
	_ = l.submitAccept()
}

// Close is valid from any non-Closed state; emits on_close. Accepted
// connections still open are unaffected.
func (l *TCPListener) Close() error {
	if l.state == listenerClosed {
		return NewError("listener.close", KindState, "already Closed")
	}
	l.state = listenerClosing
	fd := l.fd
	return l.transport.Close(l.loop, fd, func(result int, kind Kind) {
		l.state = listenerClosed
		var err error
		if kind != KindOk {
			err = NewError("listener.close", kind, "close failed")
		}
		l.observer.OnClose(l, err)
	})
}

// Term is valid from Closed; releases the connection slab's founding
// reference. Accepted connections still alive hold their own reference
// and delay actual bank release until they close.
func (l *TCPListener) Term() error {
	if l.state != listenerClosed {
		return NewError("listener.term", KindState, "listener is not Closed")
	}
	l.conns.term()
	l.state = listenerTerminated
	return nil
}

// SetKeepalive/SetNodelay/SetReuseaddr forward to the OS socket options on
// the listening fd.
func (l *TCPListener) SetKeepalive(on bool) error { return l.transport.SetKeepalive(l.fd, on) }
func (l *TCPListener) SetNodelay(on bool) error   { return l.transport.SetNodelay(l.fd, on) }
func (l *TCPListener) SetReuseaddr(on bool) error { return l.transport.SetReuseaddr(l.fd, on) }
