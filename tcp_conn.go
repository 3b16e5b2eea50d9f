package ah

// connState is the TCP connection state machine (spec §3/§4.8), playing
// the role of the teacher's per-tag TagState enum in runner.go.
type connState int

const (
	connTerminated connState = iota
	connInitialized
	connClosing
	connClosed
	connOpen
	connConnecting
	connConnected
	connReading
)

// ShutdownFlags is a two-bit field: which half(s) of a connection have
// been half-closed without terminating the connection record.
type ShutdownFlags uint8

const (
	ShutdownNone  ShutdownFlags = 0
	ShutdownFlagRd ShutdownFlags = 1 << 0
	ShutdownFlagWr ShutdownFlags = 1 << 1
	ShutdownFlagRdWr = ShutdownFlagRd | ShutdownFlagWr
)

// ConnObserver receives lifecycle and I/O events for one TCPConn. All
// callbacks run synchronously on the goroutine executing (*Loop).RunUntil.
type ConnObserver interface {
	OnOpen(c *TCPConn, err error)
	OnConnect(c *TCPConn, err error)
	OnRead(c *TCPConn, in *InputBuffer, err error)
	OnWrite(c *TCPConn, out *OutputDescriptor, err error)
	OnClose(c *TCPConn, err error)
}

// writeNode is one entry of the connection's write queue, a singly linked
// FIFO built the way the teacher threads per-tag state in runner.go rather
// than through a channel or container/list. Each Write allocates one node.
type writeNode struct {
	desc *OutputDescriptor
	next *writeNode
}

// TCPConn is a per-connection state machine: owns a loop reference, a
// transport, an observer, an optional owning slab pointer (set for
// accepted connections), a current input buffer, shutdown flags, state
// and platform fd.
type TCPConn struct {
	loop      *Loop
	transport Transport
	observer  ConnObserver

	owningSlab *connSlab // non-nil only for accepted connections
	slabSlot   int

	fd       int
	isIPv6   bool
	state    connState
	shutdown ShutdownFlags

	input *InputBuffer

	writeHead *writeNode
	writeTail *writeNode
	writeInFlight bool
}

// NewTCPConn returns a connection in TCPConn's Terminated state, ready for
// Init. Most callers use (*TCPListener) or call Init directly.
func NewTCPConn() *TCPConn {
	return &TCPConn{state: connTerminated, fd: -1}
}

// State exposes the connection's state for tests and diagnostics.
func (c *TCPConn) State() string {
	switch c.state {
	case connTerminated:
		return "terminated"
	case connInitialized:
		return "initialized"
	case connClosing:
		return "closing"
	case connClosed:
		return "closed"
	case connOpen:
		return "open"
	case connConnecting:
		return "connecting"
	case connConnected:
		return "connected"
	case connReading:
		return "reading"
	default:
		return "unknown"
	}
}

// Init transitions Terminated -> Initialized, binding the connection to a
// loop, transport and observer.
func (c *TCPConn) Init(loop *Loop, transport Transport, observer ConnObserver) error {
	if c.state != connTerminated {
		return NewError("conn.init", KindState, "connection is not Terminated")
	}
	if loop == nil || transport == nil || observer == nil {
		return NewError("conn.init", KindInvalid, "loop, transport and observer are required")
	}
	c.loop = loop
	c.transport = transport
	c.observer = observer
	c.state = connInitialized
	return nil
}

// Open asks the OS to bind the underlying socket to localAddr. Valid from
// Initialized; on success the state becomes Open. OnOpen fires
// synchronously, before Open returns, with the bind result (no kernel
// completion is involved in bind(2) itself); it is not deferred to the
// loop.
func (c *TCPConn) Open(localAddr SockAddr) error {
	if c.state != connInitialized {
		return NewError("conn.open", KindState, "connection is not Initialized")
	}
	c.isIPv6 = localAddr.Family == FamilyIPv6
	fd, err := c.transport.Bind(c.loop, localAddr.Family, localAddr)
	if err != nil {
		c.observer.OnOpen(c, err)
		return err
	}
	c.fd = fd
	c.state = connOpen
	c.observer.OnOpen(c, nil)
	return nil
}

// Connect moves Open -> Connecting and submits a connect to remoteAddr.
// On success the state becomes Connected; receiving is not automatically
// enabled (call ReadStart).
func (c *TCPConn) Connect(remoteAddr SockAddr) error {
	if c.state != connOpen {
		return NewError("conn.connect", KindState, "connection is not Open")
	}
	c.state = connConnecting
	err := c.transport.Connect(c.loop, c.fd, remoteAddr, func(result int, kind Kind) {
		if kind != KindOk {
			c.state = connOpen
			c.observer.OnConnect(c, NewError("conn.connect", kind, "connect failed"))
			return
		}
		c.state = connConnected
		c.observer.OnConnect(c, nil)
	})
	if err != nil {
		c.state = connOpen
		return err
	}
	return nil
}

// ReadStart transitions Connected (with rd unshut) -> Reading and submits
// the first recv.
func (c *TCPConn) ReadStart() error {
	if c.state != connConnected {
		return NewError("conn.read_start", KindState, "connection is not Connected")
	}
	if c.shutdown&ShutdownFlagRd != 0 {
		return NewError("conn.read_start", KindState, "read side already shut down")
	}
	c.state = connReading
	return c.ensureInputAndSubmitRead()
}

// ReadStop returns Reading -> Connected; a no-op if already Connected.
func (c *TCPConn) ReadStop() error {
	if c.state == connConnected {
		return nil
	}
	if c.state != connReading {
		return NewError("conn.read_stop", KindState, "connection is not Reading")
	}
	c.state = connConnected
	return nil
}

func (c *TCPConn) ensureInputAndSubmitRead() error {
	if c.input == nil {
		page, err := allocInputPage()
		if err != nil {
			c.observer.OnRead(c, nil, NewError("conn.read_start", KindNoMem, "input buffer allocation failed"))
			return nil
		}
		c.input = newInputBuffer(page, c)
	}
	if c.input.cursor.WriteLen() == 0 {
		// Observer left the buffer full without consuming, repacking or
		// detaching it: the next arrival must surface Overflow.
		c.observer.OnRead(c, c.input, NewError("conn.read", KindOverflow, "input buffer full"))
		return nil
	}
	buf := c.input.cursor.Writable()
	return c.transport.Read(c.loop, c.fd, buf, func(result int, kind Kind) {
		c.onReadCompletion(result, kind)
	})
}

func (c *TCPConn) onReadCompletion(n int, kind Kind) {
	if c.state != connReading {
		return
	}
	if kind == KindCancelled {
		c.observer.OnRead(c, c.input, NewError("conn.read", KindCancelled, "cancelled"))
		return
	}
	if kind != KindOk {
		c.observer.OnRead(c, c.input, NewError("conn.read", kind, "read failed"))
		return
	}
	if n == 0 {
		c.shutdown |= ShutdownFlagRd
		c.observer.OnRead(c, c.input, NewError("conn.read", KindEof, "peer closed"))
		return
	}
	c.input.cursor.Advance(n)
	c.observer.OnRead(c, c.input, nil)
	if c.state == connReading {
		_ = c.ensureInputAndSubmitRead()
	}
}

// DetachInput replaces the connection's current input buffer with a fresh
// page, returning the old one to the caller. If the fresh page cannot be
// allocated, OnRead fires with KindNoMem and the caller must close.
func (c *TCPConn) DetachInput() *InputBuffer {
	old := c.input
	if old == nil {
		return nil
	}
	old.Detach()
	page, err := allocInputPage()
	if err != nil {
		c.input = nil
		c.observer.OnRead(c, nil, NewError("conn.detach", KindNoMem, "input buffer allocation failed"))
		return old
	}
	c.input = newInputBuffer(page, c)
	return old
}

// RepackInput moves unread bytes in the current input buffer to the start
// of its region, freeing write space without reallocating.
func (c *TCPConn) RepackInput() {
	if c.input != nil {
		c.input.cursor.Repack()
	}
}

// Write is valid when writes are permitted (state in {Connected, Reading}
// and the wr shutdown bit is clear). out is appended to the write queue;
// at most one write is ever in flight.
func (c *TCPConn) Write(out *OutputDescriptor) error {
	if !c.writesPermitted() {
		return NewError("conn.write", KindState, "writes are not permitted in this state")
	}
	node := &writeNode{desc: poolIfOversized(out)}
	if c.writeTail == nil {
		c.writeHead = node
		c.writeTail = node
	} else {
		c.writeTail.next = node
		c.writeTail = node
	}
	if !c.writeInFlight {
		return c.submitNextWrite()
	}
	return nil
}

func (c *TCPConn) writesPermitted() bool {
	if c.state != connConnected && c.state != connReading {
		return false
	}
	return c.shutdown&ShutdownFlagWr == 0
}

func (c *TCPConn) submitNextWrite() error {
	if c.writeHead == nil {
		c.writeInFlight = false
		return nil
	}
	c.writeInFlight = true
	node := c.writeHead
	return c.transport.Write(c.loop, c.fd, node.desc.Remaining(), func(n int, kind Kind) {
		c.onWriteCompletion(node, n, kind)
	})
}

func (c *TCPConn) onWriteCompletion(node *writeNode, n int, kind Kind) {
	if kind != KindOk {
		c.dequeueWrite(node, NewError("conn.write", kind, "write failed"))
		_ = c.submitNextWrite()
		return
	}
	if n == 0 && len(node.desc.Remaining()) > 0 {
		c.dequeueWrite(node, NewError("conn.write", KindNoBufs, "zero-byte write completion"))
		_ = c.submitNextWrite()
		return
	}
	node.desc.off += n
	if len(node.desc.Remaining()) > 0 {
		// Partial write: re-submit for the unsent tail before on_write
		// fires.
		_ = c.transport.Write(c.loop, c.fd, node.desc.Remaining(), func(n int, kind Kind) {
			c.onWriteCompletion(node, n, kind)
		})
		return
	}
	c.dequeueWrite(node, nil)
	_ = c.submitNextWrite()
}

func (c *TCPConn) dequeueWrite(node *writeNode, err error) {
	if c.writeHead == node {
		c.writeHead = node.next
		if c.writeHead == nil {
			c.writeTail = nil
		}
	}
	node.desc.release()
	c.observer.OnWrite(c, node.desc, err)
}

// Shutdown sets the corresponding shutdown-flag bit(s) and signals the OS
// to half-close. Idempotent. A fully shut-down connection is still Open in
// the state-machine sense; only Close frees it.
func (c *TCPConn) Shutdown(flags ShutdownFlags) error {
	if c.state == connClosed || c.state == connTerminated {
		return NewError("conn.shutdown", KindState, "connection is Closed or Terminated")
	}
	already := c.shutdown
	c.shutdown |= flags
	if already == c.shutdown {
		return nil // idempotent: no new bits set
	}
	how := ShutdownRdWr
	switch c.shutdown {
	case ShutdownFlagRd:
		how = ShutdownRd
	case ShutdownFlagWr:
		how = ShutdownWr
	}
	return c.transport.Shutdown(c.loop, c.fd, how, func(int, Kind) {})
}

// Close transitions any non-Closed state through Closing to Closed,
// emitting on_close. Idempotent: a second call returns KindState without
// re-emitting on_close.
func (c *TCPConn) Close() error {
	if c.state == connClosed || c.state == connClosing {
		return NewError("conn.close", KindState, "already Closed or Closing")
	}
	c.state = connClosing
	fd := c.fd
	return c.transport.Close(c.loop, fd, func(result int, kind Kind) {
		c.state = connClosed
		var err error
		if kind != KindOk {
			err = NewError("conn.close", kind, "close failed")
		}
		c.observer.OnClose(c, err)
	})
}

// Term is valid from Closed; it returns ownership to the caller's storage
// and, for an accepted connection, frees the slab slot in the owning
// listener.
func (c *TCPConn) Term() error {
	if c.state != connClosed {
		return NewError("conn.term", KindState, "connection is not Closed")
	}
	if c.input != nil {
		freeInputPage(c.input.page)
		c.input = nil
	}
	if c.owningSlab != nil {
		c.owningSlab.release(c.slabSlot)
		c.owningSlab = nil
	}
	c.state = connTerminated
	return nil
}
