package ah

import (
	"github.com/ehrlich-b/ah/internal/logging"
	"github.com/ehrlich-b/ah/internal/reactor"
)

// ShutdownHow mirrors the POSIX shutdown(2) how argument, re-exported so
// callers never import internal/reactor directly.
type ShutdownHow = reactor.ShutdownHow

const (
	ShutdownRd   = reactor.ShutdownRd
	ShutdownWr   = reactor.ShutdownWr
	ShutdownRdWr = reactor.ShutdownRdWr
)

// CompletionFunc receives the outcome of one submitted operation: bytes
// transferred (or accepted fd, for OpAccept) and the mapped Kind. A
// cancelled operation is reported as KindCancelled; there is no separate
// cancelled flag.
type CompletionFunc func(result int, kind Kind)

// Transport is the vtable TCP connection/listener operations pass through
// (spec §4.7). Address queries are not part of it: TCPListener.LocalAddr
// and the remote address reported for an accepted connection are read
// from the platform socket directly. Implementations may stack: a wrapping transport
// stores an inner Transport and delegates, as LoggingTransport does below.
// The default implementation (NewDefaultTransport) invokes internal/reactor
// directly.
type Transport interface {
	// Bind creates the underlying socket and binds it to laddr, returning
	// its file descriptor.
	Bind(loop *Loop, family Family, laddr SockAddr) (fd int, err error)
	// Connect submits a connect to raddr on fd; done fires on completion.
	Connect(loop *Loop, fd int, raddr SockAddr, done CompletionFunc) error
	// Read submits one recv into buf; done fires on completion with the
	// byte count read (0 means EOF).
	Read(loop *Loop, fd int, buf []byte, done CompletionFunc) error
	// Write submits one send of buf; done fires on completion with the
	// byte count actually sent.
	Write(loop *Loop, fd int, buf []byte, done CompletionFunc) error
	// Shutdown half-closes fd per how; done fires on completion.
	Shutdown(loop *Loop, fd int, how ShutdownHow, done CompletionFunc) error
	// Close closes fd; done fires on completion.
	Close(loop *Loop, fd int, done CompletionFunc) error
	// Listen marks a bound fd as listening with the given backlog.
	Listen(fd int, backlog int) error
	// Accept submits one accept on the listening fd; done's result is the
	// accepted connection's fd.
	Accept(loop *Loop, fd int, done CompletionFunc) error
	// SetKeepalive/SetNodelay/SetReuseaddr forward to the OS socket options.
	SetKeepalive(fd int, on bool) error
	SetNodelay(fd int, on bool) error
	SetReuseaddr(fd int, on bool) error
	// PrepareAccept is invoked by the listener before reporting a newly
	// accepted connection upward; it supplies the Transport instance the
	// accepted connection will use. The default transport returns itself.
	PrepareAccept(listener *TCPListener) (Transport, error)
}

// defaultTransport invokes internal/reactor directly; it is the bottom of
// any transport stack.
type defaultTransport struct{}

// NewDefaultTransport returns the Transport that talks to the platform
// completion facility directly, with no intermediary.
func NewDefaultTransport() Transport { return defaultTransport{} }

func (defaultTransport) Bind(loop *Loop, family Family, laddr SockAddr) (int, error) {
	fd, err := createSocket(family)
	if err != nil {
		return -1, err
	}
	if err := bindSocket(fd, laddr); err != nil {
		_ = closeSocket(fd)
		return -1, err
	}
	return fd, nil
}

func (defaultTransport) Connect(loop *Loop, fd int, raddr SockAddr, done CompletionFunc) error {
	return loop.submit(reactor.Submission{Kind: reactor.OpConnect, Fd: fd, Addr: toRawAddr(raddr)}, wrap(done))
}

func (defaultTransport) Read(loop *Loop, fd int, buf []byte, done CompletionFunc) error {
	return loop.submit(reactor.Submission{Kind: reactor.OpRead, Fd: fd, Buf: buf}, wrap(done))
}

func (defaultTransport) Write(loop *Loop, fd int, buf []byte, done CompletionFunc) error {
	return loop.submit(reactor.Submission{Kind: reactor.OpWrite, Fd: fd, Buf: buf}, wrap(done))
}

func (defaultTransport) Shutdown(loop *Loop, fd int, how ShutdownHow, done CompletionFunc) error {
	return loop.submit(reactor.Submission{Kind: reactor.OpShutdown, Fd: fd, How: how}, wrap(done))
}

func (defaultTransport) Close(loop *Loop, fd int, done CompletionFunc) error {
	return loop.submit(reactor.Submission{Kind: reactor.OpClose, Fd: fd}, wrap(done))
}

func (defaultTransport) Listen(fd int, backlog int) error {
	return listenSocket(fd, backlog)
}

func (defaultTransport) Accept(loop *Loop, fd int, done CompletionFunc) error {
	return loop.submit(reactor.Submission{Kind: reactor.OpAccept, Fd: fd}, wrap(done))
}

func (defaultTransport) SetKeepalive(fd int, on bool) error { return setKeepalive(fd, on) }
func (defaultTransport) SetNodelay(fd int, on bool) error   { return setNodelay(fd, on) }
func (defaultTransport) SetReuseaddr(fd int, on bool) error { return setReuseaddr(fd, on) }

func (defaultTransport) PrepareAccept(listener *TCPListener) (Transport, error) {
	return defaultTransport{}, nil
}

func wrap(done CompletionFunc) func(reactor.Completion) {
	return func(c reactor.Completion) {
		done(c.Result, c.Kind)
	}
}

func toRawAddr(a SockAddr) reactor.RawAddr {
	return reactor.RawAddr{
		Family: byte(a.Family),
		Port:   a.Port,
		Addr4:  a.Addr4,
		Addr6:  a.Addr6,
		Zone:   a.ZoneID,
	}
}

// LoggingTransport wraps another Transport and logs every operation at
// Debug level before delegating, the shape the teacher's own
// internal/logging calls sprinkled through runner.go/control.go would take
// if its ring were made pluggable.
type LoggingTransport struct {
	Inner  Transport
	Logger *logging.Logger
}

// NewLoggingTransport wraps inner, logging through logger (or the package
// default logger if nil).
func NewLoggingTransport(inner Transport, logger *logging.Logger) *LoggingTransport {
	if logger == nil {
		logger = logging.Default()
	}
	return &LoggingTransport{Inner: inner, Logger: logger}
}

func (t *LoggingTransport) Bind(loop *Loop, family Family, laddr SockAddr) (int, error) {
	t.Logger.Debugf("transport bind family=%d addr=%s", family, laddr.Stringify())
	return t.Inner.Bind(loop, family, laddr)
}

func (t *LoggingTransport) Connect(loop *Loop, fd int, raddr SockAddr, done CompletionFunc) error {
	t.Logger.Debugf("transport connect fd=%d addr=%s", fd, raddr.Stringify())
	return t.Inner.Connect(loop, fd, raddr, done)
}

func (t *LoggingTransport) Read(loop *Loop, fd int, buf []byte, done CompletionFunc) error {
	t.Logger.Debugf("transport read fd=%d cap=%d", fd, len(buf))
	return t.Inner.Read(loop, fd, buf, done)
}

func (t *LoggingTransport) Write(loop *Loop, fd int, buf []byte, done CompletionFunc) error {
	t.Logger.Debugf("transport write fd=%d len=%d", fd, len(buf))
	return t.Inner.Write(loop, fd, buf, done)
}

func (t *LoggingTransport) Shutdown(loop *Loop, fd int, how ShutdownHow, done CompletionFunc) error {
	t.Logger.Debugf("transport shutdown fd=%d how=%d", fd, how)
	return t.Inner.Shutdown(loop, fd, how, done)
}

func (t *LoggingTransport) Close(loop *Loop, fd int, done CompletionFunc) error {
	t.Logger.Debugf("transport close fd=%d", fd)
	return t.Inner.Close(loop, fd, done)
}

func (t *LoggingTransport) Listen(fd int, backlog int) error {
	t.Logger.Debugf("transport listen fd=%d backlog=%d", fd, backlog)
	return t.Inner.Listen(fd, backlog)
}

func (t *LoggingTransport) Accept(loop *Loop, fd int, done CompletionFunc) error {
	t.Logger.Debugf("transport accept fd=%d", fd)
	return t.Inner.Accept(loop, fd, done)
}

func (t *LoggingTransport) SetKeepalive(fd int, on bool) error { return t.Inner.SetKeepalive(fd, on) }
func (t *LoggingTransport) SetNodelay(fd int, on bool) error   { return t.Inner.SetNodelay(fd, on) }
func (t *LoggingTransport) SetReuseaddr(fd int, on bool) error { return t.Inner.SetReuseaddr(fd, on) }

func (t *LoggingTransport) PrepareAccept(listener *TCPListener) (Transport, error) {
	inner, err := t.Inner.PrepareAccept(listener)
	if err != nil {
		return nil, err
	}
	return NewLoggingTransport(inner, t.Logger), nil
}

var (
	_ Transport = defaultTransport{}
	_ Transport = (*LoggingTransport)(nil)
)
