package ah

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingListenerObserver struct {
	opened  []error
	accepts []*AcceptInfo
	closed  []error
}

func (o *recordingListenerObserver) OnOpen(l *TCPListener, err error) {
	o.opened = append(o.opened, err)
}
func (o *recordingListenerObserver) OnAccept(l *TCPListener, info *AcceptInfo) {
	// A real observer must populate Observer before returning; tests then
	// swap in their own recorder directly on the returned Conn.
	info.Observer = &recordingConnObserver{}
	o.accepts = append(o.accepts, info)
}
func (o *recordingListenerObserver) OnClose(l *TCPListener, err error) {
	o.closed = append(o.closed, err)
}

func newTestListener(t *testing.T, mt *MockTransport, obs ListenerObserver) (*TCPListener, int) {
	t.Helper()
	loop := &Loop{}
	l := NewTCPListener()
	require.NoError(t, l.Init(loop, mt, obs))
	require.NoError(t, l.Open(IPv4Wildcard(0)))
	return l, l.fd
}

func TestTCPListenerAcceptFlow(t *testing.T) {
	mt := NewMockTransport()
	lobs := &recordingListenerObserver{}
	listener, listenFd := newTestListener(t, mt, lobs)
	require.Len(t, lobs.opened, 1)
	require.NoError(t, lobs.opened[0])

	require.NoError(t, listener.Listen(DefaultBacklog))

	acceptedFd, _ := mt.Bind(nil, FamilyIPv4, IPv4Loopback(0))
	mt.PushAccept(listenFd, acceptedFd)

	require.Len(t, lobs.accepts, 1)
	info := lobs.accepts[0]
	require.NotNil(t, info.Conn)

	connObs := &recordingConnObserver{}
	info.Conn.observer = connObs // swap in the test's recorder for inspection
	require.NoError(t, info.Conn.ReadStart())

	mt.PushRead(acceptedFd, []byte("ping"))
	require.Len(t, connObs.reads, 1)
	require.Equal(t, "ping", string(connObs.reads[0]))

	// A new accept must already be outstanding for the next connection.
	acceptedFd2, _ := mt.Bind(nil, FamilyIPv4, IPv4Loopback(0))
	mt.PushAccept(listenFd, acceptedFd2)
	require.Len(t, lobs.accepts, 2)
}

func TestTCPListenerRejectedAcceptClosesSocket(t *testing.T) {
	mt := NewMockTransport()
	lobs := &rejectingListenerObserver{}
	listener, listenFd := newTestListener(t, mt, lobs)
	require.NoError(t, listener.Listen(DefaultBacklog))

	acceptedFd, _ := mt.Bind(nil, FamilyIPv4, IPv4Loopback(0))
	mt.PushAccept(listenFd, acceptedFd)

	require.Len(t, lobs.closed, 1, "listener must report on_close when its observer refuses an accept")
	require.Error(t, lobs.closed[0])
	require.True(t, IsKind(lobs.closed[0], KindState))

	// The listener must keep accepting afterwards.
	acceptedFd2, _ := mt.Bind(nil, FamilyIPv4, IPv4Loopback(0))
	mt.PushAccept(listenFd, acceptedFd2)
	require.Len(t, lobs.closed, 2)
}

// rejectingListenerObserver never sets info.Observer, simulating a
// misbehaving caller.
type rejectingListenerObserver struct {
	closed []error
}

func (o *rejectingListenerObserver) OnOpen(l *TCPListener, err error) {}
func (o *rejectingListenerObserver) OnAccept(l *TCPListener, info *AcceptInfo) {}
func (o *rejectingListenerObserver) OnClose(l *TCPListener, err error) {
	o.closed = append(o.closed, err)
}

func TestTCPListenerCloseThenTermReleasesSlabAfterConnClose(t *testing.T) {
	mt := NewMockTransport()
	lobs := &recordingListenerObserver{}
	listener, listenFd := newTestListener(t, mt, lobs)
	require.NoError(t, listener.Listen(DefaultBacklog))

	acceptedFd, _ := mt.Bind(nil, FamilyIPv4, IPv4Loopback(0))
	mt.PushAccept(listenFd, acceptedFd)
	require.Len(t, lobs.accepts, 1)
	conn := lobs.accepts[0].Conn
	connObs := &recordingConnObserver{}
	conn.observer = connObs

	require.NoError(t, listener.Close())
	require.Len(t, lobs.closed, 1)
	require.NoError(t, listener.Term())

	// The accepted connection still holds a reference; closing and
	// terminating it afterwards must not panic even though the listener's
	// own slab reference is already gone.
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Term())
}

func TestTCPListenerLoopbackEcho(t *testing.T) {
	mt := NewMockTransport()
	lobs := &recordingListenerObserver{}
	listener, listenFd := newTestListener(t, mt, lobs)
	require.NoError(t, listener.Listen(DefaultBacklog))

	clientObs := &recordingConnObserver{}
	loop := &Loop{}
	client := NewTCPConn()
	require.NoError(t, client.Init(loop, mt, clientObs))
	require.NoError(t, client.Open(IPv4Wildcard(0)))
	require.NoError(t, client.Connect(IPv4Loopback(9000)))

	acceptedFd := client.fd + 1000 // distinct namespace from the client's own fd
	mt.PushAccept(listenFd, acceptedFd)
	require.Len(t, lobs.accepts, 1)
	server := lobs.accepts[0].Conn
	serverObs := &echoingConnObserver{}
	server.observer = serverObs
	require.NoError(t, server.ReadStart())

	payload := "Hello, Arrowhead!\x00"
	require.NoError(t, client.Write(NewOutputDescriptor([]byte(payload), nil)))
	require.NoError(t, client.ReadStart())

	// Relay the client's write into the server's inbox, and vice versa for
	// the echo, simulating the wire between two independent mock sockets.
	for _, w := range mt.Writes(client.fd) {
		mt.PushRead(acceptedFd, w)
	}
	require.Len(t, serverObs.received, 1)
	require.Equal(t, payload, string(serverObs.received[0]))

	for _, w := range mt.Writes(acceptedFd) {
		mt.PushRead(client.fd, w)
	}
	require.Len(t, clientObs.reads, 1)
	require.Equal(t, payload, string(clientObs.reads[0]))

	require.NoError(t, client.Close())
	require.NoError(t, server.Close())
	require.Len(t, clientObs.closed, 1)
	require.Len(t, serverObs.closed, 1)
}

// echoingConnObserver bounces every read straight back to the sender.
type echoingConnObserver struct {
	received [][]byte
	closed   []error
}

func (o *echoingConnObserver) OnOpen(c *TCPConn, err error)    {}
func (o *echoingConnObserver) OnConnect(c *TCPConn, err error) {}
func (o *echoingConnObserver) OnRead(c *TCPConn, in *InputBuffer, err error) {
	if err != nil {
		return
	}
	readable := in.Cursor().Readable()
	cp := make([]byte, len(readable))
	copy(cp, readable)
	o.received = append(o.received, cp)
	in.Cursor().Consume(len(readable))
	_ = c.Write(NewOutputDescriptor(cp, nil))
}
func (o *echoingConnObserver) OnWrite(c *TCPConn, out *OutputDescriptor, err error) {}
func (o *echoingConnObserver) OnClose(c *TCPConn, err error)                       { o.closed = append(o.closed, err) }
