package ah

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingConnObserver captures every callback TCPConn delivers, in order,
// for assertions.
type recordingConnObserver struct {
	opened    []error
	connected []error
	reads     [][]byte
	readErrs  []error
	writes    []*OutputDescriptor
	writeErrs []error
	closed    []error
}

func (o *recordingConnObserver) OnOpen(c *TCPConn, err error) { o.opened = append(o.opened, err) }
func (o *recordingConnObserver) OnConnect(c *TCPConn, err error) {
	o.connected = append(o.connected, err)
}
func (o *recordingConnObserver) OnRead(c *TCPConn, in *InputBuffer, err error) {
	if err != nil {
		o.readErrs = append(o.readErrs, err)
		return
	}
	readable := in.Cursor().Readable()
	cp := make([]byte, len(readable))
	copy(cp, readable)
	o.reads = append(o.reads, cp)
	in.Cursor().Consume(len(readable))
}
func (o *recordingConnObserver) OnWrite(c *TCPConn, out *OutputDescriptor, err error) {
	o.writes = append(o.writes, out)
	o.writeErrs = append(o.writeErrs, err)
}
func (o *recordingConnObserver) OnClose(c *TCPConn, err error) { o.closed = append(o.closed, err) }

func newTestConn(t *testing.T, mt *MockTransport, obs ConnObserver) (*TCPConn, int) {
	t.Helper()
	loop := &Loop{}
	conn := NewTCPConn()
	require.NoError(t, conn.Init(loop, mt, obs))
	require.NoError(t, conn.Open(IPv4Wildcard(0)))
	return conn, conn.fd
}

func TestTCPConnConnectAndReadWrite(t *testing.T) {
	mt := NewMockTransport()
	obs := &recordingConnObserver{}
	conn, fd := newTestConn(t, mt, obs)

	require.NoError(t, conn.Connect(IPv4Loopback(9000)))
	require.Len(t, obs.connected, 1)
	require.NoError(t, obs.connected[0])
	require.Equal(t, "connected", conn.State())

	require.NoError(t, conn.ReadStart())
	require.Equal(t, "reading", conn.State())

	mt.PushRead(fd, []byte("hello"))
	require.Len(t, obs.reads, 1)
	require.Equal(t, "hello", string(obs.reads[0]))

	mt.PushEOF(fd)
	require.Len(t, obs.readErrs, 1)
	require.True(t, IsKind(obs.readErrs[0], KindEof))
}

func TestTCPConnWriteQueueOrdering(t *testing.T) {
	mt := NewMockTransport()
	obs := &recordingConnObserver{}
	conn, fd := newTestConn(t, mt, obs)
	require.NoError(t, conn.Connect(IPv4Loopback(9000)))

	require.NoError(t, conn.Write(NewOutputDescriptor([]byte("A"), "first")))
	require.NoError(t, conn.Write(NewOutputDescriptor([]byte("BB"), "second")))
	require.NoError(t, conn.Write(NewOutputDescriptor([]byte("CCC"), "third")))

	require.Len(t, obs.writes, 3)
	require.Equal(t, "first", obs.writes[0].Owner())
	require.Equal(t, "second", obs.writes[1].Owner())
	require.Equal(t, "third", obs.writes[2].Owner())

	writes := mt.Writes(fd)
	var all []byte
	for _, w := range writes {
		all = append(all, w...)
	}
	require.Equal(t, "ABBCCC", string(all))
}

func TestTCPConnCloseIdempotent(t *testing.T) {
	mt := NewMockTransport()
	obs := &recordingConnObserver{}
	conn, _ := newTestConn(t, mt, obs)
	require.NoError(t, conn.Connect(IPv4Loopback(9000)))

	require.NoError(t, conn.Close())
	require.Len(t, obs.closed, 1)

	err := conn.Close()
	require.Error(t, err)
	require.True(t, IsKind(err, KindState))
	require.Len(t, obs.closed, 1, "on_close must not re-fire on a second Close")
}

func TestTCPConnTermReleasesInputPage(t *testing.T) {
	mt := NewMockTransport()
	obs := &recordingConnObserver{}
	conn, fd := newTestConn(t, mt, obs)
	require.NoError(t, conn.Connect(IPv4Loopback(9000)))
	require.NoError(t, conn.ReadStart())
	mt.PushRead(fd, []byte("x"))

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Term())
	require.Equal(t, "terminated", conn.State())
}

func TestTCPConnShutdownIdempotent(t *testing.T) {
	mt := NewMockTransport()
	obs := &recordingConnObserver{}
	conn, _ := newTestConn(t, mt, obs)
	require.NoError(t, conn.Connect(IPv4Loopback(9000)))

	require.NoError(t, conn.Shutdown(ShutdownFlagWr))
	require.NoError(t, conn.Shutdown(ShutdownFlagWr))
	counts := mt.CallCounts()
	require.Equal(t, 1, counts["shutdown"], "repeating the same shutdown bits must not resubmit")

	err := conn.Write(NewOutputDescriptor([]byte("nope"), nil))
	require.Error(t, err)
	require.True(t, IsKind(err, KindState))
}

// detachingConnObserver detaches the connection's input buffer on the
// first OnRead call instead of consuming in place.
type detachingConnObserver struct {
	recordingConnObserver
	detached *InputBuffer
}

func (o *detachingConnObserver) OnRead(c *TCPConn, in *InputBuffer, err error) {
	if err != nil {
		o.recordingConnObserver.OnRead(c, in, err)
		return
	}
	if o.detached == nil {
		o.detached = c.DetachInput()
		return
	}
	o.recordingConnObserver.OnRead(c, in, err)
}

func TestTCPConnDetachInputInstallsFreshPageAndIsFreeable(t *testing.T) {
	mt := NewMockTransport()
	obs := &detachingConnObserver{}
	conn, fd := newTestConn(t, mt, obs)
	require.NoError(t, conn.Connect(IPv4Loopback(9000)))
	require.NoError(t, conn.ReadStart())

	mt.PushRead(fd, []byte("first"))
	require.NotNil(t, obs.detached, "OnRead should have seen the first input buffer to detach")

	originalPage := obs.detached.page
	require.NotNil(t, originalPage)
	require.NotSame(t, obs.detached, conn.input, "DetachInput must install a fresh buffer on the connection")

	// The connection must still be able to read into its fresh buffer.
	mt.PushRead(fd, []byte("second"))
	require.Len(t, obs.reads, 1)
	require.Equal(t, "second", string(obs.reads[0]))

	// The detached buffer is returned to the shared slab without panicking,
	// and a further allocation still succeeds (the slot was genuinely
	// freed, not merely forgotten).
	obs.detached.Free()
	require.Nil(t, obs.detached.page)
	page, err := allocInputPage()
	require.NoError(t, err)
	freeInputPage(page)
}

func TestFreeInputBufferNilIsNoop(t *testing.T) {
	FreeInputBuffer(nil) // must not panic
}

func TestTCPConnWriteOversizedPayloadIsPooled(t *testing.T) {
	mt := NewMockTransport()
	obs := &recordingConnObserver{}
	conn, fd := newTestConn(t, mt, obs)
	require.NoError(t, conn.Connect(IPv4Loopback(9000)))

	big := make([]byte, oversizedWriteThreshold+1)
	for i := range big {
		big[i] = byte(i)
	}
	require.NoError(t, conn.Write(NewOutputDescriptor(big, "big-owner")))

	require.Len(t, obs.writes, 1)
	require.Equal(t, "big-owner", obs.writes[0].Owner())
	require.True(t, obs.writes[0].pooled, "a write above the threshold must be converted to a pooled descriptor")

	writes := mt.Writes(fd)
	require.Len(t, writes, 1)
	require.Equal(t, big, writes[0])
}
