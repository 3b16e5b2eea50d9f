package ah

import (
	"github.com/ehrlich-b/ah/internal/bufc"
	"github.com/ehrlich-b/ah/internal/constants"
	"github.com/ehrlich-b/ah/internal/memalloc"
	"github.com/ehrlich-b/ah/internal/queue"
)

// InputBuffer is a page-sized record holding a read/write cursor over the
// payload portion of one slab slot, plus a back-pointer to the connection
// that owns it. Detach nulls owner and hands the buffer to the caller.
type InputBuffer struct {
	cursor *bufc.Cursor
	page   []byte
	owner  *TCPConn
}

func newInputBuffer(page []byte, owner *TCPConn) *InputBuffer {
	return &InputBuffer{cursor: bufc.New(page), page: page, owner: owner}
}

// Cursor exposes the buffer's read/write cursor directly, so observers can
// consume, repack or inspect the readable range in place.
func (b *InputBuffer) Cursor() *bufc.Cursor { return b.cursor }

// Detach transfers ownership of b to the caller; the connection installs
// a freshly allocated buffer in its place. A detached buffer's owner is
// nil and it is the caller's responsibility to return it via
// FreeInputBuffer (or (*InputBuffer).Free) once done.
func (b *InputBuffer) Detach() *InputBuffer {
	b.owner = nil
	return b
}

// Free returns b's page to the shared input buffer slab. b must not be
// used afterward.
func (b *InputBuffer) Free() {
	freeInputPage(b.page)
	b.page = nil
}

// FreeInputBuffer returns b's page to the shared input buffer slab; a
// no-op if b is nil. Equivalent to (*InputBuffer).Free, for callers who
// received b from a context where a bare function reads better.
func FreeInputBuffer(b *InputBuffer) {
	if b == nil {
		return
	}
	b.Free()
}

// OutputDescriptor is a buffer plus an owner, enqueued on a connection's
// write queue and dequeued on write completion.
type OutputDescriptor struct {
	buf     []byte
	off     int // bytes already transmitted; re-submission resumes here
	owner   interface{}
	pooled  bool // true if buf came from the oversized sync.Pool, not the caller
}

// NewOutputDescriptor wraps buf (not copied) for enqueuing on a connection.
func NewOutputDescriptor(buf []byte, owner interface{}) *OutputDescriptor {
	return &OutputDescriptor{buf: buf, owner: owner}
}

// Remaining returns the unsent tail of the descriptor's buffer.
func (d *OutputDescriptor) Remaining() []byte { return d.buf[d.off:] }

// Owner returns the value passed to NewOutputDescriptor.
func (d *OutputDescriptor) Owner() interface{} { return d.owner }

// release returns a pooled oversized buffer; a no-op for caller-owned
// descriptors.
func (d *OutputDescriptor) release() {
	if d.pooled {
		queue.PutBuffer(d.buf)
		d.buf = nil
	}
}

// NewOversizedOutputDescriptor copies payload into a pooled buffer sized
// by internal/queue's bucket ladder, for writes larger than one page where
// the stable-address guarantee the slab provides is unnecessary.
func NewOversizedOutputDescriptor(payload []byte, owner interface{}) *OutputDescriptor {
	buf := queue.GetBuffer(uint32(len(payload)))
	copy(buf, payload)
	return &OutputDescriptor{buf: buf, owner: owner, pooled: true}
}

// oversizedWriteThreshold is the payload size above which Write transfers
// a caller-supplied descriptor onto internal/queue's pooled buffers
// instead of holding the caller's own backing array for the life of the
// write.
const oversizedWriteThreshold = constants.InputBufferSize

// poolIfOversized converts a plain caller-owned descriptor larger than
// one page into a pooled one, leaving already-pooled or small descriptors
// untouched.
func poolIfOversized(d *OutputDescriptor) *OutputDescriptor {
	if d.pooled || len(d.Remaining()) <= oversizedWriteThreshold {
		return d
	}
	return NewOversizedOutputDescriptor(d.Remaining(), d.owner)
}

// inputBufferSlab backs every connection's Reading-state input buffer with
// a stable-address page from a process-wide slab sized to one page, so
// detached buffers remain valid after the connection that allocated them
// has moved on. Kept separate from per-loop state because buffers can
// outlive the loop that allocated them once detached.
var inputBufferSlab = memalloc.NewSlab(uintptr(constants.InputBufferSize))

// allocInputPage hands out one page-sized slot from the shared input
// buffer slab.
func allocInputPage() ([]byte, error) {
	ptr, err := inputBufferSlab.Alloc()
	if err != nil {
		return nil, WrapError("buffer.alloc", err)
	}
	return unsafeSlice(ptr, int(constants.InputBufferSize)), nil
}

// freeInputPage returns a page-sized slot to the shared slab.
func freeInputPage(page []byte) {
	if len(page) == 0 {
		return
	}
	inputBufferSlab.Free(unsafePtr(page))
}
