// Package reactor implements the platform completion backends behind
// ah.Loop: io_uring on Linux, kqueue on Darwin, IOCP on Windows. The
// Backend interface generalizes the teacher's uring.Ring
// (SubmitIOCmd/PrepareIOCmd/FlushSubmissions/WaitForCompletion) from a
// single ublk FETCH/COMMIT protocol to accept/connect/read/write/close
// submissions.
package reactor

import "github.com/ehrlich-b/ah/internal/errkind"

// OpKind tags a Submission by the operation it represents.
type OpKind uint8

const (
	OpAccept OpKind = iota
	OpConnect
	OpRead
	OpWrite
	OpClose
	OpShutdown
	OpCancel
)

// ShutdownHow mirrors the POSIX shutdown(2) how argument.
type ShutdownHow int

const (
	ShutdownRd   ShutdownHow = 0
	ShutdownWr   ShutdownHow = 1
	ShutdownRdWr ShutdownHow = 2
)

// Submission describes one request to the platform completion facility.
// Completion is reported later, tagged with UserData, through
// Backend.WaitForCompletions.
type Submission struct {
	Kind     OpKind
	Fd       int
	UserData uint64
	Buf      []byte
	Addr     RawAddr
	How      ShutdownHow
	CancelID uint64 // UserData of the submission being cancelled, for OpCancel
}

// RawAddr is a family-tagged socket address in wire form, filled in from
// an ah.SockAddr by the root package's default transport.
type RawAddr struct {
	Family byte // sockaddr.FamilyIPv4 or sockaddr.FamilyIPv6
	Port   uint16
	Addr4  [4]byte
	Addr6  [16]byte
	Zone   uint32
}

// Completion reports the outcome of a previously submitted operation.
type Completion struct {
	UserData  uint64
	Result    int // bytes transferred or accepted fd; negative is -errno
	Kind      errkind.Kind
	Cancelled bool
}

// Backend is the platform completion facility.
type Backend interface {
	Close() error
	// Submit queues op without necessarily handing it to the kernel;
	// queued operations reach the kernel on Flush or, at the latest, at
	// the start of the next WaitForCompletions, mirroring the teacher's
	// prepare-then-FlushSubmissions discipline.
	Submit(op Submission) error
	Flush() error
	// WaitForCompletions blocks up to timeoutMillis (0 means return
	// immediately, negative means wait indefinitely) and returns every
	// completion observed.
	WaitForCompletions(timeoutMillis int) ([]Completion, error)
}

// New constructs the platform-appropriate Backend.
func New() (Backend, error) {
	return newBackend()
}
