package ah

import (
	"github.com/ehrlich-b/ah/internal/constants"
	"github.com/ehrlich-b/ah/internal/reactor"
)

// LoopState is the event loop's lifecycle state machine:
// Initial -> Running -> {Stopping -> Stopped -> Running*, Terminating ->
// Terminated}. Terminating is absorbing.
type LoopState int

const (
	LoopInitial LoopState = iota
	LoopRunning
	LoopStopping
	LoopStopped
	LoopTerminating
	LoopTerminated
)

func (s LoopState) String() string {
	switch s {
	case LoopInitial:
		return "initial"
	case LoopRunning:
		return "running"
	case LoopStopping:
		return "stopping"
	case LoopStopped:
		return "stopped"
	case LoopTerminating:
		return "terminating"
	case LoopTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Loop is a single-threaded, non-thread-safe reactor. Exactly one
// goroutine may ever call methods on a Loop or on any object bound to it;
// Loop carries no mutex, matching the teacher's runtime.LockOSThread-
// without-further-enforcement stance on one-thread-per-queue ownership in
// ioLoop — Go has no portable thread-local primitive to check this for
// you, so the contract is documented, not mechanically enforced.
type Loop struct {
	backend reactor.Backend
	state   LoopState
	now     Time
	metrics *Metrics

	nextUserData uint64
	pending      map[uint64]func(reactor.Completion)
	submitTimes  map[uint64]Time
}

// NewLoop creates the platform completion facility and puts the loop in
// LoopInitial, mirroring the teacher's queue-setup phase in ioLoop's
// preamble (mmap, ring setup, cached clock read).
func NewLoop() (*Loop, error) {
	backend, err := reactor.New()
	if err != nil {
		return nil, WrapError("loop.init", err)
	}
	return &Loop{
		backend: backend,
		state:   LoopInitial,
		now:     Now(),
		metrics: NewMetrics(),
		pending: make(map[uint64]func(reactor.Completion)),
		submitTimes: make(map[uint64]Time),
	}, nil
}

// State returns the loop's current lifecycle state.
func (l *Loop) State() LoopState { return l.state }

// Now returns the cached "current time" as of the last run_until iteration
// (or loop creation, before the first run).
func (l *Loop) Now() Time { return l.now }

// Metrics exposes the loop's completion-dispatch counters.
func (l *Loop) Metrics() *Metrics { return l.metrics }

// submit registers cb against a fresh user-data tag and hands op to the
// backend, the generalized form of the teacher's SubmitIOCmd/PrepareIOCmd
// pair. The slab-allocated "completion record" of the source spec becomes,
// in idiomatic Go, a plain callback closure held in a map: a closure
// already is a GC-visible (callback + captured subject) pair, so routing
// it through a manually managed slab region would fight the garbage
// collector rather than help it — see DESIGN.md.
func (l *Loop) submit(op reactor.Submission, cb func(reactor.Completion)) error {
	l.nextUserData++
	ud := l.nextUserData
	op.UserData = ud
	if err := l.backend.Submit(op); err != nil {
		return WrapError("loop.submit", err)
	}
	l.pending[ud] = cb
	l.submitTimes[ud] = l.now
	l.metrics.RecordSubmit()
	return nil
}

// cancelSubmission registers a cancellation submission for a previously submitted
// operation, best-effort: the backend may still deliver the original
// completion if the platform could not cancel in time.
func (l *Loop) cancelSubmission(userData uint64) {
	_ = l.backend.Submit(reactor.Submission{Kind: reactor.OpCancel, CancelID: userData})
}

// RunUntil drains completions until the state is no longer LoopRunning or
// deadline has passed. Preconditions: state in {LoopInitial, LoopStopped}.
// Grounded on the teacher's ioLoop/processRequests pair, generalized from
// a single FETCH/COMMIT state machine to arbitrary completion dispatch.
func (l *Loop) RunUntil(deadline Time) error {
	if l.state != LoopInitial && l.state != LoopStopped {
		return NewError("loop.run_until", KindState, "loop is not in Initial or Stopped")
	}
	l.state = LoopRunning

	for l.state == LoopRunning {
		l.now = Now()

		timeoutMs := -1
		if !deadline.IsZero() {
			remaining, err := deadline.Diff(l.now)
			if err != nil {
				l.state = LoopStopped
				return NewError("loop.run_until", KindRange, "deadline too far in the future")
			}
			if remaining <= 0 {
				break
			}
			ms := remaining / 1_000_000
			if ms > constants.MaxWaitMillis {
				ms = constants.MaxWaitMillis
			}
			timeoutMs = int(ms)
		}

		completions, err := l.backend.WaitForCompletions(timeoutMs)
		if err != nil {
			l.state = LoopStopped
			return NewError("loop.run_until", KindInternal, err.Error())
		}

		for _, c := range completions {
			l.dispatch(c)
		}

		if !deadline.IsZero() {
			now := Now()
			if now.After(deadline) {
				break
			}
		}
	}

	switch l.state {
	case LoopTerminating:
		l.runTerminationLocked(nil)
		l.state = LoopTerminated
	default:
		l.state = LoopStopped
	}
	return nil
}

func (l *Loop) dispatch(c reactor.Completion) {
	cb, ok := l.pending[c.UserData]
	if !ok {
		return
	}
	delete(l.pending, c.UserData)
	latency := int64(0)
	if start, ok := l.submitTimes[c.UserData]; ok {
		delete(l.submitTimes, c.UserData)
		if d, err := l.now.Diff(start); err == nil {
			latency = d
		}
	}
	l.metrics.RecordCompletion(c.Kind, uint64(latency))
	cb(c)
}

// Stop is legal only while Running; the reactor exits its drain at the
// next iteration boundary.
func (l *Loop) Stop() error {
	if l.state != LoopRunning {
		return NewError("loop.stop", KindState, "loop is not Running")
	}
	l.state = LoopStopping
	return nil
}

// Term cancels every outstanding completion. From Initial/Stopped it runs
// termination inline; from Running it arranges for termination to run
// before RunUntil returns; from any other state it reports KindState.
func (l *Loop) Term(visitor func(subjectErr error)) error {
	switch l.state {
	case LoopInitial, LoopStopped:
		l.runTerminationLocked(visitor)
		l.state = LoopTerminated
		return nil
	case LoopRunning:
		l.state = LoopTerminating
		return nil
	default:
		return NewError("loop.term", KindState, "loop cannot terminate from this state")
	}
}

// runTerminationLocked delivers Cancelled to every outstanding completion,
// mirroring the slab's terminate-visitor semantics from §4.3/§4.5, then
// releases the platform backend.
func (l *Loop) runTerminationLocked(visitor func(error)) {
	for ud, cb := range l.pending {
		delete(l.pending, ud)
		delete(l.submitTimes, ud)
		cb(reactor.Completion{UserData: ud, Kind: KindCancelled, Cancelled: true})
		if visitor != nil {
			visitor(NewError("loop.term", KindCancelled, "cancelled at loop termination"))
		}
	}
	_ = l.backend.Close()
}
