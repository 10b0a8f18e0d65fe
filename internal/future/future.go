package future

import (
	"fmt"
	"sync"
)

// State is a future's lifecycle stage. A future's state advances
// monotonically; Done is terminal (spec.md §3, Future invariants).
type State int

const (
	Pending State = iota
	Fireable
	Proxying
	Done
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fireable:
		return "fireable"
	case Proxying:
		return "proxying"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Result is a future's final outcome: either a success carrying positional
// and keyed values, or a failure carrying an error and the context it
// originated from.
type Result struct {
	OK     bool
	Values []any
	Keyed  map[string]any
	Err    error
	// Origin names the task that produced a failure, for diagnostics; it is
	// the "capture of originating context" spec.md §3 asks for.
	Origin string
}

// Success builds a successful Result from positional values.
func Success(values ...any) Result {
	return Result{OK: true, Values: values}
}

// SuccessKeyed builds a successful Result with both positional and keyed
// values.
func SuccessKeyed(values []any, keyed map[string]any) Result {
	return Result{OK: true, Values: values, Keyed: keyed}
}

// Failure builds a failed Result.
func Failure(err error, origin string) Result {
	return Result{OK: false, Err: err, Origin: origin}
}

// FireFunc is invoked once a future's dependencies are all Done. It may
// return a Result (used as the outcome directly), a *Future (which the
// firing future then proxies through), or any other value (wrapped as a
// one-value success).
type FireFunc func(inputs []*Future) (any, error)

// Future is a handle to an eventually-available value.
type Future struct {
	mu    sync.Mutex
	state State
	result Result

	inputs       []*Future
	pendingCount int
	successors   []*Future

	fire  FireFunc
	owner *Task

	// proxy is set while Proxying: the single inner future this future is
	// waiting on.
	proxy *Future

	waiters []chan struct{}
}

// NewDone returns an already-Done future wrapping result, matching the
// "any other value" branch of LiftToFuture (spec.md §4.B).
func NewDone(result Result) *Future {
	return &Future{state: Done, result: result}
}

// New creates a future depending on inputs; fire runs once every input is
// Done. owner is the Task responsible for draining this future once it
// becomes Fireable; it may be nil for futures created outside any task
// (e.g. in tests), in which case the future fires synchronously the moment
// its last dependency completes.
func New(owner *Task, fire FireFunc, inputs ...*Future) *Future {
	f := &Future{
		owner:        owner,
		fire:         fire,
		inputs:       inputs,
		pendingCount: len(inputs),
		state:        Pending,
	}
	if len(inputs) == 0 {
		f.state = Fireable
		f.enqueueSelf()
		return f
	}
	for _, in := range inputs {
		in.addSuccessor(owner, f)
	}
	return f
}

// State returns the future's current state.
func (f *Future) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Result returns the final result. It is only valid once State() == Done;
// callers should use Wait to block until that holds.
func (f *Future) Result() Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// addSuccessor registers succ to be notified once f is Done. requester is
// whichever task is constructing succ; when requester differs from f's own
// owning task, the registration is pushed onto f.owner's remote-successor
// queue instead of mutating f.successors directly from a foreign
// goroutine, matching spec.md §4.B's three-queue task model. A nil owner
// (f created outside any task) or requester == f.owner registers directly.
func (f *Future) addSuccessor(requester *Task, succ *Future) {
	if f.owner == nil || f.owner == requester {
		f.addSuccessorDirect(succ)
		return
	}
	f.owner.enqueueRemoteSuccessor(func() {
		f.addSuccessorDirect(succ)
	})
}

func (f *Future) addSuccessorDirect(succ *Future) {
	f.mu.Lock()
	if f.state == Done {
		result := f.result
		f.mu.Unlock()
		succ.notifyInputDone(f.owner, result)
		return
	}
	f.successors = append(f.successors, succ)
	f.mu.Unlock()
}

// notifyInputDone decrements the pending counter; when it reaches zero the
// future becomes Fireable and is queued on its owning task's local-fireable
// lane (spec.md §4.B). producer is the task whose future just resolved and
// is delivering this notification; when it differs from f's own owning
// task the decrement is routed through f.owner's remote-satisfy queue
// instead of being applied from a foreign goroutine.
func (f *Future) notifyInputDone(producer *Task, result Result) {
	if f.owner != nil && f.owner != producer {
		f.owner.enqueueRemoteSatisfy(func() {
			f.notifyInputDoneDirect(result)
		})
		return
	}
	f.notifyInputDoneDirect(result)
}

func (f *Future) notifyInputDoneDirect(_ Result) {
	f.mu.Lock()
	f.pendingCount--
	become := f.pendingCount == 0 && f.state == Pending
	if become {
		f.state = Fireable
	}
	f.mu.Unlock()
	if become {
		f.enqueueSelf()
	}
}

func (f *Future) enqueueSelf() {
	if f.owner != nil {
		f.owner.enqueueLocalFireable(f)
		return
	}
	f.runFire()
}

// runFire invokes fire and resolves or proxies the future. It must only be
// called once the future is Fireable, from the task that owns it (or
// synchronously for owner-less futures).
func (f *Future) runFire() {
	f.mu.Lock()
	if f.state != Fireable {
		f.mu.Unlock()
		return
	}
	fireFn := f.fire
	inputs := f.inputs
	f.mu.Unlock()

	if fireFn == nil {
		f.resolve(Result{OK: false, Err: fmt.Errorf("future: fireable future has no fire action")})
		return
	}

	out, err := fireFn(inputs)
	if err != nil {
		f.resolve(Failure(err, f.ownerName()))
		return
	}

	switch v := out.(type) {
	case *Future:
		f.becomeProxy(v)
	case Result:
		f.resolve(v)
	default:
		f.resolve(Success(v))
	}
}

func (f *Future) ownerName() string {
	if f.owner == nil {
		return ""
	}
	return f.owner.Name
}

// becomeProxy transitions f into Proxying state, awaiting inner.
func (f *Future) becomeProxy(inner *Future) {
	f.mu.Lock()
	f.state = Proxying
	f.proxy = inner
	f.mu.Unlock()

	inner.onDone(func(r Result) {
		f.resolve(r)
	})
}

// onDone invokes cb with f's result once f reaches Done, immediately if it
// already has, otherwise from a dedicated goroutine waiting on f's done
// channel. This is internal plumbing for proxying (becomeProxy); it does
// not participate in the public successor/task-queue graph.
func (f *Future) onDone(cb func(Result)) {
	f.mu.Lock()
	if f.state == Done {
		result := f.result
		f.mu.Unlock()
		cb(result)
		return
	}
	f.mu.Unlock()

	ch := f.doneSignal()
	go func() {
		<-ch
		cb(f.Result())
	}()
}

// doneSignal returns a channel closed once f reaches Done. Used internally
// by onDone/Wait.
func (f *Future) doneSignal() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	if f.state == Done {
		close(ch)
		return ch
	}
	f.waiters = append(f.waiters, ch)
	return ch
}

// resolve transitions f to Done with result, notifying all successors.
func (f *Future) resolve(result Result) {
	f.mu.Lock()
	if f.state == Done {
		f.mu.Unlock()
		return
	}
	f.state = Done
	f.result = result
	successors := f.successors
	f.successors = nil
	waiters := f.waiters
	f.waiters = nil
	f.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
	for _, succ := range successors {
		succ.notifyInputDone(f.owner, result)
	}
}

// Wait blocks the calling goroutine until f is Done and returns its
// result. When f has an owning Task, Wait suspends that task per spec.md
// §4.B/§5 ("Blocking wait") and drives its team's Progress loop while it
// waits; when f has no owner (e.g. a NewDone future) it just blocks on the
// done channel.
func Wait(f *Future) Result {
	if f.owner != nil {
		f.owner.suspendUntil(f)
		return f.Result()
	}
	<-f.doneSignal()
	return f.Result()
}
