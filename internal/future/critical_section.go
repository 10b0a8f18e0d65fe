package future

import "sync"

// CriticalSection is a coroutine-aware lock (spec.md §4.B). Acquire
// returns a future; when it fires, the caller holds the lock. Release, the
// returned callable, completes the next waiter's promise in FIFO order.
// An underlying mutex guards the waiter queue itself, since multiple
// threads may call Acquire concurrently even though only one logical
// holder proceeds at a time.
type CriticalSection struct {
	mu      sync.Mutex
	held    bool
	waiters []*Promise
}

// NewCriticalSection creates an unheld lock.
func NewCriticalSection() *CriticalSection {
	return &CriticalSection{}
}

// Release, invoked by the current holder, hands the lock to the next
// waiter in FIFO order, or marks it free if there is none.
type Release func()

// Acquire returns a future that resolves (with a Release value) once the
// caller holds the lock.
func (cs *CriticalSection) Acquire(owner *Task) *Future {
	cs.mu.Lock()
	if !cs.held {
		cs.held = true
		cs.mu.Unlock()
		return NewDone(Success(cs.releaseFunc()))
	}
	p := NewPromise(owner)
	cs.waiters = append(cs.waiters, p)
	cs.mu.Unlock()
	return p.Future()
}

func (cs *CriticalSection) releaseFunc() Release {
	return func() {
		cs.mu.Lock()
		if len(cs.waiters) == 0 {
			cs.held = false
			cs.mu.Unlock()
			return
		}
		next := cs.waiters[0]
		cs.waiters = cs.waiters[1:]
		cs.mu.Unlock()
		next.Satisfy(Success(cs.releaseFunc()))
	}
}
