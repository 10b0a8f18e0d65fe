package future

import "sync"

// Task is the unit of cooperative scheduling (spec.md §4.B). It owns three
// work queues — remote-successor registrations, remote-satisfactions, and
// locally-fireable futures — so that other tasks can push cross-task work
// without ever touching this task's reentrancy flag directly.
type Task struct {
	Name string
	team *Team

	mu            sync.Mutex
	progressing   bool
	remoteSucc    []func()
	remoteSatisfy []func()
	localFireable []*Future
}

// NewTask creates a task inside team. A nil team is permitted for tasks
// used outside the scheduler (unit tests, or a future graph with no
// cross-task sharing); such a task is never marked dirty and must be
// drained explicitly via Progress.
func NewTask(name string, team *Team) *Task {
	t := &Task{Name: name, team: team}
	if team != nil {
		team.register(t)
	}
	return t
}

func (t *Task) enqueueRemoteSuccessor(fn func()) {
	t.mu.Lock()
	t.remoteSucc = append(t.remoteSucc, fn)
	t.mu.Unlock()
	t.markDirty()
}

func (t *Task) enqueueRemoteSatisfy(fn func()) {
	t.mu.Lock()
	t.remoteSatisfy = append(t.remoteSatisfy, fn)
	t.mu.Unlock()
	t.markDirty()
}

func (t *Task) enqueueLocalFireable(f *Future) {
	t.mu.Lock()
	t.localFireable = append(t.localFireable, f)
	t.mu.Unlock()
	t.markDirty()
}

func (t *Task) markDirty() {
	if t.team != nil {
		t.team.markDirty(t)
	}
}

// hasWork reports whether any of the three queues is non-empty.
func (t *Task) hasWork() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.remoteSucc) > 0 || len(t.remoteSatisfy) > 0 || len(t.localFireable) > 0
}

// Progress drains all three queues to a fixed point: remote-successor
// registrations, then remote-satisfactions, then locally-fireable futures,
// repeating until every queue is empty. It is not safe to call Progress
// concurrently for the same task from two goroutines; the owning Team
// guarantees that by only ever handing a task to one worker at a time.
func (t *Task) Progress() {
	t.mu.Lock()
	t.progressing = true
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.progressing = false
		t.mu.Unlock()
	}()

	for {
		t.mu.Lock()
		succ := t.remoteSucc
		t.remoteSucc = nil
		satisfy := t.remoteSatisfy
		t.remoteSatisfy = nil
		fireable := t.localFireable
		t.localFireable = nil
		t.mu.Unlock()

		if len(succ) == 0 && len(satisfy) == 0 && len(fireable) == 0 {
			return
		}

		for _, fn := range succ {
			fn()
		}
		for _, fn := range satisfy {
			fn()
		}
		// FIFO within a task (spec.md §4.B "Ordering").
		for _, f := range fireable {
			f.runFire()
		}
	}
}

// suspendUntil implements spec.md §4.B's "Blocking wait" for t (Wait passes
// the awaited future's owning task): t's reentrancy flag is released (it
// re-parks itself as dirty if it still has pending work) and the calling
// goroutine re-enters the owning team's Progress loop until target is
// Done, then t's prior reentrancy flag is restored.
func (t *Task) suspendUntil(target *Future) {
	if t.team == nil {
		<-target.doneSignal()
		return
	}
	t.mu.Lock()
	saved := t.progressing
	t.progressing = false
	t.mu.Unlock()
	if t.hasWork() {
		t.team.markDirty(t)
	}
	defer func() {
		t.mu.Lock()
		t.progressing = saved
		t.mu.Unlock()
	}()
	done := target.doneSignal()
	for {
		select {
		case <-done:
			return
		default:
		}
		if !t.team.progressOnce() {
			<-done
			return
		}
	}
}
