package future

import "sync"

// Team is a scheduling domain: a condition-variable-guarded set of
// idle-dirty tasks (spec.md §4.B, §5 "Team lock"). ThreadPool embeds Team
// and adds worker threads; a bare Team is also usable on its own, e.g. to
// drive a single-threaded coroutine chain to completion without spinning up
// workers.
type Team struct {
	mu    sync.Mutex
	cond  *sync.Cond
	tasks map[*Task]struct{}
	dirty map[*Task]struct{}
}

// NewTeam creates an empty team.
func NewTeam() *Team {
	t := &Team{tasks: make(map[*Task]struct{}), dirty: make(map[*Task]struct{})}
	t.cond = sync.NewCond(&t.mu)
	return t
}

func (tm *Team) register(t *Task) {
	tm.mu.Lock()
	tm.tasks[t] = struct{}{}
	tm.mu.Unlock()
}

// markDirty adds t to the dirty set and wakes one waiter. Called whenever a
// task gains work on any of its three queues.
func (tm *Team) markDirty(t *Task) {
	tm.mu.Lock()
	tm.dirty[t] = struct{}{}
	tm.mu.Unlock()
	tm.cond.Signal()
}

// popIdleDirty pops one dirty task that is not currently being drained by
// another worker ("idle-dirty"). It returns nil if none is available.
func (tm *Team) popIdleDirty() *Task {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	for t := range tm.dirty {
		t.mu.Lock()
		progressing := t.progressing
		t.mu.Unlock()
		if progressing {
			continue
		}
		delete(tm.dirty, t)
		return t
	}
	return nil
}

// Progress pops one idle-dirty task, releases the team lock, drives it to
// quiescence, and either re-parks it (if new work arrived mid-drain) or
// leaves it out of the dirty set. It returns false if no idle-dirty task
// was available.
func (tm *Team) Progress() bool {
	task := tm.popIdleDirty()
	if task == nil {
		return false
	}
	task.Progress()
	if task.hasWork() {
		tm.markDirty(task)
	}
	return true
}

// progressOnce is an alias used by Task.suspendUntil; kept distinct from
// Progress so call sites read according to who is asking (a suspended task
// re-entering the scheduler, vs. a worker thread's main loop).
func (tm *Team) progressOnce() bool {
	return tm.Progress()
}

// hasDirty reports whether any task in the team currently has queued work,
// used by ThreadPool workers to decide whether to keep spinning or park on
// the condition variable.
func (tm *Team) hasDirty() bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return len(tm.dirty) > 0
}
