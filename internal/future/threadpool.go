package future

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// pollInterval is the condition-variable poll used to guarantee progress if
// a notification is lost (spec.md §5, "Cancellation and timeouts").
const pollInterval = 100 * time.Millisecond

// ThreadPool is a Team that additionally owns a worker-thread set and a
// pending-work counter (spec.md §4.B, §3). Workers are spawned lazily, up
// to size, as launches arrive, and retire once no task is dirty and no new
// work has arrived for longer than one poll interval.
type ThreadPool struct {
	*Team
	size int

	mu      sync.Mutex
	workers int
	idle    int

	pending int64

	tasksFired     prometheus.Counter
	workersSpawned prometheus.Counter
}

// NewThreadPool creates a thread pool with the given worker cap (spec.md
// §5 default: detected core count — callers pass runtime.NumCPU()).
func NewThreadPool(size int, reg prometheus.Registerer) *ThreadPool {
	if size < 1 {
		size = 1
	}
	tp := &ThreadPool{
		Team: NewTeam(),
		size: size,
		tasksFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nobs_future_tasks_fired_total",
			Help: "Futures fired by the nobs thread-pool team.",
		}),
		workersSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nobs_future_workers_spawned_total",
			Help: "Worker goroutines spawned by the nobs thread pool.",
		}),
	}
	if reg != nil {
		reg.MustRegister(tp.tasksFired, tp.workersSpawned)
	}
	return tp
}

// Launch submits callable to the pool (spec.md §4.B "Thread-pool team"): it
// creates a fresh task holding one future that runs callable when fired
// (queuing it marks the task dirty and signals one waiting worker), spawns
// a worker if none is idle and the pool is below its size, and returns
// that future, which resolves with callable's result.
func (tp *ThreadPool) Launch(callable func() (any, error)) *Future {
	task := NewTask("launch", tp.Team)
	p := New(task, func([]*Future) (any, error) {
		atomic.AddInt64(&tp.pending, 1)
		defer atomic.AddInt64(&tp.pending, -1)
		tp.tasksFired.Inc()
		return callable()
	})
	tp.ensureWorker()
	return p
}

func (tp *ThreadPool) ensureWorker() {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	if tp.idle > 0 || tp.workers >= tp.size {
		return
	}
	tp.workers++
	tp.workersSpawned.Inc()
	go tp.workerLoop()
}

// workerLoop adapts spec.md §4.B's pseudocode: drain one idle-dirty task
// if there is one; otherwise wait for a notification (bounded by
// pollInterval so a lost notification cannot stall progress forever).
// Workers retire once there is nothing left to do and no new work
// arrives within one poll interval.
func (tp *ThreadPool) workerLoop() {
	defer func() {
		tp.mu.Lock()
		tp.workers--
		tp.mu.Unlock()
	}()

	idleSince := time.Now()
	for {
		if tp.Progress() {
			idleSince = time.Now()
			continue
		}
		tp.mu.Lock()
		tp.idle++
		tp.mu.Unlock()

		tp.Team.mu.Lock()
		timer := time.AfterFunc(pollInterval, func() { tp.cond.Broadcast() })
		tp.cond.Wait()
		timer.Stop()
		tp.Team.mu.Unlock()

		tp.mu.Lock()
		tp.idle--
		tp.mu.Unlock()

		if !tp.hasDirty() && time.Since(idleSince) > pollInterval {
			return
		}
	}
}

// Pending returns the current in-flight launch count, for diagnostics and
// tests.
func (tp *ThreadPool) Pending() int64 {
	return atomic.LoadInt64(&tp.pending)
}
