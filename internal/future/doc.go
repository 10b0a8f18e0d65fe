// Package future implements the cooperative future/task runtime described
// in spec.md §4.B: a dependency graph of futures driven by tasks, tasks
// grouped into teams, and a thread-pool team that provides the process-wide
// parallelism nobs's rule evaluation runs on.
//
// The state machine and its deterministic FIFO draining are generalized
// from internal/dag/scheduler.go and internal/dag/state_machine.go, which
// drain a fixed, statically-known DAG of tasks to completion; here the
// graph of futures grows dynamically as rules call each other, so draining
// happens per-Task against three work queues instead of once globally
// against one static adjacency list.
package future
