// Package taskqueue implements the shared, persisted task queue with a
// dependency graph that the team's agents claim work from.
//
// The queue's sole persisted representation is tasks.json, rewritten
// wholesale under the team's "tasks" file lock on every mutation. Every
// check-then-set (claim, complete, fail) happens entirely inside that locked
// critical section, so two agents racing for the same task cannot both
// succeed. Blocked status is recomputed eagerly on every creation and
// completion, never lazily at claim time.
//
// Contention outcomes — a task already claimed, an unknown id, a terminal
// task — are normal boolean results, not errors; concurrent rejection is an
// expected outcome of the protocol, not a bug.
package taskqueue
