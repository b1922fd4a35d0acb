// Package transport provides the file-based communication substrate shared
// by every agent process in a team: atomic JSON reads and writes, append-only
// JSONL logs, and named advisory file locks with bounded acquisition timeouts.
//
// All higher-level components (mailbox, task queue, team config, plans) go
// through this package; it never interprets payloads. Writers use the
// write-to-temp-then-rename pattern so readers either see the previous file
// or the new one, never a partial write. Read-modify-write sequences that
// must be atomic across processes acquire a named Lock first.
package transport
