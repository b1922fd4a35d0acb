// Package mailbox provides file-based messaging between the agents of a
// team: a per-agent inbox plus a broadcast channel, stored as append-only
// JSONL logs under {teamDir}/messages/.
//
// Sends are single O_APPEND writes and need no lock; reads drain. ReadAll
// returns every message newly visible to an agent since its previous call
// and advances that agent's read cursor, so delivery is at-least-once and
// draining rather than an idempotent peek. A sender never receives its own
// broadcasts. Messages from the same sender to the same recipient are
// observed in send order; no global order across senders is guaranteed.
package mailbox
