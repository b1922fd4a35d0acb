// Package lead implements the orchestrating side of a team: writing the
// immutable team config, spawning teammate processes with their identity in
// the environment, and running the polling loop that watches heartbeats, the
// task queue, and the lead's own mailbox.
//
// The loop is pull-based. Each tick produces a batch of events; Run delivers
// them one at a time over an unbuffered channel, so the loop only advances
// after the consumer has taken the previous tick's events. Crash detection is
// level-triggered: a stale heartbeat produces one teammate_crashed event per
// tick for as long as it stays stale.
package lead
