// Package protocol layers the team's three coordination handshakes on top of
// the mailbox: cooperative shutdown (request/ack), idle notification, and
// plan submission/approval.
//
// Shutdown and idle are stateless constructor/predicate pairs over message
// types. Plans additionally persist a record under plans/{planId}.json so a
// decision is durable across restarts as well as promptly delivered; the
// decision itself is single-writer, taken under the team's "plans" lock, so
// a second decision attempt against an already-decided plan is rejected
// rather than applied twice.
package protocol
