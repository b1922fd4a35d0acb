// Package heartbeat implements per-agent liveness records.
//
// Each agent owns exactly one file, state/{agentId}.json, and rewrites it
// atomically on every loop tick. Nobody else ever writes it, so readers need
// no lock. A record whose status is running but whose lastHeartbeat is older
// than the configured timeout is the sole crash signal; the file is never
// deleted on crash, so the lead can observe the staleness until the team is
// torn down.
package heartbeat
