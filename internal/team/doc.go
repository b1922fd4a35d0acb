// Package team defines the immutable team configuration shared by every
// agent process, and the environment-variable contract used to hand a
// spawned teammate its identity.
//
// The lead writes config.json exactly once before any teammate starts;
// teammates treat it as read-only and use it to discover their peers.
package team
