// Package event provides a synchronous pub-sub bus and the team lifecycle
// event types emitted by the lead and teammate loops.
//
// The bus is the hook sink for the driving application: handlers are invoked
// synchronously in subscription order, and a panicking handler is recovered
// and logged so it can never stall the coordination loop that published the
// event. Handlers that need to do slow work should hand the event off to
// their own goroutine.
package event
