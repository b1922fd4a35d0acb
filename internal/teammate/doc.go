// Package teammate implements the worker side of a team: a polling loop
// that keeps the agent's heartbeat fresh, drains its mailbox, honors
// cooperative shutdown, and claims work from the shared task queue.
//
// The loop manages claiming and liveness only. Turning a claimed task into
// actual work is the driving application's job, supplied through the
// Executor option; without one, claimed tasks are left to be completed or
// failed out of band.
package teammate
