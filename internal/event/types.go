package event

import "time"

// Type identifies the kind of team lifecycle event.
type Type string

// Events emitted by the lead loop.
const (
	// TypeTeammateSpawned indicates a teammate process was started.
	TypeTeammateSpawned Type = "teammate_spawned"

	// TypeTeammateCrashed indicates a teammate's heartbeat went stale while
	// it reported itself running. Emitted once per tick while the heartbeat
	// stays stale; consumers deduplicate if they need edge semantics.
	TypeTeammateCrashed Type = "teammate_crashed"

	// TypeTeammateExited indicates a teammate acknowledged shutdown.
	TypeTeammateExited Type = "teammate_exited"

	// TypeAllTasksDone indicates every task in the queue reached a terminal
	// state.
	TypeAllTasksDone Type = "all_tasks_done"

	// TypePlanSubmitted indicates a teammate submitted a plan for approval.
	TypePlanSubmitted Type = "plan_submitted"

	// TypeMessageSent indicates a mailbox message that carries no protocol
	// meaning for the lead loop itself.
	TypeMessageSent Type = "message_sent"

	// TypeShutdownComplete is the lead loop's terminal event.
	TypeShutdownComplete Type = "shutdown_complete"
)

// Events emitted by the teammate loop.
const (
	// TypeShutdownRequested indicates the teammate observed a shutdown
	// request and is terminating its loop.
	TypeShutdownRequested Type = "shutdown_requested"

	// TypeMessageReceived indicates a non-protocol message arrived.
	TypeMessageReceived Type = "message_received"

	// TypeTaskClaimed indicates the teammate claimed a task.
	TypeTaskClaimed Type = "task_claimed"

	// TypeIdle indicates the teammate found nothing claimable this tick.
	TypeIdle Type = "idle"
)

// Event is a single team lifecycle occurrence. Fields beyond Type and
// Timestamp are populated per type: AgentID for agent-scoped events, TaskID
// for task events, PlanID for plan events, MessageID for mailbox events.
type Event struct {
	Type      Type      `json:"type"`
	AgentID   string    `json:"agentId,omitempty"`
	TaskID    string    `json:"taskId,omitempty"`
	PlanID    string    `json:"planId,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates an Event of the given type stamped with the current time.
func New(t Type) Event {
	return Event{Type: t, Timestamp: time.Now()}
}

// WithAgent returns a copy of the event scoped to the given agent.
func (e Event) WithAgent(agentID string) Event {
	e.AgentID = agentID
	return e
}

// WithTask returns a copy of the event referencing the given task.
func (e Event) WithTask(taskID string) Event {
	e.TaskID = taskID
	return e
}

// WithPlan returns a copy of the event referencing the given plan.
func (e Event) WithPlan(planID string) Event {
	e.PlanID = planID
	return e
}

// WithMessage returns a copy of the event referencing the given message.
func (e Event) WithMessage(messageID string) Event {
	e.MessageID = messageID
	return e
}

// WithDetail returns a copy of the event carrying free-form detail text.
func (e Event) WithDetail(detail string) Event {
	e.Detail = detail
	return e
}
