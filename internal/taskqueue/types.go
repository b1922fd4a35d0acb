package taskqueue

import "time"

// Status represents the current state of a task.
type Status string

const (
	// StatusPending indicates the task is claimable.
	StatusPending Status = "pending"

	// StatusBlocked indicates at least one dependency is not completed.
	StatusBlocked Status = "blocked"

	// StatusClaimed indicates exactly one agent is working the task.
	StatusClaimed Status = "claimed"

	// StatusCompleted indicates the task finished successfully. Terminal.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the task failed. Terminal; dependents of a
	// failed task stay blocked permanently.
	StatusFailed Status = "failed"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is a single unit of work in the shared queue.
type Task struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	Status       Status            `json:"status"`
	Assignee     string            `json:"assignee,omitempty"`
	Dependencies []string          `json:"dependencies"`
	Result       string            `json:"result,omitempty"`
	Error        string            `json:"error,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Input describes a task to create. An empty ID gets a generated one.
type Input struct {
	ID           string            `json:"id,omitempty"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	Dependencies []string          `json:"dependencies,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// State is the sole persisted representation of the queue. Task order is
// creation order, which is also the claim-scan order.
type State struct {
	Tasks     []Task    `json:"tasks"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// task returns a pointer to the task with the given id, or nil.
func (s *State) task(id string) *Task {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return &s.Tasks[i]
		}
	}
	return nil
}

// depsCompleted returns true if every dependency of t is completed.
func (s *State) depsCompleted(t *Task) bool {
	for _, depID := range t.Dependencies {
		dep := s.task(depID)
		if dep == nil || dep.Status != StatusCompleted {
			return false
		}
	}
	return true
}
