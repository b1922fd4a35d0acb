package heartbeat

import (
	"os"
	"path/filepath"
	"time"

	"github.com/crewkit/crewkit/internal/transport"
)

// StateDirName is the heartbeat directory under the team dir.
const StateDirName = "state"

// Status is an agent's self-reported liveness state.
type Status string

const (
	// StatusRunning indicates the agent's loop is actively ticking.
	StatusRunning Status = "running"

	// StatusIdle indicates the loop is ticking but found no claimable work.
	StatusIdle Status = "idle"

	// StatusStopped indicates the agent exited cleanly. A stopped record is
	// never considered stale.
	StatusStopped Status = "stopped"
)

// State is one agent's persisted heartbeat record.
type State struct {
	AgentID       string    `json:"agentId"`
	Status        Status    `json:"status"`
	CurrentTask   string    `json:"currentTask,omitempty"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
	PID           int       `json:"pid"`
}

// Stale reports whether the record signals a crash at the given instant: the
// agent claims to be running but has not refreshed within timeout. Idle and
// stopped records never read as stale; an idle loop still refreshes, so a
// crash while idle surfaces only once the agent claims work again.
func (s State) Stale(now time.Time, timeout time.Duration) bool {
	return s.Status == StatusRunning && now.Sub(s.LastHeartbeat) > timeout
}

// Writer maintains a single agent's heartbeat file. Exactly one Writer per
// agent process; it is the file's only writer.
type Writer struct {
	path     string
	agentID  string
	interval time.Duration

	status      Status
	currentTask string
	lastWrite   time.Time
}

// NewWriter creates a Writer for agentID's record in teamDir. interval is the
// minimum spacing between refreshes; Refresh calls inside the interval are
// no-ops.
func NewWriter(teamDir, agentID string, interval time.Duration) *Writer {
	return &Writer{
		path:     filepath.Join(teamDir, StateDirName, agentID+".json"),
		agentID:  agentID,
		interval: interval,
		status:   StatusRunning,
	}
}

// Start writes the initial running record unconditionally.
func (w *Writer) Start() error {
	w.status = StatusRunning
	return w.write()
}

// Refresh rewrites the record if the refresh interval has elapsed since the
// last write. Returns true when a write happened.
func (w *Writer) Refresh() (bool, error) {
	if time.Since(w.lastWrite) < w.interval {
		return false, nil
	}
	return true, w.write()
}

// SetRunning marks the agent as working on taskID and writes immediately.
func (w *Writer) SetRunning(taskID string) error {
	w.status = StatusRunning
	w.currentTask = taskID
	return w.write()
}

// SetIdle marks the agent as alive but unoccupied and writes immediately.
func (w *Writer) SetIdle() error {
	w.status = StatusIdle
	w.currentTask = ""
	return w.write()
}

// Stop writes the final stopped record. After Stop the record never reads as
// stale.
func (w *Writer) Stop() error {
	w.status = StatusStopped
	w.currentTask = ""
	return w.write()
}

func (w *Writer) write() error {
	now := time.Now()
	st := State{
		AgentID:       w.agentID,
		Status:        w.status,
		CurrentTask:   w.currentTask,
		LastHeartbeat: now,
		PID:           os.Getpid(),
	}
	if err := transport.WriteJSON(w.path, st); err != nil {
		return err
	}
	w.lastWrite = now
	return nil
}

// Read returns agentID's current record from teamDir. The second return is
// false when the agent has not written one yet.
func Read(teamDir, agentID string) (State, bool, error) {
	var st State
	found, err := transport.ReadJSON(filepath.Join(teamDir, StateDirName, agentID+".json"), &st)
	if err != nil || !found {
		return State{}, false, err
	}
	return st, true, nil
}
