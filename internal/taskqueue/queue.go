package taskqueue

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/crewkit/crewkit/internal/transport"
)

const (
	// StateFileName is the queue's persisted state file in the team dir.
	StateFileName = "tasks.json"

	// TasksLockName serializes every queue mutation across processes.
	TasksLockName = "tasks"

	lockDirName = "locks"
)

// Sentinel errors returned by creation operations. Claim/complete/fail do
// not use errors for contention; they return false.
var (
	ErrTaskExists        = errors.New("task id already exists")
	ErrUnknownDependency = errors.New("dependency references unknown task id")
)

// Queue operates on a team's shared task file. Construct one per process;
// all state lives on disk, so any number of processes can share a queue.
type Queue struct {
	path        string
	lockDir     string
	lockTimeout time.Duration
}

// New creates a Queue over the tasks file in teamDir. lockTimeout bounds
// every mutation's lock acquisition.
func New(teamDir string, lockTimeout time.Duration) *Queue {
	return &Queue{
		path:        filepath.Join(teamDir, StateFileName),
		lockDir:     filepath.Join(teamDir, lockDirName),
		lockTimeout: lockTimeout,
	}
}

// withState runs fn on the current persisted state inside the tasks lock.
// If fn reports changed, the whole state is rewritten before the lock is
// released. fn's error aborts without writing.
func (q *Queue) withState(fn func(st *State) (changed bool, err error)) error {
	return transport.WithLock(q.lockDir, TasksLockName, q.lockTimeout, func() error {
		var st State
		if _, err := transport.ReadJSON(q.path, &st); err != nil {
			return err
		}
		changed, err := fn(&st)
		if err != nil || !changed {
			return err
		}
		st.UpdatedAt = time.Now()
		return transport.WriteJSON(q.path, &st)
	})
}

// load reads the current state without the lock. The state file is written
// atomically, so a plain read sees a consistent (possibly one-mutation-old)
// snapshot, which is all read-only callers need.
func (q *Queue) load() (State, error) {
	var st State
	if _, err := transport.ReadJSON(q.path, &st); err != nil {
		return State{}, err
	}
	return st, nil
}

// Create adds a single task. Its initial status is blocked if any listed
// dependency is not yet completed, else pending. Dependencies must reference
// existing task ids.
func (q *Queue) Create(in Input) (Task, error) {
	tasks, err := q.CreateMany([]Input{in})
	if err != nil {
		return Task{}, err
	}
	return tasks[0], nil
}

// CreateMany adds a batch of tasks in one critical section. Dependencies may
// reference existing tasks or other tasks in the batch; anything else is
// ErrUnknownDependency and nothing is created.
func (q *Queue) CreateMany(inputs []Input) ([]Task, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	var created []Task
	err := q.withState(func(st *State) (bool, error) {
		ids := make(map[string]bool, len(st.Tasks)+len(inputs))
		for _, t := range st.Tasks {
			ids[t.ID] = true
		}

		// Assign ids and check uniqueness across the queue and the batch.
		batch := make([]Input, len(inputs))
		copy(batch, inputs)
		for i := range batch {
			if batch[i].ID == "" {
				batch[i].ID = uuid.NewString()
			}
			if ids[batch[i].ID] {
				return false, fmt.Errorf("%w: %s", ErrTaskExists, batch[i].ID)
			}
			ids[batch[i].ID] = true
		}

		for _, in := range batch {
			for _, depID := range in.Dependencies {
				if !ids[depID] {
					return false, fmt.Errorf("%w: task %s depends on %s", ErrUnknownDependency, in.ID, depID)
				}
			}
		}

		now := time.Now()
		for _, in := range batch {
			deps := in.Dependencies
			if deps == nil {
				deps = []string{}
			}
			st.Tasks = append(st.Tasks, Task{
				ID:           in.ID,
				Title:        in.Title,
				Description:  in.Description,
				Status:       StatusPending, // recomputed below
				Dependencies: deps,
				CreatedAt:    now,
				UpdatedAt:    now,
				Metadata:     in.Metadata,
			})
		}

		// Initial status: blocked unless every dependency is completed.
		// Batch-internal dependencies are never completed at creation, so
		// dependents within the batch start blocked.
		for i := range st.Tasks {
			t := &st.Tasks[i]
			if t.Status == StatusPending && !st.depsCompleted(t) {
				t.Status = StatusBlocked
			}
		}

		created = append(created, st.Tasks[len(st.Tasks)-len(batch):]...)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// List returns every task in creation order.
func (q *Queue) List() ([]Task, error) {
	st, err := q.load()
	if err != nil {
		return nil, err
	}
	return st.Tasks, nil
}

// ByStatus returns the tasks currently in the given status, in creation order.
func (q *Queue) ByStatus(status Status) ([]Task, error) {
	st, err := q.load()
	if err != nil {
		return nil, err
	}
	var out []Task
	for _, t := range st.Tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

// Get returns the task with the given id.
func (q *Queue) Get(taskID string) (Task, bool, error) {
	st, err := q.load()
	if err != nil {
		return Task{}, false, err
	}
	t := st.task(taskID)
	if t == nil {
		return Task{}, false, nil
	}
	return *t, true, nil
}

// Claim atomically transitions the task to claimed by agentID. Returns false
// if the task does not exist or is not pending (blocked, already claimed, or
// terminal). The check and the set both happen inside the tasks lock.
func (q *Queue) Claim(taskID, agentID string) (bool, error) {
	claimed := false
	err := q.withState(func(st *State) (bool, error) {
		t := st.task(taskID)
		if t == nil || t.Status != StatusPending {
			return false, nil
		}
		t.Status = StatusClaimed
		t.Assignee = agentID
		t.UpdatedAt = time.Now()
		claimed = true
		return true, nil
	})
	return claimed, err
}

// ClaimNext claims the first pending task in creation order for agentID.
// Returns nil when nothing is claimable.
func (q *Queue) ClaimNext(agentID string) (*Task, error) {
	var claimed *Task
	err := q.withState(func(st *State) (bool, error) {
		for i := range st.Tasks {
			t := &st.Tasks[i]
			if t.Status != StatusPending {
				continue
			}
			t.Status = StatusClaimed
			t.Assignee = agentID
			t.UpdatedAt = time.Now()
			cp := *t
			claimed = &cp
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Complete marks the task completed with an optional result. It succeeds
// only if the task is currently claimed by agentID. On success, still inside
// the same critical section, every blocked task whose dependencies are now
// all completed flips to pending (the dependency-unblocking cascade).
func (q *Queue) Complete(taskID, agentID, result string) (bool, error) {
	done := false
	err := q.withState(func(st *State) (bool, error) {
		t := st.task(taskID)
		if t == nil || t.Status != StatusClaimed || t.Assignee != agentID {
			return false, nil
		}
		now := time.Now()
		t.Status = StatusCompleted
		t.Result = result
		t.UpdatedAt = now

		for i := range st.Tasks {
			dep := &st.Tasks[i]
			if dep.Status == StatusBlocked && st.depsCompleted(dep) {
				dep.Status = StatusPending
				dep.UpdatedAt = now
			}
		}

		done = true
		return true, nil
	})
	return done, err
}

// Fail marks the task failed with an error description. It succeeds only if
// the task is currently claimed by agentID. Dependents are NOT unblocked: a
// failed prerequisite leaves them permanently blocked.
func (q *Queue) Fail(taskID, agentID, errMsg string) (bool, error) {
	failed := false
	err := q.withState(func(st *State) (bool, error) {
		t := st.task(taskID)
		if t == nil || t.Status != StatusClaimed || t.Assignee != agentID {
			return false, nil
		}
		t.Status = StatusFailed
		t.Error = errMsg
		t.UpdatedAt = time.Now()
		failed = true
		return true, nil
	})
	return failed, err
}

// AllDone returns true iff every task is completed or failed. An empty
// queue counts as done.
func (q *Queue) AllDone() (bool, error) {
	st, err := q.load()
	if err != nil {
		return false, err
	}
	for _, t := range st.Tasks {
		if !t.Status.IsTerminal() {
			return false, nil
		}
	}
	return true, nil
}
