// Package internal contains integration tests that verify the coordination
// packages work together: a lead and several teammate runners sharing one
// team directory, exchanging work through the task queue and mailbox.
package internal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/crewkit/crewkit/internal/event"
	"github.com/crewkit/crewkit/internal/lead"
	"github.com/crewkit/crewkit/internal/protocol"
	"github.com/crewkit/crewkit/internal/taskqueue"
	"github.com/crewkit/crewkit/internal/team"
	"github.com/crewkit/crewkit/internal/teammate"
)

func integrationConfig() team.Config {
	return team.Config{
		TeamName:  "integration",
		SessionID: "session-1",
		Agents: []team.AgentConfig{
			{AgentID: "lead-1", Role: team.RoleLead},
			{AgentID: "worker-1", Role: team.RoleTeammate},
			{AgentID: "worker-2", Role: team.RoleTeammate},
		},
		Settings: team.Settings{
			PollIntervalMs:      10,
			HeartbeatIntervalMs: 10,
			HeartbeatTimeoutMs:  5000,
			LockTimeoutMs:       5000,
		},
	}
}

func identity(base, agentID string) team.Identity {
	return team.Identity{
		TeamName:  "integration",
		BaseDir:   base,
		AgentID:   agentID,
		SessionID: "session-1",
	}
}

// TestTeamDrainsQueueAndShutsDown runs a full in-process team lifecycle:
// the lead seeds dependent tasks, two runners claim and execute them, the
// lead observes completion, requests shutdown, and collects both acks.
func TestTeamDrainsQueueAndShutsDown(t *testing.T) {
	base := t.TempDir()
	cfg := integrationConfig()

	tm := lead.New(base, cfg)
	if err := tm.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if _, err := tm.Queue().CreateMany([]taskqueue.Input{
		{ID: "build", Title: "build"},
		{ID: "test", Title: "test", Dependencies: []string{"build"}},
		{ID: "package", Title: "package", Dependencies: []string{"test"}},
	}); err != nil {
		t.Fatalf("CreateMany: %v", err)
	}

	exec := func(ctx context.Context, task taskqueue.Task) (string, error) {
		return "done " + task.ID, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for _, workerID := range []string{"worker-1", "worker-2"} {
		runner := teammate.NewRunner(identity(base, workerID), cfg, teammate.WithExecutor(exec))
		events, err := runner.Run(ctx)
		if err != nil {
			t.Fatalf("runner Run: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range events {
			}
		}()
	}

	leadEvents, err := tm.Run(ctx)
	if err != nil {
		t.Fatalf("lead Run: %v", err)
	}

	exited := make(map[string]bool)
	shutdownSent := false
	var terminal event.Event
	for ev := range leadEvents {
		switch ev.Type {
		case event.TypeAllTasksDone:
			if !shutdownSent {
				shutdownSent = true
				if err := protocol.BroadcastShutdown(tm.Mailbox(), "lead-1", "done"); err != nil {
					t.Fatalf("BroadcastShutdown: %v", err)
				}
			}
		case event.TypeTeammateExited:
			exited[ev.AgentID] = true
			if len(exited) == 2 {
				tm.Stop()
			}
		case event.TypeShutdownComplete:
			terminal = ev
		case event.TypeTeammateCrashed:
			t.Errorf("unexpected crash event: %+v", ev)
		}
	}
	wg.Wait()

	if terminal.Type != event.TypeShutdownComplete {
		t.Fatal("lead loop ended without shutdown_complete")
	}
	if !exited["worker-1"] || !exited["worker-2"] {
		t.Errorf("exited = %v, want both workers", exited)
	}

	// Every task completed, dependencies honored.
	tasks, err := tm.Queue().List()
	if err != nil {
		t.Fatal(err)
	}
	for _, task := range tasks {
		if task.Status != taskqueue.StatusCompleted {
			t.Errorf("task %s = %s, want completed", task.ID, task.Status)
		}
		if task.Result != "done "+task.ID {
			t.Errorf("task %s result = %q", task.ID, task.Result)
		}
	}

	done, err := tm.Queue().AllDone()
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Error("AllDone = false after full drain")
	}
}

// TestPlanRoundTrip drives the plan protocol across the lead and a
// teammate: submit, observe plan_submitted, approve, observe the decision.
func TestPlanRoundTrip(t *testing.T) {
	base := t.TempDir()
	cfg := integrationConfig()

	tm := lead.New(base, cfg)
	if err := tm.Initialize(); err != nil {
		t.Fatal(err)
	}
	plans := protocol.NewPlans(tm.Dir(), 5*time.Second)

	plan, err := plans.Submit(tm.Mailbox(), "lead-1", protocol.Plan{
		SubmittedBy: "worker-1",
		Title:       "split the refactor",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	events, err := tm.Tick()
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	submitted := false
	for _, ev := range events {
		if ev.Type == event.TypePlanSubmitted && ev.PlanID == plan.ID {
			submitted = true
		}
	}
	if !submitted {
		t.Fatalf("lead tick = %+v, want plan_submitted for %s", events, plan.ID)
	}

	ok, err := plans.Approve(tm.Mailbox(), "lead-1", plan.ID)
	if err != nil || !ok {
		t.Fatalf("Approve: %v %v", ok, err)
	}

	// The submitter's next drain carries the decision.
	runner := teammate.NewRunner(identity(base, "worker-1"), cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	runnerEvents, err := runner.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}

	sawDecision := false
	for ev := range runnerEvents {
		if ev.Type == event.TypeMessageReceived && ev.Detail == "plan_decision" {
			sawDecision = true
			cancel()
		}
	}
	if !sawDecision {
		t.Error("teammate never observed the plan decision")
	}
}
