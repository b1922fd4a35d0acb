package protocol

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/crewkit/crewkit/internal/mailbox"
)

func TestShutdownHandshake(t *testing.T) {
	mb := mailbox.New(t.TempDir())

	if err := RequestShutdown(mb, "lead-1", "worker-1", "all tasks done"); err != nil {
		t.Fatalf("RequestShutdown: %v", err)
	}

	got, err := mb.ReadAll("worker-1")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 1 || !IsShutdownRequest(got[0]) {
		t.Fatalf("worker inbox = %+v, want one shutdown request", got)
	}
	var req ShutdownRequest
	if err := got[0].DecodePayload(&req); err != nil {
		t.Fatal(err)
	}
	if req.Reason != "all tasks done" {
		t.Errorf("reason = %q", req.Reason)
	}

	if err := AcknowledgeShutdown(mb, "worker-1", got[0].From); err != nil {
		t.Fatalf("AcknowledgeShutdown: %v", err)
	}
	acks, err := mb.ReadAll("lead-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(acks) != 1 || !IsShutdownAck(acks[0]) {
		t.Fatalf("lead inbox = %+v, want one shutdown ack", acks)
	}
	var ack ShutdownAck
	if err := acks[0].DecodePayload(&ack); err != nil {
		t.Fatal(err)
	}
	if ack.AgentID != "worker-1" {
		t.Errorf("ack agent = %q", ack.AgentID)
	}
}

func TestBroadcastShutdownReachesEveryoneButSender(t *testing.T) {
	mb := mailbox.New(t.TempDir())

	if err := BroadcastShutdown(mb, "lead-1", "stopping"); err != nil {
		t.Fatalf("BroadcastShutdown: %v", err)
	}

	for _, id := range []string{"worker-1", "worker-2"} {
		got, err := mb.ReadAll(id)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || !IsShutdownRequest(got[0]) {
			t.Errorf("%s inbox = %+v", id, got)
		}
	}
	own, err := mb.ReadAll("lead-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(own) != 0 {
		t.Errorf("sender received own shutdown broadcast")
	}
}

func TestIdleNotification(t *testing.T) {
	mb := mailbox.New(t.TempDir())

	err := NotifyIdle(mb, "worker-1", "lead-1", IdleNotification{AllDone: false, LastTask: "t-3"})
	if err != nil {
		t.Fatalf("NotifyIdle: %v", err)
	}

	got, err := mb.ReadAll("lead-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !IsIdleNotification(got[0]) {
		t.Fatalf("lead inbox = %+v", got)
	}
	var note IdleNotification
	if err := got[0].DecodePayload(&note); err != nil {
		t.Fatal(err)
	}
	if note.AgentID != "worker-1" || note.LastTask != "t-3" {
		t.Errorf("note = %+v", note)
	}
}

func TestSubmitPersistsAndAnnounces(t *testing.T) {
	dir := t.TempDir()
	mb := mailbox.New(dir)
	plans := NewPlans(dir, 5*time.Second)

	plan, err := plans.Submit(mb, "lead-1", Plan{SubmittedBy: "worker-1", Title: "refactor"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if plan.ID == "" || plan.Status != PlanPending || plan.CreatedAt.IsZero() {
		t.Errorf("plan = %+v", plan)
	}

	stored, found, err := plans.Read(plan.ID)
	if err != nil || !found {
		t.Fatalf("Read: %v %v", found, err)
	}
	if stored.Title != "refactor" || stored.Status != PlanPending {
		t.Errorf("stored = %+v", stored)
	}

	got, err := mb.ReadAll("lead-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !IsPlanSubmission(got[0]) {
		t.Fatalf("lead inbox = %+v", got)
	}
	var sub PlanSubmission
	if err := got[0].DecodePayload(&sub); err != nil {
		t.Fatal(err)
	}
	if sub.PlanID != plan.ID || sub.Title != "refactor" {
		t.Errorf("submission = %+v", sub)
	}
}

func TestSubmitRejectsDuplicateID(t *testing.T) {
	dir := t.TempDir()
	mb := mailbox.New(dir)
	plans := NewPlans(dir, 5*time.Second)

	if _, err := plans.Submit(mb, "lead-1", Plan{ID: "p-1", SubmittedBy: "worker-1", Title: "a"}); err != nil {
		t.Fatal(err)
	}
	_, err := plans.Submit(mb, "lead-1", Plan{ID: "p-1", SubmittedBy: "worker-2", Title: "b"})
	if !errors.Is(err, ErrPlanExists) {
		t.Errorf("error = %v, want ErrPlanExists", err)
	}
}

func TestApproveDeliversDecision(t *testing.T) {
	dir := t.TempDir()
	mb := mailbox.New(dir)
	plans := NewPlans(dir, 5*time.Second)

	plan, err := plans.Submit(mb, "lead-1", Plan{SubmittedBy: "worker-1", Title: "refactor"})
	if err != nil {
		t.Fatal(err)
	}

	ok, err := plans.Approve(mb, "lead-1", plan.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if !ok {
		t.Fatal("Approve of pending plan returned false")
	}

	stored, _, err := plans.Read(plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != PlanApproved || stored.DecidedAt == nil {
		t.Errorf("stored = %+v", stored)
	}

	got, err := mb.ReadAll("worker-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !IsPlanDecision(got[0]) {
		t.Fatalf("submitter inbox = %+v", got)
	}
	var dec PlanDecision
	if err := got[0].DecodePayload(&dec); err != nil {
		t.Fatal(err)
	}
	if dec.PlanID != plan.ID || dec.Status != PlanApproved {
		t.Errorf("decision = %+v", dec)
	}
}

func TestRejectRecordsReason(t *testing.T) {
	dir := t.TempDir()
	mb := mailbox.New(dir)
	plans := NewPlans(dir, 5*time.Second)

	plan, err := plans.Submit(mb, "lead-1", Plan{SubmittedBy: "worker-1", Title: "risky"})
	if err != nil {
		t.Fatal(err)
	}

	ok, err := plans.Reject(mb, "lead-1", plan.ID, "too broad")
	if err != nil || !ok {
		t.Fatalf("Reject: %v %v", ok, err)
	}

	stored, _, err := plans.Read(plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != PlanRejected || stored.RejectionReason != "too broad" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestDecisionIsSingleWriter(t *testing.T) {
	dir := t.TempDir()
	mb := mailbox.New(dir)
	plans := NewPlans(dir, 5*time.Second)

	plan, err := plans.Submit(mb, "lead-1", Plan{SubmittedBy: "worker-1", Title: "x"})
	if err != nil {
		t.Fatal(err)
	}

	ok, err := plans.Approve(mb, "lead-1", plan.ID)
	if err != nil || !ok {
		t.Fatalf("Approve: %v %v", ok, err)
	}

	// A retried or conflicting decision is rejected, not applied.
	ok, err = plans.Reject(mb, "lead-1", plan.ID, "changed my mind")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if ok {
		t.Error("second decision on a decided plan succeeded")
	}

	stored, _, err := plans.Read(plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != PlanApproved {
		t.Errorf("status = %s, want approved to stick", stored.Status)
	}
}

func TestDecideMissingPlan(t *testing.T) {
	dir := t.TempDir()
	mb := mailbox.New(dir)
	plans := NewPlans(dir, 5*time.Second)

	ok, err := plans.Approve(mb, "lead-1", "ghost")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if ok {
		t.Error("Approve of missing plan returned true")
	}
}

func TestConcurrentDecisionsExactlyOneApplies(t *testing.T) {
	dir := t.TempDir()
	mb := mailbox.New(dir)
	seed := NewPlans(dir, 5*time.Second)

	plan, err := seed.Submit(mb, "lead-1", Plan{SubmittedBy: "worker-1", Title: "x"})
	if err != nil {
		t.Fatal(err)
	}

	const deciders = 6
	results := make([]bool, deciders)

	var wg sync.WaitGroup
	for i := 0; i < deciders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := NewPlans(dir, 5*time.Second)
			var ok bool
			var err error
			if i%2 == 0 {
				ok, err = p.Approve(mb, "lead-1", plan.ID)
			} else {
				ok, err = p.Reject(mb, "lead-1", plan.ID, "no")
			}
			if err != nil {
				t.Errorf("decide: %v", err)
				return
			}
			results[i] = ok
		}(i)
	}
	wg.Wait()

	applied := 0
	for _, ok := range results {
		if ok {
			applied++
		}
	}
	if applied != 1 {
		t.Errorf("%d decisions applied, want exactly 1", applied)
	}
}
