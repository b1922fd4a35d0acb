package protocol

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/crewkit/crewkit/internal/mailbox"
	"github.com/crewkit/crewkit/internal/transport"
)

const (
	// PlansDirName is the plan record directory under the team dir.
	PlansDirName = "plans"

	// PlansLockName serializes plan decisions across processes.
	PlansLockName = "plans"

	lockDirName = "locks"
)

// ErrPlanExists is returned when submitting a plan whose id is already taken.
var ErrPlanExists = errors.New("plan id already exists")

// PlanStatus is a plan's decision state.
type PlanStatus string

const (
	// PlanPending indicates the plan awaits the lead's decision.
	PlanPending PlanStatus = "pending"

	// PlanApproved is terminal.
	PlanApproved PlanStatus = "approved"

	// PlanRejected is terminal.
	PlanRejected PlanStatus = "rejected"
)

// Plan is a persisted proposal by a teammate, decided exactly once by the
// lead.
type Plan struct {
	ID              string     `json:"id"`
	SubmittedBy     string     `json:"submittedBy"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Status          PlanStatus `json:"status"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	DecidedAt       *time.Time `json:"decidedAt,omitempty"`
}

// PlanSubmission is the payload of a plan_submission message.
type PlanSubmission struct {
	PlanID string `json:"planId"`
	Title  string `json:"title"`
}

// PlanDecision is the payload of a plan_decision message.
type PlanDecision struct {
	PlanID string     `json:"planId"`
	Status PlanStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
}

// Plans manages the team's persisted plan records.
type Plans struct {
	dir         string
	lockDir     string
	lockTimeout time.Duration
}

// NewPlans creates a Plans store over teamDir.
func NewPlans(teamDir string, lockTimeout time.Duration) *Plans {
	return &Plans{
		dir:         filepath.Join(teamDir, PlansDirName),
		lockDir:     filepath.Join(teamDir, lockDirName),
		lockTimeout: lockTimeout,
	}
}

func (p *Plans) path(planID string) string {
	return filepath.Join(p.dir, planID+".json")
}

// Submit persists a new pending plan and announces it to the lead with a
// plan_submission message. An empty id gets a generated one.
func (p *Plans) Submit(mb *mailbox.Mailbox, lead string, plan Plan) (Plan, error) {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	plan.Status = PlanPending
	plan.RejectionReason = ""
	plan.CreatedAt = time.Now()
	plan.DecidedAt = nil

	if err := transport.WriteJSONExclusive(p.path(plan.ID), plan); err != nil {
		if errors.Is(err, transport.ErrAlreadyExists) {
			return Plan{}, ErrPlanExists
		}
		return Plan{}, err
	}

	msg := mailbox.Message{From: plan.SubmittedBy, To: lead, Type: mailbox.MessagePlanSubmission}
	if err := msg.EncodePayload(PlanSubmission{PlanID: plan.ID, Title: plan.Title}); err != nil {
		return Plan{}, err
	}
	if err := mb.Send(msg); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// Read returns the plan with the given id. The second return is false when no
// such plan exists.
func (p *Plans) Read(planID string) (Plan, bool, error) {
	var plan Plan
	found, err := transport.ReadJSON(p.path(planID), &plan)
	if err != nil || !found {
		return Plan{}, false, err
	}
	return plan, true, nil
}

// Approve decides the plan in the submitter's favor and notifies them.
// Returns false without error if the plan is missing or already decided.
func (p *Plans) Approve(mb *mailbox.Mailbox, decider, planID string) (bool, error) {
	return p.decide(mb, decider, planID, PlanApproved, "")
}

// Reject decides against the plan with a reason and notifies the submitter.
// Returns false without error if the plan is missing or already decided.
func (p *Plans) Reject(mb *mailbox.Mailbox, decider, planID, reason string) (bool, error) {
	return p.decide(mb, decider, planID, PlanRejected, reason)
}

// decide performs the single-writer pending transition under the plans lock,
// then sends the plan_decision message after the record is durable.
func (p *Plans) decide(mb *mailbox.Mailbox, decider, planID string, status PlanStatus, reason string) (bool, error) {
	var decided Plan
	ok := false
	err := transport.WithLock(p.lockDir, PlansLockName, p.lockTimeout, func() error {
		var plan Plan
		found, err := transport.ReadJSON(p.path(planID), &plan)
		if err != nil {
			return err
		}
		if !found || plan.Status != PlanPending {
			return nil
		}
		now := time.Now()
		plan.Status = status
		plan.RejectionReason = reason
		plan.DecidedAt = &now
		if err := transport.WriteJSON(p.path(planID), plan); err != nil {
			return err
		}
		decided = plan
		ok = true
		return nil
	})
	if err != nil || !ok {
		return false, err
	}

	msg := mailbox.Message{From: decider, To: decided.SubmittedBy, Type: mailbox.MessagePlanDecision}
	if err := msg.EncodePayload(PlanDecision{PlanID: planID, Status: status, Reason: reason}); err != nil {
		return false, err
	}
	if err := mb.Send(msg); err != nil {
		return false, err
	}
	return true, nil
}

// IsPlanSubmission reports whether the message announces a new plan.
func IsPlanSubmission(msg mailbox.Message) bool {
	return msg.Type == mailbox.MessagePlanSubmission
}

// IsPlanDecision reports whether the message carries a plan decision.
func IsPlanDecision(msg mailbox.Message) bool {
	return msg.Type == mailbox.MessagePlanDecision
}
