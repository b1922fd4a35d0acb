package mailbox

import (
	"encoding/json"
	"time"
)

// MessageType identifies the kind of team message.
type MessageType string

const (
	// MessageText is a free-form text message.
	MessageText MessageType = "text"

	// MessageTaskAssignment directs an agent at a specific task.
	MessageTaskAssignment MessageType = "task_assignment"

	// MessageTaskUpdate reports progress on a task.
	MessageTaskUpdate MessageType = "task_update"

	// MessagePlanSubmission announces a persisted plan awaiting decision.
	MessagePlanSubmission MessageType = "plan_submission"

	// MessagePlanDecision announces the lead's decision on a plan.
	MessagePlanDecision MessageType = "plan_decision"

	// MessageShutdownRequest asks an agent to finish its tick and exit.
	MessageShutdownRequest MessageType = "shutdown_request"

	// MessageShutdownAck confirms an agent is exiting after a request.
	MessageShutdownAck MessageType = "shutdown_ack"

	// MessageIdleNotification tells the lead a teammate found no work.
	MessageIdleNotification MessageType = "idle_notification"

	// MessageCustom carries application-defined payloads.
	MessageCustom MessageType = "custom"
)

// BroadcastRecipient is the special "to" value for messages intended for
// every agent except the sender. It doubles as the broadcast log's file stem.
const BroadcastRecipient = "__broadcast__"

// Message is a single team communication. Immutable once written; the
// transport layer never edits or deletes messages.
type Message struct {
	ID        string          `json:"id"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// IsBroadcast returns true if the message is addressed to all agents.
func (m Message) IsBroadcast() bool {
	return m.To == BroadcastRecipient
}

// EncodePayload marshals v into the message payload.
func (m *Message) EncodePayload(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.Payload = data
	return nil
}

// DecodePayload unmarshals the message payload into out.
func (m Message) DecodePayload(out any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(m.Payload, out)
}
