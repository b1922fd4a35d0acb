package protocol

import "github.com/crewkit/crewkit/internal/mailbox"

// ShutdownRequest is the payload of a shutdown_request message.
type ShutdownRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ShutdownAck is the payload of a shutdown_ack message.
type ShutdownAck struct {
	AgentID string `json:"agentId"`
}

// RequestShutdown asks one agent to finish its current tick and exit.
func RequestShutdown(mb *mailbox.Mailbox, from, to, reason string) error {
	msg := mailbox.Message{From: from, To: to, Type: mailbox.MessageShutdownRequest}
	if err := msg.EncodePayload(ShutdownRequest{Reason: reason}); err != nil {
		return err
	}
	return mb.Send(msg)
}

// BroadcastShutdown asks every other agent to exit.
func BroadcastShutdown(mb *mailbox.Mailbox, from, reason string) error {
	msg := mailbox.Message{From: from, Type: mailbox.MessageShutdownRequest}
	if err := msg.EncodePayload(ShutdownRequest{Reason: reason}); err != nil {
		return err
	}
	return mb.Broadcast(msg)
}

// AcknowledgeShutdown confirms to the requester that the agent is exiting.
func AcknowledgeShutdown(mb *mailbox.Mailbox, from, requester string) error {
	msg := mailbox.Message{From: from, To: requester, Type: mailbox.MessageShutdownAck}
	if err := msg.EncodePayload(ShutdownAck{AgentID: from}); err != nil {
		return err
	}
	return mb.Send(msg)
}

// IsShutdownRequest reports whether the message asks its reader to exit.
func IsShutdownRequest(msg mailbox.Message) bool {
	return msg.Type == mailbox.MessageShutdownRequest
}

// IsShutdownAck reports whether the message confirms an agent's exit.
func IsShutdownAck(msg mailbox.Message) bool {
	return msg.Type == mailbox.MessageShutdownAck
}
