package protocol

import "github.com/crewkit/crewkit/internal/mailbox"

// IdleNotification is the payload of an idle_notification message. It is
// advisory: the lead may observe it after the sender has already claimed new
// work.
type IdleNotification struct {
	AgentID  string `json:"agentId"`
	AllDone  bool   `json:"allDone"`
	LastTask string `json:"lastTask,omitempty"`
}

// NotifyIdle tells the lead the agent found nothing claimable this tick.
func NotifyIdle(mb *mailbox.Mailbox, from, lead string, note IdleNotification) error {
	note.AgentID = from
	msg := mailbox.Message{From: from, To: lead, Type: mailbox.MessageIdleNotification}
	if err := msg.EncodePayload(note); err != nil {
		return err
	}
	return mb.Send(msg)
}

// IsIdleNotification reports whether the message is an idle notification.
func IsIdleNotification(msg mailbox.Message) bool {
	return msg.Type == mailbox.MessageIdleNotification
}
