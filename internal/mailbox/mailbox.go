package mailbox

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"

	"github.com/crewkit/crewkit/internal/transport"
)

const (
	// messagesDirName is the directory under the team dir holding all logs.
	messagesDirName = "messages"

	// cursorsDirName holds per-reader cursor files inside the messages dir.
	cursorsDirName = "cursors"
)

// Mailbox provides per-agent inboxes and a broadcast channel over a team
// directory. Construct one per process; it holds no shared in-memory state,
// so any number of processes can operate on the same directory.
type Mailbox struct {
	dir string // the messages directory
}

// New creates a Mailbox rooted at the given team directory. Files are
// created lazily on first send.
func New(teamDir string) *Mailbox {
	return &Mailbox{dir: filepath.Join(teamDir, messagesDirName)}
}

// logPath returns the JSONL log for a recipient (agent id or broadcast).
func (m *Mailbox) logPath(recipient string) string {
	return filepath.Join(m.dir, recipient+".json")
}

// cursorPath returns the cursor file for a reading agent.
func (m *Mailbox) cursorPath(agentID string) string {
	return filepath.Join(m.dir, cursorsDirName, agentID+".json")
}

// Send appends msg to the recipient's log. The ID and Timestamp fields are
// populated if empty. No lock is taken: each message is a single O_APPEND
// line write.
func (m *Mailbox) Send(msg Message) error {
	if msg.From == "" {
		return fmt.Errorf("mailbox: message From is required")
	}
	if msg.To == "" {
		return fmt.Errorf("mailbox: message To is required")
	}
	if msg.Type == "" {
		return fmt.Errorf("mailbox: message Type is required")
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	return transport.AppendLine(m.logPath(msg.To), msg)
}

// Broadcast sends msg to every agent except the sender by appending it to
// the shared broadcast log.
func (m *Mailbox) Broadcast(msg Message) error {
	msg.To = BroadcastRecipient
	return m.Send(msg)
}

// SendMatching sends msg to every roster agent whose id matches the glob
// pattern, excluding the sender. Returns the recipient count.
func (m *Mailbox) SendMatching(pattern string, roster []string, msg Message) (int, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("mailbox: compile pattern %q: %w", pattern, err)
	}

	sent := 0
	for _, agentID := range roster {
		if agentID == msg.From || !g.Match(agentID) {
			continue
		}
		msg.To = agentID
		msg.ID = "" // fresh id per recipient
		if err := m.Send(msg); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// cursor records how far an agent has read into its inbox and the broadcast
// log, as raw line counts. Each cursor file has exactly one writer (the
// reading agent), so it is written atomically without a lock.
type cursor struct {
	Inbox     int `json:"inbox"`
	Broadcast int `json:"broadcast"`
}

// ReadAll returns every message newly visible to agentID since its last call
// (own inbox plus broadcasts from other agents) and advances the agent's
// read cursor. Messages are ordered by timestamp with file order preserved
// for equal stamps, which keeps per-sender send order intact.
func (m *Mailbox) ReadAll(agentID string) ([]Message, error) {
	if agentID == "" {
		return nil, fmt.Errorf("mailbox: agentID is required")
	}

	var cur cursor
	if _, err := transport.ReadJSON(m.cursorPath(agentID), &cur); err != nil {
		return nil, err
	}

	inbox, inboxTotal, err := m.readLog(m.logPath(agentID), cur.Inbox)
	if err != nil {
		return nil, err
	}
	bcast, bcastTotal, err := m.readLog(m.logPath(BroadcastRecipient), cur.Broadcast)
	if err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(inbox)+len(bcast))
	msgs = append(msgs, inbox...)
	for _, msg := range bcast {
		// A sender never receives its own broadcasts.
		if msg.From != agentID {
			msgs = append(msgs, msg)
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})

	cur.Inbox = inboxTotal
	cur.Broadcast = bcastTotal
	if err := transport.WriteJSON(m.cursorPath(agentID), cur); err != nil {
		return nil, err
	}
	return msgs, nil
}

// readLog parses the log at path starting after the first `from` lines.
// It returns the new messages and the consumed line count. Parsing stops at
// the first malformed line: logs are append-only, so a malformed line can
// only be a writer's in-flight final line, and the cursor must not skip it.
func (m *Mailbox) readLog(path string, from int) ([]Message, int, error) {
	lines, err := transport.ReadLines(path)
	if err != nil {
		return nil, from, err
	}
	if from > len(lines) {
		// Cursor beyond the log (log replaced or cursor corrupted); resync
		// to the end rather than re-delivering the whole history.
		return nil, len(lines), nil
	}

	msgs := make([]Message, 0, len(lines)-from)
	consumed := from
	for _, line := range lines[from:] {
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			break
		}
		msgs = append(msgs, msg)
		consumed++
	}
	return msgs, consumed, nil
}
