package team

import (
	"errors"
	"fmt"
	"time"
)

// Role identifies an agent's position in the team.
type Role string

const (
	// RoleLead is the single orchestrating agent per team.
	RoleLead Role = "lead"

	// RoleTeammate is a worker agent that claims and executes tasks.
	RoleTeammate Role = "teammate"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid returns true if this is a recognized role value.
func (r Role) IsValid() bool {
	return r == RoleLead || r == RoleTeammate
}

// AgentConfig describes one agent in the team roster. Created once as part
// of the immutable team config.
type AgentConfig struct {
	AgentID      string `json:"agentId"`
	Role         Role   `json:"role"`
	Name         string `json:"name,omitempty"`
	Description  string `json:"description,omitempty"`
	EntryScript  string `json:"entryScript,omitempty"`  // teammate only
	SystemPrompt string `json:"systemPrompt,omitempty"` // optional override
}

// Settings holds the timing knobs every process reads from the team config.
// Zero values fall back to the package defaults via the accessor methods.
type Settings struct {
	PollIntervalMs      int `json:"pollIntervalMs"`
	HeartbeatIntervalMs int `json:"heartbeatIntervalMs"`
	HeartbeatTimeoutMs  int `json:"heartbeatTimeoutMs"`
	LockTimeoutMs       int `json:"lockTimeoutMs"`
}

// Default timing values applied when a setting is unset.
const (
	DefaultPollIntervalMs      = 500
	DefaultHeartbeatIntervalMs = 2000
	DefaultHeartbeatTimeoutMs  = 10000
	DefaultLockTimeoutMs       = 5000
)

// PollInterval returns the loop tick interval.
func (s Settings) PollInterval() time.Duration {
	return millis(s.PollIntervalMs, DefaultPollIntervalMs)
}

// HeartbeatInterval returns how often a teammate refreshes its heartbeat.
func (s Settings) HeartbeatInterval() time.Duration {
	return millis(s.HeartbeatIntervalMs, DefaultHeartbeatIntervalMs)
}

// HeartbeatTimeout returns the staleness threshold for crash detection.
func (s Settings) HeartbeatTimeout() time.Duration {
	return millis(s.HeartbeatTimeoutMs, DefaultHeartbeatTimeoutMs)
}

// LockTimeout returns the bound on lock acquisition.
func (s Settings) LockTimeout() time.Duration {
	return millis(s.LockTimeoutMs, DefaultLockTimeoutMs)
}

func millis(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Millisecond
}

// Config is the immutable snapshot written once at team initialization.
type Config struct {
	TeamName  string        `json:"teamName"`
	SessionID string        `json:"sessionId"`
	Agents    []AgentConfig `json:"agents"`
	CreatedAt time.Time     `json:"createdAt"`
	Settings  Settings      `json:"settings"`
}

// Lead returns the lead agent's config and true, or false if the roster has
// no lead.
func (c Config) Lead() (AgentConfig, bool) {
	for _, a := range c.Agents {
		if a.Role == RoleLead {
			return a, true
		}
	}
	return AgentConfig{}, false
}

// Teammates returns the roster's teammate agents in declaration order.
func (c Config) Teammates() []AgentConfig {
	var mates []AgentConfig
	for _, a := range c.Agents {
		if a.Role == RoleTeammate {
			mates = append(mates, a)
		}
	}
	return mates
}

// Agent returns the config for the given agent id.
func (c Config) Agent(agentID string) (AgentConfig, bool) {
	for _, a := range c.Agents {
		if a.AgentID == agentID {
			return a, true
		}
	}
	return AgentConfig{}, false
}

// AgentIDs returns every roster agent id in declaration order.
func (c Config) AgentIDs() []string {
	ids := make([]string, 0, len(c.Agents))
	for _, a := range c.Agents {
		ids = append(ids, a.AgentID)
	}
	return ids
}

// Validate checks that the config can support a coordinated team run.
func (c Config) Validate() error {
	if c.TeamName == "" {
		return errors.New("team config: TeamName is required")
	}
	if c.SessionID == "" {
		return errors.New("team config: SessionID is required")
	}
	if len(c.Agents) == 0 {
		return errors.New("team config: at least one agent is required")
	}

	leads := 0
	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.AgentID == "" {
			return errors.New("team config: agent with empty agentId")
		}
		if seen[a.AgentID] {
			return fmt.Errorf("team config: duplicate agentId %q", a.AgentID)
		}
		seen[a.AgentID] = true
		if !a.Role.IsValid() {
			return fmt.Errorf("team config: agent %q has invalid role %q", a.AgentID, a.Role)
		}
		if a.Role == RoleLead {
			leads++
		}
	}
	if leads != 1 {
		return fmt.Errorf("team config: expected exactly one lead, got %d", leads)
	}
	return nil
}
