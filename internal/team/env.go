package team

import (
	"fmt"
	"os"
)

// Environment variables carrying a spawned teammate's identity.
const (
	EnvTeamName     = "AGENT_TEAM_NAME"
	EnvBaseDir      = "AGENT_TEAM_BASE_DIR"
	EnvAgentID      = "AGENT_TEAM_AGENT_ID"
	EnvSessionID    = "AGENT_TEAM_SESSION_ID"
	EnvSystemPrompt = "AGENT_TEAM_SYSTEM_PROMPT"
	EnvTraceID      = "AGENT_TEAM_TRACE_ID"
	EnvParentSpanID = "AGENT_TEAM_PARENT_SPAN_ID"
)

// Identity is the per-process identity a teammate receives through its
// environment at spawn time.
type Identity struct {
	TeamName     string
	BaseDir      string
	AgentID      string
	SessionID    string
	SystemPrompt string
	TraceID      string
	ParentSpanID string
}

// IdentityFromEnv reads the process identity from the environment. The
// team name, base directory, agent id, and session id are required; the
// rest are optional.
func IdentityFromEnv() (Identity, error) {
	id := Identity{
		TeamName:     os.Getenv(EnvTeamName),
		BaseDir:      os.Getenv(EnvBaseDir),
		AgentID:      os.Getenv(EnvAgentID),
		SessionID:    os.Getenv(EnvSessionID),
		SystemPrompt: os.Getenv(EnvSystemPrompt),
		TraceID:      os.Getenv(EnvTraceID),
		ParentSpanID: os.Getenv(EnvParentSpanID),
	}

	for _, req := range []struct{ key, val string }{
		{EnvTeamName, id.TeamName},
		{EnvBaseDir, id.BaseDir},
		{EnvAgentID, id.AgentID},
		{EnvSessionID, id.SessionID},
	} {
		if req.val == "" {
			return Identity{}, fmt.Errorf("team: %s is not set", req.key)
		}
	}
	return id, nil
}

// Environ appends the identity's environment variables to base (typically
// os.Environ()) for passing to a spawned process. Empty optional fields are
// omitted.
func (id Identity) Environ(base []string) []string {
	env := append([]string(nil), base...)
	env = append(env,
		EnvTeamName+"="+id.TeamName,
		EnvBaseDir+"="+id.BaseDir,
		EnvAgentID+"="+id.AgentID,
		EnvSessionID+"="+id.SessionID,
	)
	if id.SystemPrompt != "" {
		env = append(env, EnvSystemPrompt+"="+id.SystemPrompt)
	}
	if id.TraceID != "" {
		env = append(env, EnvTraceID+"="+id.TraceID)
	}
	if id.ParentSpanID != "" {
		env = append(env, EnvParentSpanID+"="+id.ParentSpanID)
	}
	return env
}

// TeamDir returns the identity's team directory.
func (id Identity) TeamDir() string {
	return Dir(id.BaseDir, id.TeamName)
}
