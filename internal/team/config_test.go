package team

import (
	"errors"
	"os"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		TeamName:  "demo",
		SessionID: "sess-1",
		Agents: []AgentConfig{
			{AgentID: "lead-1", Role: RoleLead, Name: "Lead"},
			{AgentID: "worker-1", Role: RoleTeammate, EntryScript: "./worker.sh"},
			{AgentID: "worker-2", Role: RoleTeammate, EntryScript: "./worker.sh"},
		},
	}
}

func TestWriteAndLoadConfig(t *testing.T) {
	baseDir := t.TempDir()
	cfg := testConfig()

	if err := WriteConfig(baseDir, cfg); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}

	loaded, err := LoadConfig(baseDir, "demo")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.TeamName != "demo" || loaded.SessionID != "sess-1" {
		t.Errorf("loaded = %+v", loaded)
	}
	if len(loaded.Agents) != 3 {
		t.Fatalf("got %d agents, want 3", len(loaded.Agents))
	}
	if loaded.CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped on write")
	}
}

func TestWriteConfigIsWriteOnce(t *testing.T) {
	baseDir := t.TempDir()

	if err := WriteConfig(baseDir, testConfig()); err != nil {
		t.Fatalf("first WriteConfig: %v", err)
	}

	err := WriteConfig(baseDir, testConfig())
	if !errors.Is(err, ErrConfigExists) {
		t.Errorf("second WriteConfig error = %v, want ErrConfigExists", err)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(t.TempDir(), "ghost")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("error = %v, want ErrConfigNotFound", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"empty team name", func(c *Config) { c.TeamName = "" }, true},
		{"empty session id", func(c *Config) { c.SessionID = "" }, true},
		{"no agents", func(c *Config) { c.Agents = nil }, true},
		{"duplicate agent id", func(c *Config) { c.Agents[1].AgentID = "lead-1" }, true},
		{"invalid role", func(c *Config) { c.Agents[1].Role = "manager" }, true},
		{"no lead", func(c *Config) { c.Agents[0].Role = RoleTeammate }, true},
		{"two leads", func(c *Config) { c.Agents[1].Role = RoleLead }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRosterAccessors(t *testing.T) {
	cfg := testConfig()

	lead, ok := cfg.Lead()
	if !ok || lead.AgentID != "lead-1" {
		t.Errorf("Lead() = %+v, %v", lead, ok)
	}

	mates := cfg.Teammates()
	if len(mates) != 2 || mates[0].AgentID != "worker-1" || mates[1].AgentID != "worker-2" {
		t.Errorf("Teammates() = %+v", mates)
	}

	if _, ok := cfg.Agent("worker-2"); !ok {
		t.Error("Agent(worker-2) not found")
	}
	if _, ok := cfg.Agent("stranger"); ok {
		t.Error("Agent(stranger) unexpectedly found")
	}
}

func TestSettingsDefaults(t *testing.T) {
	var s Settings
	if s.PollInterval() != DefaultPollIntervalMs*time.Millisecond {
		t.Errorf("PollInterval default = %s", s.PollInterval())
	}
	if s.HeartbeatTimeout() != DefaultHeartbeatTimeoutMs*time.Millisecond {
		t.Errorf("HeartbeatTimeout default = %s", s.HeartbeatTimeout())
	}

	s = Settings{PollIntervalMs: 50, HeartbeatIntervalMs: 100, HeartbeatTimeoutMs: 300, LockTimeoutMs: 75}
	if s.PollInterval() != 50*time.Millisecond {
		t.Errorf("PollInterval = %s, want 50ms", s.PollInterval())
	}
	if s.LockTimeout() != 75*time.Millisecond {
		t.Errorf("LockTimeout = %s, want 75ms", s.LockTimeout())
	}
}

func TestIdentityEnvRoundTrip(t *testing.T) {
	t.Setenv(EnvTeamName, "demo")
	t.Setenv(EnvBaseDir, "/tmp/teams")
	t.Setenv(EnvAgentID, "worker-1")
	t.Setenv(EnvSessionID, "sess-9")
	t.Setenv(EnvSystemPrompt, "be helpful")
	t.Setenv(EnvTraceID, "trace-1")

	id, err := IdentityFromEnv()
	if err != nil {
		t.Fatalf("IdentityFromEnv: %v", err)
	}
	if id.TeamName != "demo" || id.AgentID != "worker-1" || id.SystemPrompt != "be helpful" {
		t.Errorf("identity = %+v", id)
	}

	env := id.Environ(nil)
	want := map[string]bool{
		EnvTeamName + "=demo":           true,
		EnvAgentID + "=worker-1":        true,
		EnvSessionID + "=sess-9":        true,
		EnvTraceID + "=trace-1":         true,
		EnvSystemPrompt + "=be helpful": true,
	}
	found := 0
	for _, kv := range env {
		if want[kv] {
			found++
		}
	}
	if found != len(want) {
		t.Errorf("Environ missing entries: %v", env)
	}
}

func TestIdentityFromEnvMissingRequired(t *testing.T) {
	for _, key := range []string{EnvTeamName, EnvBaseDir, EnvAgentID, EnvSessionID, EnvSystemPrompt, EnvTraceID, EnvParentSpanID} {
		os.Unsetenv(key)
	}
	t.Setenv(EnvTeamName, "demo")
	t.Setenv(EnvBaseDir, "/tmp/teams")

	if _, err := IdentityFromEnv(); err == nil {
		t.Error("IdentityFromEnv succeeded without agent id and session id")
	}
}
