// Package config holds the operator-facing crewkit configuration, loaded
// through viper from crewkit.yaml, CREWKIT_* environment variables, and
// command-line flags. It is distinct from the team config: this is one
// operator's local settings, not the shared write-once roster.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/crewkit/crewkit/internal/logging"
	"github.com/crewkit/crewkit/internal/team"
)

// Config represents the complete crewkit configuration
type Config struct {
	Team    TeamConfig    `mapstructure:"team"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// TeamConfig controls timing and placement of coordinated teams
type TeamConfig struct {
	// BaseDir is the directory team state directories are created under.
	// Supports ~ for home directory expansion. Defaults to ~/.crewkit/teams.
	BaseDir string `mapstructure:"base_dir"`
	// PollIntervalMs is the loop tick interval for both lead and teammates
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	// HeartbeatIntervalMs is how often a teammate refreshes its heartbeat
	HeartbeatIntervalMs int `mapstructure:"heartbeat_interval_ms"`
	// HeartbeatTimeoutMs is the staleness threshold for crash detection
	HeartbeatTimeoutMs int `mapstructure:"heartbeat_timeout_ms"`
	// LockTimeoutMs bounds how long a mutation waits for the shared file lock
	LockTimeoutMs int `mapstructure:"lock_timeout_ms"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "DEBUG", "INFO", "WARN", "ERROR" (default: "INFO")
	Level string `mapstructure:"level"`
}

// Settings converts the timing knobs into the shared team settings embedded
// in the write-once team config.
func (t *TeamConfig) Settings() team.Settings {
	return team.Settings{
		PollIntervalMs:      t.PollIntervalMs,
		HeartbeatIntervalMs: t.HeartbeatIntervalMs,
		HeartbeatTimeoutMs:  t.HeartbeatTimeoutMs,
		LockTimeoutMs:       t.LockTimeoutMs,
	}
}

// ResolveBaseDir returns the base directory with ~ expanded.
func (t *TeamConfig) ResolveBaseDir() string {
	path := t.BaseDir
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ".crewkit/teams"
		}
		return filepath.Join(home, ".crewkit", "teams")
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}
	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Team: TeamConfig{
			BaseDir:             "",
			PollIntervalMs:      team.DefaultPollIntervalMs,
			HeartbeatIntervalMs: team.DefaultHeartbeatIntervalMs,
			HeartbeatTimeoutMs:  team.DefaultHeartbeatTimeoutMs,
			LockTimeoutMs:       team.DefaultLockTimeoutMs,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   logging.LevelInfo,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("team.base_dir", defaults.Team.BaseDir)
	viper.SetDefault("team.poll_interval_ms", defaults.Team.PollIntervalMs)
	viper.SetDefault("team.heartbeat_interval_ms", defaults.Team.HeartbeatIntervalMs)
	viper.SetDefault("team.heartbeat_timeout_ms", defaults.Team.HeartbeatTimeoutMs)
	viper.SetDefault("team.lock_timeout_ms", defaults.Team.LockTimeoutMs)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() []error {
	var errs []error

	check := func(name string, v int) {
		if v < 0 {
			errs = append(errs, fmt.Errorf("team.%s must not be negative, got %d", name, v))
		}
	}
	check("poll_interval_ms", c.Team.PollIntervalMs)
	check("heartbeat_interval_ms", c.Team.HeartbeatIntervalMs)
	check("heartbeat_timeout_ms", c.Team.HeartbeatTimeoutMs)
	check("lock_timeout_ms", c.Team.LockTimeoutMs)

	if c.Team.HeartbeatTimeoutMs > 0 && c.Team.HeartbeatIntervalMs > 0 &&
		c.Team.HeartbeatTimeoutMs <= c.Team.HeartbeatIntervalMs {
		errs = append(errs, fmt.Errorf(
			"team.heartbeat_timeout_ms (%d) must exceed team.heartbeat_interval_ms (%d) or every teammate reads as crashed",
			c.Team.HeartbeatTimeoutMs, c.Team.HeartbeatIntervalMs))
	}

	level := strings.ToUpper(c.Logging.Level)
	valid := false
	for _, l := range logging.ValidLevels() {
		if level == l {
			valid = true
			break
		}
	}
	if !valid {
		errs = append(errs, fmt.Errorf("logging.level %q is not one of %v", c.Logging.Level, logging.ValidLevels()))
	}

	return errs
}

// ValidationErrors aggregates validation failures into one error.
type ValidationErrors []error

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, err := range v {
		msgs[i] = err.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "crewkit")
	}
	// Fall back to ~/.config/crewkit
	home, err := os.UserHomeDir()
	if err != nil {
		return ".crewkit"
	}
	return filepath.Join(home, ".config", "crewkit")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "crewkit.yaml")
}
