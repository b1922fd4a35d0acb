package team

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/crewkit/crewkit/internal/transport"
)

// File and directory names under {baseDir}/{teamName}/.
const (
	ConfigFileName = "config.json"
	LockDirName    = "locks"

	// ConfigLockName serializes config creation across processes.
	ConfigLockName = "config"
)

// ErrConfigNotFound indicates no team config exists at the expected path.
var ErrConfigNotFound = errors.New("team config not found")

// ErrConfigExists indicates a config has already been written for the team.
var ErrConfigExists = errors.New("team config already written")

// Dir returns the team's root directory under baseDir.
func Dir(baseDir, teamName string) string {
	return filepath.Join(baseDir, teamName)
}

// LockDir returns the directory holding the team's lock files.
func LockDir(teamDir string) string {
	return filepath.Join(teamDir, LockDirName)
}

// WriteConfig persists cfg as the team's write-once config. Creation runs
// under the config lock so two leads racing to initialize the same team
// directory cannot both succeed. CreatedAt is stamped here if unset.
func WriteConfig(baseDir string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now()
	}

	teamDir := Dir(baseDir, cfg.TeamName)
	path := filepath.Join(teamDir, ConfigFileName)

	err := transport.WithLock(LockDir(teamDir), ConfigLockName, cfg.Settings.LockTimeout(), func() error {
		return transport.WriteJSONExclusive(path, cfg)
	})
	if errors.Is(err, transport.ErrAlreadyExists) {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	return err
}

// LoadConfig reads the team config for teamName under baseDir. Plain read,
// no lock: the file is written once via temp-free O_EXCL create and never
// mutated afterwards.
func LoadConfig(baseDir, teamName string) (Config, error) {
	path := filepath.Join(Dir(baseDir, teamName), ConfigFileName)

	var cfg Config
	ok, err := transport.ReadJSON(path, &cfg)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}
	return cfg, nil
}
