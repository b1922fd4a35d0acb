// Package loader parses the operator's YAML team file: the roster of
// teammates to spawn and the initial tasks to seed the shared queue with.
package loader

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/crewkit/crewkit/internal/taskqueue"
	"github.com/crewkit/crewkit/internal/team"
)

// TeamFile is the on-disk YAML description of a team run.
type TeamFile struct {
	Team   string      `yaml:"team"`
	Agents []AgentSpec `yaml:"agents"`
	Tasks  []TaskSpec  `yaml:"tasks"`
}

// AgentSpec describes one teammate to spawn. The lead is implicit and is not
// listed in the file.
type AgentSpec struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	EntryScript  string `yaml:"entryScript"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// TaskSpec describes one task to seed the queue with.
type TaskSpec struct {
	ID          string            `yaml:"id"`
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	DependsOn   []string          `yaml:"dependsOn"`
	Command     string            `yaml:"command"`
	Metadata    map[string]string `yaml:"metadata"`
}

// CommandMetadataKey is the task metadata key the shell executor reads.
const CommandMetadataKey = "command"

// Parse decodes a team file, rejecting unknown fields so typos surface
// instead of silently dropping configuration.
func Parse(data []byte) (*TeamFile, error) {
	var tf TeamFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&tf); err != nil {
		return nil, fmt.Errorf("loader: parsing team file: %w", err)
	}
	if tf.Team == "" {
		return nil, fmt.Errorf("loader: team file has no team name")
	}
	if len(tf.Agents) == 0 {
		return nil, fmt.Errorf("loader: team file lists no agents")
	}
	for i, a := range tf.Agents {
		if a.ID == "" {
			return nil, fmt.Errorf("loader: agent %d has no id", i)
		}
	}
	for i, t := range tf.Tasks {
		if t.Title == "" {
			return nil, fmt.Errorf("loader: task %d has no title", i)
		}
	}
	return &tf, nil
}

// Load reads and parses the team file at path.
func Load(path string) (*TeamFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: reading team file: %w", err)
	}
	return Parse(data)
}

// Roster converts the file's agents into the team config roster, prepending
// a lead with the given agent id.
func (tf *TeamFile) Roster(leadID string) []team.AgentConfig {
	agents := make([]team.AgentConfig, 0, len(tf.Agents)+1)
	agents = append(agents, team.AgentConfig{AgentID: leadID, Role: team.RoleLead})
	for _, a := range tf.Agents {
		agents = append(agents, team.AgentConfig{
			AgentID:      a.ID,
			Role:         team.RoleTeammate,
			Name:         a.Name,
			Description:  a.Description,
			EntryScript:  a.EntryScript,
			SystemPrompt: a.SystemPrompt,
		})
	}
	return agents
}

// TaskInputs converts the file's tasks into queue inputs. A task's command
// lands in metadata under CommandMetadataKey for the shell executor.
func (tf *TeamFile) TaskInputs() []taskqueue.Input {
	inputs := make([]taskqueue.Input, 0, len(tf.Tasks))
	for _, t := range tf.Tasks {
		meta := make(map[string]string, len(t.Metadata)+1)
		for k, v := range t.Metadata {
			meta[k] = v
		}
		if t.Command != "" {
			meta[CommandMetadataKey] = t.Command
		}
		if len(meta) == 0 {
			meta = nil
		}
		inputs = append(inputs, taskqueue.Input{
			ID:           t.ID,
			Title:        t.Title,
			Description:  t.Description,
			Dependencies: t.DependsOn,
			Metadata:     meta,
		})
	}
	return inputs
}
