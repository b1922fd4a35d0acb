package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/crewkit/crewkit/internal/config"
	"github.com/crewkit/crewkit/internal/event"
	"github.com/crewkit/crewkit/internal/lead"
	"github.com/crewkit/crewkit/internal/loader"
	"github.com/crewkit/crewkit/internal/logging"
	"github.com/crewkit/crewkit/internal/protocol"
	"github.com/crewkit/crewkit/internal/team"
)

const leadAgentID = "lead"

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a team: spawn teammates and run the lead loop",
	Long: `Start reads a YAML team file, writes the team's immutable config,
seeds the shared task queue, spawns one process per teammate, and runs
the lead's polling loop until the work is done or the run is interrupted.`,
	RunE: runStart,
}

var (
	startTeamFile  string
	startUntilDone bool
)

func init() {
	startCmd.Flags().StringVarP(&startTeamFile, "file", "f", "crew.yaml", "YAML team file describing agents and tasks")
	startCmd.Flags().BoolVar(&startUntilDone, "until-done", true, "shut the team down once every task is terminal")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	tf, err := loader.Load(startTeamFile)
	if err != nil {
		return err
	}

	teamCfg := team.Config{
		TeamName:  tf.Team,
		SessionID: uuid.NewString(),
		Agents:    tf.Roster(leadAgentID),
		Settings:  cfg.Team.Settings(),
	}

	baseDir := cfg.Team.ResolveBaseDir()
	tm := lead.New(baseDir, teamCfg, leadOptions(cfg, teamCfg)...)

	if err := tm.Initialize(); err != nil {
		return err
	}
	if inputs := tf.TaskInputs(); len(inputs) > 0 {
		if _, err := tm.Queue().CreateMany(inputs); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := tm.SpawnAll(ctx); err != nil {
		return err
	}

	events, err := tm.Run(ctx)
	if err != nil {
		return err
	}

	mates := len(teamCfg.Teammates())
	gone := make(map[string]bool)
	shutdownSent := false
	for ev := range events {
		printEvent(cmd, ev)

		switch ev.Type {
		case event.TypeAllTasksDone:
			if startUntilDone && !shutdownSent {
				shutdownSent = true
				if err := protocol.BroadcastShutdown(tm.Mailbox(), leadAgentID, "all tasks done"); err != nil {
					return err
				}
			}
		case event.TypeTeammateExited, event.TypeTeammateCrashed:
			// Crashed teammates never ack; count them as gone so shutdown
			// does not wait forever.
			gone[ev.AgentID] = true
		}
		if shutdownSent && len(gone) >= mates {
			tm.Stop()
		}
	}
	return nil
}

func leadOptions(cfg *config.Config, teamCfg team.Config) []lead.Option {
	opts := []lead.Option{}
	if cfg.Logging.Enabled {
		log, err := logging.NewLogger(team.Dir(cfg.Team.ResolveBaseDir(), teamCfg.TeamName), cfg.Logging.Level)
		if err == nil {
			opts = append(opts, lead.WithLogger(log.WithTeam(teamCfg.TeamName).WithAgent(leadAgentID)))
		}
	}
	return opts
}

func printEvent(cmd *cobra.Command, ev event.Event) {
	out := cmd.OutOrStdout()
	switch {
	case ev.TaskID != "":
		fmt.Fprintf(out, "%s  %-20s agent=%s task=%s\n", ev.Timestamp.Format("15:04:05"), ev.Type, ev.AgentID, ev.TaskID)
	case ev.PlanID != "":
		fmt.Fprintf(out, "%s  %-20s agent=%s plan=%s\n", ev.Timestamp.Format("15:04:05"), ev.Type, ev.AgentID, ev.PlanID)
	case ev.AgentID != "":
		fmt.Fprintf(out, "%s  %-20s agent=%s\n", ev.Timestamp.Format("15:04:05"), ev.Type, ev.AgentID)
	default:
		fmt.Fprintf(out, "%s  %-20s\n", ev.Timestamp.Format("15:04:05"), ev.Type)
	}
}
