package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crewkit/crewkit/internal/loader"
	"github.com/crewkit/crewkit/internal/logging"
	"github.com/crewkit/crewkit/internal/taskqueue"
	"github.com/crewkit/crewkit/internal/team"
	"github.com/crewkit/crewkit/internal/teammate"
)

var teammateCmd = &cobra.Command{
	Use:   "teammate",
	Short: "Run as a spawned teammate process",
	Long: `Teammate reads its identity from the AGENT_TEAM_* environment
variables set by the lead at spawn time, then runs the worker loop:
heartbeat, mailbox drain, cooperative shutdown, task claiming. Claimed
tasks carrying a "command" metadata entry are executed through the shell.`,
	RunE: runTeammate,
}

func init() {
	rootCmd.AddCommand(teammateCmd)
}

func runTeammate(cmd *cobra.Command, args []string) error {
	id, err := team.IdentityFromEnv()
	if err != nil {
		return err
	}

	teamCfg, err := team.LoadConfig(id.BaseDir, id.TeamName)
	if err != nil {
		return err
	}

	log, err := logging.NewLogger(id.TeamDir(), logging.LevelInfo)
	if err != nil {
		return err
	}
	defer log.Close()

	runner := teammate.NewRunner(id, teamCfg,
		teammate.WithLogger(log.WithTeam(id.TeamName).WithAgent(id.AgentID)),
		teammate.WithExecutor(shellExecutor),
	)

	// The lead stops the team with SIGTERM; treat it like a shutdown request
	// by cancelling the loop, which leaves a stopped heartbeat behind.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	events, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	for ev := range events {
		printEvent(cmd, ev)
	}
	return nil
}

// shellExecutor runs a claimed task's "command" metadata through the shell.
// Tasks without a command complete immediately; they exist for coordination
// or manual work.
func shellExecutor(ctx context.Context, task taskqueue.Task) (string, error) {
	command := task.Metadata[loader.CommandMetadataKey]
	if command == "" {
		return "", nil
	}

	out, err := exec.CommandContext(ctx, "/bin/sh", "-c", command).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s: %w", firstLine(out), err)
	}
	return string(out), nil
}

func firstLine(out []byte) string {
	for i, b := range out {
		if b == '\n' {
			return string(out[:i])
		}
	}
	return string(out)
}
