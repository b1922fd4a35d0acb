package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/crewkit/crewkit/internal/config"
	"github.com/crewkit/crewkit/internal/heartbeat"
	"github.com/crewkit/crewkit/internal/taskqueue"
	"github.com/crewkit/crewkit/internal/team"
)

var statusCmd = &cobra.Command{
	Use:   "status <team>",
	Short: "Show a team's agents, heartbeats, and task queue",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	baseDir := cfg.Team.ResolveBaseDir()
	teamName := args[0]

	teamCfg, err := team.LoadConfig(baseDir, teamName)
	if err != nil {
		return err
	}
	teamDir := team.Dir(baseDir, teamName)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "team %s (session %s, created %s)\n\n",
		teamCfg.TeamName, teamCfg.SessionID, teamCfg.CreatedAt.Format(time.RFC3339))

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AGENT\tROLE\tSTATUS\tTASK\tLAST HEARTBEAT")
	now := time.Now()
	for _, agent := range teamCfg.Agents {
		st, found, err := heartbeat.Read(teamDir, agent.AgentID)
		switch {
		case err != nil:
			return err
		case !found:
			fmt.Fprintf(w, "%s\t%s\t-\t-\t-\n", agent.AgentID, agent.Role)
		default:
			status := string(st.Status)
			if st.Stale(now, teamCfg.Settings.HeartbeatTimeout()) {
				status = "crashed?"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s ago\n",
				agent.AgentID, agent.Role, status, dash(st.CurrentTask),
				now.Sub(st.LastHeartbeat).Round(time.Second))
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	queue := taskqueue.New(teamDir, teamCfg.Settings.LockTimeout())
	tasks, err := queue.List()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d tasks\n", len(tasks))
	w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tASSIGNEE\tDEPENDS ON")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Title, t.Status, dash(t.Assignee), dashList(t.Dependencies))
	}
	return w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func dashList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	out := items[0]
	for _, item := range items[1:] {
		out += "," + item
	}
	return out
}
