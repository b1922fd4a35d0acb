package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crewkit/crewkit/internal/config"
	"github.com/crewkit/crewkit/internal/mailbox"
	"github.com/crewkit/crewkit/internal/team"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor <team>",
	Short: "Follow a team's broadcast traffic",
	Long: `Monitor attaches to a team's mailbox under an observer id and
prints broadcasts as they arrive. The observer keeps its own read
cursor, so following does not consume any agent's messages.`,
	Args: cobra.ExactArgs(1),
	RunE: runMonitor,
}

var monitorAs string

func init() {
	monitorCmd.Flags().StringVar(&monitorAs, "as", "monitor", "observer id to read under")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	baseDir := cfg.Team.ResolveBaseDir()
	teamName := args[0]

	teamCfg, err := team.LoadConfig(baseDir, teamName)
	if err != nil {
		return err
	}

	mb := mailbox.New(team.Dir(baseDir, teamName))
	out := cmd.OutOrStdout()

	cancelWatch, err := mb.Watch(monitorAs, teamCfg.Settings.PollInterval(), func(msg mailbox.Message) {
		fmt.Fprintf(out, "%s  %-20s from=%s\n", msg.Timestamp.Format("15:04:05"), msg.Type, msg.From)
	})
	if err != nil {
		return err
	}
	defer cancelWatch()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()
	return nil
}
