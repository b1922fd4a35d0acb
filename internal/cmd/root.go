package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crewkit/crewkit/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "crewkit",
	Short: "File-based coordination for teams of agent processes",
	Long: `Crewkit runs a lead process and a set of teammate processes that
coordinate entirely through files in a shared team directory: an
append-only mailbox, a locked task queue with dependencies, and
per-agent heartbeats for crash detection.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/crewkit/crewkit.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("crewkit")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CREWKIT")
	// Replace dots with underscores for nested keys in env vars
	// e.g., CREWKIT_TEAM_POLL_INTERVAL_MS for team.poll_interval_ms
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
