package cmd

import (
	"os"

	"github.com/inovacc/gitvault/internal/application"
	"github.com/spf13/cobra"
)

var (
	flagLogLevel string
	flagLogJSON  bool
	flagLogFile  string
)

var rootCmd = &cobra.Command{
	Use:   application.AppName,
	Short: "Disaster-recovery backups for hosted Git repositories",
	Long: `Gitvault discovers, archives, verifies, and restores remotely hosted Git
repositories. A backup is a full mirror clone packaged as a compressed
archive, so every branch, tag, and note survives even if the hosting
service account disappears.

Configure once, back up on a schedule, and restore to a local path or a
freshly created remote repository when the worst happens.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger(flagLogLevel, flagLogJSON, flagLogFile)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCmd returns the root command for introspection purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "json-log", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "Also write logs to this file (rotated)")
}
