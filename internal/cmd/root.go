package cmd

import (
	"os"

	"github.com/boardsync/boardsync/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "boardsync",
	Short: "Project a local task catalog onto a hosted project board",
	Long:  `boardsync reconciles a local, file-based task catalog onto a hosted project board, creating, updating, and retiring board items under a stable identity scheme.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default: ~/.config/boardsync/config.yaml)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "enable debug logging")
}

func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	if path != "" {
		return path
	}
	if env := os.Getenv("BOARDSYNC_CONFIG"); env != "" {
		return env
	}
	return config.DefaultPath(os.Getenv)
}
