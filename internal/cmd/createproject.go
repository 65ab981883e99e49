package cmd

import (
	"fmt"
	"os"

	"github.com/boardsync/boardsync/internal/bootstrap"
	"github.com/spf13/cobra"
)

var createProjectCmd = &cobra.Command{
	Use:   "create-project <title>",
	Short: "Create a new board and provision required fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreateProject,
}

func init() {
	rootCmd.AddCommand(createProjectCmd)
	createProjectCmd.Flags().String("org", "", "board owner (defaults to the configured organization)")
}

func runCreateProject(cmd *cobra.Command, args []string) error {
	title := args[0]
	cfg := loadConfigOrExit(configPath(cmd))

	org, _ := cmd.Flags().GetString("org")
	if org == "" {
		org = cfg.Organization
	}
	if org == "" {
		fmt.Fprintln(os.Stderr, "boardsync: --org is required when no organization is configured")
		os.Exit(exitConfig)
	}

	client := newClient(cfg)
	result, err := bootstrap.CreateProject(cmd.Context(), client, org, title, configuredAgentNames(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "boardsync: %v\n", err)
		os.Exit(exitBootstrap)
	}

	fmt.Printf("created board %s/%d (%s)\n", org, result.Number, result.BoardID)
	return nil
}
