package cmd

import (
	"fmt"
	"os"

	"github.com/boardsync/boardsync/internal/bootstrap"
	"github.com/spf13/cobra"
)

var setupProjectCmd = &cobra.Command{
	Use:   "setup-project <board-ref>",
	Short: "Ensure a board carries every field and option the engine requires",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetupProject,
}

func init() {
	rootCmd.AddCommand(setupProjectCmd)
}

func runSetupProject(cmd *cobra.Command, args []string) error {
	cfg := loadConfigOrExit(configPath(cmd))

	ref, err := parseBoardRef(cfg, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "boardsync: %v\n", err)
		os.Exit(exitConfig)
	}

	client := newClient(cfg)
	result, err := bootstrap.SetupProject(cmd.Context(), client, ref.Owner, ref.Number, configuredAgentNames(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "boardsync: %v\n", err)
		os.Exit(exitBootstrap)
	}

	fmt.Printf("board %s/%d has %d required field(s) resolved\n", ref.Owner, ref.Number, len(result.Fields))
	return nil
}
