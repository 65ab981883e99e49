package cmd

import (
	"fmt"
	"os"

	"github.com/boardsync/boardsync/internal/board"
	"github.com/boardsync/boardsync/internal/fields"
	"github.com/boardsync/boardsync/internal/reconcile"
	"github.com/spf13/cobra"
)

var cleanDuplicatesCmd = &cobra.Command{
	Use:   "clean-duplicates <board-ref>",
	Short: "Report (or remove) board items sharing a TM_ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runCleanDuplicates,
}

func init() {
	rootCmd.AddCommand(cleanDuplicatesCmd)
	cleanDuplicatesCmd.Flags().Bool("delete", false, "delete every duplicate but the earliest-created item")
}

func runCleanDuplicates(cmd *cobra.Command, args []string) error {
	cfg := loadConfigOrExit(configPath(cmd))

	ref, err := parseBoardRef(cfg, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "boardsync: %v\n", err)
		os.Exit(exitConfig)
	}
	del, _ := cmd.Flags().GetBool("delete")

	client := newClient(cfg)
	ctx := cmd.Context()

	b, err := client.GetBoard(ctx, ref.Owner, ref.Number)
	if err != nil {
		fmt.Fprintf(os.Stderr, "boardsync: %v\n", err)
		os.Exit(exitBootstrap)
	}
	existing := make(map[string]board.FieldDescriptor, len(b.Fields))
	for _, f := range b.Fields {
		existing[f.ID] = f
	}
	catalog := fields.New(client, b.ID, configuredAgentNames(cfg), false)
	resolved, err := catalog.ResolveAll(ctx, existing)
	if err != nil {
		fmt.Fprintf(os.Stderr, "boardsync: %v\n", err)
		os.Exit(exitBootstrap)
	}

	groups, itemErrs, err := reconcile.CleanDuplicates(ctx, client, b.ID, resolved[fields.Identity].ID, del)
	if err != nil {
		fmt.Fprintf(os.Stderr, "boardsync: %v\n", err)
		os.Exit(exitBootstrap)
	}

	for _, g := range groups {
		action := "kept"
		if del {
			action = "deleted"
		}
		fmt.Printf("%s: keeping %s, %s %d duplicate(s)\n", g.TaskID, g.Keep.ID, action, len(g.Remove))
	}
	for _, e := range itemErrs {
		fmt.Fprintf(os.Stderr, "boardsync: %s: %s: %s\n", e.TaskID, e.Phase, e.Message)
	}
	if len(groups) == 0 {
		fmt.Println("no duplicate TM_ID values found")
	}
	return nil
}
