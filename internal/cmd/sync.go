package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/boardsync/boardsync/internal/board"
	"github.com/boardsync/boardsync/internal/config"
	"github.com/boardsync/boardsync/internal/reconcile"
	"github.com/boardsync/boardsync/internal/render"
	"github.com/boardsync/boardsync/internal/state"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync <tag> <board-ref>",
	Short: "Reconcile the task file onto the board",
	Args:  cobra.ExactArgs(2),
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().String("task-file", "tasks.json", "path to the source task file")
	syncCmd.Flags().Bool("dry-run", false, "compute the plan without mutating the board")
	syncCmd.Flags().Bool("full-sync", false, "force a field/body update on every task, ignoring fingerprints")
	syncCmd.Flags().Bool("json", false, "write Statistics to stdout as JSON")
	syncCmd.Flags().Bool("subtasks-as-items", false, "create subtasks as their own board items")
	syncCmd.Flags().Bool("strict-orphans", false, "delete identity records whose task no longer exists")
	syncCmd.Flags().String("repo", "", "repository for issue-kind items (required with --item-kind=issue)")
	syncCmd.Flags().String("item-kind", "draft", "kind of item to create: draft or issue")
}

func runSync(cmd *cobra.Command, args []string) error {
	tag, boardRefArg := args[0], args[1]
	cfg := loadConfigOrExit(configPath(cmd))

	ref, err := parseBoardRef(cfg, boardRefArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "boardsync: %v\n", err)
		os.Exit(exitConfig)
	}

	taskFile, _ := cmd.Flags().GetString("task-file")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	fullSync, _ := cmd.Flags().GetBool("full-sync")
	jsonOut, _ := cmd.Flags().GetBool("json")
	subtasksAsItems, _ := cmd.Flags().GetBool("subtasks-as-items")
	strictOrphans, _ := cmd.Flags().GetBool("strict-orphans")
	repo, _ := cmd.Flags().GetString("repo")
	itemKindFlag, _ := cmd.Flags().GetString("item-kind")

	itemKind := board.ContentKindDraft
	if itemKindFlag == "issue" {
		itemKind = board.ContentKindIssue
	}
	subtaskMode := render.ModeNested
	if subtasksAsItems {
		subtaskMode = render.ModeSeparate
	}

	client := newClient(cfg)
	pm := cfg.ProjectMappings[tag]
	engine := &reconcile.Engine{
		Client:     client,
		Store:      state.New(stateDir(taskFile)),
		Snapshots:  newSnapshotCache(taskFile),
		BoardCache: newBoardCache(),
	}

	started := time.Now()
	stats, err := engine.Sync(cmd.Context(), reconcile.Input{
		TaskFilePath: taskFile,
		Tag:          tag,
		Board:        ref,
		Agents:       configuredAgentNames(cfg),
		AgentConfig:  agentConfig(cfg),
		Options: reconcile.Options{
			DryRun:        dryRun,
			FullSync:      fullSync,
			SubtaskMode:   subtaskMode,
			ItemKind:      itemKind,
			StrictOrphans: strictOrphans,
			Repo:          repo,
			JSONOutput:    jsonOut,
		},
	})
	duration := time.Since(started)

	if err == nil && !dryRun {
		cfg.SetLastSync(tag, time.Now().UTC().Format(time.RFC3339))
		if saveErr := cfg.Save(); saveErr != nil {
			fmt.Fprintf(os.Stderr, "boardsync: warning: could not persist last_sync: %v\n", saveErr)
		}
	}

	if err != nil {
		return reportSyncError(err)
	}

	if jsonOut {
		return emitJSON(stats, ref, tag, pm.ProjectID, duration)
	}
	printSummary(stats, duration)
	return nil
}

func reportSyncError(err error) error {
	var authErr *board.AuthError
	var boardNotFound *reconcile.BoardNotFoundError
	switch {
	case asAuthError(err, &authErr):
		fmt.Fprintf(os.Stderr, "boardsync: %v\n", err)
		os.Exit(exitAuth)
	case asBoardNotFound(err, &boardNotFound):
		fmt.Fprintf(os.Stderr, "boardsync: %v\n", err)
		os.Exit(exitBootstrap)
	}
	fmt.Fprintf(os.Stderr, "boardsync: %v\n", err)
	os.Exit(exitBootstrap)
	return nil
}

func asAuthError(err error, target **board.AuthError) bool {
	return errors.As(err, target)
}

func asBoardNotFound(err error, target **reconcile.BoardNotFoundError) bool {
	e, ok := err.(*reconcile.BoardNotFoundError)
	if ok {
		*target = e
	}
	return ok
}

func emitJSON(stats reconcile.Statistics, ref reconcile.BoardRef, tag, projectID string, duration time.Duration) error {
	type errorEntry struct {
		TaskID  string `json:"task_id,omitempty"`
		Phase   string `json:"phase"`
		Message string `json:"message"`
	}
	errs := make([]errorEntry, 0, len(stats.Errors))
	for _, e := range stats.Errors {
		errs = append(errs, errorEntry{TaskID: e.TaskID, Phase: e.Phase, Message: e.Message})
	}

	out := struct {
		Stats struct {
			Created int          `json:"created"`
			Updated int          `json:"updated"`
			Deleted int          `json:"deleted"`
			Skipped int          `json:"skipped"`
			Errors  []errorEntry `json:"errors"`
		} `json:"stats"`
		ProjectNumber int    `json:"project_number"`
		ProjectID     string `json:"project_id,omitempty"`
		Tag           string `json:"tag"`
		DurationMs    int64  `json:"duration_ms"`
	}{
		ProjectNumber: ref.Number,
		ProjectID:     projectID,
		Tag:           tag,
		DurationMs:    duration.Milliseconds(),
	}
	out.Stats.Created = stats.Created
	out.Stats.Updated = stats.Updated
	out.Stats.Deleted = stats.Deleted
	out.Stats.Skipped = stats.Skipped
	out.Stats.Errors = errs

	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(out)
}

func printSummary(stats reconcile.Statistics, duration time.Duration) {
	useColor := isatty.IsTerminal(os.Stdout.Fd())
	paint := func(c color.Attribute, s string) string {
		if !useColor {
			return s
		}
		return color.New(c).Sprint(s)
	}

	fmt.Printf(
		"sync complete in %s: %s created, %s updated, %s deleted, %s skipped",
		duration.Round(time.Millisecond),
		paint(color.FgGreen, humanize.Comma(int64(stats.Created))),
		paint(color.FgYellow, humanize.Comma(int64(stats.Updated))),
		paint(color.FgRed, humanize.Comma(int64(stats.Deleted))),
		humanize.Comma(int64(stats.Skipped)),
	)
	if len(stats.Errors) > 0 {
		fmt.Printf(", %s\n", paint(color.FgRed, fmt.Sprintf("%d error(s)", len(stats.Errors))))
		for _, e := range stats.Errors {
			fmt.Printf("  - %s (%s): %s\n", e.TaskID, e.Phase, e.Message)
		}
		return
	}
	fmt.Println()
}

// configuredAgentNames lists every agent option name the Field Catalog
// must provision ahead of a run (spec.md §4.3 logical field "agent").
func configuredAgentNames(cfg *config.Config) []string {
	rs := cfg.AgentResolverConfig()
	seen := make(map[string]bool, len(rs.Identities))
	var names []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}
	for _, id := range rs.Identities {
		add(id.Option)
	}
	add(rs.Default)
	return names
}
