package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boardsync/boardsync/internal/reconcile"
	"github.com/boardsync/boardsync/internal/render"
	"github.com/boardsync/boardsync/internal/state"
	"github.com/boardsync/boardsync/internal/watch"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <tag> <board-ref>",
	Short: "Run the Watch Driver: sync on every settled task-file change",
	Args:  cobra.ExactArgs(2),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("task-file", "tasks.json", "path to the source task file")
	watchCmd.Flags().Int("debounce", 400, "debounce window in milliseconds")
	watchCmd.Flags().Bool("subtasks-as-items", false, "create subtasks as their own board items")
	watchCmd.Flags().Bool("strict-orphans", false, "delete identity records whose task no longer exists")
}

func runWatch(cmd *cobra.Command, args []string) error {
	tag, boardRefArg := args[0], args[1]
	cfg := loadConfigOrExit(configPath(cmd))

	ref, err := parseBoardRef(cfg, boardRefArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "boardsync: %v\n", err)
		os.Exit(exitConfig)
	}

	taskFile, _ := cmd.Flags().GetString("task-file")
	debounceMs, _ := cmd.Flags().GetInt("debounce")
	subtasksAsItems, _ := cmd.Flags().GetBool("subtasks-as-items")
	strictOrphans, _ := cmd.Flags().GetBool("strict-orphans")

	subtaskMode := render.ModeNested
	if subtasksAsItems {
		subtaskMode = render.ModeSeparate
	}

	engine := &reconcile.Engine{
		Client:     newClient(cfg),
		Store:      state.New(stateDir(taskFile)),
		Snapshots:  newSnapshotCache(taskFile),
		BoardCache: newBoardCache(),
	}
	defer engine.BoardCache.Stop()

	driver := &watch.Driver{
		Path:     taskFile,
		Debounce: time.Duration(debounceMs) * time.Millisecond,
		RunOnce: func(ctx context.Context, runID string) (int, error) {
			stats, err := engine.Sync(ctx, reconcile.Input{
				TaskFilePath: taskFile,
				Tag:          tag,
				Board:        ref,
				Agents:       configuredAgentNames(cfg),
				AgentConfig:  agentConfig(cfg),
				Options: reconcile.Options{
					SubtaskMode:   subtaskMode,
					StrictOrphans: strictOrphans,
				},
			})
			if err != nil {
				return 0, err
			}
			return len(stats.Errors), nil
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("watching %s (debounce %dms); press Ctrl+C to stop\n", taskFile, debounceMs)
	return driver.Run(ctx)
}
