package state

import (
	"context"
	"time"

	"github.com/boardsync/boardsync/internal/board"
	"github.com/boardsync/boardsync/internal/task"
)

// itemWalker is the subset of *board.Client the re-anchor pass depends on.
type itemWalker interface {
	WalkItems(ctx context.Context, boardID string, fn func(board.BoardItem) error) error
}

// Reanchor rebuilds a snapshot from the board's TM_ID field values when the
// state file is missing but the board already has items (spec.md §4.4,
// §4.5 step 2). identityFieldID is the resolved remote field id for the
// logical "identity" field. Items with no TM_ID value, or whose TM_ID does
// not match a loaded task, are left untouched.
func Reanchor(ctx context.Context, client itemWalker, boardID, identityFieldID string, tasks []task.Task, now time.Time) (Snapshot, error) {
	snap := empty("")
	knownTasks := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		knownTasks[t.ID] = true
	}

	err := client.WalkItems(ctx, boardID, func(item board.BoardItem) error {
		fv, ok := item.FieldValueOf(identityFieldID)
		if !ok || fv.Text == nil {
			return nil
		}
		taskID := *fv.Text
		if !knownTasks[taskID] {
			return nil
		}
		snap.Records[taskID] = Record{
			TaskID:       taskID,
			RemoteItemID: item.ID,
			ContentID:    item.ContentID,
			ContentKind:  item.ContentKind,
			// The fingerprint is unknown on re-anchor, so it is left empty:
			// every reconstructed record compares as ChangedTask on the
			// first post-re-anchor diff, which is the conservative choice
			// (an update that turns out to be a no-op costs one mutation,
			// versus silently missing drift that happened before the
			// state file was lost).
			LastSeen: now,
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
