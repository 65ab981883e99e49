package reconcile

import (
	"context"
	"fmt"

	"github.com/boardsync/boardsync/internal/board"
)

// LockIdentity is the reserved TM_ID value used to mark a board's sentinel
// lock item. It can never collide with a real task id because task ids
// come from the task file's own id field, which callers are expected not
// to set to this literal value.
const LockIdentity = "TM_LOCK"

// LockHeldError means a sentinel lock item already exists on the board
// when AcquireLock was asked to create one.
type LockHeldError struct {
	BoardID string
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("board %s is locked by another run", e.BoardID)
}

type lockClient interface {
	itemWalker
	itemDeleter
	CreateDraftItem(ctx context.Context, boardID, title, body string) (*board.BoardItem, error)
	UpdateItemFieldValue(ctx context.Context, boardID, itemID, fieldID string, value board.FieldValueInput) error
}

// AcquireLock creates the sentinel TM_LOCK item, failing with
// LockHeldError if one is already present. This is an opt-in extension
// (spec.md §5 notes single-board concurrency as an open area); callers
// that never enable it never pay for the extra WalkItems pass.
func AcquireLock(ctx context.Context, client lockClient, boardID, identityFieldID string) (*board.BoardItem, error) {
	held, err := findLock(ctx, client, boardID, identityFieldID)
	if err != nil {
		return nil, err
	}
	if held != nil {
		return nil, &LockHeldError{BoardID: boardID}
	}

	item, err := client.CreateDraftItem(ctx, boardID, "boardsync lock", "")
	if err != nil {
		return nil, fmt.Errorf("create lock item: %w", err)
	}
	identity := LockIdentity
	if err := client.UpdateItemFieldValue(ctx, boardID, item.ID, identityFieldID, board.FieldValueInput{Text: &identity}); err != nil {
		return nil, fmt.Errorf("mark lock item: %w", err)
	}
	return item, nil
}

// ReleaseLock removes the sentinel lock item, if present. A missing lock
// item is not an error: a run that crashed between Acquire and Release
// should not prevent the next ReleaseLock call from succeeding.
func ReleaseLock(ctx context.Context, client lockClient, boardID, identityFieldID string) error {
	held, err := findLock(ctx, client, boardID, identityFieldID)
	if err != nil {
		return err
	}
	if held == nil {
		return nil
	}
	return client.DeleteItem(ctx, boardID, held.ID)
}

func findLock(ctx context.Context, client itemWalker, boardID, identityFieldID string) (*board.BoardItem, error) {
	var found *board.BoardItem
	err := client.WalkItems(ctx, boardID, func(item board.BoardItem) error {
		fv, ok := item.FieldValueOf(identityFieldID)
		if ok && fv.Text != nil && *fv.Text == LockIdentity {
			item := item
			found = &item
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk board items: %w", err)
	}
	return found, nil
}
