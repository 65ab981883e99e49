package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/boardsync/boardsync/internal/board"
)

// DuplicateGroup is every board item sharing one TM_ID value (Open
// Question #2: two items can carry the same identity marker if a prior
// run was interrupted between Create and the state file Commit).
type DuplicateGroup struct {
	TaskID  string
	Keep    board.BoardItem   // earliest-created item, left untouched
	Remove  []board.BoardItem // the rest, reported or deleted
}

// FindDuplicates walks every item on the board and groups those sharing a
// TM_ID value. Items are compared in WalkItems order, and the first item
// seen per TM_ID is the one kept. No creation timestamp is read or
// compared: "earliest-created" holds only as far as the API's pagination
// order is creation order, so a change to that order changes which item
// survives.
func FindDuplicates(ctx context.Context, client itemWalker, boardID, identityFieldID string) ([]DuplicateGroup, error) {
	byTaskID := make(map[string][]board.BoardItem)
	var order []string

	err := client.WalkItems(ctx, boardID, func(item board.BoardItem) error {
		fv, ok := item.FieldValueOf(identityFieldID)
		if !ok || fv.Text == nil || *fv.Text == "" {
			return nil
		}
		taskID := *fv.Text
		if _, seen := byTaskID[taskID]; !seen {
			order = append(order, taskID)
		}
		byTaskID[taskID] = append(byTaskID[taskID], item)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk board items: %w", err)
	}

	var groups []DuplicateGroup
	for _, taskID := range order {
		items := byTaskID[taskID]
		if len(items) < 2 {
			continue
		}
		groups = append(groups, DuplicateGroup{
			TaskID: taskID,
			Keep:   items[0],
			Remove: append([]board.BoardItem{}, items[1:]...),
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].TaskID < groups[j].TaskID })
	return groups, nil
}

// itemDeleter is the subset of *board.Client CleanDuplicates needs to
// actually remove the losing items of each group.
type itemDeleter interface {
	DeleteItem(ctx context.Context, boardID, itemID string) error
}

// CleanDuplicates reports every duplicate group and, when delete is true,
// removes every item in each group's Remove list, keeping the earliest.
func CleanDuplicates(ctx context.Context, client interface {
	itemWalker
	itemDeleter
}, boardID, identityFieldID string, delete bool) ([]DuplicateGroup, []ItemErrorEntry, error) {
	groups, err := FindDuplicates(ctx, client, boardID, identityFieldID)
	if err != nil {
		return nil, nil, err
	}
	if !delete {
		return groups, nil, nil
	}

	var errs []ItemErrorEntry
	for _, g := range groups {
		for _, item := range g.Remove {
			if err := client.DeleteItem(ctx, boardID, item.ID); err != nil {
				errs = append(errs, ItemErrorEntry{TaskID: g.TaskID, Phase: "clean_duplicates", Message: err.Error()})
			}
		}
	}
	return groups, errs, nil
}
