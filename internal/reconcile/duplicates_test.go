package reconcile

import (
	"context"
	"testing"

	"github.com/boardsync/boardsync/internal/board"
)

type fakeDupWalker struct {
	items   []board.BoardItem
	deleted []string
}

func (f *fakeDupWalker) WalkItems(ctx context.Context, boardID string, fn func(board.BoardItem) error) error {
	for _, item := range f.items {
		if err := fn(item); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeDupWalker) DeleteItem(ctx context.Context, boardID, itemID string) error {
	f.deleted = append(f.deleted, itemID)
	return nil
}

func itemWithIdentity(id, taskID string) board.BoardItem {
	tid := taskID
	return board.BoardItem{
		ID:          id,
		FieldValues: map[string]board.FieldValue{"identity-field": {FieldID: "identity-field", Text: &tid}},
	}
}

// TestFindDuplicates_KeepsEarliestCreated covers spec.md §9 Open Question
// #2, resolved in DESIGN.md as "pick earliest-created, report the rest":
// the first item observed per TM_ID (WalkItems' creation-time order) is
// kept; later ones land in Remove.
func TestFindDuplicates_KeepsEarliestCreated(t *testing.T) {
	walker := &fakeDupWalker{items: []board.BoardItem{
		itemWithIdentity("item-1", "T1"),
		itemWithIdentity("item-2", "T2"),
		itemWithIdentity("item-3", "T1"), // duplicate of item-1, created later
	}}

	groups, err := FindDuplicates(context.Background(), walker, "board-1", "identity-field")
	if err != nil {
		t.Fatalf("FindDuplicates: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected exactly one duplicate group, got %d", len(groups))
	}
	g := groups[0]
	if g.TaskID != "T1" {
		t.Fatalf("expected duplicate group for T1, got %q", g.TaskID)
	}
	if g.Keep.ID != "item-1" {
		t.Fatalf("expected item-1 to be kept (earliest-created), got %q", g.Keep.ID)
	}
	if len(g.Remove) != 1 || g.Remove[0].ID != "item-3" {
		t.Fatalf("expected item-3 to be the removal candidate, got %+v", g.Remove)
	}
}

// TestFindDuplicates_NoDuplicatesIsEmpty ensures a board with unique
// TM_ID values per item produces no groups.
func TestFindDuplicates_NoDuplicatesIsEmpty(t *testing.T) {
	walker := &fakeDupWalker{items: []board.BoardItem{
		itemWithIdentity("item-1", "T1"),
		itemWithIdentity("item-2", "T2"),
	}}

	groups, err := FindDuplicates(context.Background(), walker, "board-1", "identity-field")
	if err != nil {
		t.Fatalf("FindDuplicates: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("expected no duplicate groups, got %+v", groups)
	}
}

// TestCleanDuplicates_ReportOnlyDoesNotDelete ensures delete=false reports
// duplicates without mutating the board.
func TestCleanDuplicates_ReportOnlyDoesNotDelete(t *testing.T) {
	walker := &fakeDupWalker{items: []board.BoardItem{
		itemWithIdentity("item-1", "T1"),
		itemWithIdentity("item-3", "T1"),
	}}

	groups, errs, err := CleanDuplicates(context.Background(), walker, "board-1", "identity-field", false)
	if err != nil {
		t.Fatalf("CleanDuplicates: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected one group, got %d", len(groups))
	}
	if len(errs) != 0 {
		t.Fatalf("report-only pass should report no errors, got %+v", errs)
	}
	if len(walker.deleted) != 0 {
		t.Fatalf("report-only pass must not delete anything, deleted=%v", walker.deleted)
	}
}

// TestCleanDuplicates_DeleteRemovesLosers ensures delete=true removes
// every item in each group's Remove list and keeps the earliest.
func TestCleanDuplicates_DeleteRemovesLosers(t *testing.T) {
	walker := &fakeDupWalker{items: []board.BoardItem{
		itemWithIdentity("item-1", "T1"),
		itemWithIdentity("item-3", "T1"),
		itemWithIdentity("item-4", "T1"),
	}}

	groups, errs, err := CleanDuplicates(context.Background(), walker, "board-1", "identity-field", true)
	if err != nil {
		t.Fatalf("CleanDuplicates: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected one group, got %d", len(groups))
	}
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %+v", errs)
	}
	if len(walker.deleted) != 2 {
		t.Fatalf("expected 2 deletions (item-3, item-4), got %v", walker.deleted)
	}
	for _, id := range walker.deleted {
		if id == "item-1" {
			t.Fatalf("the kept (earliest) item must never be deleted")
		}
	}
}
