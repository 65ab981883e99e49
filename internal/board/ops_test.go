package board_test

import (
	"context"
	"testing"

	"github.com/boardsync/boardsync/internal/board"
	"github.com/boardsync/boardsync/internal/testutil"
)

func TestUpdateItemFieldValue(t *testing.T) {
	t.Parallel()
	srv := testutil.NewMockBoardServer()
	defer srv.Close()
	srv.SetResponse("UpdateItemFieldValue", map[string]any{"success": true})

	c := newTestClient(t, srv)
	text := "In Progress"
	err := c.UpdateItemFieldValue(context.Background(), "board-1", "item-1", "field-status", board.FieldValueInput{SingleSelectOption: &text})
	if err != nil {
		t.Fatalf("UpdateItemFieldValue: %v", err)
	}
}

func TestUpdateItemFieldValueFailureSurfaces(t *testing.T) {
	t.Parallel()
	srv := testutil.NewMockBoardServer()
	defer srv.Close()
	srv.SetResponse("UpdateItemFieldValue", map[string]any{"success": false})

	c := newTestClient(t, srv)
	err := c.UpdateItemFieldValue(context.Background(), "board-1", "item-1", "field-status", board.FieldValueInput{})
	if err == nil {
		t.Fatal("expected an error when the mutation reports success=false")
	}
}

func TestCreateIssueItemTwoStep(t *testing.T) {
	t.Parallel()
	srv := testutil.NewMockBoardServer()
	defer srv.Close()
	srv.SetResponse("CreateIssueItem", map[string]any{"success": true, "issue": map[string]any{"id": "issue-1"}})
	srv.SetResponse("AddIssueToBoard", map[string]any{"success": true, "item": map[string]any{"id": "item-1"}})

	c := newTestClient(t, srv)
	item, err := c.CreateIssueItem(context.Background(), "acme/repo", "board-1", "Ship it", "body")
	if err != nil {
		t.Fatalf("CreateIssueItem: %v", err)
	}
	if item.ID != "item-1" || item.ContentID != "issue-1" || item.ContentKind != board.ContentKindIssue {
		t.Fatalf("unexpected item: %+v", item)
	}
	if got := srv.CallCount("CreateIssueItem"); got != 1 {
		t.Fatalf("expected one CreateIssueItem call, got %d", got)
	}
	if got := srv.CallCount("AddIssueToBoard"); got != 1 {
		t.Fatalf("expected one AddIssueToBoard call, got %d", got)
	}
}

func TestCreateIssueItemStopsIfCreateFails(t *testing.T) {
	t.Parallel()
	srv := testutil.NewMockBoardServer()
	defer srv.Close()
	srv.SetError("CreateIssueItem", testutil.MockError{Message: "denied", Code: "FORBIDDEN"})

	c := newTestClient(t, srv)
	_, err := c.CreateIssueItem(context.Background(), "acme/repo", "board-1", "Ship it", "body")
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := srv.CallCount("AddIssueToBoard"); got != 0 {
		t.Fatalf("AddIssueToBoard must not run after CreateIssueItem fails, got %d calls", got)
	}
}

func TestDeleteItem(t *testing.T) {
	t.Parallel()
	srv := testutil.NewMockBoardServer()
	defer srv.Close()
	srv.SetResponse("DeleteItem", map[string]any{"success": true})

	c := newTestClient(t, srv)
	if err := c.DeleteItem(context.Background(), "board-1", "item-1"); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
}

func TestCreateFieldAndOption(t *testing.T) {
	t.Parallel()
	srv := testutil.NewMockBoardServer()
	defer srv.Close()
	srv.SetResponse("CreateField", map[string]any{
		"success": true,
		"field":   map[string]any{"id": "field-9", "name": "Agent", "kind": "single-select"},
	})
	srv.SetResponse("CreateFieldOption", map[string]any{
		"success": true,
		"option":  map[string]any{"id": "opt-1", "name": "codex"},
	})

	c := newTestClient(t, srv)
	field, err := c.CreateField(context.Background(), "board-1", "Agent", board.FieldKindSingleSelect)
	if err != nil {
		t.Fatalf("CreateField: %v", err)
	}
	if field.ID != "field-9" {
		t.Fatalf("unexpected field: %+v", field)
	}

	opt, err := c.CreateFieldOption(context.Background(), field.ID, "codex")
	if err != nil {
		t.Fatalf("CreateFieldOption: %v", err)
	}
	if opt.Name != "codex" {
		t.Fatalf("unexpected option: %+v", opt)
	}
}

func TestCreateBoard(t *testing.T) {
	t.Parallel()
	srv := testutil.NewMockBoardServer()
	defer srv.Close()
	srv.SetResponse("CreateBoard", map[string]any{"success": true, "board": map[string]any{"id": "board-5", "number": 3}})

	c := newTestClient(t, srv)
	b, err := c.CreateBoard(context.Background(), "acme", "Task sync")
	if err != nil {
		t.Fatalf("CreateBoard: %v", err)
	}
	if b.ID != "board-5" || b.Number != 3 {
		t.Fatalf("unexpected board: %+v", b)
	}
}
