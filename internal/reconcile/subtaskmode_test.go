package reconcile

import (
	"testing"

	"github.com/boardsync/boardsync/internal/render"
	"github.com/boardsync/boardsync/internal/state"
	"github.com/boardsync/boardsync/internal/task"
)

// TestCheckSubtaskModeSwitch_RefusesSeparateToNested covers spec.md §9's
// "subtask modes are not hot-swappable" and this implementation's
// documented choice (DESIGN.md): a tag that already has separate-mode
// child records refuses to re-render nested.
func TestCheckSubtaskModeSwitch_RefusesSeparateToNested(t *testing.T) {
	snap := state.Snapshot{Tag: "main", Records: map[string]state.Record{
		"T1":      {TaskID: "T1", RemoteItemID: "item-1"},
		"T1::ST1": {TaskID: "T1::ST1", RemoteItemID: "item-2"},
	}}
	tasks := []task.Task{
		{ID: "T1", Title: "Parent", Subtasks: []task.Task{{ID: "ST1", Title: "Child"}}},
	}

	err := checkSubtaskModeSwitch(snap, tasks, render.ModeNested)
	if err == nil {
		t.Fatalf("expected an error refusing the separate->nested switch")
	}
}

// TestCheckSubtaskModeSwitch_AllowsNestedToSeparate covers the documented
// allowed direction: nothing is stranded when switching from nested (no
// separate child records exist yet) to separate.
func TestCheckSubtaskModeSwitch_AllowsNestedToSeparate(t *testing.T) {
	snap := state.Snapshot{Tag: "main", Records: map[string]state.Record{
		"T1": {TaskID: "T1", RemoteItemID: "item-1"},
	}}
	tasks := []task.Task{
		{ID: "T1", Title: "Parent", Subtasks: []task.Task{{ID: "ST1", Title: "Child"}}},
	}

	if err := checkSubtaskModeSwitch(snap, tasks, render.ModeSeparate); err != nil {
		t.Fatalf("nested->separate switch should be allowed, got: %v", err)
	}
}

// TestCheckSubtaskModeSwitch_NoSubtasksIsFine ensures a task with no
// subtasks never trips the guard regardless of stray record keys.
func TestCheckSubtaskModeSwitch_NoSubtasksIsFine(t *testing.T) {
	snap := state.Snapshot{Tag: "main", Records: map[string]state.Record{
		"T1": {TaskID: "T1", RemoteItemID: "item-1"},
	}}
	tasks := []task.Task{{ID: "T1", Title: "Parent"}}

	if err := checkSubtaskModeSwitch(snap, tasks, render.ModeNested); err != nil {
		t.Fatalf("task without subtasks should never trip the guard, got: %v", err)
	}
}
