// Package reconcile implements the Reconciliation Engine (C5): it plans
// and executes create/update/delete/skip decisions for one sync run,
// coordinating the task loader, remote client, field catalog, and state
// store, and emits a Statistics record (spec.md §4.5).
package reconcile

import (
	"github.com/boardsync/boardsync/internal/board"
	"github.com/boardsync/boardsync/internal/render"
	"github.com/boardsync/boardsync/internal/task"
)

// OpKind is the action a PlannedOperation performs.
type OpKind int

const (
	OpCreate OpKind = iota
	OpUpdateFields
	OpUpdateBody
	OpDelete
	OpSkip
)

func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpUpdateFields:
		return "update_fields"
	case OpUpdateBody:
		return "update_body"
	case OpDelete:
		return "delete"
	case OpSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// FieldChange is one field's target value for an UpdateFields operation.
type FieldChange struct {
	Logical string // logical field name, e.g. fields.Status
	Value   board.FieldValueInput
}

// PlannedOperation is one step of a SyncPlan: an action against a task or
// a stale identity record (spec.md §3, §4.5).
type PlannedOperation struct {
	Kind OpKind
	Task task.Task // only ID is set for an OrphanedRecord's Delete/Skip

	// RemoteItemID is set for UpdateFields, UpdateBody, and Delete; it is
	// populated by the planner for ChangedTask/OrphanedRecord operations
	// and filled in by the executor for a Create this operation depends on.
	RemoteItemID string
	ContentID    string // draft content id or issue id; required for UpdateBody
	ContentKind  board.ContentKind

	FieldChanges []FieldChange
	Body         string

	// SeparateChildren carries the render output needed to build the operation,
	// set only on Create/UpdateBody operations for a task with children.
	SeparateChildren []render.ChildSpec
}

// ItemErrorEntry records one operation's terminal, non-fatal failure
// (spec.md §7 "ItemError").
type ItemErrorEntry struct {
	TaskID  string
	Phase   string
	Message string
}

// Statistics accumulates per-run counts (spec.md §3, §6).
type Statistics struct {
	Created int
	Updated int
	Deleted int
	Skipped int
	Errors  []ItemErrorEntry
}

// Options configures one sync run (spec.md §4.5).
type Options struct {
	DryRun        bool
	FullSync      bool
	SubtaskMode   render.Mode
	ItemKind      board.ContentKind // draft or issue, for newly created items
	StrictOrphans bool              // true = delete orphans, false = keep
	Repo          string            // required when ItemKind == ContentKindIssue
	JSONOutput    bool
}
