package reconcile

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/boardsync/boardsync/internal/agent"
	"github.com/boardsync/boardsync/internal/board"
	"github.com/boardsync/boardsync/internal/cache"
	"github.com/boardsync/boardsync/internal/fields"
	"github.com/boardsync/boardsync/internal/render"
	"github.com/boardsync/boardsync/internal/state"
	"github.com/boardsync/boardsync/internal/task"
)

// BoardRef identifies the board a run targets (spec.md §6 owner/number).
type BoardRef struct {
	Owner  string
	Number int
}

func (r BoardRef) key() string { return fmt.Sprintf("%s/%d", r.Owner, r.Number) }

// remoteClient is the subset of *board.Client the engine depends on,
// isolated so tests can swap in a double without spinning up an HTTP
// server for every case that doesn't need one.
type remoteClient interface {
	GetBoard(ctx context.Context, owner string, number int) (*board.Board, error)
	WalkItems(ctx context.Context, boardID string, fn func(board.BoardItem) error) error
	CreateDraftItem(ctx context.Context, boardID, title, body string) (*board.BoardItem, error)
	CreateIssueItem(ctx context.Context, repo, boardID, title, body string) (*board.BoardItem, error)
	UpdateItemFieldValue(ctx context.Context, boardID, itemID, fieldID string, value board.FieldValueInput) error
	UpdateDraftBody(ctx context.Context, contentID, body string) error
	UpdateIssueBody(ctx context.Context, issueID, body string) error
	DeleteItem(ctx context.Context, boardID, itemID string) error
	CreateField(ctx context.Context, boardID, name string, kind board.FieldKind) (*board.FieldDescriptor, error)
	CreateFieldOption(ctx context.Context, fieldID, name string) (*board.Option, error)
}

// Engine is the Reconciliation Engine (C5): it coordinates the task
// loader, field catalog, identity/state store, planner, and executor for
// one tag's sync run (spec.md §4.5).
type Engine struct {
	Client      remoteClient
	Store       *state.Store
	Snapshots   *state.SnapshotCache // optional; nil disables the board snapshot cache
	Concurrency int                  // default 8, bounded by the remote client's own cap

	// BoardCache avoids a redundant GetBoard round trip across closely
	// spaced runs (e.g. the Watch Driver coalescing a burst of file
	// events); nil disables it. TTL is set by the caller.
	BoardCache *cache.Cache[*board.Board]
}

// Input is everything one sync run needs beyond the Engine's fixed
// dependencies (spec.md §4.5 "sync(config, tag, board_ref, options)").
type Input struct {
	TaskFilePath string
	Tag          string
	Board        BoardRef
	Agents       []string
	AgentConfig  agent.Config
	Strict       bool // fields.Catalog strict mode: missing field is fatal, not auto-created
	Options      Options
}

// Sync runs one reconciliation pass: load, re-anchor if needed, plan,
// execute, commit, and return Statistics. Individual item failures never
// abort the run; only ConfigError/AuthError/BoardNotFound/SchemaError/
// StateError/ParseError do (spec.md §4.5, §7).
func (e *Engine) Sync(ctx context.Context, in Input) (Statistics, error) {
	stats := Statistics{}

	loaded, err := task.Load(in.TaskFilePath, in.Tag, in.Strict)
	if err != nil {
		return stats, err
	}
	for _, w := range loaded.Warnings {
		log.Printf("[reconcile] warning: %s", w.Msg)
	}

	snap, err := e.Store.Load(loaded.Set.Tag)
	if err != nil {
		return stats, &StateError{Phase: "load", Err: err}
	}

	boardInfo, err := e.getBoard(ctx, in.Board)
	if err != nil {
		return stats, err
	}

	existing := make(map[string]board.FieldDescriptor, len(boardInfo.Fields))
	for _, f := range boardInfo.Fields {
		existing[f.ID] = f
	}
	catalog := fields.New(e.Client, boardInfo.ID, in.Agents, in.Strict)
	fieldMap, err := catalog.ResolveAll(ctx, existing)
	if err != nil {
		return stats, &SchemaError{Err: err}
	}

	if len(snap.Records) == 0 {
		identity, ok := fieldMap[fields.Identity]
		if !ok {
			return stats, &SchemaError{Err: fmt.Errorf("identity field not resolved")}
		}
		reanchored, err := state.Reanchor(ctx, e.Client, boardInfo.ID, identity.ID, loaded.Set.Tasks, time.Now())
		if err != nil {
			return stats, fmt.Errorf("re-anchor: %w", err)
		}
		reanchored.Tag = loaded.Set.Tag
		snap = reanchored
		log.Printf("[reconcile] re-anchored %d identity record(s) for tag %q", len(snap.Records), snap.Tag)
	}

	if err := checkSubtaskModeSwitch(snap, loaded.Set.Tasks, in.Options.SubtaskMode); err != nil {
		return stats, &SchemaError{Err: err}
	}

	classified, orphans := snap.Diff(loaded.Set.Tasks)

	planner := &Planner{
		Catalog:     catalog,
		AgentConfig: in.AgentConfig,
		SubtaskMode: in.Options.SubtaskMode,
		ItemKind:    in.Options.ItemKind,
		Snapshot:    snap,
	}
	ops, planErrs := planner.Build(classified, in.Options.FullSync)
	stats.Errors = append(stats.Errors, planErrs...)
	orphanOps := BuildOrphanOps(orphans, in.Options.StrictOrphans)

	if in.Options.DryRun {
		renderDryRun(ops, orphanOps)
		countPlanOnly(&stats, ops, orphanOps)
		return stats, nil
	}

	exec := &executor{
		client:      e.Client,
		boardID:     boardInfo.ID,
		repo:        in.Options.Repo,
		fieldIDs:    fieldIDMap(fieldMap),
		identityID:  fieldMap[fields.Identity].ID,
		concurrency: e.concurrency(),
	}
	result := exec.run(ctx, ops, orphanOps)

	now := time.Now()
	applyResult(snap, result, now)
	stats.Created = result.created
	stats.Updated = result.updated
	stats.Deleted = result.deleted
	stats.Skipped = result.skipped
	stats.Errors = append(stats.Errors, result.errors...)

	if e.Snapshots != nil {
		purgeSnapshotCacheOnSchemaChange(e.Snapshots, boardInfo.ID, result)
	}

	if err := e.Store.Commit(snap); err != nil {
		return stats, &StateError{Phase: "commit", Err: err}
	}
	return stats, nil
}

func (e *Engine) concurrency() int {
	if e.Concurrency <= 0 {
		return 8
	}
	return e.Concurrency
}

func (e *Engine) getBoard(ctx context.Context, ref BoardRef) (*board.Board, error) {
	if e.BoardCache != nil {
		if b, ok := e.BoardCache.Get(ref.key()); ok {
			return b, nil
		}
	}

	b, err := e.Client.GetBoard(ctx, ref.Owner, ref.Number)
	if err != nil {
		var gqlErr *board.GraphQLError
		if asGraphQLNotFound(err, &gqlErr) {
			return nil, &BoardNotFoundError{Owner: ref.Owner, Number: ref.Number}
		}
		return nil, err
	}

	if e.BoardCache != nil {
		e.BoardCache.Set(ref.key(), b)
	}
	return b, nil
}

// checkSubtaskModeSwitch implements spec.md §9's "subtask modes are not
// hot-swappable": this implementation's documented choice (DESIGN.md) is
// to refuse a switch from separate back to nested, since re-rendering
// nested would silently strand the previously created separate child
// items as unreferenced board items rather than cleaning them up. A
// switch from nested to separate is harmless (nothing to strand) and is
// allowed.
func checkSubtaskModeSwitch(snap state.Snapshot, tasks []task.Task, mode render.Mode) error {
	if mode != render.ModeNested {
		return nil
	}
	for _, t := range tasks {
		if len(t.Subtasks) == 0 {
			continue
		}
		prefix := t.ID + "::"
		for key := range snap.Records {
			if strings.HasPrefix(key, prefix) {
				return fmt.Errorf("task %s has separate-mode subtask records but subtask_mode is now nested: switching back is not supported, see DESIGN.md", t.ID)
			}
		}
	}
	return nil
}

func asGraphQLNotFound(err error, target **board.GraphQLError) bool {
	e, ok := err.(*board.GraphQLError)
	if ok && e.Code == board.CodeNotFound {
		*target = e
		return true
	}
	return false
}

// purgeSnapshotCacheOnSchemaChange drops the board snapshot cache for a
// board whenever this run deleted at least one item, since cached entries
// may then describe items that no longer exist. Sync never reads the cache
// itself (spec.md §4.4 "a pure performance cache").
func purgeSnapshotCacheOnSchemaChange(snaps *state.SnapshotCache, boardID string, result execResult) {
	if result.deleted == 0 {
		return
	}
	if err := snaps.Purge(boardID); err != nil {
		log.Printf("[reconcile] purge snapshot cache for board %q: %v", boardID, err)
	}
}
