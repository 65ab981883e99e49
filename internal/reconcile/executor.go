package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/boardsync/boardsync/internal/board"
	"github.com/boardsync/boardsync/internal/render"
	"github.com/boardsync/boardsync/internal/state"
	"golang.org/x/sync/errgroup"
)

// snapshotPut is one successful mutation's effect on the identity
// snapshot, drained single-threaded by applyResult so the snapshot itself
// never needs its own lock (spec.md §5 "single-writer" policy).
type snapshotPut struct {
	key string // task id, or "parent::child" for a separate-mode child
	rec putRecord
}

type putRecord struct {
	remoteItemID string
	contentID    string
	contentKind  board.ContentKind
	fingerprint  string
}

// execResult accumulates one run's outcome across every dispatched
// operation, independent of how many task-groups ran concurrently.
type execResult struct {
	mu sync.Mutex

	created int
	updated int
	deleted int
	skipped int
	errors  []ItemErrorEntry
	puts    []snapshotPut
	deletes []string
	seen    []string
}

func (r *execResult) addPut(key string, rec putRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.puts = append(r.puts, snapshotPut{key: key, rec: rec})
}

func (r *execResult) addDelete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes = append(r.deletes, key)
}

func (r *execResult) addSeen(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, key)
}

func (r *execResult) addError(taskID, phase string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, ItemErrorEntry{TaskID: taskID, Phase: phase, Message: err.Error()})
}

func (r *execResult) bump(kind OpKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch kind {
	case OpCreate:
		r.created++
	case OpUpdateFields, OpUpdateBody:
		// Counted once per task group below, not per op, to match
		// spec.md §8's "updated=1" for a single changed task even though
		// a ChangedTask group carries two ops (fields + body).
	case OpDelete:
		r.deleted++
	case OpSkip:
		r.skipped++
	}
}

// executor dispatches a SyncPlan's operations against the remote client,
// grouping operations that belong to the same task so a Create happens-
// before the UpdateFields that references its new item id, while groups
// for independent tasks run concurrently bounded by concurrency
// (spec.md §4.5 step 5, §5 ordering guarantees).
type executor struct {
	client      remoteClient
	boardID     string
	repo        string // required when creating issue-kind items
	fieldIDs    map[string]string
	identityID  string // remote field id for the logical "identity" field
	concurrency int
}

type opGroup struct {
	taskID string // for an orphan-record group, the orphaned record's task id
	ops    []PlannedOperation
}

func groupOps(ops []PlannedOperation) []opGroup {
	var groups []opGroup
	var cur *opGroup
	for _, op := range ops {
		key := op.Task.ID
		if cur == nil || cur.taskID != key || key == "" {
			groups = append(groups, opGroup{taskID: key})
			cur = &groups[len(groups)-1]
		}
		cur.ops = append(cur.ops, op)
	}
	return groups
}

// run executes taskOps (Create/UpdateFields/UpdateBody/Skip, grouped per
// task) and then orphanOps (Delete/Skip), so every delete happens after
// every create/update has been attempted (spec.md §4.5 step 4 "Deletes
// last"). Within each call the groups it contains run concurrently.
func (e *executor) run(ctx context.Context, taskOps, orphanOps []PlannedOperation) execResult {
	result := execResult{}
	e.dispatch(ctx, groupOps(taskOps), &result)
	e.dispatch(ctx, groupOps(orphanOps), &result)
	return result
}

func (e *executor) dispatch(ctx context.Context, groups []opGroup, result *execResult) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, grp := range groups {
		grp := grp
		g.Go(func() error {
			e.runGroup(gctx, grp, result)
			return nil // item-level failures are recorded, never propagated
		})
	}
	_ = g.Wait()
}

func (e *executor) runGroup(ctx context.Context, grp opGroup, result *execResult) {
	if len(grp.ops) == 0 {
		return
	}

	// itemID/contentID/contentKind carry forward from a Create within this
	// group to the UpdateFields/UpdateBody that follow it.
	var itemID, contentID string
	var contentKind board.ContentKind
	taskID := grp.taskID
	fingerprint := ""
	ok := true

	for _, op := range grp.ops {
		if !ok {
			break
		}
		fingerprint = op.Task.Fingerprint

		switch op.Kind {
		case OpCreate:
			id, cid, kind, children, err := e.create(ctx, op)
			if err != nil {
				result.addError(taskID, "create", err)
				ok = false
				continue
			}
			itemID, contentID, contentKind = id, cid, kind
			result.bump(OpCreate)
			// Persist a child identity record for every separate-mode
			// subtask item created alongside the parent (spec.md §4.6
			// "records a child identity record keyed by parent_id::child_id"),
			// so a later run's link-body re-render and orphan/switch-guard
			// checks see them.
			for childKey, childItemID := range children {
				result.addPut(childKey, putRecord{
					remoteItemID: childItemID,
					contentKind:  board.ContentKindDraft,
				})
			}

		case OpUpdateFields:
			id := op.RemoteItemID
			if id == "" {
				id = itemID
			}
			if err := e.updateFields(ctx, id, op.FieldChanges); err != nil {
				result.addError(taskID, "update_fields", err)
				ok = false
				continue
			}

		case OpUpdateBody:
			id := op.ContentID
			kind := op.ContentKind
			if id == "" {
				id, kind = contentID, contentKind
			}
			if err := e.updateBody(ctx, id, kind, op.Body); err != nil {
				result.addError(taskID, "update_body", err)
				ok = false
				continue
			}

		case OpDelete:
			if err := e.client.DeleteItem(ctx, e.boardID, op.RemoteItemID); err != nil {
				result.addError(taskID, "delete", err)
				ok = false
				continue
			}
			result.bump(OpDelete)
			if taskID != "" {
				result.addDelete(taskID)
			}

		case OpSkip:
			result.bump(OpSkip)
			if taskID != "" {
				result.addSeen(taskID)
			}
		}
	}

	// Skip and orphan-Delete groups already reported their full outcome
	// (addSeen/addDelete above) and carry no identity record to write:
	// only a Create/UpdateFields group produces a Put.
	hasCreate := grp.ops[0].Kind == OpCreate
	hasUpdate := grp.ops[0].Kind == OpUpdateFields
	if !ok || taskID == "" || !(hasCreate || hasUpdate) {
		return
	}

	// A group that ran UpdateFields (+ UpdateBody) without error counts as
	// one "updated" task regardless of how many ops it contained
	// (spec.md §8 scenario C: "updated=1").
	if hasUpdate && !hasCreate {
		result.mu.Lock()
		result.updated++
		result.mu.Unlock()
	}

	finalItemID := itemID
	if finalItemID == "" {
		finalItemID = grp.ops[0].RemoteItemID
	}
	finalContentID := contentID
	finalContentKind := contentKind
	if finalContentID == "" {
		for _, op := range grp.ops {
			if op.ContentID != "" {
				finalContentID, finalContentKind = op.ContentID, op.ContentKind
			}
		}
	}

	result.addPut(taskID, putRecord{
		remoteItemID: finalItemID,
		contentID:    finalContentID,
		contentKind:  finalContentKind,
		fingerprint:  fingerprint,
	})
}

// create creates op's board item and, for a separate-mode task with
// subtasks, the child items alongside it. children is keyed
// "parent::child" and is non-nil only when child items were created, so
// the caller can persist an identity record for each (spec.md §4.6).
func (e *executor) create(ctx context.Context, op PlannedOperation) (itemID, contentID string, kind board.ContentKind, children map[string]string, err error) {
	var item *board.BoardItem
	switch op.ContentKind {
	case board.ContentKindIssue:
		item, err = e.client.CreateIssueItem(ctx, e.repo, e.boardID, op.Task.Title, op.Body)
	default:
		item, err = e.client.CreateDraftItem(ctx, e.boardID, op.Task.Title, op.Body)
	}
	if err != nil {
		return "", "", "", nil, err
	}

	if len(op.SeparateChildren) > 0 {
		childIDs, childErr := e.createSeparateChildren(ctx, op.Task.ID, op.SeparateChildren)
		if childErr != nil {
			return "", "", "", nil, fmt.Errorf("create subtask items: %w", childErr)
		}
		body := render.SeparateParentBody(op.Task.Body, op.Task.ID, op.Task.Subtasks, childIDs)
		if updateErr := e.updateBody(ctx, item.ContentID, item.ContentKind, body); updateErr != nil {
			return "", "", "", nil, fmt.Errorf("backfill subtask links: %w", updateErr)
		}
		children = childIDs
	}

	return item.ID, item.ContentID, item.ContentKind, children, nil
}

func (e *executor) createSeparateChildren(ctx context.Context, parentID string, children []render.ChildSpec) (map[string]string, error) {
	itemIDs := make(map[string]string, len(children))
	for _, child := range children {
		item, err := e.client.CreateDraftItem(ctx, e.boardID, child.Title, "")
		if err != nil {
			return nil, fmt.Errorf("create subtask %q: %w", child.Title, err)
		}
		itemIDs[child.IdentityKey] = item.ID
		if e.identityID != "" {
			text := child.IdentityKey
			if err := e.client.UpdateItemFieldValue(ctx, e.boardID, item.ID, e.identityID, board.FieldValueInput{Text: &text}); err != nil {
				return nil, fmt.Errorf("set identity marker for subtask %q: %w", child.Title, err)
			}
		}
	}
	return itemIDs, nil
}

func (e *executor) updateFields(ctx context.Context, itemID string, changes []FieldChange) error {
	for _, change := range changes {
		fieldID, ok := e.fieldIDs[change.Logical]
		if !ok {
			return fmt.Errorf("no remote field id resolved for logical field %q", change.Logical)
		}
		if err := e.client.UpdateItemFieldValue(ctx, e.boardID, itemID, fieldID, change.Value); err != nil {
			return err
		}
	}
	return nil
}

func (e *executor) updateBody(ctx context.Context, contentID string, kind board.ContentKind, body string) error {
	if kind == board.ContentKindIssue {
		return e.client.UpdateIssueBody(ctx, contentID, body)
	}
	return e.client.UpdateDraftBody(ctx, contentID, body)
}

// fieldIDMap builds the logical->remote-field-id lookup the executor needs
// from a resolved field catalog's descriptor map.
func fieldIDMap(resolved map[string]board.FieldDescriptor) map[string]string {
	out := make(map[string]string, len(resolved))
	for logical, desc := range resolved {
		out[logical] = desc.ID
	}
	return out
}

// applyResult drains an execResult into the in-memory snapshot
// single-threaded, so the snapshot map itself never needs its own lock
// even though the operations that produced these outcomes ran concurrently.
func applyResult(snap state.Snapshot, result execResult, now time.Time) {
	for _, p := range result.puts {
		snap.Put(p.key, state.Record{
			RemoteItemID: p.rec.remoteItemID,
			ContentID:    p.rec.contentID,
			ContentKind:  p.rec.contentKind,
			Fingerprint:  p.rec.fingerprint,
			LastSeen:     now,
		})
	}
	for _, key := range result.deletes {
		snap.Delete(key)
	}
	for _, key := range result.seen {
		snap.MarkSeen(key, now)
	}
}

// renderDryRun prints the operations a real run would perform without
// executing any of them (spec.md §6 --dry-run).
func renderDryRun(taskOps, orphanOps []PlannedOperation) {
	for _, op := range append(append([]PlannedOperation{}, taskOps...), orphanOps...) {
		id := op.Task.ID
		if id == "" {
			id = op.RemoteItemID
		}
		fmt.Printf("[dry-run] %s %s\n", op.Kind, id)
	}
}

// countPlanOnly fills stats from a plan without ever contacting the
// remote client, counting a ChangedTask/UnchangedTask-forced pair
// (UpdateFields+UpdateBody) as a single "updated" task to match what a
// real run's executor reports.
func countPlanOnly(stats *Statistics, taskOps, orphanOps []PlannedOperation) {
	for _, grp := range groupOps(taskOps) {
		if len(grp.ops) == 0 {
			continue
		}
		switch grp.ops[0].Kind {
		case OpCreate:
			stats.Created++
		case OpUpdateFields:
			stats.Updated++
		case OpSkip:
			stats.Skipped++
		}
	}
	for _, op := range orphanOps {
		switch op.Kind {
		case OpDelete:
			stats.Deleted++
		case OpSkip:
			stats.Skipped++
		}
	}
}
