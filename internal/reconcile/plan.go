package reconcile

import (
	"fmt"
	"strings"

	"github.com/boardsync/boardsync/internal/agent"
	"github.com/boardsync/boardsync/internal/board"
	"github.com/boardsync/boardsync/internal/fields"
	"github.com/boardsync/boardsync/internal/render"
	"github.com/boardsync/boardsync/internal/state"
	"github.com/boardsync/boardsync/internal/task"
)

// Planner builds a SyncPlan from classified tasks. It needs the field
// catalog (to resolve option identifiers) and the agent rule set (to
// resolve the Agent field), but never calls the remote client itself.
type Planner struct {
	Catalog     *fields.Catalog
	AgentConfig agent.Config
	SubtaskMode render.Mode
	ItemKind    board.ContentKind

	// Snapshot supplies the previously persisted child identity records
	// (keyed "parent::child") a separate-mode body re-render needs to
	// rebuild its link list without recreating already-created children.
	Snapshot state.Snapshot
}

// Build produces the Create/UpdateFields/UpdateBody/Skip operations for
// one task set, in task order. Orphaned identity records are handled
// separately by BuildOrphanOps so their Delete/Skip operations can be
// appended last (spec.md §4.5 step 4). fullSync forces an
// UpdateFields/UpdateBody pair even for UnchangedTask.
func (p *Planner) Build(classified []state.Classified, fullSync bool) ([]PlannedOperation, []ItemErrorEntry) {
	var ops []PlannedOperation
	var errs []ItemErrorEntry

	for _, c := range classified {
		switch c.Classification {
		case state.NewTask:
			op, err := p.createOp(c.Task)
			if err != nil {
				errs = append(errs, ItemErrorEntry{TaskID: c.Task.ID, Phase: "plan", Message: err.Error()})
				continue
			}
			ops = append(ops, op)
			fieldsOp, err := p.updateFieldsOp(c.Task, "")
			if err != nil {
				errs = append(errs, ItemErrorEntry{TaskID: c.Task.ID, Phase: "plan", Message: err.Error()})
				continue
			}
			ops = append(ops, fieldsOp)

		case state.ChangedTask:
			fieldsOp, err := p.updateFieldsOp(c.Task, c.Prior.RemoteItemID)
			if err != nil {
				errs = append(errs, ItemErrorEntry{TaskID: c.Task.ID, Phase: "plan", Message: err.Error()})
				continue
			}
			ops = append(ops, fieldsOp)
			ops = append(ops, p.updateBodyOp(c.Task, c.Prior))

		case state.UnchangedTask:
			if !fullSync {
				ops = append(ops, PlannedOperation{Kind: OpSkip, Task: c.Task, RemoteItemID: c.Prior.RemoteItemID, ContentKind: c.Prior.ContentKind})
				continue
			}
			fieldsOp, err := p.updateFieldsOp(c.Task, c.Prior.RemoteItemID)
			if err != nil {
				errs = append(errs, ItemErrorEntry{TaskID: c.Task.ID, Phase: "plan", Message: err.Error()})
				continue
			}
			ops = append(ops, fieldsOp)
			ops = append(ops, p.updateBodyOp(c.Task, c.Prior))
		}
	}

	return ops, errs
}

// BuildOrphanOps appends Delete operations (strict) or Skip operations
// (keep) for every orphaned identity record, placed after all other
// operations so Deletes run last (spec.md §4.5 step 4).
func BuildOrphanOps(orphans []state.Record, strictOrphans bool) []PlannedOperation {
	ops := make([]PlannedOperation, 0, len(orphans))
	for _, rec := range orphans {
		t := task.Task{ID: rec.TaskID}
		if strictOrphans {
			ops = append(ops, PlannedOperation{Kind: OpDelete, Task: t, RemoteItemID: rec.RemoteItemID, ContentKind: rec.ContentKind})
		} else {
			ops = append(ops, PlannedOperation{Kind: OpSkip, Task: t, RemoteItemID: rec.RemoteItemID, ContentKind: rec.ContentKind})
		}
	}
	return ops
}

func (p *Planner) createOp(t task.Task) (PlannedOperation, error) {
	body := p.renderBody(t)
	return PlannedOperation{
		Kind:             OpCreate,
		Task:             t,
		ContentKind:      p.ItemKind,
		Body:             body,
		SeparateChildren: p.separateChildren(t),
	}, nil
}

func (p *Planner) renderBody(t task.Task) string {
	if p.SubtaskMode == render.ModeSeparate {
		// At Create time no child identity records exist yet, so the link
		// list is filled in post-creation once child item ids are known
		// (executor.create). On a later Changed/full_sync re-render,
		// childItemIDs supplies the ids already persisted from that
		// earlier create.
		return render.SeparateParentBody(t.Body, t.ID, t.Subtasks, p.childItemIDs(t))
	}
	return render.NestedBody(t.Body, t.Subtasks)
}

// childItemIDs looks up the remote item id already recorded for each of
// t's subtasks, keyed the same way executor.createSeparateChildren and
// state.Diff key them: "parent::child" (spec.md §4.6).
func (p *Planner) childItemIDs(t task.Task) map[string]string {
	if len(t.Subtasks) == 0 || p.Snapshot.Records == nil {
		return nil
	}
	ids := make(map[string]string, len(t.Subtasks))
	for _, st := range t.Subtasks {
		key := t.ID + "::" + st.ID
		if rec, ok := p.Snapshot.Records[key]; ok && rec.RemoteItemID != "" {
			ids[key] = rec.RemoteItemID
		}
	}
	return ids
}

func (p *Planner) separateChildren(t task.Task) []render.ChildSpec {
	if p.SubtaskMode != render.ModeSeparate || len(t.Subtasks) == 0 {
		return nil
	}
	return render.SeparateChildren(t.ID, t.Subtasks)
}

func (p *Planner) updateFieldsOp(t task.Task, remoteItemID string) (PlannedOperation, error) {
	changes, err := p.fieldChanges(t)
	if err != nil {
		return PlannedOperation{}, err
	}
	return PlannedOperation{
		Kind:         OpUpdateFields,
		Task:         t,
		RemoteItemID: remoteItemID,
		FieldChanges: changes,
	}, nil
}

func (p *Planner) updateBodyOp(t task.Task, prior state.Record) PlannedOperation {
	return PlannedOperation{
		Kind:             OpUpdateBody,
		Task:             t,
		RemoteItemID:     prior.RemoteItemID,
		ContentID:        prior.ContentID,
		ContentKind:      prior.ContentKind,
		Body:             p.renderBody(t),
		SeparateChildren: p.separateChildren(t),
	}
}

func text(s string) board.FieldValueInput {
	return board.FieldValueInput{Text: &s}
}

func option(id string) board.FieldValueInput {
	return board.FieldValueInput{SingleSelectOption: &id}
}

// fieldChanges computes the full target field-value set for a task
// (spec.md §4.5 "Field-value diff rules"). Per-component diffing against
// the previously observed remote value is out of scope: the engine
// recomputes every field whenever a task is classified as New, Changed,
// or forced via full_sync, which is simpler than tracking per-field
// deltas and costs at most a handful of redundant mutations per run.
func (p *Planner) fieldChanges(t task.Task) ([]FieldChange, error) {
	var changes []FieldChange

	changes = append(changes, FieldChange{Logical: fields.Identity, Value: text(t.ID)})
	changes = append(changes, FieldChange{Logical: fields.Dependencies, Value: text(strings.Join(t.Dependencies, ", "))})
	changes = append(changes, FieldChange{Logical: fields.TestStrategy, Value: text(t.TestStrategy)})

	priorityOptID, err := p.Catalog.OptionID(fields.Priority, fields.PriorityOption(t.Priority))
	if err != nil {
		return nil, fmt.Errorf("task %s: resolve priority option: %w", t.ID, err)
	}
	changes = append(changes, FieldChange{Logical: fields.Priority, Value: option(priorityOptID)})

	statusOptID, err := p.Catalog.OptionID(fields.Status, fields.StatusOption(t.Status))
	if err != nil {
		return nil, fmt.Errorf("task %s: resolve status option: %w", t.ID, err)
	}
	changes = append(changes, FieldChange{Logical: fields.Status, Value: option(statusOptID)})

	assignment := agent.Resolve(p.AgentConfig, t)
	agentOptID, err := p.Catalog.OptionID(fields.Agent, assignment.OptionName)
	if err != nil {
		// Agent's option set is not policy-controlled (unlike status and
		// priority): outside strict mode the catalog creates missing agent
		// options on demand during ResolveAll, so reaching OptionUnknown
		// here means the assignment named an agent absent from
		// configuration; in strict mode no option is created, so a
		// configured agent whose option the board lacks also fails here.
		return nil, fmt.Errorf("task %s: resolve agent option %q: %w", t.ID, assignment.OptionName, err)
	}
	changes = append(changes, FieldChange{Logical: fields.Agent, Value: option(agentOptID)})

	return changes, nil
}
