package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/boardsync/boardsync/internal/agent"
	"github.com/boardsync/boardsync/internal/board"
	"github.com/boardsync/boardsync/internal/render"
	"github.com/boardsync/boardsync/internal/state"
)

// baseInput returns an Input pre-wired with an agent rule set that covers
// scenarioATasks' owners ("dev" on T1, none on T2/T3), so tests exercise
// the full field-value diff (including Agent) without every scenario
// having to repeat the agent wiring.
func baseInput(path, tag string) Input {
	return Input{
		TaskFilePath: path,
		Tag:          tag,
		Board:        BoardRef{Owner: "acme", Number: 1},
		Agents:       []string{"dev", "unassigned"},
		AgentConfig:  agent.Config{Default: "unassigned"},
		Options:      Options{SubtaskMode: render.ModeNested, ItemKind: board.ContentKindDraft, StrictOrphans: true},
	}
}

// fakeBoard is a stateful double for remoteClient, standing in for the
// full GraphQL round trip so engine tests can assert on spec.md §8's
// concrete scenarios without an HTTP server.
type fakeBoard struct {
	boardID string
	fields  map[string]board.FieldDescriptor // remote field id -> descriptor
	items   map[string]*board.BoardItem      // item id -> item
	order   []string                         // creation order, for WalkItems
	nextID  int
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{
		boardID: "board-1",
		fields:  map[string]board.FieldDescriptor{},
		items:   map[string]*board.BoardItem{},
	}
}

func (f *fakeBoard) GetBoard(ctx context.Context, owner string, number int) (*board.Board, error) {
	descs := make([]board.FieldDescriptor, 0, len(f.fields))
	for _, d := range f.fields {
		descs = append(descs, d)
	}
	return &board.Board{ID: f.boardID, Number: number, Fields: descs}, nil
}

func (f *fakeBoard) WalkItems(ctx context.Context, boardID string, fn func(board.BoardItem) error) error {
	for _, id := range f.order {
		item, ok := f.items[id]
		if !ok {
			continue
		}
		if err := fn(*item); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeBoard) CreateDraftItem(ctx context.Context, boardID, title, body string) (*board.BoardItem, error) {
	f.nextID++
	id := "item-" + strconv.Itoa(f.nextID)
	item := &board.BoardItem{
		ID:          id,
		ContentID:   "content-" + strconv.Itoa(f.nextID),
		ContentKind: board.ContentKindDraft,
		Title:       title,
		Body:        body,
		FieldValues: map[string]board.FieldValue{},
	}
	f.items[id] = item
	f.order = append(f.order, id)
	return item, nil
}

func (f *fakeBoard) CreateIssueItem(ctx context.Context, repo, boardID, title, body string) (*board.BoardItem, error) {
	f.nextID++
	id := "item-" + strconv.Itoa(f.nextID)
	item := &board.BoardItem{
		ID:          id,
		ContentID:   "issue-" + strconv.Itoa(f.nextID),
		ContentKind: board.ContentKindIssue,
		Title:       title,
		Body:        body,
		FieldValues: map[string]board.FieldValue{},
	}
	f.items[id] = item
	f.order = append(f.order, id)
	return item, nil
}

func (f *fakeBoard) UpdateItemFieldValue(ctx context.Context, boardID, itemID, fieldID string, value board.FieldValueInput) error {
	item, ok := f.items[itemID]
	if !ok {
		return fmt.Errorf("no such item %q", itemID)
	}
	fv := board.FieldValue{FieldID: fieldID}
	if value.Text != nil {
		fv.Text = value.Text
	}
	if value.SingleSelectOption != nil {
		fv.SingleSelectOption = value.SingleSelectOption
	}
	item.FieldValues[fieldID] = fv
	return nil
}

func (f *fakeBoard) UpdateDraftBody(ctx context.Context, contentID, body string) error {
	for _, item := range f.items {
		if item.ContentID == contentID {
			item.Body = body
			return nil
		}
	}
	return fmt.Errorf("no such draft content %q", contentID)
}

func (f *fakeBoard) UpdateIssueBody(ctx context.Context, issueID, body string) error {
	for _, item := range f.items {
		if item.ContentID == issueID {
			item.Body = body
			return nil
		}
	}
	return fmt.Errorf("no such issue %q", issueID)
}

func (f *fakeBoard) DeleteItem(ctx context.Context, boardID, itemID string) error {
	if _, ok := f.items[itemID]; !ok {
		return fmt.Errorf("no such item %q", itemID)
	}
	delete(f.items, itemID)
	for i, id := range f.order {
		if id == itemID {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeBoard) CreateField(ctx context.Context, boardID, name string, kind board.FieldKind) (*board.FieldDescriptor, error) {
	id := "field-" + name
	desc := board.FieldDescriptor{ID: id, Name: name, Kind: kind}
	f.fields[id] = desc
	out := desc
	return &out, nil
}

func (f *fakeBoard) CreateFieldOption(ctx context.Context, fieldID, name string) (*board.Option, error) {
	desc, ok := f.fields[fieldID]
	if !ok {
		return nil, fmt.Errorf("no such field %q", fieldID)
	}
	opt := board.Option{ID: fieldID + "-opt-" + name, Name: name}
	desc.Options = append(desc.Options, opt)
	f.fields[fieldID] = desc
	return &opt, nil
}

// itemByTaskID returns the item carrying the given TM_ID, for assertions,
// or nil if none matches.
func (f *fakeBoard) itemByTaskID(identityFieldID, taskID string) *board.BoardItem {
	for _, item := range f.items {
		fv, ok := item.FieldValues[identityFieldID]
		if ok && fv.Text != nil && *fv.Text == taskID {
			return item
		}
	}
	return nil
}

func (f *fakeBoard) identityFieldID() string {
	for id, d := range f.fields {
		if d.Name == "TM_ID" {
			return id
		}
	}
	return ""
}

const scenarioATasks = `{
  "main": { "tasks": [
    { "id": "T1", "title": "Init repo", "status": "done", "priority": "high", "assignee": "dev" },
    { "id": "T2", "title": "Add README", "status": "pending", "priority": "medium", "dependencies": ["T1"] },
    { "id": "T3", "title": "Write tests", "status": "in-progress", "priority": "low" }
  ] } }`

func writeTaskFile(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "tasks.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write task file: %v", err)
	}
	return path
}

func newTestEngine(client remoteClient, dir string) *Engine {
	return &Engine{
		Client: client,
		Store:  state.New(filepath.Join(dir, "state")),
	}
}

// TestSyncScenarioA_FreshSync covers spec.md §8 Scenario A: three tasks
// against an empty board produce three creates and the QA-gate status
// mapping for the done task.
func TestSyncScenarioA_FreshSync(t *testing.T) {
	dir := t.TempDir()
	path := writeTaskFile(t, dir, scenarioATasks)
	client := newFakeBoard()
	engine := newTestEngine(client, dir)

	stats, err := engine.Sync(context.Background(), baseInput(path, "main"))
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if stats.Created != 3 || stats.Updated != 0 || stats.Deleted != 0 || stats.Skipped != 0 || len(stats.Errors) != 0 {
		t.Fatalf("scenario A: got %+v", stats)
	}

	identityID := client.identityFieldID()
	if identityID == "" {
		t.Fatalf("TM_ID field was never created")
	}
	t1 := client.itemByTaskID(identityID, "T1")
	if t1 == nil {
		t.Fatalf("no board item for T1")
	}
	statusFieldID := ""
	for id, d := range client.fields {
		if d.Name == "Status" {
			statusFieldID = id
		}
	}
	gotStatus := t1.FieldValues[statusFieldID].SingleSelectOption
	if gotStatus == nil || *gotStatus != statusFieldID+"-opt-QA Review" {
		t.Fatalf("T1 (done) should map to QA Review, got %v", gotStatus)
	}
}

// TestSyncScenarioB_NoOpRerun covers spec.md §8 Scenario B and testable
// property 1 (idempotence): re-running with no changes skips everything.
func TestSyncScenarioB_NoOpRerun(t *testing.T) {
	dir := t.TempDir()
	path := writeTaskFile(t, dir, scenarioATasks)
	client := newFakeBoard()
	engine := newTestEngine(client, dir)
	in := baseInput(path, "main")

	if _, err := engine.Sync(context.Background(), in); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	stats, err := engine.Sync(context.Background(), in)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if stats.Created != 0 || stats.Updated != 0 || stats.Deleted != 0 || stats.Skipped != 3 || len(stats.Errors) != 0 {
		t.Fatalf("scenario B: got %+v", stats)
	}
}

// TestSyncScenarioC_RenameTitle covers spec.md §8 Scenario C: editing one
// task's title yields updated=1 and leaves the others untouched.
func TestSyncScenarioC_RenameTitle(t *testing.T) {
	dir := t.TempDir()
	path := writeTaskFile(t, dir, scenarioATasks)
	client := newFakeBoard()
	engine := newTestEngine(client, dir)
	in := baseInput(path, "main")
	if _, err := engine.Sync(context.Background(), in); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	renamed := `{
  "main": { "tasks": [
    { "id": "T1", "title": "Init repo", "status": "done", "priority": "high", "assignee": "dev" },
    { "id": "T2", "title": "Add README.md", "status": "pending", "priority": "medium", "dependencies": ["T1"] },
    { "id": "T3", "title": "Write tests", "status": "in-progress", "priority": "low" }
  ] } }`
	writeTaskFile(t, dir, renamed)

	stats, err := engine.Sync(context.Background(), in)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if stats.Created != 0 || stats.Updated != 1 || stats.Deleted != 0 || stats.Skipped != 2 || len(stats.Errors) != 0 {
		t.Fatalf("scenario C: got %+v", stats)
	}

	identityID := client.identityFieldID()
	t2 := client.itemByTaskID(identityID, "T2")
	if t2 == nil || t2.Title != "Add README.md" {
		t.Fatalf("T2 title was not updated: %+v", t2)
	}
}

// TestSyncScenarioD_OrphanDelete covers spec.md §8 Scenario D and testable
// property 4: removing a task with strict_orphans=delete issues exactly
// one delete and drops it from state.
func TestSyncScenarioD_OrphanDelete(t *testing.T) {
	dir := t.TempDir()
	path := writeTaskFile(t, dir, scenarioATasks)
	client := newFakeBoard()
	engine := newTestEngine(client, dir)
	in := baseInput(path, "main")
	if _, err := engine.Sync(context.Background(), in); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	withoutT3 := `{
  "main": { "tasks": [
    { "id": "T1", "title": "Init repo", "status": "done", "priority": "high", "assignee": "dev" },
    { "id": "T2", "title": "Add README", "status": "pending", "priority": "medium", "dependencies": ["T1"] }
  ] } }`
	writeTaskFile(t, dir, withoutT3)

	stats, err := engine.Sync(context.Background(), in)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if stats.Created != 0 || stats.Updated != 0 || stats.Deleted != 1 || stats.Skipped != 2 || len(stats.Errors) != 0 {
		t.Fatalf("scenario D: got %+v", stats)
	}

	snap, err := engine.Store.Load("main")
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if _, ok := snap.Records["T3"]; ok {
		t.Fatalf("T3 should have been removed from state")
	}
}

// TestSyncScenarioE_Reanchor covers spec.md §8 Scenario E and testable
// property 5: an empty state file against a populated board reconstructs
// identity from TM_ID values instead of creating duplicates.
func TestSyncScenarioE_Reanchor(t *testing.T) {
	dir := t.TempDir()
	path := writeTaskFile(t, dir, scenarioATasks)
	client := newFakeBoard()
	engine := newTestEngine(client, dir)
	in := baseInput(path, "main")
	if _, err := engine.Sync(context.Background(), in); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	if err := os.Remove(filepath.Join(dir, "state", "main.json")); err != nil {
		t.Fatalf("remove state file: %v", err)
	}

	stats, err := engine.Sync(context.Background(), in)
	if err != nil {
		t.Fatalf("re-anchor sync: %v", err)
	}
	if stats.Created != 0 {
		t.Fatalf("re-anchor should create nothing, got created=%d", stats.Created)
	}
	if len(stats.Errors) != 0 {
		t.Fatalf("re-anchor should report no errors, got %+v", stats.Errors)
	}

	snap, err := engine.Store.Load("main")
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	for _, id := range []string{"T1", "T2", "T3"} {
		if _, ok := snap.Records[id]; !ok {
			t.Fatalf("expected re-anchored record for %s", id)
		}
	}
}

// TestSyncStrictMissingField_Fatal covers the strict-mode half of spec.md
// §3's field contract: a required field that is entirely absent from the
// board is a fatal SchemaError (unlike a missing *option* on a field that
// does exist, see TestSyncStrictMissingOption_ItemErrorNotFatal below).
func TestSyncStrictMissingField_Fatal(t *testing.T) {
	dir := t.TempDir()
	path := writeTaskFile(t, dir, scenarioATasks)
	client := newFakeBoard()
	engine := newTestEngine(client, dir)

	in := baseInput(path, "main")
	in.Strict = true
	_, err := engine.Sync(context.Background(), in)
	if err == nil {
		t.Fatalf("expected a SchemaError in strict mode against a board with no fields at all")
	}
	if _, ok := err.(*SchemaError); !ok {
		t.Fatalf("expected *SchemaError, got %T: %v", err, err)
	}
}

// TestSyncStrictMissingOption_ItemErrorNotFatal covers spec.md §8's
// boundary behavior: a status option ("QA Review") absent from a board
// that otherwise has every required field causes an ItemError for every
// `done` task in that run, not a fatal run failure.
func TestSyncStrictMissingOption_ItemErrorNotFatal(t *testing.T) {
	dir := t.TempDir()
	path := writeTaskFile(t, dir, scenarioATasks)
	client := newFakeBoard()

	seedField := func(id, remoteName string, kind board.FieldKind, options ...string) {
		desc := board.FieldDescriptor{ID: id, Name: remoteName, Kind: kind}
		for _, name := range options {
			desc.Options = append(desc.Options, board.Option{ID: id + "-opt-" + name, Name: name})
		}
		client.fields[id] = desc
	}
	seedField("field-identity", "TM_ID", board.FieldKindText)
	seedField("field-dependencies", "Dependencies", board.FieldKindText)
	seedField("field-test-strategy", "Test Strategy", board.FieldKindText)
	seedField("field-priority", "Priority", board.FieldKindSingleSelect, "High", "Medium", "Low")
	seedField("field-status", "Status", board.FieldKindSingleSelect, "Todo", "In Progress") // QA Review deliberately absent
	seedField("field-agent", "Agent", board.FieldKindSingleSelect, "dev", "unassigned")

	engine := newTestEngine(client, dir)
	in := baseInput(path, "main")
	in.Strict = true

	stats, err := engine.Sync(context.Background(), in)
	if err != nil {
		t.Fatalf("a missing option must not fail the run, got: %v", err)
	}
	if stats.Created != 3 {
		t.Fatalf("expected all three items to still be created, got created=%d", stats.Created)
	}
	if len(stats.Errors) != 1 || stats.Errors[0].TaskID != "T1" {
		t.Fatalf("expected exactly one ItemError naming T1 (the done task), got %+v", stats.Errors)
	}
}

// TestSyncSeparateMode_PersistsChildIdentity covers spec.md §4.6: creating
// a parent with separate-mode subtasks must persist a child identity
// record keyed "parent::child" for each one, not just thread the child
// item id through the one body render that happened to run right after
// create. A later re-render (forced here by a title change so the update
// path actually runs) must still find the link via the persisted record.
func TestSyncSeparateMode_PersistsChildIdentity(t *testing.T) {
	dir := t.TempDir()
	tasks := `{
  "main": { "tasks": [
    { "id": "T1", "title": "Parent", "status": "pending", "priority": "medium",
      "subtasks": [ { "id": "ST1", "title": "Child one", "status": "pending" } ] }
  ] } }`
	path := writeTaskFile(t, dir, tasks)
	client := newFakeBoard()
	engine := newTestEngine(client, dir)
	in := baseInput(path, "main")
	in.Options.SubtaskMode = render.ModeSeparate

	stats, err := engine.Sync(context.Background(), in)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if stats.Created != 1 || len(stats.Errors) != 0 {
		t.Fatalf("got %+v", stats)
	}

	snap, err := engine.Store.Load("main")
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	childRec, ok := snap.Records["T1::ST1"]
	if !ok || childRec.RemoteItemID == "" {
		t.Fatalf("expected a persisted child identity record for T1::ST1, got %+v", snap.Records)
	}

	identityID := client.identityFieldID()
	parent := client.itemByTaskID(identityID, "T1")
	if parent == nil || !strings.Contains(parent.Body, childRec.RemoteItemID) {
		t.Fatalf("parent body should link the child item id %q, got %+v", childRec.RemoteItemID, parent)
	}

	renamed := `{
  "main": { "tasks": [
    { "id": "T1", "title": "Parent renamed", "status": "pending", "priority": "medium",
      "subtasks": [ { "id": "ST1", "title": "Child one", "status": "pending" } ] }
  ] } }`
	writeTaskFile(t, dir, renamed)

	stats2, err := engine.Sync(context.Background(), in)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if stats2.Updated != 1 || stats2.Created != 0 || len(stats2.Errors) != 0 {
		t.Fatalf("second sync: got %+v", stats2)
	}

	parent2 := client.itemByTaskID(identityID, "T1")
	if parent2 == nil || parent2.Title != "Parent renamed" {
		t.Fatalf("T1 title was not updated: %+v", parent2)
	}
	if !strings.Contains(parent2.Body, childRec.RemoteItemID) {
		t.Fatalf("child link must survive a body re-render, got body %q", parent2.Body)
	}
}
