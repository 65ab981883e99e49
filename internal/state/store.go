// Package state implements the Identity & State Store (C4): it persists,
// per tag, the mapping from local task id to remote board item, and
// classifies each run's tasks against that prior snapshot.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boardsync/boardsync/internal/board"
)

// Record is one identity entry: the durable link between a local task and
// a remote board item (spec.md §4.4).
type Record struct {
	TaskID       string            `json:"-"`
	RemoteItemID string            `json:"remote_item_id"`
	ContentID    string            `json:"content_id"`
	ContentKind  board.ContentKind `json:"content_kind"`
	Fingerprint  string            `json:"fingerprint"`
	LastSeen     time.Time         `json:"last_seen"`
}

// Snapshot is every identity record for one tag.
type Snapshot struct {
	Tag     string
	Records map[string]Record // task id -> Record
}

func empty(tag string) Snapshot {
	return Snapshot{Tag: tag, Records: make(map[string]Record)}
}

// Store reads and atomically rewrites the per-tag state file under Dir.
type Store struct {
	Dir string
}

// New builds a Store rooted at dir (the CLI uses the ".boardsync-state"
// directory beside the task file).
func New(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) path(tag string) string {
	return filepath.Join(s.Dir, tag+".json")
}

// Load reads the state file for tag, returning an empty snapshot if it is
// absent (spec.md §4.4).
func (s *Store) Load(tag string) (Snapshot, error) {
	data, err := os.ReadFile(s.path(tag))
	if os.IsNotExist(err) {
		return empty(tag), nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read state file for tag %q: %w", tag, err)
	}

	var wire map[string]Record
	if err := json.Unmarshal(data, &wire); err != nil {
		return Snapshot{}, fmt.Errorf("parse state file for tag %q: %w", tag, err)
	}

	snap := empty(tag)
	for taskID, rec := range wire {
		rec.TaskID = taskID
		snap.Records[taskID] = rec
	}
	return snap, nil
}

// Commit atomically rewrites the state file: it writes to a temporary
// sibling file and renames over the original, so a crash mid-write leaves
// the previous file intact (spec.md §4.4).
func (s *Store) Commit(snap Snapshot) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	wire := make(map[string]Record, len(snap.Records))
	for taskID, rec := range snap.Records {
		wire[taskID] = rec
	}

	data, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state for tag %q: %w", snap.Tag, err)
	}

	final := s.path(snap.Tag)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temporary state file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit state file for tag %q: %w", snap.Tag, err)
	}
	return nil
}

// MarkSeen updates a record's LastSeen without touching its fingerprint.
func (snap Snapshot) MarkSeen(taskID string, now time.Time) {
	rec, ok := snap.Records[taskID]
	if !ok {
		return
	}
	rec.LastSeen = now
	snap.Records[taskID] = rec
}

// Put inserts or replaces a task's identity record, e.g. after a
// successful Create or UpdateFields/UpdateBody.
func (snap Snapshot) Put(taskID string, rec Record) {
	rec.TaskID = taskID
	snap.Records[taskID] = rec
}

// Delete removes a task's identity record, e.g. after a successful Delete.
func (snap Snapshot) Delete(taskID string) {
	delete(snap.Records, taskID)
}
