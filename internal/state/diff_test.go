package state

import (
	"testing"

	"github.com/boardsync/boardsync/internal/task"
)

func TestDiffClassifiesNewChangedUnchanged(t *testing.T) {
	t.Parallel()
	snap := empty("master")
	snap.Put("T1", Record{RemoteItemID: "item-1", Fingerprint: "fp-old"})
	snap.Put("T2", Record{RemoteItemID: "item-2", Fingerprint: "fp-same"})

	tasks := []task.Task{
		{ID: "T1", Fingerprint: "fp-new"}, // changed
		{ID: "T2", Fingerprint: "fp-same"}, // unchanged
		{ID: "T3", Fingerprint: "fp-x"},    // new
	}

	classified, orphans := snap.Diff(tasks)
	if len(orphans) != 0 {
		t.Fatalf("expected no orphans, got %+v", orphans)
	}

	byID := make(map[string]Classification)
	for _, c := range classified {
		byID[c.Task.ID] = c.Classification
	}
	if byID["T1"] != ChangedTask {
		t.Errorf("T1: expected ChangedTask, got %v", byID["T1"])
	}
	if byID["T2"] != UnchangedTask {
		t.Errorf("T2: expected UnchangedTask, got %v", byID["T2"])
	}
	if byID["T3"] != NewTask {
		t.Errorf("T3: expected NewTask, got %v", byID["T3"])
	}
}

func TestDiffReportsOrphans(t *testing.T) {
	t.Parallel()
	snap := empty("master")
	snap.Put("T1", Record{RemoteItemID: "item-1", Fingerprint: "fp"})
	snap.Put("T2", Record{RemoteItemID: "item-2", Fingerprint: "fp"})

	tasks := []task.Task{{ID: "T1", Fingerprint: "fp"}}

	_, orphans := snap.Diff(tasks)
	if len(orphans) != 1 || orphans[0].RemoteItemID != "item-2" {
		t.Fatalf("expected T2's record as the sole orphan, got %+v", orphans)
	}
}

func TestDiffEmptyTaskSetOrphansEverything(t *testing.T) {
	t.Parallel()
	snap := empty("master")
	snap.Put("T1", Record{RemoteItemID: "item-1", Fingerprint: "fp"})
	snap.Put("T2", Record{RemoteItemID: "item-2", Fingerprint: "fp"})

	classified, orphans := snap.Diff(nil)
	if len(classified) != 0 {
		t.Fatalf("expected no classified tasks, got %+v", classified)
	}
	if len(orphans) != 2 {
		t.Fatalf("expected both records orphaned, got %+v", orphans)
	}
}
