package state

import "github.com/boardsync/boardsync/internal/task"

// Classification is the result of comparing one task against the prior
// snapshot (spec.md §4.4, §4.5 step 3).
type Classification int

const (
	NewTask Classification = iota
	ChangedTask
	UnchangedTask
)

func (c Classification) String() string {
	switch c {
	case NewTask:
		return "new"
	case ChangedTask:
		return "changed"
	case UnchangedTask:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Classified pairs a task with its classification and, for ChangedTask and
// UnchangedTask, its prior Record.
type Classified struct {
	Task           task.Task
	Classification Classification
	Prior          Record // zero value for NewTask
}

// Diff classifies every task in the set against the snapshot, and
// separately reports OrphanedRecords: identity records whose task id no
// longer appears in the task set (spec.md §4.4).
func (snap Snapshot) Diff(tasks []task.Task) (classified []Classified, orphans []Record) {
	present := make(map[string]bool, len(tasks))

	for _, t := range tasks {
		present[t.ID] = true
		// Separate-mode child identity records are keyed "parent::child"
		// (spec.md §4.6); they are never classified as New/Changed/Unchanged
		// themselves, but a subtask still present under its parent must
		// not be reported as an orphan.
		for _, st := range t.Subtasks {
			present[t.ID+"::"+st.ID] = true
		}
		prior, ok := snap.Records[t.ID]
		if !ok {
			classified = append(classified, Classified{Task: t, Classification: NewTask})
			continue
		}
		if prior.Fingerprint != t.Fingerprint {
			classified = append(classified, Classified{Task: t, Classification: ChangedTask, Prior: prior})
			continue
		}
		classified = append(classified, Classified{Task: t, Classification: UnchangedTask, Prior: prior})
	}

	for taskID, rec := range snap.Records {
		if !present[taskID] {
			orphans = append(orphans, rec)
		}
	}

	return classified, orphans
}
