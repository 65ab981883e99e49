package task

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// DefaultTag is the tag selected for the legacy (untagged) source shape.
const DefaultTag = "master"

// LoadError is a fatal failure encountered while loading the task file.
// Kind identifies the spec.md §7 taxonomy entry this failure belongs to.
type LoadError struct {
	Kind string // "parse", "tag-not-found", "duplicate-id"
	Msg  string
}

func (e *LoadError) Error() string { return e.Msg }

// Warning is a non-fatal condition observed while loading.
type Warning struct {
	TaskID string
	Msg    string
}

// LoadResult is the outcome of a Load call: the normalized set plus any
// warnings collected along the way (spec.md §4.1 treats dangling
// dependency references as warnings, not failures).
type LoadResult struct {
	Set      Set
	Warnings []Warning
}

type rawTask struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Details      string    `json:"details"`
	Status       string    `json:"status"`
	Priority     string    `json:"priority"`
	Assignee     string    `json:"assignee"`
	Dependencies []string  `json:"dependencies"`
	TestStrategy string    `json:"testStrategy"`
	Subtasks     []rawTask `json:"subtasks"`
}

type taggedEntry struct {
	Tasks    []rawTask      `json:"tasks"`
	Metadata map[string]any `json:"metadata"`
}

// Load reads and normalizes the task file at path for the given tag.
// An empty tag selects DefaultTag for either shape.
func Load(path string, tag string, strict bool) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Kind: "parse", Msg: fmt.Sprintf("read task file: %v", err)}
	}
	return LoadBytes(data, tag, strict)
}

// LoadBytes is Load without the filesystem dependency, used directly by tests.
func LoadBytes(data []byte, tag string, strict bool) (*LoadResult, error) {
	raw, selectedTag, err := selectTag(data, tag)
	if err != nil {
		return nil, err
	}

	tasks, warnings, err := normalizeAll(raw)
	if err != nil {
		return nil, err
	}
	if strict && len(warnings) > 0 {
		return nil, &LoadError{Kind: "parse", Msg: warnings[0].Msg}
	}

	for i := range tasks {
		tasks[i].Fingerprint = Fingerprint(tasks[i])
	}

	return &LoadResult{
		Set:      Set{Tag: selectedTag, Tasks: tasks},
		Warnings: warnings,
	}, nil
}

// selectTag detects the legacy-vs-tagged source shape and returns the raw
// task list for the selected tag.
func selectTag(data []byte, tag string) ([]rawTask, string, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, "", &LoadError{Kind: "parse", Msg: fmt.Sprintf("malformed task file: %v", err)}
	}

	if tasksRaw, ok := probe["tasks"]; ok {
		var tasks []rawTask
		if err := json.Unmarshal(tasksRaw, &tasks); err != nil {
			return nil, "", &LoadError{Kind: "parse", Msg: fmt.Sprintf("malformed tasks array: %v", err)}
		}
		selected := tag
		if selected == "" {
			selected = DefaultTag
		}
		return tasks, selected, nil
	}

	// Tagged shape: every top-level value must itself carry a "tasks" array.
	entries := make(map[string]taggedEntry, len(probe))
	for name, raw := range probe {
		var entry taggedEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue // not a tag entry; ignore unknown top-level keys
		}
		entries[name] = entry
	}

	if len(entries) == 0 {
		return nil, "", &LoadError{Kind: "parse", Msg: "task file has neither a top-level tasks array nor tagged entries"}
	}

	selected := tag
	if selected == "" {
		selected = DefaultTag
	}
	entry, ok := entries[selected]
	if !ok {
		return nil, "", &LoadError{Kind: "tag-not-found", Msg: fmt.Sprintf("tag %q not found in task file", selected)}
	}
	return entry.Tasks, selected, nil
}

func normalizeAll(raw []rawTask) ([]Task, []Warning, error) {
	seen := make(map[string]bool, len(raw))
	tasks := make([]Task, 0, len(raw))
	var warnings []Warning

	for _, r := range raw {
		t, subWarnings := normalizeOne(r)
		if t.ID == "" {
			return nil, nil, &LoadError{Kind: "parse", Msg: "task with empty id"}
		}
		if seen[t.ID] {
			return nil, nil, &LoadError{Kind: "duplicate-id", Msg: fmt.Sprintf("duplicate task id %q", t.ID)}
		}
		seen[t.ID] = true
		tasks = append(tasks, t)
		warnings = append(warnings, subWarnings...)
	}

	ids := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		ids[t.ID] = true
	}

	for i := range tasks {
		kept := tasks[i].Dependencies[:0]
		for _, dep := range tasks[i].Dependencies {
			if ids[dep] {
				kept = append(kept, dep)
			} else {
				warnings = append(warnings, Warning{
					TaskID: tasks[i].ID,
					Msg:    fmt.Sprintf("task %q depends on unknown task %q; dependency stripped", tasks[i].ID, dep),
				})
			}
		}
		tasks[i].Dependencies = kept
	}

	return tasks, warnings, nil
}

func normalizeOne(r rawTask) (Task, []Warning) {
	var warnings []Warning

	body := strings.TrimSpace(r.Description)
	if details := strings.TrimSpace(r.Details); details != "" {
		if body != "" {
			body += "\n\n" + details
		} else {
			body = details
		}
	}

	status := Status(strings.ToLower(strings.TrimSpace(r.Status)))
	if status == "" {
		status = StatusPending
	}

	priority := Priority(strings.ToLower(strings.TrimSpace(r.Priority)))
	if priority == "" {
		priority = PriorityNone
	}

	deps := make([]string, 0, len(r.Dependencies))
	for _, d := range r.Dependencies {
		d = strings.TrimSpace(d)
		if d != "" {
			deps = append(deps, d)
		}
	}

	subtasks := make([]Task, 0, len(r.Subtasks))
	for _, sr := range r.Subtasks {
		st, subW := normalizeOne(sr)
		subtasks = append(subtasks, st)
		warnings = append(warnings, subW...)
	}

	return Task{
		ID:           strings.TrimSpace(r.ID),
		Title:        strings.TrimSpace(r.Title),
		Body:         body,
		Status:       status,
		Priority:     priority,
		Owner:        strings.TrimSpace(r.Assignee),
		TestStrategy: strings.TrimSpace(r.TestStrategy),
		Dependencies: deps,
		Subtasks:     subtasks,
	}, warnings
}

// sortedCopy returns a sorted copy of a dependency list, used by the
// fingerprint so reordering a dependency list never changes the hash.
func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
