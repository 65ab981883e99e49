// Package render implements the Subtask Renderer (C6): it projects a
// task's subtasks into either a nested checklist section of the parent
// body, or a set of separate linked child items (spec.md §4.6).
package render

import (
	"fmt"
	"strings"

	"github.com/boardsync/boardsync/internal/task"
)

// Mode selects how subtasks are projected onto the board.
type Mode string

const (
	ModeNested   Mode = "nested"
	ModeSeparate Mode = "separate"
)

const (
	beginMarker = "<!-- boardsync:subtasks:begin -->"
	endMarker   = "<!-- boardsync:subtasks:end -->"
)

// NestedBody returns body with its generated subtask checklist section
// replaced (or appended, if absent). The section is delimited by stable
// marker lines, adapted from the project's own frontmatter-splitting
// technique, so a future run touches only the generated region and never
// disturbs hand-edited text above it. Subtask order is part of the
// parent's fingerprint; the marker lines are not (spec.md §4.6).
func NestedBody(body string, subtasks []task.Task) string {
	section := renderChecklist(subtasks)
	before, _, after, hadSection := splitOnMarkers(body)
	if !hadSection {
		before = strings.TrimRight(body, "\n")
		after = ""
	}

	var buf strings.Builder
	buf.WriteString(before)
	if before != "" {
		buf.WriteString("\n\n")
	}
	buf.WriteString(beginMarker)
	buf.WriteString("\n")
	buf.WriteString(section)
	buf.WriteString(endMarker)
	if after != "" {
		buf.WriteString("\n")
		buf.WriteString(after)
	}
	return buf.String()
}

func renderChecklist(subtasks []task.Task) string {
	if len(subtasks) == 0 {
		return ""
	}
	var buf strings.Builder
	for _, st := range subtasks {
		glyph := "[ ]"
		if st.Status == task.StatusDone {
			glyph = "[x]"
		}
		fmt.Fprintf(&buf, "- %s %s\n", glyph, st.Title)
	}
	return buf.String()
}

// splitOnMarkers finds the marker-delimited section in body and returns
// the text before it, the section contents, the text after it, and
// whether the markers were found at all.
func splitOnMarkers(body string) (before, section, after string, ok bool) {
	start := strings.Index(body, beginMarker)
	if start == -1 {
		return "", "", "", false
	}
	end := strings.Index(body, endMarker)
	if end == -1 || end < start {
		return "", "", "", false
	}
	before = strings.TrimRight(body[:start], "\n")
	section = body[start+len(beginMarker) : end]
	section = strings.TrimPrefix(section, "\n")
	after = strings.TrimLeft(body[end+len(endMarker):], "\n")
	return before, section, after, true
}

// ChildSpec is one separate-mode child item to create, keyed by the
// parent_id::child_id identity used for its own identity record
// (spec.md §4.6).
type ChildSpec struct {
	IdentityKey string // parent_id::child_id
	Title       string
	Status      task.Status
}

// SeparateChildren returns the child-item specifications for a parent's
// subtasks under separate mode.
func SeparateChildren(parentID string, subtasks []task.Task) []ChildSpec {
	specs := make([]ChildSpec, len(subtasks))
	for i, st := range subtasks {
		specs[i] = ChildSpec{
			IdentityKey: parentID + "::" + st.ID,
			Title:       st.Title,
			Status:      st.Status,
		}
	}
	return specs
}

// SeparateParentBody returns the parent body with its generated link-list
// section replaced, given the remote item ids already created for each
// child, keyed by the same parent_id::child_id identity as SeparateChildren.
func SeparateParentBody(body string, parentID string, subtasks []task.Task, childItemIDs map[string]string) string {
	before, _, after, hadSection := splitOnMarkers(body)
	if !hadSection {
		before = strings.TrimRight(body, "\n")
		after = ""
	}

	var section strings.Builder
	for _, st := range subtasks {
		itemID := childItemIDs[parentID+"::"+st.ID]
		if itemID == "" {
			continue
		}
		fmt.Fprintf(&section, "- %s (%s)\n", st.Title, itemID)
	}

	var buf strings.Builder
	buf.WriteString(before)
	if before != "" {
		buf.WriteString("\n\n")
	}
	buf.WriteString(beginMarker)
	buf.WriteString("\n")
	buf.WriteString(section.String())
	buf.WriteString(endMarker)
	if after != "" {
		buf.WriteString("\n")
		buf.WriteString(after)
	}
	return buf.String()
}
