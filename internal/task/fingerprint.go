package task

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
)

// Fingerprint computes the stable content hash used by the state store to
// decide whether a task has changed since the last run (spec.md §4.4).
// MD5 is a change detector here, not a security primitive.
func Fingerprint(t Task) string {
	parts := []string{
		collapseWhitespace(t.Title),
		collapseWhitespace(t.Body),
		string(t.Status),
		string(t.Priority),
		collapseWhitespace(t.Owner),
		collapseWhitespace(t.TestStrategy),
		strings.Join(sortedCopy(t.Dependencies), ","),
		subtasksDigest(t.Subtasks),
	}

	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// subtaskFingerprintView is the subset of subtask fields that feed a
// parent's fingerprint: id, title and status (the checklist line's title
// and glyph come from the last two), so that other subtask fields do not
// trigger a spurious parent update.
type subtaskFingerprintView struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// subtasksDigest serializes subtasks in source order, so the subtask
// ordering documented in §4.6 is itself part of the parent's fingerprint.
func subtasksDigest(subtasks []Task) string {
	views := make([]subtaskFingerprintView, len(subtasks))
	for i, st := range subtasks {
		views[i] = subtaskFingerprintView{
			ID:     st.ID,
			Title:  collapseWhitespace(st.Title),
			Status: string(st.Status),
		}
	}
	b, _ := json.Marshal(views)
	return string(b)
}
