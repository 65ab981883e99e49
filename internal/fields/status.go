package fields

import "github.com/boardsync/boardsync/internal/task"

// StatusOption maps a local task status to the remote Status option name.
// This mapping is a design contract, not configuration (spec.md §4.3, §8):
// local `done` maps to `QA Review`, never directly to `Done`. `Done` is
// reserved for an out-of-band human/QA actor; the engine never sets it.
// Exposing this as a config knob would let agents bypass the QA gate, so
// it stays a compiled-in function.
func StatusOption(s task.Status) string {
	switch s {
	case task.StatusPending:
		return "Todo"
	case task.StatusInProgress:
		return "In Progress"
	case task.StatusDone:
		return "QA Review"
	case task.StatusBlocked, task.StatusDeferred, task.StatusCancelled:
		return "Todo"
	default:
		return "Todo"
	}
}

// PriorityOption maps a local task priority to the remote Priority option
// name. Unlike status, this carries no gating semantics.
func PriorityOption(p task.Priority) string {
	switch p {
	case task.PriorityHigh:
		return "High"
	case task.PriorityMedium:
		return "Medium"
	case task.PriorityLow:
		return "Low"
	case task.PriorityNone:
		return "Medium"
	default:
		return "Medium"
	}
}
