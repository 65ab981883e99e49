package reconcile

import "fmt"

// The following types implement part of the fatal half of spec.md §7's
// error taxonomy (BoardNotFound, SchemaError, StateError); ConfigError
// comes from internal/config and ParseError is task.LoadError. AuthError
// and TransientRemoteError are defined in internal/board: Sync returns a
// GetBoard failure as is, but wraps a re-anchor failure with %w and a
// field-resolution failure in SchemaError, so callers match them with
// errors.As. ItemError has no Go type of its own — it is recorded
// directly into Statistics.Errors.

// BoardNotFoundError means the configured board does not exist (exit
// code 2). Sync never creates a missing board.
type BoardNotFoundError struct {
	Owner  string
	Number int
}

func (e *BoardNotFoundError) Error() string {
	return fmt.Sprintf("board %s/%d not found", e.Owner, e.Number)
}

// SchemaError means a required field could not be resolved or created,
// fatal for the run (spec.md §4.3, §7).
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string { return fmt.Sprintf("schema error: %v", e.Err) }
func (e *SchemaError) Unwrap() error  { return e.Err }

// StateError means the state file could not be read or committed
// (spec.md §7). Load-phase failures refuse to proceed; commit-phase
// failures are reported even though the remote side was already mutated.
type StateError struct {
	Phase string // "load" or "commit"
	Err   error
}

func (e *StateError) Error() string { return fmt.Sprintf("state %s error: %v", e.Phase, e.Err) }
func (e *StateError) Unwrap() error  { return e.Err }
