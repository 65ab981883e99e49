// Package fields implements the Field Catalog (C3): it maps the engine's
// fixed set of logical field names to the remote board's FieldDescriptors,
// creating whatever is missing, and holds the status mapping policy
// (StatusOption in status.go).
package fields

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/boardsync/boardsync/internal/board"
)

// Logical field names the engine depends on (spec.md §4.3).
const (
	Identity     = "identity" // TM_ID, text
	Dependencies = "dependencies"
	TestStrategy = "test-strategy"
	Priority     = "priority"
	Status       = "status"
	Agent        = "agent"
)

// fieldSpec describes one required logical field: its remote name, kind,
// and, for single-select fields, the options it must carry.
type fieldSpec struct {
	remoteName string
	kind       board.FieldKind
	options    []string
}

func requiredFields(agents []string) map[string]fieldSpec {
	return map[string]fieldSpec{
		Identity:     {remoteName: "TM_ID", kind: board.FieldKindText},
		Dependencies: {remoteName: "Dependencies", kind: board.FieldKindText},
		TestStrategy: {remoteName: "Test Strategy", kind: board.FieldKindText},
		Priority:     {remoteName: "Priority", kind: board.FieldKindSingleSelect, options: []string{"High", "Medium", "Low"}},
		Status:       {remoteName: "Status", kind: board.FieldKindSingleSelect, options: []string{"Todo", "In Progress", "QA Review", "Done"}},
		Agent:        {remoteName: "Agent", kind: board.FieldKindSingleSelect, options: agents},
	}
}

// boardAPI is the subset of *board.Client the catalog depends on, isolated
// for test doubles.
type boardAPI interface {
	CreateField(ctx context.Context, boardID, name string, kind board.FieldKind) (*board.FieldDescriptor, error)
	CreateFieldOption(ctx context.Context, fieldID, name string) (*board.Option, error)
}

// OptionUnknown is returned by OptionID when no option matches, case
// insensitively, the requested name.
type OptionUnknown struct {
	Field  string
	Option string
}

func (e *OptionUnknown) Error() string {
	return fmt.Sprintf("field %q has no option named %q", e.Field, e.Option)
}

// Catalog maintains the logical_name -> FieldDescriptor mapping for one
// board, for the lifetime of the process (spec.md §4.3). Strict mode
// turns a missing required field into a fatal error instead of creating it.
type Catalog struct {
	client  boardAPI
	boardID string
	agents  []string
	strict  bool

	mu          sync.Mutex
	descriptors map[string]board.FieldDescriptor // logical name -> descriptor
	resolved    bool
}

// New builds a Catalog for one board. agents is the configured set of
// agent option names (spec.md §4.3, logical field "agent").
func New(client boardAPI, boardID string, agents []string, strict bool) *Catalog {
	return &Catalog{client: client, boardID: boardID, agents: agents, strict: strict}
}

// Invalidate forces the next ResolveAll to rebuild the cache. Nothing in
// the engine calls it: a SchemaChanged error from C2 does not invalidate
// the catalog.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolved = false
	c.descriptors = nil
}

// ResolveAll returns the complete descriptor map, creating any missing
// required field or option (unless strict mode is set, in which case a
// missing field is a fatal error). The result is cached for the process
// lifetime until Invalidate is called.
func (c *Catalog) ResolveAll(ctx context.Context, existing map[string]board.FieldDescriptor) (map[string]board.FieldDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resolved {
		out := make(map[string]board.FieldDescriptor, len(c.descriptors))
		for k, v := range c.descriptors {
			out[k] = v
		}
		return out, nil
	}

	byRemoteName := make(map[string]board.FieldDescriptor, len(existing))
	for _, d := range existing {
		byRemoteName[strings.ToLower(d.Name)] = d
	}

	resolved := make(map[string]board.FieldDescriptor)
	for logical, spec := range requiredFields(c.agents) {
		desc, ok := byRemoteName[strings.ToLower(spec.remoteName)]
		if !ok {
			if c.strict {
				return nil, fmt.Errorf("strict mode: required field %q is missing from the board", spec.remoteName)
			}
			created, err := c.client.CreateField(ctx, c.boardID, spec.remoteName, spec.kind)
			if err != nil {
				return nil, fmt.Errorf("create field %q: %w", spec.remoteName, err)
			}
			desc = *created
		}

		if spec.kind == board.FieldKindSingleSelect {
			desc, err := c.ensureOptions(ctx, desc, spec.options)
			if err != nil {
				return nil, err
			}
			resolved[logical] = desc
			continue
		}
		resolved[logical] = desc
	}

	c.descriptors = resolved
	c.resolved = true

	out := make(map[string]board.FieldDescriptor, len(resolved))
	for k, v := range resolved {
		out[k] = v
	}
	return out, nil
}

// ensureOptions adds any option in want that desc lacks (by case-insensitive
// name). In strict mode a missing option is left unresolved rather than
// created or treated as fatal here: the field itself already exists, so
// resolution succeeds, and the gap only surfaces later as a per-task
// OptionID lookup failure when a task's plan actually needs that option —
// an ItemError, not a run-ending SchemaError (spec.md §8: "a status option
// `QA Review` absent from the board causes `ItemError` for every `done`
// task in that run, not a fatal").
func (c *Catalog) ensureOptions(ctx context.Context, desc board.FieldDescriptor, want []string) (board.FieldDescriptor, error) {
	have := make(map[string]bool, len(desc.Options))
	for _, o := range desc.Options {
		have[strings.ToLower(o.Name)] = true
	}

	for _, name := range want {
		if have[strings.ToLower(name)] {
			continue
		}
		if c.strict {
			continue
		}
		opt, err := c.client.CreateFieldOption(ctx, desc.ID, name)
		if err != nil {
			return desc, fmt.Errorf("create option %q on field %q: %w", name, desc.Name, err)
		}
		desc.Options = append(desc.Options, *opt)
		have[strings.ToLower(name)] = true
	}
	return desc, nil
}

// OptionID returns the option identifier for a single-select field,
// matching option name case-insensitively. Callers must have resolved the
// catalog first.
func (c *Catalog) OptionID(logical, optionName string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	desc, ok := c.descriptors[logical]
	if !ok {
		return "", fmt.Errorf("field %q was not resolved", logical)
	}
	for _, o := range desc.Options {
		if strings.EqualFold(o.Name, optionName) {
			return o.ID, nil
		}
	}
	return "", &OptionUnknown{Field: desc.Name, Option: optionName}
}

// FieldID returns the remote field identifier for a logical field name.
func (c *Catalog) FieldID(logical string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	desc, ok := c.descriptors[logical]
	if !ok {
		return "", fmt.Errorf("field %q was not resolved", logical)
	}
	return desc.ID, nil
}
