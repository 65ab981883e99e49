// Package bootstrap implements the Board Bootstrapper (C9): it creates a
// new board and provisions the fields and options the engine requires, or
// brings an existing board up to that shape (spec.md §4.9).
package bootstrap

import (
	"context"
	"fmt"

	"github.com/boardsync/boardsync/internal/board"
	"github.com/boardsync/boardsync/internal/fields"
)

type boardAPI interface {
	GetBoard(ctx context.Context, owner string, number int) (*board.Board, error)
	CreateBoard(ctx context.Context, owner, title string) (*board.Board, error)
	CreateField(ctx context.Context, boardID, name string, kind board.FieldKind) (*board.FieldDescriptor, error)
	CreateFieldOption(ctx context.Context, fieldID, name string) (*board.Option, error)
}

// Result is what a bootstrap run produces: the board identifier and its
// fully resolved field catalog, ready to hand to the Reconciliation Engine.
type Result struct {
	BoardID string
	Number  int
	Fields  map[string]board.FieldDescriptor
}

// CreateProject creates a new board owned by owner titled title, then
// provisions every field the engine requires (spec.md §4.9 "create the
// required fields ... add the QA Review option").
func CreateProject(ctx context.Context, client boardAPI, owner, title string, agents []string) (Result, error) {
	b, err := client.CreateBoard(ctx, owner, title)
	if err != nil {
		return Result{}, fmt.Errorf("create board: %w", err)
	}
	return SetupProject(ctx, client, owner, b.Number, agents)
}

// SetupProject ensures an existing board (new or pre-existing) carries
// every field and option the engine requires. It is idempotent: running
// it twice against the same board performs no redundant mutations on the
// second pass, since fields.Catalog.ResolveAll checks existence first
// (spec.md §4.9 "idempotent on re-run").
func SetupProject(ctx context.Context, client boardAPI, owner string, number int, agents []string) (Result, error) {
	b, err := client.GetBoard(ctx, owner, number)
	if err != nil {
		return Result{}, fmt.Errorf("look up board: %w", err)
	}

	existing := make(map[string]board.FieldDescriptor, len(b.Fields))
	for _, f := range b.Fields {
		existing[f.ID] = f
	}

	catalog := fields.New(client, b.ID, agents, false)
	resolved, err := catalog.ResolveAll(ctx, existing)
	if err != nil {
		return Result{}, fmt.Errorf("provision fields: %w", err)
	}
	return Result{BoardID: b.ID, Number: b.Number, Fields: resolved}, nil
}
