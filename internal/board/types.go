// Package board is the sole boundary to the remote GraphQL board API
// (spec.md §4.2, component C2). It exposes typed queries, mutations, and a
// bootstrap operation; authentication, retry, rate limiting, and pagination
// are handled internally so callers never see raw HTTP or GraphQL.
package board

import "time"

// FieldKind is the kind of a custom field on a board (spec.md §3).
type FieldKind string

const (
	FieldKindText         FieldKind = "text"
	FieldKindNumber       FieldKind = "number"
	FieldKindDate         FieldKind = "date"
	FieldKindSingleSelect FieldKind = "single-select"
	FieldKindIteration    FieldKind = "iteration"
	FieldKindAssignees    FieldKind = "assignees"
	FieldKindTitle        FieldKind = "title"
	FieldKindStatus       FieldKind = "status"
)

// Option is one value of a single-select field.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FieldDescriptor describes one field on a board.
type FieldDescriptor struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Kind    FieldKind `json:"kind"`
	Options []Option  `json:"options,omitempty"`
}

// ContentKind distinguishes a lightweight draft item from a repository-
// backed issue item. The update path differs between the two (spec.md §3).
type ContentKind string

const (
	ContentKindDraft ContentKind = "draft"
	ContentKindIssue ContentKind = "issue"
)

// FieldValue is a polymorphic value for one field on one item.
type FieldValue struct {
	FieldID            string
	Text               *string
	Number             *float64
	Date               *time.Time
	SingleSelectOption *string
}

// BoardItem is a remote item on the board.
type BoardItem struct {
	ID          string
	ContentID   string // draft content id, or issue id, depending on ContentKind
	ContentKind ContentKind
	Title       string
	Body        string
	FieldValues map[string]FieldValue // keyed by FieldID
}

// FieldValueOf returns the value of a field on an item, by logical
// TM_ID-style field id, and whether it was present.
func (bi BoardItem) FieldValueOf(fieldID string) (FieldValue, bool) {
	v, ok := bi.FieldValues[fieldID]
	return v, ok
}

// Board describes a board's identity and its field schema.
type Board struct {
	ID     string
	Number int
	Fields []FieldDescriptor
}

// PageInfo is GraphQL cursor pagination metadata.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// RateLimitInfo is derived from response headers / GraphQL extensions when
// the API reports a reset point for a rate limit.
type RateLimitInfo struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
}
