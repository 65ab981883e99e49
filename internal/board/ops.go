package board

import (
	"context"
	"fmt"
	"time"
)

// GetBoard resolves a board's identity and field schema by owner/number.
func (c *Client) GetBoard(ctx context.Context, owner string, number int) (*Board, error) {
	var result struct {
		Board *struct {
			ID     string `json:"id"`
			Number int    `json:"number"`
			Fields struct {
				Nodes []FieldDescriptor `json:"nodes"`
			} `json:"fields"`
		} `json:"board"`
	}

	if err := c.query(ctx, queryGetBoard, map[string]any{"owner": owner, "number": number}, &result); err != nil {
		return nil, err
	}
	if result.Board == nil {
		return nil, &GraphQLError{Message: fmt.Sprintf("board %s/%d not found", owner, number), Code: CodeNotFound}
	}
	return &Board{ID: result.Board.ID, Number: result.Board.Number, Fields: result.Board.Fields.Nodes}, nil
}

type itemFieldValueWire struct {
	FieldID string   `json:"fieldId"`
	Text    *string  `json:"text"`
	Number  *float64 `json:"number"`
	Date    *string  `json:"date"`
	Option  *string  `json:"singleSelectOptionId"`
}

type itemWire struct {
	ID          string               `json:"id"`
	ContentKind string               `json:"contentKind"`
	ContentID   string               `json:"contentId"`
	Title       string               `json:"title"`
	Body        string               `json:"body"`
	FieldValues []itemFieldValueWire `json:"fieldValues"`
}

func (w itemWire) toBoardItem() BoardItem {
	fv := make(map[string]FieldValue, len(w.FieldValues))
	for _, raw := range w.FieldValues {
		value := FieldValue{
			FieldID:            raw.FieldID,
			Text:               raw.Text,
			Number:             raw.Number,
			SingleSelectOption: raw.Option,
		}
		if raw.Date != nil {
			if parsed, err := time.Parse(time.RFC3339, *raw.Date); err == nil {
				value.Date = &parsed
			}
		}
		fv[raw.FieldID] = value
	}
	return BoardItem{
		ID:          w.ID,
		ContentID:   w.ContentID,
		ContentKind: ContentKind(w.ContentKind),
		Title:       w.Title,
		Body:        w.Body,
		FieldValues: fv,
	}
}

const listItemsPageSize = 100

// ListItemsPage fetches one page of board items, cursor "" for the first
// page (spec.md §4.2, page size 100).
func (c *Client) ListItemsPage(ctx context.Context, boardID, cursor string) ([]BoardItem, PageInfo, error) {
	var result struct {
		Board struct {
			Items struct {
				PageInfo PageInfo   `json:"pageInfo"`
				Nodes    []itemWire `json:"nodes"`
			} `json:"items"`
		} `json:"board"`
	}

	vars := map[string]any{"boardId": boardID, "first": listItemsPageSize}
	if cursor != "" {
		vars["after"] = cursor
	}

	if err := c.query(ctx, queryListItems, vars, &result); err != nil {
		return nil, PageInfo{}, err
	}

	items := make([]BoardItem, len(result.Board.Items.Nodes))
	for i, w := range result.Board.Items.Nodes {
		items[i] = w.toBoardItem()
	}
	return items, result.Board.Items.PageInfo, nil
}

// WalkItems pages through every item on a board, in cursor order, invoking
// fn once per item. It stops and returns fn's error immediately, giving
// callers (re-anchor, clean-duplicates) a finite, in-order, lazy traversal
// without materializing the whole board in memory (spec.md §4.2).
func (c *Client) WalkItems(ctx context.Context, boardID string, fn func(BoardItem) error) error {
	cursor := ""
	for {
		items, page, err := c.ListItemsPage(ctx, boardID, cursor)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := fn(item); err != nil {
				return err
			}
		}
		if !page.HasNextPage {
			return nil
		}
		cursor = page.EndCursor
	}
}

// CreateDraftItem creates a lightweight draft item (no backing repository
// issue).
func (c *Client) CreateDraftItem(ctx context.Context, boardID, title, body string) (*BoardItem, error) {
	var result struct {
		CreateDraftItem struct {
			Success bool `json:"success"`
			Item    struct {
				ID        string `json:"id"`
				ContentID string `json:"contentId"`
			} `json:"item"`
		} `json:"createDraftItem"`
	}
	err := c.query(ctx, mutationCreateDraftItem, map[string]any{"boardId": boardID, "title": title, "body": body}, &result)
	if err != nil {
		return nil, err
	}
	if !result.CreateDraftItem.Success {
		return nil, &GraphQLError{Message: "create draft item failed", Code: CodeUnprocessable}
	}
	return &BoardItem{
		ID:          result.CreateDraftItem.Item.ID,
		ContentID:   result.CreateDraftItem.Item.ContentID,
		ContentKind: ContentKindDraft,
		Title:       title,
		Body:        body,
	}, nil
}

// CreateIssueItem creates a repository-backed issue, then adds it to the
// board as a two-step operation (spec.md §6).
func (c *Client) CreateIssueItem(ctx context.Context, repo, boardID, title, body string) (*BoardItem, error) {
	var createResult struct {
		CreateIssueItem struct {
			Success bool `json:"success"`
			Issue   struct {
				ID string `json:"id"`
			} `json:"issue"`
		} `json:"createIssueItem"`
	}
	if err := c.query(ctx, mutationCreateIssueItem, map[string]any{"repo": repo, "title": title, "body": body}, &createResult); err != nil {
		return nil, err
	}
	if !createResult.CreateIssueItem.Success {
		return nil, &GraphQLError{Message: "create issue failed", Code: CodeUnprocessable}
	}
	issueID := createResult.CreateIssueItem.Issue.ID

	var addResult struct {
		AddIssueToBoard struct {
			Success bool `json:"success"`
			Item    struct {
				ID string `json:"id"`
			} `json:"item"`
		} `json:"addIssueToBoard"`
	}
	if err := c.query(ctx, mutationAddIssueToBoard, map[string]any{"boardId": boardID, "issueId": issueID}, &addResult); err != nil {
		return nil, err
	}
	if !addResult.AddIssueToBoard.Success {
		return nil, &GraphQLError{Message: "add issue to board failed", Code: CodeUnprocessable}
	}

	return &BoardItem{
		ID:          addResult.AddIssueToBoard.Item.ID,
		ContentID:   issueID,
		ContentKind: ContentKindIssue,
		Title:       title,
		Body:        body,
	}, nil
}

// FieldValueInput is the polymorphic mutation payload for one field value.
type FieldValueInput struct {
	Text               *string  `json:"text,omitempty"`
	Number             *float64 `json:"number,omitempty"`
	Date               *string  `json:"date,omitempty"`
	SingleSelectOption *string  `json:"singleSelectOptionId,omitempty"`
}

// UpdateItemFieldValue sets one field's value on one item, serialized
// against concurrent operations on the same item (spec.md §5).
func (c *Client) UpdateItemFieldValue(ctx context.Context, boardID, itemID, fieldID string, value FieldValueInput) error {
	return c.WithItemLock(itemID, func() error {
		var result struct {
			UpdateItemFieldValue struct {
				Success bool `json:"success"`
			} `json:"updateItemFieldValue"`
		}
		err := c.query(ctx, mutationUpdateItemFieldValue, map[string]any{
			"boardId": boardID, "itemId": itemID, "fieldId": fieldID, "value": value,
		}, &result)
		if err != nil {
			return err
		}
		if !result.UpdateItemFieldValue.Success {
			return &GraphQLError{Message: "update field value failed", Code: CodeUnprocessable}
		}
		return nil
	})
}

// UpdateDraftBody updates the body of a draft-backed item's content.
func (c *Client) UpdateDraftBody(ctx context.Context, contentID, body string) error {
	var result struct {
		UpdateDraftBody struct {
			Success bool `json:"success"`
		} `json:"updateDraftBody"`
	}
	if err := c.query(ctx, mutationUpdateDraftBody, map[string]any{"contentId": contentID, "body": body}, &result); err != nil {
		return err
	}
	if !result.UpdateDraftBody.Success {
		return &GraphQLError{Message: "update draft body failed", Code: CodeUnprocessable}
	}
	return nil
}

// UpdateIssueBody updates the body of an issue-backed item's content.
func (c *Client) UpdateIssueBody(ctx context.Context, issueID, body string) error {
	var result struct {
		UpdateIssueBody struct {
			Success bool `json:"success"`
		} `json:"updateIssueBody"`
	}
	if err := c.query(ctx, mutationUpdateIssueBody, map[string]any{"issueId": issueID, "body": body}, &result); err != nil {
		return err
	}
	if !result.UpdateIssueBody.Success {
		return &GraphQLError{Message: "update issue body failed", Code: CodeUnprocessable}
	}
	return nil
}

// DeleteItem removes an item from the board, serialized against any other
// in-flight operation on the same item.
func (c *Client) DeleteItem(ctx context.Context, boardID, itemID string) error {
	return c.WithItemLock(itemID, func() error {
		var result struct {
			DeleteItem struct {
				Success bool `json:"success"`
			} `json:"deleteItem"`
		}
		if err := c.query(ctx, mutationDeleteItem, map[string]any{"boardId": boardID, "itemId": itemID}, &result); err != nil {
			return err
		}
		if !result.DeleteItem.Success {
			return &GraphQLError{Message: "delete item failed", Code: CodeUnprocessable}
		}
		return nil
	})
}

// CreateField creates a custom field on a board.
func (c *Client) CreateField(ctx context.Context, boardID, name string, kind FieldKind) (*FieldDescriptor, error) {
	var result struct {
		CreateField struct {
			Success bool            `json:"success"`
			Field   FieldDescriptor `json:"field"`
		} `json:"createField"`
	}
	if err := c.query(ctx, mutationCreateField, map[string]any{"boardId": boardID, "name": name, "kind": string(kind)}, &result); err != nil {
		return nil, err
	}
	if !result.CreateField.Success {
		return nil, &GraphQLError{Message: fmt.Sprintf("create field %q failed", name), Code: CodeUnprocessable}
	}
	return &result.CreateField.Field, nil
}

// CreateFieldOption adds an option to a single-select field.
func (c *Client) CreateFieldOption(ctx context.Context, fieldID, name string) (*Option, error) {
	var result struct {
		CreateFieldOption struct {
			Success bool   `json:"success"`
			Option  Option `json:"option"`
		} `json:"createFieldOption"`
	}
	if err := c.query(ctx, mutationCreateFieldOption, map[string]any{"fieldId": fieldID, "name": name}, &result); err != nil {
		return nil, err
	}
	if !result.CreateFieldOption.Success {
		return nil, &GraphQLError{Message: fmt.Sprintf("create option %q failed", name), Code: CodeUnprocessable}
	}
	return &result.CreateFieldOption.Option, nil
}

// CreateBoard provisions a new board owned by the given principal
// (spec.md §4.9 Board Bootstrapper).
func (c *Client) CreateBoard(ctx context.Context, owner, title string) (*Board, error) {
	var result struct {
		CreateBoard struct {
			Success bool `json:"success"`
			Board   struct {
				ID     string `json:"id"`
				Number int    `json:"number"`
			} `json:"board"`
		} `json:"createBoard"`
	}
	if err := c.query(ctx, mutationCreateBoard, map[string]any{"owner": owner, "title": title}, &result); err != nil {
		return nil, err
	}
	if !result.CreateBoard.Success {
		return nil, &GraphQLError{Message: "create board failed", Code: CodeUnprocessable}
	}
	return &Board{ID: result.CreateBoard.Board.ID, Number: result.CreateBoard.Board.Number}, nil
}
