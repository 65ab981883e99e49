package testutil

// Fixture functions return map[string]any for JSON encoding, shaped like
// the GraphQL response bodies MockBoardServer.SetResponse expects. Keeping
// them as maps (rather than board.* structs) avoids an import cycle with
// the board package, whose tests are the primary consumer of these helpers.

// FixtureFieldDescriptor returns a single-select field descriptor map.
func FixtureFieldDescriptor(id, name string, options ...string) map[string]any {
	opts := make([]map[string]any, len(options))
	for i, o := range options {
		opts[i] = map[string]any{"id": id + "-opt-" + o, "name": o}
	}
	return map[string]any{
		"id":      id,
		"name":    name,
		"kind":    "single-select",
		"options": opts,
	}
}

// FixtureBoard returns a board response with a standard status field.
func FixtureBoard(id string, number int, fields ...map[string]any) map[string]any {
	if len(fields) == 0 {
		fields = []map[string]any{
			FixtureFieldDescriptor("field-status", "Status", "Todo", "In Progress", "QA Review", "Done"),
		}
	}
	return map[string]any{
		"board": map[string]any{
			"id":     id,
			"number": number,
			"fields": map[string]any{"nodes": fields},
		},
	}
}

// FixtureItem returns a single board item as a map, with no field values.
func FixtureItem(id, contentID, contentKind, title, body string) map[string]any {
	return map[string]any{
		"id":          id,
		"contentKind": contentKind,
		"contentId":   contentID,
		"title":       title,
		"body":        body,
		"fieldValues": []map[string]any{},
	}
}

// ItemsPageResponse wraps items in a ListItems response with the given
// pagination cursor state.
func ItemsPageResponse(hasNext bool, endCursor string, items ...map[string]any) map[string]any {
	return map[string]any{
		"board": map[string]any{
			"items": map[string]any{
				"pageInfo": map[string]any{
					"hasNextPage": hasNext,
					"endCursor":   endCursor,
				},
				"nodes": items,
			},
		},
	}
}
