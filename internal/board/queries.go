package board

// Query and mutation bodies for the board GraphQL surface (spec.md §6).
// Operation names are illustrative; the shapes mirror the logical contract
// the spec defines, not any one vendor's literal schema.

const queryGetBoard = `
query GetBoard($owner: String!, $number: Int!) {
  board(owner: $owner, number: $number) {
    id
    number
    fields {
      nodes {
        id
        name
        kind
        options {
          id
          name
        }
      }
    }
  }
}
`

const queryListItems = `
query ListItems($boardId: String!, $first: Int!, $after: String) {
  board(id: $boardId) {
    items(first: $first, after: $after) {
      pageInfo {
        hasNextPage
        endCursor
      }
      nodes {
        id
        contentKind
        contentId
        title
        body
        fieldValues {
          fieldId
          text
          number
          date
          singleSelectOptionId
        }
      }
    }
  }
}
`

const mutationCreateDraftItem = `
mutation CreateDraftItem($boardId: String!, $title: String!, $body: String!) {
  createDraftItem(input: { boardId: $boardId, title: $title, body: $body }) {
    success
    item {
      id
      contentId
    }
  }
}
`

const mutationCreateIssueItem = `
mutation CreateIssueItem($repo: String!, $title: String!, $body: String!) {
  createIssueItem(input: { repo: $repo, title: $title, body: $body }) {
    success
    issue {
      id
    }
  }
}
`

const mutationAddIssueToBoard = `
mutation AddIssueToBoard($boardId: String!, $issueId: String!) {
  addIssueToBoard(input: { boardId: $boardId, issueId: $issueId }) {
    success
    item {
      id
    }
  }
}
`

const mutationUpdateItemFieldValue = `
mutation UpdateItemFieldValue($boardId: String!, $itemId: String!, $fieldId: String!, $value: FieldValueInput!) {
  updateItemFieldValue(input: { boardId: $boardId, itemId: $itemId, fieldId: $fieldId, value: $value }) {
    success
  }
}
`

const mutationUpdateDraftBody = `
mutation UpdateDraftBody($contentId: String!, $body: String!) {
  updateDraftBody(input: { contentId: $contentId, body: $body }) {
    success
  }
}
`

const mutationUpdateIssueBody = `
mutation UpdateIssueBody($issueId: String!, $body: String!) {
  updateIssueBody(input: { issueId: $issueId, body: $body }) {
    success
  }
}
`

const mutationDeleteItem = `
mutation DeleteItem($boardId: String!, $itemId: String!) {
  deleteItem(input: { boardId: $boardId, itemId: $itemId }) {
    success
  }
}
`

const mutationCreateField = `
mutation CreateField($boardId: String!, $name: String!, $kind: String!) {
  createField(input: { boardId: $boardId, name: $name, kind: $kind }) {
    success
    field {
      id
      name
      kind
    }
  }
}
`

const mutationCreateFieldOption = `
mutation CreateFieldOption($fieldId: String!, $name: String!) {
  createFieldOption(input: { fieldId: $fieldId, name: $name }) {
    success
    option {
      id
      name
    }
  }
}
`

const mutationCreateBoard = `
mutation CreateBoard($owner: String!, $title: String!) {
  createBoard(input: { owner: $owner, title: $title }) {
    success
    board {
      id
      number
    }
  }
}
`
