package board

import "fmt"

// ErrorCode is the GraphQL error code carried by a board API error
// response. The reconciliation engine and retry policy both dispatch on
// this value (spec.md §4.2, §7).
type ErrorCode string

const (
	CodeRateLimited          ErrorCode = "RATE_LIMITED"
	CodeSecondaryRateLimited ErrorCode = "SECONDARY_RATE_LIMITED"
	CodeInternal             ErrorCode = "INTERNAL"
	CodeNotFound             ErrorCode = "NOT_FOUND"
	CodeForbidden            ErrorCode = "FORBIDDEN"
	CodeUnprocessable        ErrorCode = "UNPROCESSABLE"
	CodeSchemaChanged        ErrorCode = "SCHEMA_CHANGED"
	CodeUnknown              ErrorCode = ""
)

// GraphQLError is a single error entry in a GraphQL response.
type GraphQLError struct {
	Message string
	Code    ErrorCode
	ResetAt *int64 // unix seconds, present for rate-limit errors when known
}

func (e *GraphQLError) Error() string {
	if e.Code != CodeUnknown {
		return fmt.Sprintf("board API error [%s]: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("board API error: %s", e.Message)
}

// TransportError wraps a network-level failure (connection refused, DNS,
// timeout) that never reached the GraphQL layer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError wraps a non-200 HTTP response that carried no GraphQL
// error body (e.g. a 502 from an intermediate proxy).
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("board API HTTP %d: %s", e.StatusCode, e.Body)
}

// retryableCodes are GraphQL error codes the retry policy re-attempts
// (spec.md §4.2: "every request is wrapped in an exponential-backoff retry
// policy... Retries fire on... GraphQL errors whose code is in
// {RATE_LIMITED, SECONDARY_RATE_LIMITED, INTERNAL}").
var retryableCodes = map[ErrorCode]bool{
	CodeRateLimited:          true,
	CodeSecondaryRateLimited: true,
	CodeInternal:             true,
}

// terminalCodes short-circuit the retry loop immediately.
var terminalCodes = map[ErrorCode]bool{
	CodeNotFound:      true,
	CodeForbidden:     true,
	CodeUnprocessable: true,
}

// IsRetryable classifies an error for the retry policy in retry.go.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var gqlErr *GraphQLError
	if asGraphQLError(err, &gqlErr) {
		if terminalCodes[gqlErr.Code] {
			return false
		}
		return retryableCodes[gqlErr.Code]
	}
	var httpErr *HTTPStatusError
	if asHTTPStatusError(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}
	var transportErr *TransportError
	if asTransportError(err, &transportErr) {
		return true
	}
	var authErr *AuthError
	if asAuthError(err, &authErr) {
		return authErr.retryable
	}
	return false
}

func asGraphQLError(err error, target **GraphQLError) bool {
	e, ok := err.(*GraphQLError)
	if ok {
		*target = e
	}
	return ok
}

func asHTTPStatusError(err error, target **HTTPStatusError) bool {
	e, ok := err.(*HTTPStatusError)
	if ok {
		*target = e
	}
	return ok
}

func asTransportError(err error, target **TransportError) bool {
	e, ok := err.(*TransportError)
	if ok {
		*target = e
	}
	return ok
}

func asAuthError(err error, target **AuthError) bool {
	e, ok := err.(*AuthError)
	if ok {
		*target = e
	}
	return ok
}
