package board

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultAPIURL = "https://boards.example.com/graphql"

// ClientOptions configures a Client beyond its required TokenProvider.
type ClientOptions struct {
	APIURL      string
	Retry       RetryConfig
	Concurrency int // default 8, per spec.md §4.2
	RateLimit   rate.Limit
	RateBurst   int
}

// Client is the sole boundary to the remote GraphQL board API (C2). It is
// safe for concurrent use: it bounds in-flight requests to a configurable
// limit and serializes mutations against the same item id so two workers
// can never race a lost update onto one BoardItem (spec.md §4.2, §5).
type Client struct {
	tokenProvider TokenProvider
	apiURL        string
	httpClient    *http.Client
	limiter       *rate.Limiter
	retryCfg      RetryConfig
	stats         *Stats

	sem       chan struct{}
	itemLocks sync.Map // item id -> *sync.Mutex
}

// NewClient builds a Client. tokenProvider is invoked lazily on first
// request and cached (spec.md §6).
func NewClient(tokenProvider TokenProvider, opts ClientOptions) *Client {
	if opts.APIURL == "" {
		opts.APIURL = defaultAPIURL
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.Retry == (RetryConfig{}) {
		opts.Retry = DefaultRetryConfig()
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = rate.Limit(2)
	}
	if opts.RateBurst == 0 {
		opts.RateBurst = 50
	}

	return &Client{
		tokenProvider: tokenProvider,
		apiURL:        opts.APIURL,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		limiter:       rate.NewLimiter(opts.RateLimit, opts.RateBurst),
		retryCfg:      opts.Retry,
		stats:         newStats(),
		sem:           make(chan struct{}, opts.Concurrency),
	}
}

// Stats exposes the client's observability counters.
func (c *Client) Stats() *Stats { return c.stats }

// itemLock returns the mutex serializing mutations against one item id.
func (c *Client) itemLock(itemID string) *sync.Mutex {
	v, _ := c.itemLocks.LoadOrStore(itemID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// WithItemLock runs fn while holding the serialization lock for itemID.
// The reconciliation engine uses this to guarantee per-item linearizability
// (spec.md §5, testable property 6) across operations it dispatches
// concurrently.
func (c *Client) WithItemLock(itemID string, fn func() error) error {
	lock := c.itemLock(itemID)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLErrorWire struct {
	Message    string `json:"message"`
	Extensions struct {
		Code    string `json:"code"`
		ResetAt *int64 `json:"resetAt"`
	} `json:"extensions"`
}

type graphQLResponse struct {
	Data   json.RawMessage    `json:"data"`
	Errors []graphQLErrorWire `json:"errors,omitempty"`
}

var operationNameRe = regexp.MustCompile(`(?:query|mutation)\s+(\w+)`)

func extractOpName(query string) string {
	m := operationNameRe.FindStringSubmatch(query)
	if len(m) > 1 {
		return m[1]
	}
	return "unknown"
}

// do executes one GraphQL call, with rate limiting but no retry. Retries
// are layered on top by query so the retry window can also apply to
// reacquiring the token after an auth rejection.
func (c *Client) do(ctx context.Context, query string, variables map[string]any, result any) error {
	opName := extractOpName(query)

	if tokens := c.limiter.Tokens(); tokens <= 0 {
		log.Printf("[board] token bucket empty, %s will block until tokens replenish", opName)
	}

	waitStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait cancelled: %w", err)
	}
	if wait := time.Since(waitStart); wait > 100*time.Millisecond {
		c.stats.recordRateLimitWait(wait)
		log.Printf("[board] %s waited %s for rate limiter", opName, wait.Round(time.Millisecond))
	}

	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	token, err := c.tokenProvider.Token(ctx)
	if err != nil {
		return &AuthError{Err: err}
	}

	reqStart := time.Now()
	var opErr error
	isMutation := strings.Contains(strings.TrimSpace(query)[:min(len(query), 12)], "mutation")
	defer func() { c.stats.record(opName, time.Since(reqStart), opErr, isMutation) }()

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		opErr = fmt.Errorf("marshal request: %w", err)
		return opErr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		opErr = fmt.Errorf("build request: %w", err)
		return opErr
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		opErr = &TransportError{Op: opName, Err: err}
		return opErr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		opErr = fmt.Errorf("read response: %w", err)
		return opErr
	}

	if resp.StatusCode == http.StatusUnauthorized {
		opErr = &AuthError{Err: &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(respBody)}}
		return opErr
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusTooManyRequests {
		opErr = &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
		return opErr
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		opErr = fmt.Errorf("parse response: %w", err)
		return opErr
	}

	if len(gqlResp.Errors) > 0 {
		first := gqlResp.Errors[0]
		gqlErr := &GraphQLError{Message: first.Message, Code: ErrorCode(first.Extensions.Code)}
		if first.Extensions.ResetAt != nil {
			gqlErr.ResetAt = first.Extensions.ResetAt
		}
		if resp.StatusCode == http.StatusTooManyRequests && gqlErr.Code == CodeUnknown {
			gqlErr.Code = CodeRateLimited
		}
		opErr = gqlErr
		return opErr
	}

	if result != nil {
		if err := json.Unmarshal(gqlResp.Data, result); err != nil {
			opErr = fmt.Errorf("parse data: %w", err)
			return opErr
		}
	}

	return nil
}

// query executes a GraphQL operation under the client's retry policy
// (spec.md §4.2). Authentication failures invalidate a cached token exactly
// once: the first AuthError on a given call flips itself retryable after
// invalidating, so withRetry gives the freshly fetched token one more
// attempt; any AuthError after that (including a second failure on the
// retried attempt) stays fatal.
func (c *Client) query(ctx context.Context, query string, variables map[string]any, result any) error {
	invalidated := false
	return withRetry(ctx, c.retryCfg, func(ctx context.Context) error {
		err := c.do(ctx, query, variables, result)
		var authErr *AuthError
		if !invalidated && asAuthError(err, &authErr) {
			if p, ok := c.tokenProvider.(*ExecTokenProvider); ok {
				p.Invalidate()
				invalidated = true
				authErr.retryable = true
			}
		}
		return err
	})
}
