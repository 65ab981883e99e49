package board

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig configures the exponential-backoff retry policy wrapped
// around every board API request (spec.md §4.2: base 500ms, factor 2,
// jitter ±20%, max 6 attempts).
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	Jitter            float64
}

// DefaultRetryConfig returns the spec-mandated defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       6,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.2,
	}
}

// ExhaustedError is returned when all retry attempts have been used.
type ExhaustedError struct {
	Attempts      int
	TotalDuration time.Duration
	LastErr       error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts over %v: %v", e.Attempts, e.TotalDuration, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// withRetry executes fn, retrying on IsRetryable errors per cfg. When an
// error carries a known rate-limit reset time, it sleeps until that point
// instead of backing off blindly (spec.md §4.2).
func withRetry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	start := time.Now()
	backoff := cfg.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if attempt >= cfg.MaxAttempts {
			break
		}

		var wait time.Duration
		if gqlErr, ok := err.(*GraphQLError); ok && gqlErr.ResetAt != nil {
			resetAt := time.Unix(*gqlErr.ResetAt, 0)
			if d := time.Until(resetAt); d > 0 {
				wait = d
			}
		} else {
			wait = jitter(backoff, cfg.Jitter)
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return &ExhaustedError{
		Attempts:      cfg.MaxAttempts,
		TotalDuration: time.Since(start),
		LastErr:       lastErr,
	}
}

func jitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	delta := float64(d) * frac
	offset := (rand.Float64()*2 - 1) * delta
	result := time.Duration(float64(d) + offset)
	if result < 0 {
		result = 0
	}
	return result
}
