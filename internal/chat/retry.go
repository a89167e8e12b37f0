package chat

import (
	"context"
	"strings"
	"time"
)

// RetryConfig configures retry behavior for completion calls made inside
// the tool-call loop. The final streaming call is never retried: a stream
// cannot be replayed once events have been emitted.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for LLM API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups error substrings by category, matched
// case-insensitively against err.Error().
//
// NOTE: string matching is used because the model SDKs do not expose typed
// errors for transient failures. Re-evaluate if that changes.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},      // rate limiting
	{"500", "502", "503", "504", "unavailable"},  // transient server errors
	{"connection reset", "timeout", "temporary"}, // network errors
}

// retryableError reports whether err is transient and should trigger a retry.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, group := range retryablePatterns {
		for _, pattern := range group {
			if strings.Contains(msg, pattern) {
				return true
			}
		}
	}
	return false
}

// complete performs one loop-phase completion with rate limiting, circuit
// breaking, and exponential-backoff retry on transient errors.
func (o *Orchestrator) complete(ctx context.Context, opts *Options) (*Result, error) {
	var lastErr error
	delay := o.retryConfig.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= o.retryConfig.MaxRetries; attempt++ {
		// Rate-limit and breaker-check every attempt, not just the first.
		if err := o.acquire(ctx); err != nil {
			return nil, err
		}

		res, err := o.completer.Complete(ctx, opts)
		if err == nil {
			o.circuitBreaker.Success()
			return res, nil
		}

		o.circuitBreaker.Failure()
		lastErr = err

		if !retryableError(err) || attempt == o.retryConfig.MaxRetries {
			break
		}

		o.logger.Warn("completion failed, retrying",
			"attempt", attempt+1,
			"max_retries", o.retryConfig.MaxRetries,
			"delay", delay,
			"elapsed", time.Since(start),
			"error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		delay *= 2
		if delay > o.retryConfig.MaxInterval {
			delay = o.retryConfig.MaxInterval
		}
	}

	return nil, lastErr
}
