package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// truncationMarker separates the head and tail of an over-long prompt.
const truncationMarker = "\n\n[Content truncated due to length]\n\n"

// Limits is the per-backend budget and retry policy, resolved from
// configuration.
type Limits struct {
	MaxInputTokens       int
	MaxOutputTokens      int
	MaxTokensPerMinute   int
	MaxRequestsPerMinute int
	RetryAttempts        int
	RetryDelay           time.Duration
}

// vendor is the wire adapter for one LLM API. call returns the raw response
// text; non-2xx statuses surface as *apiError so the client can classify
// throttling.
type vendor interface {
	call(ctx context.Context, prompt string, maxOutputTokens int) (string, error)
}

// Client is the rate-limited client for a single backend. It truncates
// prompts to the input budget, blocks on the token bucket before dispatch,
// and retries transient failures with rate-limit-aware backoff.
type Client struct {
	id      ID
	vendor  vendor
	bucket  *TokenBucket
	limits  Limits
	cleaner func(raw, prompt string) string
	logger  *slog.Logger
}

// NewClient creates a rate-limited client. cleaner may be nil; when set it
// post-processes every successful response (the Grok adapter uses it to
// strip HTML pollution).
func NewClient(id ID, v vendor, limits Limits, cleaner func(raw, prompt string) string) *Client {
	return &Client{
		id:      id,
		vendor:  v,
		bucket:  NewTokenBucket(limits.MaxTokensPerMinute, limits.MaxRequestsPerMinute),
		limits:  limits,
		cleaner: cleaner,
		logger:  slog.Default().With("component", "backend-client", "backend", id.String()),
	}
}

// Bucket exposes the client's token bucket for tests and metrics.
func (c *Client) Bucket() *TokenBucket { return c.bucket }

// Invoke sends prompt to the backend and returns the response text.
// maxOutputTokens <= 0 uses the configured default. Failures are always
// *CallError; vendor error text never masquerades as output.
func (c *Client) Invoke(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	if maxOutputTokens <= 0 {
		maxOutputTokens = c.limits.MaxOutputTokens
	}

	sent, truncated := truncatePrompt(prompt, c.limits.MaxInputTokens)
	if truncated {
		c.logger.Warn("Prompt truncated to input budget",
			"original_chars", len(prompt), "sent_chars", len(sent))
	}

	if err := c.bucket.Consume(ctx, EstimateTokens(sent)+maxOutputTokens); err != nil {
		return "", &CallError{Backend: c.id, Kind: KindTimeout, Err: err}
	}

	attempts := c.limits.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		start := time.Now()
		out, err := c.vendor.call(ctx, sent, maxOutputTokens)
		if err == nil {
			c.logger.Info("Backend call completed",
				"duration", time.Since(start).Round(time.Millisecond), "attempt", attempt+1)
			if c.cleaner != nil {
				out = c.cleaner(out, sent)
			}
			return out, nil
		}
		lastErr = err

		// A dead context means the task deadline fired; retrying cannot help.
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return "", &CallError{Backend: c.id, Kind: KindTimeout, Err: err}
		}

		c.logger.Error("Backend call failed",
			"attempt", attempt+1, "attempts", attempts, "error", err)

		if attempt == attempts-1 {
			break
		}
		delay := c.limits.RetryDelay
		if isRateLimitSignal(err) {
			delay = c.limits.RetryDelay * time.Duration(attempt+1)
			c.logger.Warn("Rate limit signalled by vendor, backing off", "delay", delay)
		}
		if serr := sleepCtx(ctx, delay); serr != nil {
			return "", &CallError{Backend: c.id, Kind: KindTimeout, Err: serr}
		}
	}

	kind := KindBackend
	if isRateLimitSignal(lastErr) {
		kind = KindRateLimited
	}
	return "", &CallError{
		Backend: c.id,
		Kind:    kind,
		Err:     fmt.Errorf("error calling %s after %d attempts: %w", c.id.DisplayName(), attempts, lastErr),
	}
}

// EstimateTokens approximates the token count of text at four characters per
// token, rounding up.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// truncatePrompt bounds prompt to maxInputTokens (4 chars/token), keeping
// the first 70% and last 30% of the budget around a fixed marker.
func truncatePrompt(prompt string, maxInputTokens int) (string, bool) {
	if maxInputTokens <= 0 || EstimateTokens(prompt) <= maxInputTokens {
		return prompt, false
	}
	charLimit := maxInputTokens * 4
	head := int(float64(charLimit) * 0.7)
	tail := charLimit - head
	return prompt[:head] + truncationMarker + prompt[len(prompt)-tail:], true
}

// isRateLimitSignal reports whether err is vendor-signalled throttling:
// HTTP 429 or a recognized phrase in the error text.
func isRateLimitSignal(err error) bool {
	if err == nil {
		return false
	}
	var ae *apiError
	if errors.As(err, &ae) && ae.status == 429 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "tokens per min")
}
