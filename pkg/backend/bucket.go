package backend

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// requestWindow is the sliding window over which the request-rate limit is
// enforced.
const requestWindow = 60 * time.Second

// TokenBucket governs one backend's token and request budgets. Capacity is
// the per-minute token budget; it refills continuously at capacity/60 tokens
// per second. A sliding 60 s window of dispatch timestamps enforces the
// request-rate limit on top of the token balance.
//
// Consume blocks until both budgets allow the call or ctx is cancelled.
// Waits happen outside the mutex and loop back to a full re-check, so
// concurrent consumers can never overdraw the balance.
type TokenBucket struct {
	mu          sync.Mutex
	capacity    float64
	tokens      float64
	refillRate  float64 // tokens per second
	lastRefill  time.Time
	maxRequests int
	requests    []time.Time

	logger *slog.Logger
}

// NewTokenBucket creates a bucket with the given per-minute budgets.
// The bucket starts full.
func NewTokenBucket(maxTokensPerMinute, maxRequestsPerMinute int) *TokenBucket {
	cap := float64(maxTokensPerMinute)
	return &TokenBucket{
		capacity:    cap,
		tokens:      cap,
		refillRate:  cap / 60.0,
		lastRefill:  time.Now(),
		maxRequests: maxRequestsPerMinute,
		logger:      slog.Default().With("component", "token-bucket"),
	}
}

// Consume takes tokens from the bucket, waiting for refill or for the
// request window to open as needed. Requests larger than the bucket capacity
// are clamped to it; they can never be satisfied otherwise.
func (b *TokenBucket) Consume(ctx context.Context, tokens int) error {
	need := float64(tokens)
	if need > b.capacity {
		b.logger.Warn("Token request exceeds bucket capacity, clamping",
			"requested", tokens, "capacity", b.capacity)
		need = b.capacity
	}

	for {
		b.mu.Lock()
		now := time.Now()
		b.refillLocked(now)
		b.pruneLocked(now)

		// A non-positive request limit disables the window check; it also
		// keeps the b.requests[0] access in bounds.
		if b.maxRequests > 0 && len(b.requests) >= b.maxRequests {
			wait := requestWindow - now.Sub(b.requests[0])
			b.mu.Unlock()
			if wait > 0 {
				b.logger.Warn("Request rate limit reached, waiting",
					"wait", wait.Round(time.Millisecond))
				if err := sleepCtx(ctx, wait); err != nil {
					return err
				}
			}
			continue
		}

		if need > b.tokens {
			wait := time.Duration((need - b.tokens) / b.refillRate * float64(time.Second))
			b.mu.Unlock()
			b.logger.Warn("Token budget exhausted, waiting for refill",
				"wait", wait.Round(time.Millisecond))
			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
			continue
		}

		b.tokens -= need
		b.requests = append(b.requests, now)
		b.mu.Unlock()
		return nil
	}
}

// Balance returns the current token balance after refill. Used by tests and
// the metrics gauge.
func (b *TokenBucket) Balance() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(time.Now())
	return b.tokens
}

// RequestsInWindow returns the number of dispatches recorded in the last 60 s.
func (b *TokenBucket) RequestsInWindow() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked(time.Now())
	return len(b.requests)
}

func (b *TokenBucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.capacity, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now
}

func (b *TokenBucket) pruneLocked(now time.Time) {
	cut := 0
	for cut < len(b.requests) && now.Sub(b.requests[cut]) >= requestWindow {
		cut++
	}
	if cut > 0 {
		b.requests = b.requests[cut:]
	}
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
