package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket_StartsFull(t *testing.T) {
	b := NewTokenBucket(600, 10)
	assert.InDelta(t, 600, b.Balance(), 1)
	assert.Equal(t, 0, b.RequestsInWindow())
}

func TestTokenBucket_ConsumeWithinBudget(t *testing.T) {
	b := NewTokenBucket(600, 10)

	err := b.Consume(context.Background(), 100)
	require.NoError(t, err)

	assert.InDelta(t, 500, b.Balance(), 5)
	assert.Equal(t, 1, b.RequestsInWindow())
}

func TestTokenBucket_BlocksUntilRefill(t *testing.T) {
	// Tiny budget so the refill wait is observable but short:
	// 6000 tokens/min refills at 100 tokens/sec.
	b := NewTokenBucket(6000, 100)
	ctx := context.Background()

	require.NoError(t, b.Consume(ctx, 6000))

	start := time.Now()
	require.NoError(t, b.Consume(ctx, 10))
	elapsed := time.Since(start)

	// Needs ~10 tokens at 100/sec, so roughly 100ms of waiting.
	assert.Greater(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestTokenBucket_ContextCancelsWait(t *testing.T) {
	b := NewTokenBucket(60, 10) // refills at 1 token/sec
	ctx := context.Background()

	require.NoError(t, b.Consume(ctx, 60))

	cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	err := b.Consume(cancelCtx, 60)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTokenBucket_RequestWindowLimit(t *testing.T) {
	b := NewTokenBucket(100000, 2)
	ctx := context.Background()

	require.NoError(t, b.Consume(ctx, 1))
	require.NoError(t, b.Consume(ctx, 1))
	assert.Equal(t, 2, b.RequestsInWindow())

	// Third dispatch must wait for the window; a short deadline surfaces it.
	cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := b.Consume(cancelCtx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTokenBucket_ClampsOversizedRequest(t *testing.T) {
	b := NewTokenBucket(100, 10)

	// A request above capacity is clamped, not deadlocked.
	err := b.Consume(context.Background(), 1000)
	require.NoError(t, err)
	assert.InDelta(t, 0, b.Balance(), 5)
}

func TestTokenBucket_ZeroRequestLimitDisablesWindow(t *testing.T) {
	b := NewTokenBucket(100000, 0)
	ctx := context.Background()

	// Must not panic or block on the request window.
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Consume(ctx, 1))
	}
	assert.Equal(t, 5, b.RequestsInWindow())
}
