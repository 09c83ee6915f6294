package backend

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubVendor scripts a sequence of responses for the retry tests.
type stubVendor struct {
	calls     int
	responses []func() (string, error)
}

func (v *stubVendor) call(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	i := v.calls
	v.calls++
	if i >= len(v.responses) {
		i = len(v.responses) - 1
	}
	return v.responses[i]()
}

func testLimits() Limits {
	return Limits{
		MaxInputTokens:       4000,
		MaxOutputTokens:      512,
		MaxTokensPerMinute:   100000,
		MaxRequestsPerMinute: 100,
		RetryAttempts:        3,
		RetryDelay:           time.Millisecond,
	}
}

func TestClient_InvokeSuccess(t *testing.T) {
	v := &stubVendor{responses: []func() (string, error){
		func() (string, error) { return "hello", nil },
	}}
	c := NewClient(GPT, v, testLimits(), nil)

	out, err := c.Invoke(context.Background(), "hi", 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, 1, v.calls)
}

func TestClient_RetriesTransientFailure(t *testing.T) {
	v := &stubVendor{responses: []func() (string, error){
		func() (string, error) { return "", errors.New("upstream hiccup") },
		func() (string, error) { return "recovered", nil },
	}}
	c := NewClient(GPT, v, testLimits(), nil)

	out, err := c.Invoke(context.Background(), "hi", 0)
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, 2, v.calls)
}

func TestClient_ExhaustedRetriesReturnCallError(t *testing.T) {
	v := &stubVendor{responses: []func() (string, error){
		func() (string, error) { return "", errors.New("boom") },
	}}
	c := NewClient(Grok, v, testLimits(), nil)

	out, err := c.Invoke(context.Background(), "hi", 0)
	assert.Empty(t, out)

	var ce *CallError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, Grok, ce.Backend)
	assert.Equal(t, KindBackend, ce.Kind)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, v.calls)
}

func TestClient_RateLimitClassification(t *testing.T) {
	v := &stubVendor{responses: []func() (string, error){
		func() (string, error) { return "", &apiError{status: 429, body: "slow down"} },
	}}
	c := NewClient(GPT, v, testLimits(), nil)

	_, err := c.Invoke(context.Background(), "hi", 0)
	assert.True(t, IsRateLimited(err))
	assert.False(t, IsTimeout(err))
}

func TestClient_DeadContextIsTimeout(t *testing.T) {
	v := &stubVendor{responses: []func() (string, error){
		func() (string, error) { return "", context.DeadlineExceeded },
	}}
	c := NewClient(Claude, v, testLimits(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	time.Sleep(20 * time.Millisecond)

	_, err := c.Invoke(ctx, "hi", 0)
	assert.True(t, IsTimeout(err))
	// No retries once the deadline is gone.
	assert.LessOrEqual(t, v.calls, 1)
}

func TestClient_CleanerAppliesToOutput(t *testing.T) {
	v := &stubVendor{responses: []func() (string, error){
		func() (string, error) { return "  raw  ", nil },
	}}
	c := NewClient(Grok, v, testLimits(), func(raw, prompt string) string {
		return strings.TrimSpace(raw)
	})

	out, err := c.Invoke(context.Background(), "hi", 0)
	require.NoError(t, err)
	assert.Equal(t, "raw", out)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
}

func TestTruncatePrompt(t *testing.T) {
	t.Run("within budget untouched", func(t *testing.T) {
		out, truncated := truncatePrompt("short prompt", 100)
		assert.False(t, truncated)
		assert.Equal(t, "short prompt", out)
	})

	t.Run("over budget keeps head and tail", func(t *testing.T) {
		prompt := strings.Repeat("a", 300) + strings.Repeat("z", 300)
		out, truncated := truncatePrompt(prompt, 100) // 400 char budget

		assert.True(t, truncated)
		assert.Contains(t, out, truncationMarker)
		assert.True(t, strings.HasPrefix(out, "a"))
		assert.True(t, strings.HasSuffix(out, "z"))
		// 70/30 head/tail split of the character budget.
		head := strings.Split(out, truncationMarker)[0]
		assert.Len(t, head, 280)
	})
}

func TestIsRateLimitSignal(t *testing.T) {
	assert.False(t, isRateLimitSignal(nil))
	assert.False(t, isRateLimitSignal(errors.New("boom")))
	assert.True(t, isRateLimitSignal(errors.New("Rate limit reached for tokens")))
	assert.True(t, isRateLimitSignal(errors.New("429 Too Many Requests")))
	assert.True(t, isRateLimitSignal(&apiError{status: 429, body: "x"}))
	assert.False(t, isRateLimitSignal(&apiError{status: 500, body: "x"}))
}
