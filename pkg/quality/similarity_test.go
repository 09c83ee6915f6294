package quality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarityRatio(t *testing.T) {
	t.Run("identical strings", func(t *testing.T) {
		assert.Equal(t, 1.0, similarityRatio("the sky is blue", "the sky is blue"))
	})

	t.Run("both empty", func(t *testing.T) {
		assert.Equal(t, 1.0, similarityRatio("", ""))
	})

	t.Run("one empty", func(t *testing.T) {
		assert.Equal(t, 0.0, similarityRatio("something", ""))
		assert.Equal(t, 0.0, similarityRatio("", "something"))
	})

	t.Run("no overlap", func(t *testing.T) {
		assert.Equal(t, 0.0, similarityRatio("aaa", "bbb"))
	})

	t.Run("partial overlap", func(t *testing.T) {
		// LCS("abc", "abd") = "ab": 2*2/(3+3).
		assert.InDelta(t, 2.0/3.0, similarityRatio("abc", "abd"), 1e-9)
	})

	t.Run("symmetric", func(t *testing.T) {
		a, b := "the quick brown fox", "the slow brown dog"
		assert.InDelta(t, similarityRatio(a, b), similarityRatio(b, a), 1e-9)
	})

	t.Run("long inputs are capped", func(t *testing.T) {
		long := strings.Repeat("x", 10000)
		// Must terminate quickly and still report near-identity.
		assert.Equal(t, 1.0, similarityRatio(long, long))
	})
}
