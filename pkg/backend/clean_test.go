package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanGrokOutput(t *testing.T) {
	t.Run("strips html tags", func(t *testing.T) {
		out := cleanGrokOutput("<p>The capital of France is Paris.</p>", "")
		assert.Equal(t, "The capital of France is Paris.", out)
	})

	t.Run("drops navigation boilerplate", func(t *testing.T) {
		raw := "Skip to main content\nThe sky is blue.\nAdd your answer\n"
		out := cleanGrokOutput(raw, "")
		assert.Equal(t, "The sky is blue.", out)
	})

	t.Run("drops echoed prompt lines", func(t *testing.T) {
		raw := "why is the sky blue\nThe sky is blue due to Rayleigh scattering."
		out := cleanGrokOutput(raw, "why is the sky blue")
		assert.Equal(t, "The sky is blue due to Rayleigh scattering.", out)
	})

	t.Run("prefers sourced factual lines", func(t *testing.T) {
		raw := "Some chatter here\nWater is wet (source: common knowledge)\nAnother aside"
		out := cleanGrokOutput(raw, "")
		assert.Equal(t, "Water is wet (source: common knowledge)", out)
	})

	t.Run("falls back to factual lines without source", func(t *testing.T) {
		raw := "Hello there\nGold is a metal\nGoodbye"
		out := cleanGrokOutput(raw, "")
		assert.Equal(t, "Gold is a metal", out)
	})

	t.Run("keeps everything when nothing factual survives", func(t *testing.T) {
		raw := "line one\nline two"
		out := cleanGrokOutput(raw, "")
		assert.Equal(t, "line one\nline two", out)
	})
}
