package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/quorum/pkg/backend"
)

// setRequiredKeys satisfies validation; every backend needs an API key.
func setRequiredKeys(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test-openai")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-anthropic")
	t.Setenv("XAI_GROK_API_KEY", "sk-test-grok")
}

func TestInitialize_Defaults(t *testing.T) {
	setRequiredKeys(t)

	cfg, err := Initialize("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Server.RateLimitPerMinute)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.InDelta(t, 0.6, cfg.Reasoning.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 5, cfg.Reasoning.MaxConcurrentTasks)
	assert.Equal(t, 30*time.Second, cfg.Reasoning.DefaultTaskTimeout())

	assert.True(t, cfg.Reasoning.ContradictionDetectionEnabled())
	assert.True(t, cfg.Reasoning.HallucinationDetectionEnabled())
	assert.False(t, cfg.Reasoning.ResponseVerificationEnabled())

	require.Contains(t, cfg.Backends, "gpt")
	assert.Equal(t, "sk-test-openai", cfg.Backends["gpt"].APIKey)
	assert.Equal(t, 10000, cfg.Backends["gpt"].Limits.MaxTokensPerMinute)
	assert.Equal(t, 5, cfg.Backends["gpt"].Limits.MaxRequestsPerMinute)

	require.Contains(t, cfg.Backends, "claude")
	assert.Equal(t, 50000, cfg.Backends["claude"].Limits.MaxTokensPerMinute)
	assert.Equal(t, 1, cfg.Backends["claude"].Limits.RetryAttempts)

	require.Contains(t, cfg.Backends, "grok")
	assert.Equal(t, 20000, cfg.Backends["grok"].Limits.MaxTokensPerMinute)
}

func TestInitialize_MissingFileFallsBack(t *testing.T) {
	setRequiredKeys(t)

	cfg, err := Initialize(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestInitialize_YAMLOverridesDefaults(t *testing.T) {
	setRequiredKeys(t)

	path := filepath.Join(t.TempDir(), "quorum.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9100
reasoning:
  confidence_threshold: 0.75
  enable_response_verification: true
`), 0o600))

	cfg, err := Initialize(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.InDelta(t, 0.75, cfg.Reasoning.ConfidenceThreshold, 1e-9)
	assert.True(t, cfg.Reasoning.ResponseVerificationEnabled())

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "gpt-4-turbo", cfg.Backends["gpt"].Model)
}

func TestInitialize_TemplateExpansion(t *testing.T) {
	setRequiredKeys(t)
	t.Setenv("TEST_SLACK_CHANNEL", "C012345")

	path := filepath.Join(t.TempDir(), "quorum.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
slack:
  channel: "{{.TEST_SLACK_CHANNEL}}"
`), 0o600))

	cfg, err := Initialize(path)
	require.NoError(t, err)
	assert.Equal(t, "C012345", cfg.Slack.Channel)
}

func TestInitialize_InvalidYAML(t *testing.T) {
	setRequiredKeys(t)

	path := filepath.Join(t.TempDir(), "quorum.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not: valid"), 0o600))

	_, err := Initialize(path)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestInitialize_EnvOverrides(t *testing.T) {
	setRequiredKeys(t)
	t.Setenv("MAX_CONCURRENT_TASKS", "9")
	t.Setenv("CONFIDENCE_THRESHOLD", "0.8")
	t.Setenv("DEFAULT_TASK_TIMEOUT", "45s")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("ENABLE_CONTRADICTION_DETECTION", "false")

	cfg, err := Initialize("")
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Reasoning.MaxConcurrentTasks)
	assert.InDelta(t, 0.8, cfg.Reasoning.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 45*time.Second, cfg.Reasoning.DefaultTaskTimeout())
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.False(t, cfg.Reasoning.ContradictionDetectionEnabled())
}

func TestInitialize_TimeoutAsBareSeconds(t *testing.T) {
	setRequiredKeys(t)
	t.Setenv("DEFAULT_TASK_TIMEOUT", "60")

	cfg, err := Initialize("")
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.Reasoning.DefaultTaskTimeout())
}

func TestInitialize_ValidationCollectsIssues(t *testing.T) {
	// No API keys at all plus a bad threshold.
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("XAI_GROK_API_KEY", "")
	t.Setenv("CONFIDENCE_THRESHOLD", "1.5")

	_, err := Initialize("")
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, err.Error(), `backend "gpt" has no API key`)
	assert.Contains(t, err.Error(), "outside [0,1]")
}

func TestBackendSettings(t *testing.T) {
	setRequiredKeys(t)

	cfg, err := Initialize("")
	require.NoError(t, err)

	settings, err := cfg.BackendSettings()
	require.NoError(t, err)
	require.Len(t, settings, 3)

	claude := settings[backend.Claude]
	assert.Equal(t, "sk-test-anthropic", claude.APIKey)
	assert.Equal(t, "claude-sonnet-4-20250514", claude.Model)
	assert.Equal(t, 1500*time.Millisecond, claude.Limits.RetryDelay)

	gpt := settings[backend.GPT]
	assert.Equal(t, 5*time.Second, gpt.Limits.RetryDelay)
}

func TestBackendSettings_UnknownName(t *testing.T) {
	cfg := &Config{Backends: map[string]BackendConfig{"gemini": {}}}
	_, err := cfg.BackendSettings()
	assert.ErrorIs(t, err, backend.ErrUnknownBackend)
}
