// Package config loads and validates quorum configuration from an optional
// quorum.yaml plus environment variables. Environment values win over YAML;
// YAML wins over built-in defaults.
package config

import (
	"time"

	"github.com/codeready-toolchain/quorum/pkg/backend"
)

// Config is the fully merged, validated runtime configuration.
type Config struct {
	Server    ServerConfig             `yaml:"server"`
	Database  DatabaseConfig           `yaml:"database"`
	Redis     RedisConfig              `yaml:"redis"`
	Slack     SlackConfig              `yaml:"slack"`
	Backends  map[string]BackendConfig `yaml:"backends"`
	Reasoning ReasoningConfig          `yaml:"reasoning"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// AllowedWSOrigins restricts websocket upgrades; empty allows
	// same-origin only.
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`
	// RateLimitPerMinute caps /ask and /collaborate requests per remote IP.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds the memory cache settings.
type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

// SlackConfig holds alert notification settings.
type SlackConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// BackendConfig configures one LLM backend.
type BackendConfig struct {
	APIKey  string       `yaml:"api_key"`
	Model   string       `yaml:"model"`
	BaseURL string       `yaml:"base_url"`
	Limits  LimitsConfig `yaml:"limits"`
}

// LimitsConfig mirrors backend.Limits in YAML-friendly form.
type LimitsConfig struct {
	MaxInputTokens       int     `yaml:"max_input_tokens"`
	MaxOutputTokens      int     `yaml:"max_output_tokens"`
	MaxTokensPerMinute   int     `yaml:"max_tokens_per_minute"`
	MaxRequestsPerMinute int     `yaml:"max_requests_per_minute"`
	RetryAttempts        int     `yaml:"retry_attempts"`
	RetryDelaySeconds    float64 `yaml:"retry_delay_seconds"`
}

// ReasoningConfig tunes the orchestrator.
type ReasoningConfig struct {
	ConfidenceThreshold          float64 `yaml:"confidence_threshold"`
	MaxConcurrentTasks           int     `yaml:"max_concurrent_tasks"`
	DefaultTaskTimeoutSeconds    int     `yaml:"default_task_timeout_seconds"`
	EnableContradictionDetection *bool   `yaml:"enable_contradiction_detection"`
	EnableHallucinationDetection *bool   `yaml:"enable_hallucination_detection"`
	EnableResponseVerification   *bool   `yaml:"enable_response_verification"`
}

// BackendSettings converts the configured backends into the registry's
// settings map, keyed by validated backend IDs.
func (c *Config) BackendSettings() (map[backend.ID]backend.Settings, error) {
	out := make(map[backend.ID]backend.Settings, len(c.Backends))
	for name, bc := range c.Backends {
		id, err := backend.ParseID(name)
		if err != nil {
			return nil, err
		}
		out[id] = backend.Settings{
			APIKey:  bc.APIKey,
			Model:   bc.Model,
			BaseURL: bc.BaseURL,
			Limits: backend.Limits{
				MaxInputTokens:       bc.Limits.MaxInputTokens,
				MaxOutputTokens:      bc.Limits.MaxOutputTokens,
				MaxTokensPerMinute:   bc.Limits.MaxTokensPerMinute,
				MaxRequestsPerMinute: bc.Limits.MaxRequestsPerMinute,
				RetryAttempts:        bc.Limits.RetryAttempts,
				RetryDelay:           time.Duration(bc.Limits.RetryDelaySeconds * float64(time.Second)),
			},
		}
	}
	return out, nil
}

// DefaultTaskTimeout returns the configured per-task timeout.
func (r ReasoningConfig) DefaultTaskTimeout() time.Duration {
	return time.Duration(r.DefaultTaskTimeoutSeconds) * time.Second
}

func boolOr(p *bool, fallback bool) bool {
	if p == nil {
		return fallback
	}
	return *p
}

// ContradictionDetectionEnabled defaults to on.
func (r ReasoningConfig) ContradictionDetectionEnabled() bool {
	return boolOr(r.EnableContradictionDetection, true)
}

// HallucinationDetectionEnabled defaults to on.
func (r ReasoningConfig) HallucinationDetectionEnabled() bool {
	return boolOr(r.EnableHallucinationDetection, true)
}

// ResponseVerificationEnabled defaults to off.
func (r ReasoningConfig) ResponseVerificationEnabled() bool {
	return boolOr(r.EnableResponseVerification, false)
}
