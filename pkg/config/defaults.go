package config

// defaults returns the built-in configuration. Backend rate limits reflect
// conservative vendor tiers; override them in quorum.yaml for higher quotas.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8000,
			RateLimitPerMinute: 10,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Backends: map[string]BackendConfig{
			"gpt": {
				Model:   "gpt-4-turbo",
				BaseURL: "https://api.openai.com/v1",
				Limits: LimitsConfig{
					MaxInputTokens:       4000,
					MaxOutputTokens:      1024,
					MaxTokensPerMinute:   10000,
					MaxRequestsPerMinute: 5,
					RetryAttempts:        3,
					RetryDelaySeconds:    5,
				},
			},
			"claude": {
				Model:   "claude-sonnet-4-20250514",
				BaseURL: "https://api.anthropic.com",
				Limits: LimitsConfig{
					MaxInputTokens:       8000,
					MaxOutputTokens:      512,
					MaxTokensPerMinute:   50000,
					MaxRequestsPerMinute: 50,
					RetryAttempts:        1,
					RetryDelaySeconds:    1.5,
				},
			},
			"grok": {
				Model:   "grok-2-1212",
				BaseURL: "https://api.x.ai/v1",
				Limits: LimitsConfig{
					MaxInputTokens:       4000,
					MaxOutputTokens:      512,
					MaxTokensPerMinute:   20000,
					MaxRequestsPerMinute: 10,
					RetryAttempts:        3,
					RetryDelaySeconds:    5,
				},
			},
		},
		Reasoning: ReasoningConfig{
			ConfidenceThreshold:       0.6,
			MaxConcurrentTasks:        5,
			DefaultTaskTimeoutSeconds: 30,
		},
	}
}
