package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"text/template"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidYAML indicates YAML parsing failed.
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// ErrValidationFailed indicates configuration validation failed.
	ErrValidationFailed = errors.New("configuration validation failed")
)

// Initialize loads, merges, and validates configuration. path names the
// optional quorum.yaml; an empty path or missing file falls back to built-in
// defaults plus environment variables.
func Initialize(path string) (*Config, error) {
	log := slog.With("component", "config")

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Info("No configuration file found, using defaults", "path", path)
		case err != nil:
			return nil, fmt.Errorf("failed to read configuration: %w", err)
		default:
			var fileCfg Config
			if err := yaml.Unmarshal(expandEnv(data), &fileCfg); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
			}
			if err := mergo.Merge(cfg, &fileCfg, mergo.WithOverride); err != nil {
				return nil, fmt.Errorf("failed to merge configuration: %w", err)
			}
			log.Info("Loaded configuration file", "path", path)
		}
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	log.Info("Configuration initialized",
		"backends", len(cfg.Backends),
		"confidence_threshold", cfg.Reasoning.ConfidenceThreshold)
	return cfg, nil
}

// expandEnv substitutes {{.VAR}} references in YAML content with environment
// values. Template syntax is used instead of $ expansion so literal dollar
// signs in values survive.
func expandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}
	env := map[string]string{}
	for _, kv := range os.Environ() {
		if i := bytes.IndexByte([]byte(kv), '='); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, env); err != nil {
		return data
	}
	return buf.Bytes()
}

// applyEnv overlays the enumerated environment variables. These always win
// over YAML.
func applyEnv(cfg *Config) {
	setKey := func(name, env string) {
		if v := os.Getenv(env); v != "" {
			bc := cfg.Backends[name]
			bc.APIKey = v
			cfg.Backends[name] = bc
		}
	}
	setKey("gpt", "OPENAI_API_KEY")
	setKey("claude", "ANTHROPIC_API_KEY")
	setKey("grok", "XAI_GROK_API_KEY")

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SLACK_BOT_TOKEN"); v != "" {
		cfg.Slack.Token = v
	}
	if v := os.Getenv("MAX_CONCURRENT_TASKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reasoning.MaxConcurrentTasks = n
		}
	}
	if v := os.Getenv("DEFAULT_TASK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Reasoning.DefaultTaskTimeoutSeconds = int(d.Seconds())
		} else if n, err := strconv.Atoi(v); err == nil {
			cfg.Reasoning.DefaultTaskTimeoutSeconds = n
		}
	}
	if v := os.Getenv("CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Reasoning.ConfidenceThreshold = f
		}
	}
	setFlag := func(p **bool, env string) {
		if v := os.Getenv(env); v != "" {
			b := v == "true" || v == "1"
			*p = &b
		}
	}
	setFlag(&cfg.Reasoning.EnableContradictionDetection, "ENABLE_CONTRADICTION_DETECTION")
	setFlag(&cfg.Reasoning.EnableHallucinationDetection, "ENABLE_HALLUCINATION_DETECTION")
	setFlag(&cfg.Reasoning.EnableResponseVerification, "ENABLE_RESPONSE_VERIFICATION")
}

// validate collects every problem before failing so operators see the whole
// list at once.
func validate(cfg *Config) error {
	var issues []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		issues = append(issues, fmt.Sprintf("server port %d out of range", cfg.Server.Port))
	}
	if len(cfg.Backends) == 0 {
		issues = append(issues, "no backends configured")
	}
	for name, bc := range cfg.Backends {
		if bc.APIKey == "" {
			issues = append(issues, fmt.Sprintf("backend %q has no API key", name))
		}
		if bc.Limits.MaxTokensPerMinute <= 0 {
			issues = append(issues, fmt.Sprintf("backend %q has non-positive token rate", name))
		}
		if bc.Limits.MaxRequestsPerMinute <= 0 {
			issues = append(issues, fmt.Sprintf("backend %q has non-positive request rate", name))
		}
	}
	if t := cfg.Reasoning.ConfidenceThreshold; t < 0 || t > 1 {
		issues = append(issues, fmt.Sprintf("confidence threshold %v outside [0,1]", t))
	}
	if cfg.Slack.Enabled && cfg.Slack.Token == "" {
		issues = append(issues, "slack notifications enabled without a token")
	}

	if len(issues) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrValidationFailed, joinLines(issues))
	}
	return nil
}

func joinLines(lines []string) string {
	out := lines[0]
	for _, l := range lines[1:] {
		out += "\n  - " + l
	}
	return out
}
