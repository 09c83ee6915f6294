package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
)

// anthropicVendor speaks the Anthropic messages API.
type anthropicVendor struct {
	apiKey  string
	model   string
	baseURL string
	doer    httpDoer
}

func newAnthropicVendor(apiKey, model, baseURL string) *anthropicVendor {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &anthropicVendor{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		doer:    defaultHTTPClient(),
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (v *anthropicVendor) call(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	if maxOutputTokens <= 0 {
		maxOutputTokens = 512
	}
	body, err := json.Marshal(anthropicRequest{
		Model:     v.model,
		MaxTokens: maxOutputTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal anthropic request: %w", err)
	}

	base := v.baseURL
	if base == "" {
		base = defaultAnthropicBaseURL
	}
	url := strings.TrimSuffix(base, "/") + "/v1/messages"

	data, err := postJSON(ctx, v.doer, url, body, map[string]string{
		"x-api-key":         v.apiKey,
		"anthropic-version": anthropicVersion,
	})
	if err != nil {
		return "", err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("parse anthropic response: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
