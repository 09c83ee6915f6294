package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const defaultGrokBaseURL = "https://api.x.ai/v1"

// grokVendor speaks the xAI completions API.
type grokVendor struct {
	apiKey  string
	model   string
	baseURL string
	doer    httpDoer
}

func newGrokVendor(apiKey, model, baseURL string) *grokVendor {
	if model == "" {
		model = "grok-2-1212"
	}
	return &grokVendor{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		doer:    defaultHTTPClient(),
	}
}

type grokRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

type grokResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

func (v *grokVendor) call(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	body, err := json.Marshal(grokRequest{
		Model:     v.model,
		Prompt:    prompt,
		MaxTokens: maxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal grok request: %w", err)
	}

	base := v.baseURL
	if base == "" {
		base = defaultGrokBaseURL
	}
	url := strings.TrimSuffix(base, "/") + "/completions"

	data, err := postJSON(ctx, v.doer, url, body, map[string]string{
		"Authorization": "Bearer " + v.apiKey,
	})
	if err != nil {
		return "", err
	}

	var resp grokResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("parse grok response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("grok response contained no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Text), nil
}
