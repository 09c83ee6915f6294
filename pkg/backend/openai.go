package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// openAIVendor speaks the OpenAI chat completions API.
type openAIVendor struct {
	apiKey  string
	model   string
	baseURL string
	doer    httpDoer
}

func newOpenAIVendor(apiKey, model, baseURL string) *openAIVendor {
	if model == "" {
		model = "gpt-4-turbo"
	}
	return &openAIVendor{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		doer:    defaultHTTPClient(),
	}
}

type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (v *openAIVendor) call(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	body, err := json.Marshal(openAIRequest{
		Model:     v.model,
		Messages:  []openAIMessage{{Role: "user", Content: prompt}},
		MaxTokens: maxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal openai request: %w", err)
	}

	base := v.baseURL
	if base == "" {
		base = defaultOpenAIBaseURL
	}
	url := strings.TrimSuffix(base, "/") + "/chat/completions"

	data, err := postJSON(ctx, v.doer, url, body, map[string]string{
		"Authorization": "Bearer " + v.apiKey,
	})
	if err != nil {
		return "", err
	}

	var resp openAIResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("parse openai response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai response contained no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
