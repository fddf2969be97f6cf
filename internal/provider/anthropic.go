package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/starford/tiwaz/internal/models"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
	anthropicMaxTokens      = 4096
)

type anthropicAdapter struct {
	client *http.Client
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *anthropicAdapter) Generate(ctx context.Context, cfg models.ProviderConfig, prompt string) (string, Usage, error) {
	if cfg.APIKey == "" {
		return "", Usage{}, fmt.Errorf("anthropic: no api key: %w", ErrMisconfigured)
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultAnthropicBaseURL
	}

	body, err := postJSON(ctx, a.client, strings.TrimRight(base, "/")+"/messages",
		map[string]string{
			"x-api-key":         cfg.APIKey,
			"anthropic-version": anthropicVersion,
		},
		anthropicRequest{
			Model:     cfg.Model,
			MaxTokens: anthropicMaxTokens,
			Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
		})
	if err != nil {
		return "", Usage{}, fmt.Errorf("anthropic: %w", err)
	}

	var out anthropicResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", Usage{}, fmt.Errorf("anthropic: decode response: %w", err)
	}
	if out.Error != nil {
		return "", Usage{}, fmt.Errorf("anthropic: api error: %s", out.Error.Message)
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	result := strings.TrimSpace(text.String())
	if result == "" {
		return "", Usage{}, fmt.Errorf("anthropic: %w", ErrEmptyCompletion)
	}
	usage := Usage{
		PromptTokens:     out.Usage.InputTokens,
		CompletionTokens: out.Usage.OutputTokens,
		TotalTokens:      out.Usage.InputTokens + out.Usage.OutputTokens,
	}
	return result, usage, nil
}

var _ Adapter = (*anthropicAdapter)(nil)
