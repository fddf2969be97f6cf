package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/starford/tiwaz/internal/models"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// openaiAdapter speaks the chat-completions contract. It also serves any
// OpenAI-compatible endpoint via BaseURL.
type openaiAdapter struct {
	client *http.Client
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model    string          `json:"model"`
	Messages []openaiMessage `json:"messages"`
}

type openaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (a *openaiAdapter) Generate(ctx context.Context, cfg models.ProviderConfig, prompt string) (string, Usage, error) {
	if cfg.APIKey == "" {
		return "", Usage{}, fmt.Errorf("openai: no api key: %w", ErrMisconfigured)
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultOpenAIBaseURL
	}

	body, err := postJSON(ctx, a.client, strings.TrimRight(base, "/")+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + cfg.APIKey},
		openaiRequest{
			Model:    cfg.Model,
			Messages: []openaiMessage{{Role: "user", Content: prompt}},
		})
	if err != nil {
		return "", Usage{}, fmt.Errorf("openai: %w", err)
	}

	var out openaiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", Usage{}, fmt.Errorf("openai: decode response: %w", err)
	}
	if out.Error != nil {
		return "", Usage{}, fmt.Errorf("openai: api error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", Usage{}, fmt.Errorf("openai: %w", ErrEmptyCompletion)
	}
	usage := Usage{
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
		TotalTokens:      out.Usage.TotalTokens,
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), usage, nil
}

var _ Adapter = (*openaiAdapter)(nil)
