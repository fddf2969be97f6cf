package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/starford/tiwaz/internal/models"
)

const defaultHuggingFaceBaseURL = "https://api-inference.huggingface.co"

// huggingfaceAdapter calls the hosted inference API. Responses arrive as
// an array of generations; only the first is used.
type huggingfaceAdapter struct {
	client *http.Client
}

type huggingfaceRequest struct {
	Inputs string `json:"inputs"`
}

type huggingfaceGeneration struct {
	GeneratedText string `json:"generated_text"`
}

func (a *huggingfaceAdapter) Generate(ctx context.Context, cfg models.ProviderConfig, prompt string) (string, Usage, error) {
	if cfg.APIKey == "" {
		return "", Usage{}, fmt.Errorf("huggingface: no api key: %w", ErrMisconfigured)
	}
	if cfg.Model == "" {
		return "", Usage{}, fmt.Errorf("huggingface: no model configured: %w", ErrMisconfigured)
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultHuggingFaceBaseURL
	}

	body, err := postJSON(ctx, a.client, strings.TrimRight(base, "/")+"/models/"+cfg.Model,
		map[string]string{"Authorization": "Bearer " + cfg.APIKey},
		huggingfaceRequest{Inputs: prompt})
	if err != nil {
		return "", Usage{}, fmt.Errorf("huggingface: %w", err)
	}

	var generations []huggingfaceGeneration
	if err := json.Unmarshal(body, &generations); err != nil {
		// Error payloads are objects, not arrays.
		var apiErr struct {
			Error string `json:"error"`
		}
		if jerr := json.Unmarshal(body, &apiErr); jerr == nil && apiErr.Error != "" {
			return "", Usage{}, fmt.Errorf("huggingface: api error: %s", apiErr.Error)
		}
		return "", Usage{}, fmt.Errorf("huggingface: decode response: %w", err)
	}
	if len(generations) == 0 || strings.TrimSpace(generations[0].GeneratedText) == "" {
		return "", Usage{}, fmt.Errorf("huggingface: %w", ErrEmptyCompletion)
	}
	// The inference API reports no token usage.
	return strings.TrimSpace(generations[0].GeneratedText), Usage{}, nil
}

var _ Adapter = (*huggingfaceAdapter)(nil)
