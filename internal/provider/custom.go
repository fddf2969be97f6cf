package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/starford/tiwaz/internal/models"
)

// customAdapter posts a minimal JSON body to an arbitrary endpoint and
// accepts the first recognizable completion field. Best effort: it exists
// so an unanticipated backend degrades to a contained failure instead of
// being unconfigurable.
type customAdapter struct {
	client *http.Client
}

type customRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// completionKeys are checked in order against the response object.
var completionKeys = []string{"text", "response", "completion", "output"}

func (a *customAdapter) Generate(ctx context.Context, cfg models.ProviderConfig, prompt string) (string, Usage, error) {
	if cfg.BaseURL == "" {
		return "", Usage{}, fmt.Errorf("custom: no base url: %w", ErrMisconfigured)
	}
	header := map[string]string{}
	if cfg.APIKey != "" {
		header["Authorization"] = "Bearer " + cfg.APIKey
	}

	body, err := postJSON(ctx, a.client, cfg.BaseURL, header, customRequest{
		Prompt: prompt,
		Model:  cfg.Model,
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("custom: %w", err)
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return "", Usage{}, fmt.Errorf("custom: decode response: %w", err)
	}
	for _, key := range completionKeys {
		if s, ok := out[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), Usage{}, nil
		}
	}
	return "", Usage{}, fmt.Errorf("custom: no completion field in response: %w", ErrEmptyCompletion)
}

var _ Adapter = (*customAdapter)(nil)
