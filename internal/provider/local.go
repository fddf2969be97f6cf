package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/starford/tiwaz/internal/models"
)

// DefaultLocalRuntimeURL is where an ollama-compatible runtime listens
// when the configuration does not say otherwise.
const DefaultLocalRuntimeURL = "http://localhost:11434"

// localAdapter serves models hosted by a local inference runtime. The
// configured Path names the model artifact on disk; BaseURL overrides the
// runtime address.
type localAdapter struct {
	client *http.Client
}

type localGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type localGenerateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

func (a *localAdapter) Generate(ctx context.Context, cfg models.ProviderConfig, prompt string) (string, Usage, error) {
	if cfg.Path == "" {
		return "", Usage{}, fmt.Errorf("local: no model path configured: %w", ErrMisconfigured)
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		return "", Usage{}, fmt.Errorf("local: %s: %w", cfg.Path, ErrMissingArtifact)
	}

	base := cfg.BaseURL
	if base == "" {
		base = DefaultLocalRuntimeURL
	}
	model := cfg.Model
	if model == "" {
		model = filepath.Base(cfg.Path)
	}

	body, err := postJSON(ctx, a.client, base+"/api/generate", nil, localGenerateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("local: %w", err)
	}

	var out localGenerateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", Usage{}, fmt.Errorf("local: decode response: %w", err)
	}
	if out.Error != "" {
		return "", Usage{}, fmt.Errorf("local: runtime error: %s", out.Error)
	}
	if out.Response == "" {
		return "", Usage{}, fmt.Errorf("local: %w", ErrEmptyCompletion)
	}
	usage := Usage{
		PromptTokens:     out.PromptEvalCount,
		CompletionTokens: out.EvalCount,
		TotalTokens:      out.PromptEvalCount + out.EvalCount,
	}
	return out.Response, usage, nil
}

var _ Adapter = (*localAdapter)(nil)
