// Package provider routes natural-language queries to configured
// language-model backends. Each family has one adapter speaking its wire
// contract; the router normalizes results and contains every adapter
// failure behind an error-marked text response.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/starford/tiwaz/internal/models"
)

// Sentinel failures adapters report. The router maps them to failure
// classes in explainability notes.
var (
	// ErrMisconfigured means the configuration lacks a required field
	// (credential, URL, model path).
	ErrMisconfigured = errors.New("provider: incomplete configuration")
	// ErrMissingArtifact means a local model path does not exist.
	ErrMissingArtifact = errors.New("provider: model artifact not found")
	// ErrEmptyCompletion means the backend answered without usable text.
	ErrEmptyCompletion = errors.New("provider: empty completion")
	// ErrUnknownFamily means no adapter serves the configured family.
	ErrUnknownFamily = errors.New("provider: unknown family")
)

// Usage carries the call metadata a backend reports, when it does.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func (u Usage) reported() bool {
	return u.PromptTokens > 0 || u.CompletionTokens > 0 || u.TotalTokens > 0
}

// Adapter speaks one provider family's request/response contract.
// Implementations are stateless per call and safe for concurrent use.
type Adapter interface {
	Generate(ctx context.Context, cfg models.ProviderConfig, prompt string) (string, Usage, error)
}

// maxResponseBytes caps how much of a backend response is read.
const maxResponseBytes = 4 << 20

// postJSON sends a JSON payload and returns the response body. Non-200
// statuses become errors carrying a body snippet.
func postJSON(ctx context.Context, client *http.Client, url string, header map[string]string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call backend: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, snippet(body))
	}
	return body, nil
}

// snippet shortens a response body for error messages.
func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "…"
	}
	return s
}
