package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/tiwaz/internal/models"
)

func testRouter(opts ...RouterOption) *Router {
	opts = append([]RouterOption{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	return NewRouter(opts...)
}

func TestRunQueryOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth header = %q", got)
		}
		io.WriteString(w, `{
			"model": "gpt-4o",
			"choices": [{"message": {"role": "assistant", "content": "Hello from the model."}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
		}`)
	}))
	defer srv.Close()

	resp := testRouter().RunQuery(context.Background(), models.ProviderConfig{
		Name:    "OpenAI test",
		Family:  models.FamilyOpenAI,
		BaseURL: srv.URL,
		APIKey:  "sk-test",
		Model:   "gpt-4o",
	}, "say hello")

	if resp.Failed() {
		t.Fatalf("unexpected failure: %+v", resp)
	}
	if resp.Text != "Hello from the model." {
		t.Fatalf("text = %q", resp.Text)
	}
	for _, want := range []string{"model=gpt-4o", "prompt_tokens=12", "total_tokens=19"} {
		if !strings.Contains(resp.Explain, want) {
			t.Fatalf("explain %q missing %q", resp.Explain, want)
		}
	}
}

func TestRunQueryAnthropic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "ak-test" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != "2023-06-01" {
			t.Errorf("anthropic-version = %q", got)
		}
		io.WriteString(w, `{
			"model": "claude-sonnet",
			"content": [{"type": "text", "text": "Part one. "}, {"type": "text", "text": "Part two."}],
			"usage": {"input_tokens": 20, "output_tokens": 9}
		}`)
	}))
	defer srv.Close()

	resp := testRouter().RunQuery(context.Background(), models.ProviderConfig{
		Name:    "Claude test",
		Family:  models.FamilyAnthropic,
		BaseURL: srv.URL,
		APIKey:  "ak-test",
		Model:   "claude-sonnet",
	}, "explain")

	if resp.Failed() {
		t.Fatalf("unexpected failure: %+v", resp)
	}
	if resp.Text != "Part one. Part two." {
		t.Fatalf("text = %q, want concatenated blocks", resp.Text)
	}
	if !strings.Contains(resp.Explain, "total_tokens=29") {
		t.Fatalf("explain = %q", resp.Explain)
	}
}

func TestRunQueryHuggingFace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gpt2" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `[{"generated_text": "completion text"}]`)
	}))
	defer srv.Close()

	resp := testRouter().RunQuery(context.Background(), models.ProviderConfig{
		Name:    "HF test",
		Family:  models.FamilyHuggingFace,
		BaseURL: srv.URL,
		APIKey:  "hf-test",
		Model:   "gpt2",
	}, "complete this")

	if resp.Failed() || resp.Text != "completion text" {
		t.Fatalf("resp = %+v", resp)
	}
	if !strings.Contains(resp.Explain, "usage=unreported") {
		t.Fatalf("explain = %q", resp.Explain)
	}
}

func TestRunQueryCustomFallbackKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"completion": "from a custom backend"}`)
	}))
	defer srv.Close()

	resp := testRouter().RunQuery(context.Background(), models.ProviderConfig{
		Name:    "bespoke",
		Family:  models.FamilyCustom,
		BaseURL: srv.URL,
	}, "q")

	if resp.Failed() || resp.Text != "from a custom backend" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestRunQueryLocal(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "model.gguf")
	if err := os.WriteFile(artifact, []byte("weights"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `{"response": "local answer", "prompt_eval_count": 3, "eval_count": 5}`)
	}))
	defer srv.Close()

	resp := testRouter().RunQuery(context.Background(), models.ProviderConfig{
		Name:    "local llama",
		Family:  models.FamilyLocal,
		Path:    artifact,
		BaseURL: srv.URL,
	}, "q")

	if resp.Failed() || resp.Text != "local answer" {
		t.Fatalf("resp = %+v", resp)
	}
	if !strings.Contains(resp.Explain, "total_tokens=8") {
		t.Fatalf("explain = %q", resp.Explain)
	}
}

// A local configuration pointing at a nonexistent artifact must degrade to
// an error-marked response, never an error or panic.
func TestRunQueryLocalMissingArtifact(t *testing.T) {
	resp := testRouter().RunQuery(context.Background(), models.ProviderConfig{
		Name:   "broken local",
		Family: models.FamilyLocal,
		Path:   filepath.Join(t.TempDir(), "nope.gguf"),
	}, "q")

	if !resp.Failed() {
		t.Fatalf("resp = %+v, want contained failure", resp)
	}
	if resp.Explain == "" || !strings.Contains(resp.Explain, "class=missing-artifact") {
		t.Fatalf("explain = %q", resp.Explain)
	}
}

func TestRunQueryContainsBackendErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "quota exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	resp := testRouter().RunQuery(context.Background(), models.ProviderConfig{
		Name:    "throttled",
		Family:  models.FamilyOpenAI,
		BaseURL: srv.URL,
		APIKey:  "sk",
	}, "q")

	if !resp.Failed() {
		t.Fatalf("resp = %+v, want contained failure", resp)
	}
	if !strings.Contains(resp.Text, "429") {
		t.Fatalf("text = %q, want status in marker text", resp.Text)
	}
	if !strings.Contains(resp.Explain, "status=failed") {
		t.Fatalf("explain = %q", resp.Explain)
	}
}

func TestRunQueryContainsMissingCredential(t *testing.T) {
	resp := testRouter().RunQuery(context.Background(), models.ProviderConfig{
		Name:   "keyless",
		Family: models.FamilyAnthropic,
	}, "q")

	if !resp.Failed() || !strings.Contains(resp.Explain, "class=misconfigured") {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestRunQueryContainsPanickyAdapter(t *testing.T) {
	// An adapter returning a plain error must still produce a response pair.
	bad := adapterFunc(func(context.Context, models.ProviderConfig, string) (string, Usage, error) {
		return "", Usage{}, errors.New("internal adapter defect")
	})
	r := testRouter(WithAdapter(models.FamilyCustom, bad))

	resp := r.RunQuery(context.Background(), models.ProviderConfig{
		Name:   "defective",
		Family: models.FamilyCustom,
	}, "q")

	if !resp.Failed() || resp.Explain == "" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestRunQueryTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		io.WriteString(w, `{"response": "too late"}`)
	}))
	defer srv.Close()

	r := testRouter(WithTimeout(30 * time.Millisecond))
	resp := r.RunQuery(context.Background(), models.ProviderConfig{
		Name:    "slow",
		Family:  models.FamilyCustom,
		BaseURL: srv.URL,
	}, "q")

	if !resp.Failed() {
		t.Fatalf("resp = %+v, want contained timeout", resp)
	}
	if !strings.Contains(resp.Explain, "class=timeout") {
		t.Fatalf("explain = %q", resp.Explain)
	}
}

func TestResolveFamilyHeuristic(t *testing.T) {
	cases := []struct {
		name string
		cfg  models.ProviderConfig
		want models.Family
	}{
		{"explicit local", models.ProviderConfig{Family: models.FamilyLocal}, models.FamilyLocal},
		{"legacy api openai name", models.ProviderConfig{Family: models.FamilyAPI, Name: "My OpenAI proxy"}, models.FamilyOpenAI},
		{"legacy api claude url", models.ProviderConfig{Family: models.FamilyAPI, BaseURL: "https://claude.internal/v1"}, models.FamilyAnthropic},
		{"legacy api hf url", models.ProviderConfig{Family: models.FamilyAPI, BaseURL: "https://hf.co/x"}, models.FamilyHuggingFace},
		{"legacy api unknown", models.ProviderConfig{Family: models.FamilyAPI, Name: "mystery box"}, models.FamilyCustom},
		{"unrecognized value", models.ProviderConfig{Family: models.Family("weird")}, models.FamilyCustom},
	}
	for _, tc := range cases {
		if got := ResolveFamily(tc.cfg); got != tc.want {
			t.Errorf("%s: ResolveFamily = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestHeuristicRoutesLegacyAPIToOpenAI(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `{"choices": [{"message": {"content": "ok"}}]}`)
	}))
	defer srv.Close()

	resp := testRouter().RunQuery(context.Background(), models.ProviderConfig{
		Name:    "openai compatible gateway",
		Family:  models.FamilyAPI,
		BaseURL: srv.URL,
		APIKey:  "sk",
	}, "q")

	if resp.Failed() || hits != 1 {
		t.Fatalf("resp = %+v, hits = %d", resp, hits)
	}
}

func TestProbeReturnsUnderlyingError(t *testing.T) {
	r := testRouter()
	err := r.Probe(context.Background(), models.ProviderConfig{
		Name:   "broken local",
		Family: models.FamilyLocal,
		Path:   filepath.Join(t.TempDir(), "missing.bin"),
	})
	if !errors.Is(err, ErrMissingArtifact) {
		t.Fatalf("probe err = %v, want ErrMissingArtifact", err)
	}
}

func TestProbeSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"text": "ready"}`)
	}))
	defer srv.Close()

	err := testRouter().Probe(context.Background(), models.ProviderConfig{
		Name:    "pingable",
		Family:  models.FamilyCustom,
		BaseURL: srv.URL,
	})
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
}

// adapterFunc adapts a function to the Adapter interface for tests.
type adapterFunc func(ctx context.Context, cfg models.ProviderConfig, prompt string) (string, Usage, error)

func (f adapterFunc) Generate(ctx context.Context, cfg models.ProviderConfig, prompt string) (string, Usage, error) {
	return f(ctx, cfg, prompt)
}
