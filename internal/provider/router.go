package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/tiwaz/internal/models"
)

// ErrorMarker prefixes the text of every contained failure. Callers that
// loop over providers check for it instead of handling errors.
const ErrorMarker = "[provider-error]"

// DefaultTimeout bounds one backend call. Remote generation latency
// dominates, so this is generous.
const DefaultTimeout = 45 * time.Second

// Response is the normalized result of a routed query. Failures are
// represented in Text, never as an error.
type Response struct {
	Text    string `json:"text"`
	Explain string `json:"explain"`
}

// Failed reports whether the response carries a contained failure.
func (r Response) Failed() bool {
	return strings.HasPrefix(r.Text, ErrorMarker)
}

// Router dispatches prompts to family adapters. Safe for concurrent use;
// adapters share one HTTP client and hold no per-call state.
type Router struct {
	adapters map[models.Family]Adapter
	client   *http.Client
	timeout  time.Duration
	log      *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) RouterOption {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithHTTPClient sets the client shared by all adapters.
func WithHTTPClient(c *http.Client) RouterOption {
	return func(r *Router) { r.client = c }
}

// WithLogger sets the router's logger.
func WithLogger(l *slog.Logger) RouterOption {
	return func(r *Router) { r.log = l }
}

// WithAdapter installs or replaces the adapter for a family.
func WithAdapter(family models.Family, a Adapter) RouterOption {
	return func(r *Router) { r.adapters[family] = a }
}

// NewRouter builds a router with one adapter per known family.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		adapters: make(map[models.Family]Adapter),
		client:   &http.Client{},
		timeout:  DefaultTimeout,
		log:      slog.Default(),
	}
	// Options run before the default adapters are built so they capture
	// the final client; WithAdapter overrides survive the fill below.
	for _, opt := range opts {
		opt(r)
	}
	defaults := map[models.Family]Adapter{
		models.FamilyLocal:       &localAdapter{client: r.client},
		models.FamilyOpenAI:      &openaiAdapter{client: r.client},
		models.FamilyAnthropic:   &anthropicAdapter{client: r.client},
		models.FamilyHuggingFace: &huggingfaceAdapter{client: r.client},
		models.FamilyCustom:      &customAdapter{client: r.client},
	}
	for family, adapter := range defaults {
		if _, overridden := r.adapters[family]; !overridden {
			r.adapters[family] = adapter
		}
	}
	return r
}

// ResolveFamily maps a configuration to the adapter family that will
// serve it. Known families map directly; the legacy "api" family and
// unrecognized values fall back to guessing from the name and URL. The
// guess is a documented heuristic, not a guarantee.
func ResolveFamily(cfg models.ProviderConfig) models.Family {
	switch cfg.Family {
	case models.FamilyLocal, models.FamilyOpenAI, models.FamilyAnthropic,
		models.FamilyHuggingFace, models.FamilyCustom:
		return cfg.Family
	}
	hint := strings.ToLower(cfg.Name + " " + cfg.BaseURL)
	switch {
	case strings.Contains(hint, "openai"):
		return models.FamilyOpenAI
	case strings.Contains(hint, "anthropic"), strings.Contains(hint, "claude"):
		return models.FamilyAnthropic
	case strings.Contains(hint, "huggingface"), strings.Contains(hint, "hf.co"):
		return models.FamilyHuggingFace
	default:
		return models.FamilyCustom
	}
}

// RunQuery routes one prompt to the configuration's backend and returns
// a normalized response. Every failure, from a missing credential to a
// timeout, is converted into an error-marked Text with a neutral Explain;
// RunQuery has no error to return, so nothing can cross this boundary.
func (r *Router) RunQuery(ctx context.Context, cfg models.ProviderConfig, prompt string) Response {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	family := ResolveFamily(cfg)
	adapter, ok := r.adapters[family]
	if !ok {
		return r.contained(cfg, family, fmt.Errorf("%q: %w", cfg.Family, ErrUnknownFamily))
	}
	text, usage, err := adapter.Generate(ctx, cfg, prompt)
	if err != nil {
		return r.contained(cfg, family, err)
	}
	return Response{Text: text, Explain: successExplain(cfg, usage)}
}

// probePrompt keeps reachability checks cheap on metered backends.
const probePrompt = "Reply with the single word: ready"

// Probe verifies a configuration can serve a query. Unlike RunQuery it
// returns the underlying error; operators probing a config want to see
// what is wrong with it.
func (r *Router) Probe(ctx context.Context, cfg models.ProviderConfig) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	family := ResolveFamily(cfg)
	adapter, ok := r.adapters[family]
	if !ok {
		return fmt.Errorf("provider: probe %s: %w", cfg.Name, ErrUnknownFamily)
	}
	if _, _, err := adapter.Generate(ctx, cfg, probePrompt); err != nil {
		return fmt.Errorf("provider: probe %s: %w", cfg.Name, err)
	}
	return nil
}

func (r *Router) contained(cfg models.ProviderConfig, family models.Family, err error) Response {
	class := failureClass(err)
	r.log.Warn("provider call contained",
		slog.String("provider", cfg.Name),
		slog.String("family", string(family)),
		slog.String("class", class),
		slog.String("error", err.Error()))
	return Response{
		Text:    ErrorMarker + " " + err.Error(),
		Explain: fmt.Sprintf("provider=%s family=%s status=failed class=%s", cfg.Name, family, class),
	}
}

func failureClass(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrMissingArtifact):
		return "missing-artifact"
	case errors.Is(err, ErrMisconfigured):
		return "misconfigured"
	case errors.Is(err, ErrUnknownFamily):
		return "unknown-family"
	case errors.Is(err, ErrEmptyCompletion):
		return "bad-response"
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return "network"
	}
	return "backend"
}

func successExplain(cfg models.ProviderConfig, usage Usage) string {
	model := cfg.Model
	if model == "" && cfg.Path != "" {
		model = filepath.Base(cfg.Path)
	}
	if model == "" {
		model = cfg.Name
	}
	if !usage.reported() {
		return fmt.Sprintf("model=%s usage=unreported", model)
	}
	return fmt.Sprintf("model=%s prompt_tokens=%d completion_tokens=%d total_tokens=%d",
		model, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
}
