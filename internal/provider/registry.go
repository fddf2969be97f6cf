package provider

import (
	"errors"
	"fmt"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/tiwaz/internal/apperr"
	"github.com/starford/tiwaz/internal/models"
)

// Registry owns the set of provider configurations and the one-default
// invariant: at most one configuration has IsDefault set, and whenever
// the set is non-empty exactly one does.
type Registry struct {
	mu      sync.RWMutex
	configs []models.ProviderConfig
	newID   func() string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{newID: uuid.NewString}
}

// Add validates and stores a configuration, assigning an ID when absent.
// The first configuration added becomes the default; a later one marked
// IsDefault displaces the current default atomically.
func (r *Registry) Add(cfg models.ProviderConfig) (models.ProviderConfig, error) {
	if err := validateConfig(cfg); err != nil {
		return models.ProviderConfig{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg.ID == "" {
		cfg.ID = r.newID()
	}
	for _, existing := range r.configs {
		if existing.ID == cfg.ID {
			return models.ProviderConfig{}, fmt.Errorf("provider: add %s: duplicate id", cfg.ID)
		}
	}
	if len(r.configs) == 0 {
		cfg.IsDefault = true
	} else if cfg.IsDefault {
		for i := range r.configs {
			r.configs[i].IsDefault = false
		}
	}
	r.configs = append(r.configs, cfg)
	return cfg, nil
}

// Get returns the configuration with the given ID.
func (r *Registry) Get(id string) (models.ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, cfg := range r.configs {
		if cfg.ID == id {
			return cfg, nil
		}
	}
	return models.ProviderConfig{}, fmt.Errorf("provider: get %s: %w", id, apperr.ErrNotFound)
}

// Remove deletes a configuration and reports whether it existed. Removing
// the default promotes the first remaining configuration.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, cfg := range r.configs {
		if cfg.ID != id {
			continue
		}
		wasDefault := cfg.IsDefault
		r.configs = append(r.configs[:i:i], r.configs[i+1:]...)
		if wasDefault && len(r.configs) > 0 {
			r.configs[0].IsDefault = true
		}
		return true
	}
	return false
}

// List returns the configurations in insertion order.
func (r *Registry) List() []models.ProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.ProviderConfig(nil), r.configs...)
}

// Default returns the default configuration, or apperr.ErrNotFound when
// the registry is empty.
func (r *Registry) Default() (models.ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, cfg := range r.configs {
		if cfg.IsDefault {
			return cfg, nil
		}
	}
	return models.ProviderConfig{}, fmt.Errorf("provider: no default configured: %w", apperr.ErrNotFound)
}

// SetDefault makes the named configuration the only default. Clearing and
// setting happen under one lock so no reader ever observes zero or two
// defaults.
func (r *Registry) SetDefault(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, cfg := range r.configs {
		if cfg.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("provider: set default %s: %w", id, apperr.ErrNotFound)
	}
	for i := range r.configs {
		r.configs[i].IsDefault = i == idx
	}
	return nil
}

// Export copies the configuration set for snapshotting.
func (r *Registry) Export() []models.ProviderConfig {
	return r.List()
}

// Replace swaps in a full configuration set, as when restoring. The input
// is checked before any state changes: IDs must be present and unique and
// at most one configuration may be flagged default. A non-empty set with
// no flagged default promotes its first entry.
func (r *Registry) Replace(configs []models.ProviderConfig) error {
	next := append([]models.ProviderConfig(nil), configs...)
	seen := make(map[string]struct{}, len(next))
	defaults := 0
	for i, cfg := range next {
		if cfg.ID == "" {
			return fmt.Errorf("provider: replace: config %d (%s): missing id", i, cfg.Name)
		}
		if _, dup := seen[cfg.ID]; dup {
			return fmt.Errorf("provider: replace: duplicate id %s", cfg.ID)
		}
		seen[cfg.ID] = struct{}{}
		if cfg.IsDefault {
			defaults++
		}
	}
	if defaults > 1 {
		return errors.New("provider: replace: multiple defaults flagged")
	}
	if defaults == 0 && len(next) > 0 {
		next[0].IsDefault = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = next
	return nil
}

func validateConfig(cfg models.ProviderConfig) error {
	err := validation.ValidateStruct(&cfg,
		validation.Field(&cfg.Name, validation.Required),
		validation.Field(&cfg.Family, validation.Required, validation.By(func(v interface{}) error {
			if f, ok := v.(models.Family); !ok || !models.KnownFamily(f) {
				return errors.New("must be a known provider family")
			}
			return nil
		})),
	)
	if err == nil {
		return nil
	}
	fields := make(map[string]string)
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for name, ferr := range verrs {
			fields[name] = ferr.Error()
		}
	} else {
		fields["config"] = err.Error()
	}
	return &apperr.ValidationError{Kind: "provider", Fields: fields}
}
