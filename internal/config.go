package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tiwaz/internal/models"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Data      DataConfig        `yaml:"data"`
	Auth      AuthConfig        `yaml:"auth"`
	Ethics    EthicsConfig      `yaml:"ethics"`
	Providers []ProviderSeed    `yaml:"providers"`
	Profile   ProfileConfig     `yaml:"profile"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Data.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	for i := range c.Providers {
		if err := c.Providers[i].Validate(); err != nil {
			return fmt.Errorf("providers[%d]: %w", i, err)
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// DataConfig holds the on-disk locations of the practice state.
type DataConfig struct {
	SnapshotPath string `yaml:"snapshot_path"`
	AuditPath    string `yaml:"audit_path"`
	Watch        bool   `yaml:"watch"`
}

// Validate validates the data configuration.
func (c *DataConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SnapshotPath, validation.Required),
		validation.Field(&c.AuditPath, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// EthicsConfig tunes the compliance rule set.
//
// SensitivePatterns replaces the builtin sensitive-term list when set.
// Confirmation is the startup state of the interactive double-check on
// warned actions; the runtime toggle lives under /api/settings/confirmation.
type EthicsConfig struct {
	SensitivePatterns []string `yaml:"sensitive_patterns"`
	Confirmation      bool     `yaml:"confirmation"`
}

// ProviderSeed is a provider configuration registered at startup. The
// first seed becomes the default unless a later one sets default: true.
type ProviderSeed struct {
	Name    string `yaml:"name"`
	Family  string `yaml:"family"`
	Path    string `yaml:"path"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Default bool   `yaml:"default"`
}

// Validate validates the provider seed.
func (c *ProviderSeed) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Family, validation.Required),
	); err != nil {
		return err
	}
	if !models.KnownFamily(models.Family(c.Family)) {
		return fmt.Errorf("unknown provider family %q", c.Family)
	}
	return nil
}

// Config converts the seed into a registry entry.
func (c ProviderSeed) Config() models.ProviderConfig {
	return models.ProviderConfig{
		Name:    c.Name,
		Family:  models.Family(c.Family),
		Path:    c.Path,
		BaseURL: c.BaseURL,
		APIKey:  c.APIKey,
		Model:   c.Model,
	}
}

// ProfileConfig describes the practice the compliance rules evaluate
// against: who the user is and where they are authorized.
type ProfileConfig struct {
	UserRole      string   `yaml:"user_role"`
	Jurisdictions []string `yaml:"jurisdictions"`
	AreasOfLaw    []string `yaml:"areas_of_law"`
	Skills        []string `yaml:"skills"`
}

// Model converts the section into the runtime profile.
func (c ProfileConfig) Model() models.Profile {
	return models.Profile{
		UserRole:      c.UserRole,
		Jurisdictions: c.Jurisdictions,
		AreasOfLaw:    c.AreasOfLaw,
		Skills:        c.Skills,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Data: DataConfig{
			SnapshotPath: "./data/practice.json",
			AuditPath:    "./data/audit.db",
			Watch:        true,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Profile: ProfileConfig{
			UserRole:      "supervising-attorney",
			Jurisdictions: []string{"Tennessee"},
			AreasOfLaw:    []string{"Criminal Law"},
		},
	}
}
