package models

// Family identifies which backend adapter a provider configuration
// dispatches to.
type Family string

// Provider families. FamilyAPI is a legacy value accepted on input;
// the router resolves it to a concrete family by inspecting the
// configuration's name and URL.
const (
	FamilyLocal       Family = "local"
	FamilyOpenAI      Family = "openai"
	FamilyAnthropic   Family = "anthropic"
	FamilyHuggingFace Family = "huggingface"
	FamilyCustom      Family = "custom"
	FamilyAPI         Family = "api"
)

// KnownFamily reports whether f is a value the router can dispatch.
func KnownFamily(f Family) bool {
	switch f {
	case FamilyLocal, FamilyOpenAI, FamilyAnthropic, FamilyHuggingFace, FamilyCustom, FamilyAPI:
		return true
	}
	return false
}

// ProviderConfig describes one configured language-model backend.
//
// Local providers use Path (a model artifact on disk); remote providers
// use BaseURL, APIKey, and Model. Exactly one configuration in a registry
// has IsDefault set at any time.
type ProviderConfig struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Family    Family `json:"family"`
	Path      string `json:"path,omitempty"`
	BaseURL   string `json:"base_url,omitempty"`
	APIKey    string `json:"api_key,omitempty"`
	Model     string `json:"model,omitempty"`
	IsDefault bool   `json:"is_default"`
}

// Redacted returns a copy safe for listing responses: the API key is
// masked down to its last four characters.
func (p ProviderConfig) Redacted() ProviderConfig {
	out := p
	if n := len(out.APIKey); n > 4 {
		out.APIKey = "****" + out.APIKey[n-4:]
	} else if n > 0 {
		out.APIKey = "****"
	}
	return out
}
