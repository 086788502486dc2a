package domain

// ProviderKind selects the wire adapter used for a provider.
type ProviderKind string

const (
	// KindOpenAI covers any endpoint speaking the OpenAI chat completions API.
	KindOpenAI ProviderKind = "openai"
	// KindGemini is the Google Gemini API.
	KindGemini ProviderKind = "gemini"
)

// Valid reports whether k names a supported adapter.
func (k ProviderKind) Valid() bool {
	return k == KindOpenAI || k == KindGemini
}

// ModelConfig is one selectable model of a provider.
type ModelConfig struct {
	Name  string `json:"name" yaml:"name"`   // wire identifier
	Alias string `json:"alias" yaml:"alias"` // human label
}

// ProviderConfig describes a named AI service and its models.
type ProviderConfig struct {
	ID           string        `json:"id" yaml:"-"`
	DisplayName  string        `json:"display_name" yaml:"display_name"`
	Kind         ProviderKind  `json:"kind" yaml:"kind"`
	BaseURL      string        `json:"base_url,omitempty" yaml:"base_url"`
	Models       []ModelConfig `json:"models" yaml:"models"`
	DefaultModel string        `json:"default_model" yaml:"default_model"`
}

// ModelNames returns the wire identifiers in registry order.
func (p ProviderConfig) ModelNames() []string {
	names := make([]string, 0, len(p.Models))
	for _, m := range p.Models {
		names = append(names, m.Name)
	}
	return names
}

// HasModel reports whether name is one of the provider's models.
func (p ProviderConfig) HasModel(name string) bool {
	for _, m := range p.Models {
		if m.Name == name {
			return true
		}
	}
	return false
}
