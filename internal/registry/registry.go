// Package registry loads the provider registry document.
//
// The registry is built once at startup and passed explicitly to the
// components that need it; it is read-only after Load returns.
package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/ashureev/hacxweb/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed providers.yaml
var defaultDocument []byte

// ErrNotFound is returned when a provider id is not registered.
var ErrNotFound = errors.New("provider not found")

// ConfigError reports a malformed registry document.
type ConfigError struct {
	Provider string // empty for document-level problems
	Reason   string
	Err      error
}

func (e *ConfigError) Error() string {
	msg := "registry config error"
	if e.Provider != "" {
		msg += " [" + e.Provider + "]"
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Registry is an ordered, immutable set of providers.
type Registry struct {
	order     []string
	providers map[string]domain.ProviderConfig
}

// Default loads the registry document embedded in the binary.
func Default() (*Registry, error) {
	return Load(defaultDocument)
}

// LoadFile reads and loads a registry document from disk. YAML and JSON are
// both accepted.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}
	return Load(data)
}

// Load parses a registry document shaped as
// {provider_id: {display_name, kind, base_url, models: [{name, alias}], default_model}}.
// Document order of provider ids is kept.
func Load(data []byte) (*Registry, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ConfigError{Reason: "parse document", Err: err}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, &ConfigError{Reason: "document is empty"}
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, &ConfigError{Reason: "document must be a mapping of provider ids"}
	}

	reg := &Registry{providers: make(map[string]domain.ProviderConfig)}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		id := strings.TrimSpace(doc.Content[i].Value)
		if id == "" {
			return nil, &ConfigError{Reason: "provider id cannot be empty"}
		}
		if _, dup := reg.providers[id]; dup {
			return nil, &ConfigError{Provider: id, Reason: "duplicate provider id"}
		}

		var p domain.ProviderConfig
		if err := doc.Content[i+1].Decode(&p); err != nil {
			return nil, &ConfigError{Provider: id, Reason: "decode provider", Err: err}
		}
		p.ID = id
		if err := normalize(&p); err != nil {
			return nil, err
		}

		reg.order = append(reg.order, id)
		reg.providers[id] = p
	}
	if len(reg.order) == 0 {
		return nil, &ConfigError{Reason: "no providers configured"}
	}
	return reg, nil
}

func normalize(p *domain.ProviderConfig) error {
	if p.DisplayName == "" {
		p.DisplayName = strings.ToUpper(p.ID)
	}
	if p.Kind == "" {
		p.Kind = domain.KindOpenAI
	}
	if !p.Kind.Valid() {
		return &ConfigError{Provider: p.ID, Reason: fmt.Sprintf("unknown kind %q", p.Kind)}
	}
	if len(p.Models) == 0 {
		return &ConfigError{Provider: p.ID, Reason: "models cannot be empty"}
	}
	for _, m := range p.Models {
		if strings.TrimSpace(m.Name) == "" {
			return &ConfigError{Provider: p.ID, Reason: "model name cannot be empty"}
		}
	}
	if !p.HasModel(p.DefaultModel) {
		return &ConfigError{Provider: p.ID, Reason: fmt.Sprintf("default_model %q is not one of the configured models", p.DefaultModel)}
	}
	return nil
}

// List returns all providers in document order.
func (r *Registry) List() []domain.ProviderConfig {
	out := make([]domain.ProviderConfig, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, clone(r.providers[id]))
	}
	return out
}

// IDs returns provider ids in document order.
func (r *Registry) IDs() []string {
	return slices.Clone(r.order)
}

// Get returns the provider registered under id.
func (r *Registry) Get(id string) (domain.ProviderConfig, error) {
	p, ok := r.providers[id]
	if !ok {
		return domain.ProviderConfig{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return clone(p), nil
}

// Models returns the selectable model names and the default for a provider.
func (r *Registry) Models(id string) ([]string, string, error) {
	p, err := r.Get(id)
	if err != nil {
		return nil, "", err
	}
	return p.ModelNames(), p.DefaultModel, nil
}

func clone(p domain.ProviderConfig) domain.ProviderConfig {
	p.Models = slices.Clone(p.Models)
	return p
}
