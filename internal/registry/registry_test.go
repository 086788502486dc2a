package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ashureev/hacxweb/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoProviders = `
zeta:
  display_name: Zeta
  base_url: http://zeta.local/v1
  models:
    - {name: z-large, alias: Zeta Large}
    - {name: z-small, alias: Zeta Small}
  default_model: z-small
alpha:
  kind: gemini
  models:
    - {name: a-1, alias: Alpha One}
  default_model: a-1
`

func TestLoadPreservesDocumentOrder(t *testing.T) {
	t.Parallel()

	reg, err := Load([]byte(twoProviders))
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha"}, reg.IDs())

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "zeta", list[0].ID)
	assert.Equal(t, domain.KindOpenAI, list[0].Kind, "kind defaults to openai")
	assert.Equal(t, "ALPHA", list[1].DisplayName, "display name defaults to upper-cased id")
	assert.Equal(t, domain.KindGemini, list[1].Kind)
}

func TestLoadAcceptsJSON(t *testing.T) {
	t.Parallel()

	doc := `{"b": {"display_name": "B", "models": [{"name": "m", "alias": "M"}], "default_model": "m"},
	         "a": {"display_name": "A", "models": [{"name": "n", "alias": "N"}], "default_model": "n"}}`
	reg, err := Load([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, reg.IDs())
}

func TestLoadRejectsMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: ""},
		{name: "sequence root", doc: "- a\n- b\n"},
		{name: "bad default model", doc: "p:\n  models: [{name: m, alias: M}]\n  default_model: other\n"},
		{name: "no models", doc: "p:\n  models: []\n  default_model: m\n"},
		{name: "blank model name", doc: "p:\n  models: [{name: '', alias: M}]\n  default_model: ''\n"},
		{name: "unknown kind", doc: "p:\n  kind: carrier-pigeon\n  models: [{name: m, alias: M}]\n  default_model: m\n"},
		{name: "duplicate id", doc: "p:\n  models: [{name: m, alias: M}]\n  default_model: m\np:\n  models: [{name: m, alias: M}]\n  default_model: m\n"},
		{name: "not yaml", doc: "p: [unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load([]byte(tt.doc))
			require.Error(t, err)
			var cfgErr *ConfigError
			assert.True(t, errors.As(err, &cfgErr), "want *ConfigError, got %T", err)
		})
	}
}

func TestGetUnknownProvider(t *testing.T) {
	t.Parallel()

	reg, err := Load([]byte(twoProviders))
	require.NoError(t, err)

	_, err = reg.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = reg.Models("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestModelsKeepsRegistryOrder(t *testing.T) {
	t.Parallel()

	reg, err := Load([]byte(twoProviders))
	require.NoError(t, err)

	names, def, err := reg.Models("zeta")
	require.NoError(t, err)
	assert.Equal(t, []string{"z-large", "z-small"}, names)
	assert.Equal(t, "z-small", def)
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	t.Parallel()

	reg, err := Load([]byte(twoProviders))
	require.NoError(t, err)

	p, err := reg.Get("zeta")
	require.NoError(t, err)
	p.Models[0].Name = "tampered"

	again, err := reg.Get("zeta")
	require.NoError(t, err)
	assert.Equal(t, "z-large", again.Models[0].Name)
}

func TestDefaultRegistryLoads(t *testing.T) {
	t.Parallel()

	reg, err := Default()
	require.NoError(t, err)
	assert.NotEmpty(t, reg.List())
	for _, p := range reg.List() {
		assert.True(t, p.HasModel(p.DefaultModel), "provider %s", p.ID)
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(twoProviders), 0o600))

	reg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, reg.List(), 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
