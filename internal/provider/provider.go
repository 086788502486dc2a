// Package provider connects console sessions to remote model APIs.
//
// Each provider kind in the registry maps to one adapter that implements
// domain.Session. Adapters hold the conversation memory that Reset clears.
package provider

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/ashureev/hacxweb/internal/domain"
)

//go:embed prompts/system.md
var defaultSystemPrompt string

// ErrUnsupportedKind is returned for a provider kind without an adapter.
var ErrUnsupportedKind = errors.New("unsupported provider kind")

// Connector constructs sessions. Implementations must not retain credentials
// beyond the sessions they return.
type Connector interface {
	Connect(ctx context.Context, p domain.ProviderConfig, credential, model string) (domain.Session, error)
}

// Options tune how sessions are built.
type Options struct {
	// SystemPrompt seeds every conversation. Empty selects the built-in prompt.
	SystemPrompt string
	// Verify probes the provider during Connect so bad credentials fail early.
	Verify bool
	// HTTPClient overrides the transport used by adapters.
	HTTPClient *http.Client
}

// Factory is the Connector used in production.
type Factory struct {
	opts   Options
	logger *slog.Logger
}

// Ensure Factory implements Connector.
var _ Connector = (*Factory)(nil)

// NewFactory creates a Factory.
func NewFactory(opts Options, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(opts.SystemPrompt) == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	return &Factory{opts: opts, logger: logger}
}

// Connect builds a session for p using the adapter matching its kind.
func (f *Factory) Connect(ctx context.Context, p domain.ProviderConfig, credential, model string) (domain.Session, error) {
	switch p.Kind {
	case domain.KindOpenAI:
		s, err := NewOpenAISession(ctx, p, credential, model, f.opts, f.logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case domain.KindGemini:
		s, err := NewGeminiSession(ctx, p, credential, model, f.opts, f.logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, p.Kind)
	}
}

// LoadSystemPrompt reads a prompt file. An empty path returns the built-in prompt.
func LoadSystemPrompt(path string) (string, error) {
	if path == "" {
		return defaultSystemPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read system prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("system prompt %s is empty", path)
	}
	return prompt, nil
}
