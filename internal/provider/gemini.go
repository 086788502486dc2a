package provider

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/ashureev/hacxweb/internal/domain"
	"google.golang.org/genai"
)

// GeminiSession talks to the Google Gemini API through a genai chat.
type GeminiSession struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
	logger *slog.Logger

	mu   sync.Mutex
	chat *genai.Chat
}

// NewGeminiSession creates a Gemini chat session. An empty p.BaseURL uses the
// public Gemini endpoint.
func NewGeminiSession(ctx context.Context, p domain.ProviderConfig, credential, model string, opts Options, logger *slog.Logger) (*GeminiSession, error) {
	if credential == "" {
		return nil, errors.New("api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     credential,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: p.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	if opts.Verify {
		if _, err := client.Models.Get(ctx, model, nil); err != nil {
			return nil, fmt.Errorf("verify gemini model %s: %w", model, err)
		}
	}

	var cfg *genai.GenerateContentConfig
	if opts.SystemPrompt != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(opts.SystemPrompt, genai.RoleUser),
		}
	}

	s := &GeminiSession{
		client: client,
		model:  model,
		config: cfg,
		logger: logger.With("provider", "gemini", "model", model),
	}
	chat, err := s.newChat(ctx)
	if err != nil {
		return nil, err
	}
	s.chat = chat
	s.logger.Info("Gemini session created")
	return s, nil
}

func (s *GeminiSession) newChat(ctx context.Context) (*genai.Chat, error) {
	chat, err := s.client.Chats.Create(ctx, s.model, s.config, nil)
	if err != nil {
		return nil, fmt.Errorf("create gemini chat: %w", err)
	}
	return chat, nil
}

// Chat streams the model's reply to message.
func (s *GeminiSession) Chat(ctx context.Context, message string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		s.mu.Lock()
		chat := s.chat
		s.mu.Unlock()

		for resp, err := range chat.SendMessageStream(ctx, genai.Part{Text: message}) {
			if err != nil {
				yield("", fmt.Errorf("gemini stream error: %w", err))
				return
			}
			if resp == nil {
				continue
			}
			if text := resp.Text(); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}

// Reset starts a fresh chat with no history.
func (s *GeminiSession) Reset() {
	chat, err := s.newChat(context.Background())
	if err != nil {
		s.logger.Warn("failed to reset gemini chat", "error", err)
		return
	}
	s.mu.Lock()
	s.chat = chat
	s.mu.Unlock()
	s.logger.Info("Session memory reset")
}
