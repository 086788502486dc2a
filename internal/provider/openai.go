package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/ashureev/hacxweb/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAISession talks to any OpenAI-compatible chat completions endpoint.
type OpenAISession struct {
	client       *openai.Client
	model        string
	systemPrompt string
	logger       *slog.Logger

	mu         sync.Mutex
	history    []openai.ChatCompletionMessage
	generation int // bumped by Reset so in-flight replies are not committed
}

// NewOpenAISession creates a session against p.BaseURL.
func NewOpenAISession(ctx context.Context, p domain.ProviderConfig, credential, model string, opts Options, logger *slog.Logger) (*OpenAISession, error) {
	if credential == "" {
		return nil, errors.New("api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg := openai.DefaultConfig(credential)
	if p.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(p.BaseURL, "/")
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	client := openai.NewClientWithConfig(cfg)

	if opts.Verify {
		if _, err := client.ListModels(ctx); err != nil {
			return nil, fmt.Errorf("verify %s credentials: %w", p.ID, err)
		}
	}

	s := &OpenAISession{
		client:       client,
		model:        model,
		systemPrompt: opts.SystemPrompt,
		logger:       logger.With("provider", p.ID, "model", model),
	}
	s.history = s.initialHistory()
	s.logger.Info("OpenAI-compatible session created", "base_url", cfg.BaseURL)
	return s, nil
}

func (s *OpenAISession) initialHistory() []openai.ChatCompletionMessage {
	if s.systemPrompt == "" {
		return nil
	}
	return []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: s.systemPrompt}}
}

// Chat streams a completion for message. The exchange is added to the
// history only when the stream finishes cleanly.
func (s *OpenAISession) Chat(ctx context.Context, message string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		s.mu.Lock()
		gen := s.generation
		messages := append(slices.Clone(s.history), openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: message,
		})
		s.mu.Unlock()

		stream, err := s.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:    s.model,
			Messages: messages,
			Stream:   true,
		})
		if err != nil {
			yield("", fmt.Errorf("chat request failed: %w", err))
			return
		}
		defer func() {
			if closeErr := stream.Close(); closeErr != nil {
				s.logger.Debug("failed to close completion stream", "error", closeErr)
			}
		}()

		var reply strings.Builder
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				s.commit(gen, message, reply.String())
				return
			}
			if err != nil {
				yield("", fmt.Errorf("chat stream error: %w", err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			reply.WriteString(delta)
			if !yield(delta, nil) {
				return
			}
		}
	}
}

func (s *OpenAISession) commit(gen int, message, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	s.history = append(s.history,
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply},
	)
}

// Reset drops the conversation history, keeping the system prompt.
func (s *OpenAISession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = s.initialHistory()
	s.generation++
	s.logger.Info("Session memory reset")
}

// HistoryLen reports how many messages, including the system prompt, are kept.
func (s *OpenAISession) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}
