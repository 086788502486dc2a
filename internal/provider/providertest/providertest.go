// Package providertest provides scripted sessions and connectors for tests.
package providertest

import (
	"context"
	"iter"
	"sync"

	"github.com/ashureev/hacxweb/internal/domain"
)

// Session replays Fragments for every Chat call, then fails with Err if set.
type Session struct {
	Fragments []string
	Err       error
	// Block, when non-nil, pauses Chat before the first fragment until it is
	// closed or the context ends.
	Block chan struct{}

	mu       sync.Mutex
	messages []string
	resets   int
}

// Ensure Session implements domain.Session.
var _ domain.Session = (*Session)(nil)

// Chat implements domain.Session.
func (s *Session) Chat(ctx context.Context, message string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		s.mu.Lock()
		s.messages = append(s.messages, message)
		s.mu.Unlock()

		if s.Block != nil {
			select {
			case <-s.Block:
			case <-ctx.Done():
				yield("", ctx.Err())
				return
			}
		}
		for _, f := range s.Fragments {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(f, nil) {
				return
			}
		}
		if s.Err != nil {
			yield("", s.Err)
		}
	}
}

// Reset implements domain.Session.
func (s *Session) Reset() {
	s.mu.Lock()
	s.resets++
	s.mu.Unlock()
}

// Resets reports how many times Reset was called.
func (s *Session) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

// Messages returns every message passed to Chat.
func (s *Session) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

// Connector hands out Session, or fails with Err.
type Connector struct {
	Session *Session
	Err     error

	mu    sync.Mutex
	calls []Call
}

// Call records one Connect invocation.
type Call struct {
	Provider   string
	Credential string
	Model      string
}

// Connect implements provider.Connector.
func (c *Connector) Connect(_ context.Context, p domain.ProviderConfig, credential, model string) (domain.Session, error) {
	c.mu.Lock()
	c.calls = append(c.calls, Call{Provider: p.ID, Credential: credential, Model: model})
	c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	if c.Session == nil {
		c.Session = &Session{}
	}
	return c.Session, nil
}

// Calls returns the recorded Connect invocations.
func (c *Connector) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}
