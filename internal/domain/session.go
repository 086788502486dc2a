package domain

import (
	"context"
	"iter"
)

// Session is one authenticated conversation with a provider's model.
type Session interface {
	// Chat sends message and yields response fragments in arrival order.
	// A transport failure is yielded as a non-nil error and ends the sequence.
	Chat(ctx context.Context, message string) iter.Seq2[string, error]

	// Reset clears the remote conversation memory. It is idempotent.
	Reset()
}

// SessionState is the connection state held for one console tab.
type SessionState struct {
	Provider *ProviderConfig
	Model    string
	Session  Session
}

// Connected reports whether a live session is attached.
func (s SessionState) Connected() bool {
	return s.Session != nil
}
