// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/hacxweb/internal/domain"
)

// Repository persists console transcripts per client and tab session.
type Repository interface {
	// GetConversation returns the stored conversation, or nil when none exists.
	GetConversation(ctx context.Context, clientID, sessionID string) (*domain.Conversation, error)

	// SaveConversation creates or replaces a conversation.
	SaveConversation(ctx context.Context, conv *domain.Conversation) error

	// DeleteConversation removes a conversation. Missing rows are not an error.
	DeleteConversation(ctx context.Context, clientID, sessionID string) error

	// DeleteIdleConversations removes conversations not updated within ttl.
	DeleteIdleConversations(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
