package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/hacxweb/internal/store"
)

// DefaultSweepInterval is used when StartSweeper is given a zero interval.
const DefaultSweepInterval = 5 * time.Minute

// StartSweeper runs a background goroutine that periodically drops idle
// orchestrators from m and idle transcripts from repo. It stops when ctx is
// cancelled; the returned channel is closed once it has.
func StartSweeper(ctx context.Context, m *Manager, repo store.Repository, ttl, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, m, repo, ttl)
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

func sweep(ctx context.Context, m *Manager, repo store.Repository, ttl time.Duration) {
	if n := m.EvictIdle(ttl); n > 0 {
		slog.Info("Session sweeper evicted idle tabs", "count", n, "remaining", m.Len())
	}
	if repo == nil {
		return
	}
	deleted, err := repo.DeleteIdleConversations(ctx, ttl)
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Session sweeper interrupted", "error", err)
			return
		}
		slog.Error("Session sweeper failed to delete idle conversations", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Session sweeper deleted idle conversations", "count", deleted)
	}
}
