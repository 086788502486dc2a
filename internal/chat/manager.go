package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/hacxweb/internal/domain"
	"github.com/ashureev/hacxweb/internal/provider"
	"github.com/ashureev/hacxweb/internal/registry"
	"github.com/ashureev/hacxweb/internal/store"
)

const persistTimeout = 5 * time.Second

// Key identifies one console tab of one browser client.
type Key struct {
	ClientID  string
	SessionID string
}

func (k Key) valid() bool {
	return k.ClientID != "" && k.SessionID != ""
}

type entry struct {
	mu        sync.Mutex
	orch      *Orchestrator
	loaded    bool
	saved     uint64
	createdAt time.Time
	lastUsed  time.Time
}

// Manager owns one Orchestrator per Key and serialises access to it.
// A second Acquire for a key while the first is held fails with ErrBusy.
type Manager struct {
	registry  *registry.Registry
	connector provider.Connector
	repo      store.Repository
	opts      Options
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	entries map[Key]*entry
}

// NewManager creates a manager. repo may be nil, in which case transcripts
// live only in memory.
func NewManager(reg *registry.Registry, connector provider.Connector, repo store.Repository, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registry:  reg,
		connector: connector,
		repo:      repo,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
		entries:   make(map[Key]*entry),
	}
}

// Acquire locks the orchestrator for key, creating it on first use and
// restoring any persisted transcript. The returned release func must be
// called exactly once; it persists changes made while the lock was held.
func (m *Manager) Acquire(ctx context.Context, key Key) (*Orchestrator, func(), error) {
	if !key.valid() {
		return nil, nil, &ValidationError{Field: "session", Reason: "client and session id required"}
	}

	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		now := m.now()
		e = &entry{
			orch:      NewOrchestrator(m.registry, m.connector, m.opts),
			createdAt: now,
			lastUsed:  now,
		}
		m.entries[key] = e
	}
	// Locked under m.mu so EvictIdle never removes an entry that is in use.
	if !e.mu.TryLock() {
		m.mu.Unlock()
		return nil, nil, ErrBusy
	}
	m.mu.Unlock()

	if !e.loaded {
		m.restore(ctx, key, e)
		e.loaded = true
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.persist(key, e)
			m.mu.Lock()
			e.lastUsed = m.now()
			m.mu.Unlock()
			e.mu.Unlock()
		})
	}
	return e.orch, release, nil
}

func (m *Manager) restore(ctx context.Context, key Key, e *entry) {
	if m.repo == nil {
		return
	}
	conv, err := m.repo.GetConversation(ctx, key.ClientID, key.SessionID)
	if err != nil {
		m.logger.Warn("Failed to restore conversation", "client_id", key.ClientID, "session_id", key.SessionID, "error", err)
		return
	}
	if conv == nil {
		return
	}
	e.orch.Restore(conv.Transcript)
	e.saved = e.orch.Revision()
	e.createdAt = conv.CreatedAt
	m.logger.Debug("Conversation restored", "client_id", key.ClientID, "session_id", key.SessionID, "turns", conv.Transcript.Len())
}

func (m *Manager) persist(key Key, e *entry) {
	if m.repo == nil || e.orch.Revision() == e.saved {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var err error
	if e.orch.Transcript().Len() == 0 {
		err = m.repo.DeleteConversation(ctx, key.ClientID, key.SessionID)
	} else {
		err = m.repo.SaveConversation(ctx, m.conversation(key, e))
	}
	if err != nil {
		m.logger.Error("Failed to persist conversation", "client_id", key.ClientID, "session_id", key.SessionID, "error", err)
		return
	}
	e.saved = e.orch.Revision()
}

func (m *Manager) conversation(key Key, e *entry) *domain.Conversation {
	st := e.orch.SessionState()
	conv := &domain.Conversation{
		ClientID:   key.ClientID,
		SessionID:  key.SessionID,
		Model:      st.Model,
		Transcript: e.orch.Transcript(),
		CreatedAt:  e.createdAt,
		UpdatedAt:  m.now(),
	}
	if st.Provider != nil {
		conv.Provider = st.Provider.ID
	}
	return conv
}

// Conversation returns the stored form of key's conversation, including when
// it was started. The caller must hold key's orchestrator from Acquire.
func (m *Manager) Conversation(key Key) (*domain.Conversation, bool) {
	m.mu.Lock()
	e, ok := m.entries[key]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	return m.conversation(key, e), true
}

// Forget drops the in-memory orchestrator for key and its stored transcript.
func (m *Manager) Forget(ctx context.Context, key Key) error {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok {
		if !e.mu.TryLock() {
			m.mu.Unlock()
			return ErrBusy
		}
		delete(m.entries, key)
		e.mu.Unlock()
	}
	m.mu.Unlock()

	if m.repo == nil {
		return nil
	}
	return m.repo.DeleteConversation(ctx, key.ClientID, key.SessionID)
}

// EvictIdle removes orchestrators unused for longer than ttl and returns how
// many were removed. Entries currently acquired are skipped.
func (m *Manager) EvictIdle(ttl time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-ttl)
	evicted := 0
	for key, e := range m.entries {
		if e.lastUsed.After(cutoff) {
			continue
		}
		if !e.mu.TryLock() {
			continue
		}
		delete(m.entries, key)
		e.mu.Unlock()
		evicted++
	}
	return evicted
}

// Len reports the number of live orchestrators.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// IsBusy reports whether err came from a contended Acquire.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}
