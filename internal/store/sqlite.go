package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/hacxweb/internal/domain"
	"github.com/ashureev/hacxweb/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	writeAttempts  = 3
	writeBaseDelay = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // serialises writers to avoid SQLITE_BUSY
}

// Ensure SQLiteStore implements Repository.
var _ Repository = (*SQLiteStore)(nil)

// NewSQLite creates a new SQLite-backed repository. The special path
// ":memory:" keeps everything in process memory.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS transcripts (
		client_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		provider TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		turns_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (client_id, session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_transcripts_updated ON transcripts(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetConversation retrieves a conversation by client and session.
func (s *SQLiteStore) GetConversation(ctx context.Context, clientID, sessionID string) (*domain.Conversation, error) {
	query := `
		SELECT client_id, session_id, provider, model, turns_json, created_at, updated_at
		FROM transcripts WHERE client_id = ? AND session_id = ?`

	var conv domain.Conversation
	var turnsJSON string
	var createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, clientID, sessionID).Scan(
		&conv.ClientID, &conv.SessionID, &conv.Provider, &conv.Model,
		&turnsJSON, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}

	if err := json.Unmarshal([]byte(turnsJSON), &conv.Transcript); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	conv.CreatedAt = time.Unix(createdAt, 0)
	conv.UpdatedAt = time.Unix(updatedAt, 0)
	return &conv, nil
}

// SaveConversation creates or updates a conversation. The original creation
// time is kept on update.
func (s *SQLiteStore) SaveConversation(ctx context.Context, conv *domain.Conversation) error {
	turnsJSON, err := json.Marshal(conv.Transcript)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}

	now := time.Now()
	createdAt := conv.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := conv.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	query := `
	INSERT INTO transcripts (client_id, session_id, provider, model, turns_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(client_id, session_id) DO UPDATE SET
		provider = excluded.provider,
		model = excluded.model,
		turns_json = excluded.turns_json,
		updated_at = excluded.updated_at`

	return s.write(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query,
			conv.ClientID, conv.SessionID, conv.Provider, conv.Model,
			string(turnsJSON), createdAt.Unix(), updatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("upsert conversation: %w", err)
		}
		return nil
	})
}

// DeleteConversation removes a conversation.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, clientID, sessionID string) error {
	return s.write(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM transcripts WHERE client_id = ? AND session_id = ?`, clientID, sessionID)
		if err != nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
		return nil
	})
}

// DeleteIdleConversations removes conversations older than ttl.
func (s *SQLiteStore) DeleteIdleConversations(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	var deleted int64
	err := s.write(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM transcripts WHERE updated_at < ?`, threshold)
		if err != nil {
			return fmt.Errorf("delete idle conversations: %w", err)
		}
		deleted, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return nil
	})
	return deleted, err
}

func (s *SQLiteStore) write(ctx context.Context, op func(context.Context) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return shared.RetryOnConflict(ctx, writeAttempts, writeBaseDelay, op)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
