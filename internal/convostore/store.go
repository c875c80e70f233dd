// Package convostore is the durable per-channel conversation history (C3):
// append/retrieve/forget/stats, plus provider-backed token-bounded
// retrieval and summarization. Named convostore rather than "context" to
// avoid shadowing the stdlib context package in every importer.
package convostore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/a9lim/shannon/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Role is the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one persisted conversation turn.
type Message struct {
	ID        int64
	Transport string
	Channel   string
	UserID    string
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Stats summarizes a channel's history without loading every row's content.
type Stats struct {
	Count      int
	TotalChars int
}

// TokenCounter reports the provider's token count for a string. Nil means
// no LLM provider is configured, so retrieval skips the token-bounded fit
// entirely and returns raw history.
type TokenCounter func(text string) int

// Summarizer asks the provider to compress text into a short summary. A
// failure here (network, parse) makes Get fall back to simple trimming
// rather than propagating the error.
type Summarizer func(ctx context.Context, text string) (string, error)

// Store is the C3 context store, backed by one single-file SQLite database.
type Store struct {
	db            *sql.DB
	retrieveLimit int
	tokenBudget   int
	counter       TokenCounter
	summarize     Summarizer
}

// Options configures token-bounded retrieval. Counter and Summarize may
// both be nil, in which case Get always returns raw history.
type Options struct {
	RetrieveLimit int
	TokenBudget   int
	Counter       TokenCounter
	Summarize     Summarizer
}

// Open opens (creating if needed) the conversation database at path,
// applies pending migrations, and returns a ready Store.
func Open(path string, opts Options) (*Store, error) {
	db, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := storage.Migrate(db, sub); err != nil {
		db.Close()
		return nil, err
	}

	if opts.RetrieveLimit <= 0 {
		opts.RetrieveLimit = 50
	}
	if opts.TokenBudget <= 0 {
		opts.TokenBudget = 8000
	}

	return &Store{
		db:            db,
		retrieveLimit: opts.RetrieveLimit,
		tokenBudget:   opts.TokenBudget,
		counter:       opts.Counter,
		summarize:     opts.Summarize,
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Append inserts a new conversation turn.
func (s *Store) Append(ctx context.Context, transport, channel, userID string, role Role, content string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_messages (transport, channel, user_id, role, content)
		VALUES (?, ?, ?, ?, ?)
	`, transport, channel, userID, string(role), content)
	if err != nil {
		return fmt.Errorf("convostore: append: %w", err)
	}
	return nil
}

// Get returns the channel's recent history in ascending timestamp order.
// If a token counter is configured, the result passes through the
// token-bounded fit before being returned.
func (s *Store) Get(ctx context.Context, transport, channel string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, transport, channel, user_id, role, content, created_at
		FROM conversation_messages
		WHERE transport = ? AND channel = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, transport, channel, s.retrieveLimit)
	if err != nil {
		return nil, fmt.Errorf("convostore: get: %w", err)
	}
	defer rows.Close()

	var descending []Message
	for rows.Next() {
		var m Message
		var role, createdAt string
		if err := rows.Scan(&m.ID, &m.Transport, &m.Channel, &m.UserID, &role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("convostore: scan: %w", err)
		}
		m.Role = Role(role)
		m.CreatedAt, _ = time.Parse("2006-01-02T15:04:05.000Z", createdAt)
		descending = append(descending, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ascending := make([]Message, len(descending))
	for i, m := range descending {
		ascending[len(descending)-1-i] = m
	}

	if s.counter == nil {
		return ascending, nil
	}
	return tokenBoundedFit(ctx, ascending, s.tokenBudget, s.counter, s.summarize), nil
}

// Forget bulk-deletes a channel's history and returns the row count removed.
func (s *Store) Forget(ctx context.Context, transport, channel string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM conversation_messages WHERE transport = ? AND channel = ?
	`, transport, channel)
	if err != nil {
		return 0, fmt.Errorf("convostore: forget: %w", err)
	}
	return res.RowsAffected()
}

// Stats reports row count and total content length for a channel.
func (s *Store) Stats(ctx context.Context, transport, channel string) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(LENGTH(content)), 0)
		FROM conversation_messages WHERE transport = ? AND channel = ?
	`, transport, channel).Scan(&stats.Count, &stats.TotalChars)
	if err != nil {
		return Stats{}, fmt.Errorf("convostore: stats: %w", err)
	}
	return stats, nil
}

// Summarize loads the full (unbounded) history for a channel and asks the
// provider to summarize it. Returns ("", nil) if the channel has no
// history, or if no Summarizer is configured at all.
func (s *Store) Summarize(ctx context.Context, transport, channel string) (string, error) {
	if s.summarize == nil {
		return "", nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content FROM conversation_messages
		WHERE transport = ? AND channel = ?
		ORDER BY created_at ASC, id ASC
	`, transport, channel)
	if err != nil {
		return "", fmt.Errorf("convostore: summarize: load: %w", err)
	}
	defer rows.Close()

	var text string
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return "", fmt.Errorf("convostore: summarize: scan: %w", err)
		}
		text += role + ": " + content + "\n"
	}
	if text == "" {
		return "", nil
	}

	summary, err := s.summarize(ctx, text)
	if err != nil {
		return "", fmt.Errorf("convostore: summarize: provider: %w", err)
	}
	return summary, nil
}
