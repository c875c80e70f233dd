// Package memory is the durable key/value fact store (C4): set, get,
// delete, substring search, category listing, clear, and a compact
// export rendering for the LLM's system prompt.
package memory

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/a9lim/shannon/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const timeLayout = "2006-01-02T15:04:05.000Z"

// Entry is one stored fact.
type Entry struct {
	Key       string
	Value     string
	Category  string
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the C4 memory store, backed by one single-file SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the memory database at path and applies
// pending migrations.
func Open(path string) (*Store, error) {
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
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Set upserts key, preserving the original created_at on update.
func (s *Store) Set(ctx context.Context, key, value, category, source string) error {
	if category == "" {
		category = "general"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_entries (key, value, category, source)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			category = excluded.category,
			source = excluded.source,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
	`, key, value, category, source)
	if err != nil {
		return fmt.Errorf("memory: set: %w", err)
	}
	return nil
}

// Get returns the entry for key, or (nil, nil) if it does not exist.
func (s *Store) Get(ctx context.Context, key string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, value, category, source, created_at, updated_at
		FROM memory_entries WHERE key = ?
	`, key)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: get: %w", err)
	}
	return entry, nil
}

// Delete removes key and reports whether it existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memory_entries WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("memory: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Search finds entries whose key or value contains substr (case-sensitive),
// most-recently-updated first.
func (s *Store) Search(ctx context.Context, substr string) ([]Entry, error) {
	pattern := "%" + escapeLike(substr) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, category, source, created_at, updated_at
		FROM memory_entries
		WHERE key LIKE ? ESCAPE '\' OR value LIKE ? ESCAPE '\'
		ORDER BY updated_at DESC
	`, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("memory: search: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListCategory returns every entry in category, most-recently-updated first.
func (s *Store) ListCategory(ctx context.Context, category string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, category, source, created_at, updated_at
		FROM memory_entries WHERE category = ?
		ORDER BY updated_at DESC
	`, category)
	if err != nil {
		return nil, fmt.Errorf("memory: list_category: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Clear deletes every entry and returns the count removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memory_entries`)
	if err != nil {
		return 0, fmt.Errorf("memory: clear: %w", err)
	}
	return res.RowsAffected()
}

// ExportContext renders "[category] key: value" lines ordered by category
// then key, stopping before the next line would push the rendering past
// maxTokens*4 characters (a coarse, provider-agnostic token estimate).
func (s *Store) ExportContext(ctx context.Context, maxTokens int) (string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, category, source, created_at, updated_at
		FROM memory_entries
		ORDER BY category ASC, key ASC
	`)
	if err != nil {
		return "", fmt.Errorf("memory: export_context: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return "", err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Category != entries[j].Category {
			return entries[i].Category < entries[j].Category
		}
		return entries[i].Key < entries[j].Key
	})

	limit := maxTokens * 4
	var b strings.Builder
	for _, e := range entries {
		line := fmt.Sprintf("[%s] %s: %s\n", e.Category, e.Key, e.Value)
		if b.Len()+len(line) > limit {
			break
		}
		b.WriteString(line)
	}
	return b.String(), nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	var created, updated string
	if err := row.Scan(&e.Key, &e.Value, &e.Category, &e.Source, &created, &updated); err != nil {
		return nil, err
	}
	e.CreatedAt, _ = time.Parse(timeLayout, created)
	e.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("memory: scan: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
