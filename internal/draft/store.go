// Package draft owns local durable storage: the resumable session draft, the
// cached plan snapshot, the last commit result, and the offline session
// history. The engine sees only the Store port so it is testable without a
// real backend.
package draft

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Well-known keys in the drafts table.
const (
	KeySessionDraft = "session_draft"
	KeyCachedPlan   = "cached_plan"
	KeyLastResult   = "last_result"
)

// Store is the persistence port injected into the engine. Load returns
// (nil, nil) when the key is absent. Writes are last-write-wins.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// HistoryRecord is one committed session kept locally for offline review.
// Payload is the finalize payload as sent to the save collaborator.
type HistoryRecord struct {
	ID              uuid.UUID `json:"id"`
	RemoteSessionID string    `json:"remote_session_id,omitempty"`
	Title           string    `json:"title"`
	StartedAt       time.Time `json:"started_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Payload         []byte    `json:"payload"`
	CommittedAt     time.Time `json:"committed_at"`
}

// SQLiteStore implements Store and the history log on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at dir/liveset.db and applies
// migrations.
func Open(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, "liveset.db")

	if err := RunMigrations(path); err != nil {
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the value for key, or (nil, nil) when absent.
func (s *SQLiteStore) Load(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM drafts WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading draft %q: %w", key, err)
	}
	return value, nil
}

// Save upserts the value for key.
func (s *SQLiteStore) Save(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO drafts (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
		key, value)
	if err != nil {
		return fmt.Errorf("saving draft %q: %w", key, err)
	}
	return nil
}

// Delete removes the value for key. Deleting an absent key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting draft %q: %w", key, err)
	}
	return nil
}

// AppendHistory records a committed session.
func (s *SQLiteStore) AppendHistory(ctx context.Context, rec HistoryRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CommittedAt.IsZero() {
		rec.CommittedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_history (id, remote_session_id, title, started_at, duration_minutes, payload, committed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.RemoteSessionID, rec.Title, rec.StartedAt,
		rec.DurationMinutes, rec.Payload, rec.CommittedAt)
	if err != nil {
		return fmt.Errorf("appending history: %w", err)
	}
	return nil
}

// ListHistory returns the most recent committed sessions, newest first.
func (s *SQLiteStore) ListHistory(ctx context.Context, limit int) ([]HistoryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, remote_session_id, title, started_at, duration_minutes, payload, committed_at
		 FROM session_history ORDER BY committed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var result []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		var id string
		if err := rows.Scan(&id, &rec.RemoteSessionID, &rec.Title, &rec.StartedAt,
			&rec.DurationMinutes, &rec.Payload, &rec.CommittedAt); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		if parsed, err := uuid.Parse(id); err == nil {
			rec.ID = parsed
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}
