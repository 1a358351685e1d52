// Package store persists the local automation activity history in a
// SQLite database. The history is advisory: it feeds the panel's
// recent-activity list and nothing else, so a write failure never
// fails the operation that produced the event.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/pr-overview/internal/model"
)

// Store defines the persistence interface for automation events.
type Store interface {
	RecordEvent(ctx context.Context, event model.AutomationEvent) error
	RecentEvents(ctx context.Context, issueKey string, limit int) ([]model.AutomationEvent, error)
	Close() error
}

// SQLiteStore implements Store using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// DefaultDBPath returns the default database location at
// ~/.config/proverview/history.db.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "history.db")
	}
	return filepath.Join(home, ".config", "proverview", "history.db")
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory %s: %w", dir, err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// RecordEvent appends one automation event. A missing ID or timestamp
// is filled in here so callers can hand over sparse events.
func (s *SQLiteStore) RecordEvent(ctx context.Context, event model.AutomationEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	const query = `
		INSERT INTO automation_events (
			id, issue_key, target, auto, outcome, detail, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(
		ctx, query,
		event.ID, event.IssueKey, event.Target, event.Auto,
		event.Outcome, event.Detail, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting automation event: %w", err)
	}
	return nil
}

// RecentEvents returns the newest events for an issue, newest first.
func (s *SQLiteStore) RecentEvents(
	ctx context.Context,
	issueKey string,
	limit int,
) ([]model.AutomationEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
		SELECT id, issue_key, target, auto, outcome, detail, created_at
		FROM automation_events
		WHERE issue_key = ?
		ORDER BY created_at DESC, id
		LIMIT ?`

	var events []model.AutomationEvent
	err := s.db.SelectContext(ctx, &events, query, issueKey, limit)
	if err != nil {
		return nil, fmt.Errorf("querying automation events: %w", err)
	}
	return events, nil
}
