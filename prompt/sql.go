package prompt

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// SQLiteStore is a Store backed by a *sql.DB opened against SQLite — it
// creates its own `prompts` and `prompt_versions` tables, typically in
// the same database file a SQLiteCheckpointer uses, so a single file
// holds both checkpoints and prompt history.
type SQLiteStore struct {
	db       *sql.DB
	defaults map[string]string
}

// NewSQLiteStore wraps db, seeds the given defaults, and ensures the
// prompt tables exist.
func NewSQLiteStore(ctx context.Context, db *sql.DB, defaults map[string]string) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, defaults: make(map[string]string, len(defaults))}
	for k, v := range defaults {
		s.defaults[k] = v
	}
	if err := s.createSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	const promptsTable = `
		CREATE TABLE IF NOT EXISTS prompts (
			prompt_id       TEXT PRIMARY KEY,
			current_version TEXT
		)
	`
	const versionsTable = `
		CREATE TABLE IF NOT EXISTS prompt_versions (
			prompt_id      TEXT NOT NULL,
			version_id     TEXT NOT NULL,
			version_number INTEGER NOT NULL,
			content        TEXT NOT NULL,
			change_note    TEXT,
			created_at     TIMESTAMP NOT NULL,
			PRIMARY KEY (prompt_id, version_id)
		)
	`
	if _, err := s.db.ExecContext(ctx, promptsTable); err != nil {
		return fmt.Errorf("prompt: create prompts table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, versionsTable); err != nil {
		return fmt.Errorf("prompt: create prompt_versions table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetDefault(_ context.Context, promptID string) (string, error) {
	content, ok := s.defaults[promptID]
	if !ok {
		return "", ErrNotFound
	}
	return content, nil
}

func (s *SQLiteStore) GetVersion(ctx context.Context, promptID, versionID string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM prompt_versions WHERE prompt_id = ? AND version_id = ?`,
		promptID, versionID,
	).Scan(&content)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("prompt: get version: %w", err)
	}
	return content, nil
}

func (s *SQLiteStore) CurrentVersion(ctx context.Context, promptID string) (string, error) {
	var current sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT current_version FROM prompts WHERE prompt_id = ?`, promptID,
	).Scan(&current)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("prompt: current version: %w", err)
	}
	return current.String, nil
}

func (s *SQLiteStore) CreateVersion(ctx context.Context, promptID, content, changeNote string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("prompt: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM prompt_versions WHERE prompt_id = ?`, promptID,
	).Scan(&count); err != nil {
		return "", fmt.Errorf("prompt: count versions: %w", err)
	}

	versionID := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO prompt_versions (prompt_id, version_id, version_number, content, change_note, created_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		promptID, versionID, count+1, content, changeNote,
	)
	if err != nil {
		return "", fmt.Errorf("prompt: insert version: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO prompts (prompt_id, current_version) VALUES (?, ?)
		 ON CONFLICT(prompt_id) DO UPDATE SET current_version = excluded.current_version`,
		promptID, versionID,
	)
	if err != nil {
		return "", fmt.Errorf("prompt: upsert current version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("prompt: commit: %w", err)
	}
	return versionID, nil
}

func (s *SQLiteStore) Reset(ctx context.Context, promptID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prompts (prompt_id, current_version) VALUES (?, NULL)
		 ON CONFLICT(prompt_id) DO UPDATE SET current_version = NULL`,
		promptID,
	)
	if err != nil {
		return fmt.Errorf("prompt: reset: %w", err)
	}
	return nil
}
