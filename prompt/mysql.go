package prompt

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// MySQLStore is a Store backed by a *sql.DB opened against MySQL/MariaDB,
// typically the same pool a MySQLCheckpointer uses so checkpoints and
// prompt history live in one schema.
type MySQLStore struct {
	db       *sql.DB
	defaults map[string]string
}

// NewMySQLStore wraps db, seeds the given defaults, and ensures the
// prompt tables exist.
func NewMySQLStore(ctx context.Context, db *sql.DB, defaults map[string]string) (*MySQLStore, error) {
	s := &MySQLStore{db: db, defaults: make(map[string]string, len(defaults))}
	for k, v := range defaults {
		s.defaults[k] = v
	}
	if err := s.createSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) createSchema(ctx context.Context) error {
	const promptsTable = `
		CREATE TABLE IF NOT EXISTS prompts (
			prompt_id       VARCHAR(191) PRIMARY KEY,
			current_version VARCHAR(191)
		) ENGINE=InnoDB
	`
	const versionsTable = `
		CREATE TABLE IF NOT EXISTS prompt_versions (
			prompt_id      VARCHAR(191) NOT NULL,
			version_id     VARCHAR(191) NOT NULL,
			version_number INT NOT NULL,
			content        LONGTEXT NOT NULL,
			change_note    TEXT,
			created_at     DATETIME(6) NOT NULL,
			PRIMARY KEY (prompt_id, version_id)
		) ENGINE=InnoDB
	`
	if _, err := s.db.ExecContext(ctx, promptsTable); err != nil {
		return fmt.Errorf("prompt: create prompts table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, versionsTable); err != nil {
		return fmt.Errorf("prompt: create prompt_versions table: %w", err)
	}
	return nil
}

func (s *MySQLStore) GetDefault(_ context.Context, promptID string) (string, error) {
	content, ok := s.defaults[promptID]
	if !ok {
		return "", ErrNotFound
	}
	return content, nil
}

func (s *MySQLStore) GetVersion(ctx context.Context, promptID, versionID string) (string, error) {
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

func (s *MySQLStore) CurrentVersion(ctx context.Context, promptID string) (string, error) {
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

func (s *MySQLStore) CreateVersion(ctx context.Context, promptID, content, changeNote string) (string, error) {
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
		 VALUES (?, ?, ?, ?, ?, NOW(6))`,
		promptID, versionID, count+1, content, changeNote,
	)
	if err != nil {
		return "", fmt.Errorf("prompt: insert version: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO prompts (prompt_id, current_version) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE current_version = VALUES(current_version)`,
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

func (s *MySQLStore) Reset(ctx context.Context, promptID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prompts (prompt_id, current_version) VALUES (?, NULL)
		 ON DUPLICATE KEY UPDATE current_version = NULL`,
		promptID,
	)
	if err != nil {
		return fmt.Errorf("prompt: reset: %w", err)
	}
	return nil
}
