package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteCheckpointer is a single-file, WAL-mode Checkpointer backed by
// modernc.org/sqlite (pure Go, no cgo). Appropriate for a single engine
// process; SQLite permits only one writer at a time so the connection pool
// is pinned to size 1.
type SQLiteCheckpointer struct {
	db *sql.DB
}

// NewSQLiteCheckpointer opens (creating if absent) a SQLite-backed
// Checkpointer at path. Use ":memory:" for an ephemeral database.
func NewSQLiteCheckpointer(path string) (*SQLiteCheckpointer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("checkpoint: %s: %w", pragma, err)
		}
	}

	c := &SQLiteCheckpointer{db: db}
	if err := c.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// createSchema creates the checkpoints table, named after spec §6's
// persisted shape rather than the teacher's "workflow_checkpoints_v2"
// naming, since this store only ever holds one checkpoint kind.
func (c *SQLiteCheckpointer) createSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id     TEXT NOT NULL,
			checkpoint_id TEXT NOT NULL,
			parent_id     TEXT,
			created_at    TIMESTAMP NOT NULL,
			state         BLOB NOT NULL,
			next_nodes    TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (thread_id, checkpoint_id)
		)
	`
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("checkpoint: create schema: %w", err)
	}
	if _, err := c.db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS idx_checkpoints_thread_created ON checkpoints(thread_id, created_at)"); err != nil {
		return fmt.Errorf("checkpoint: create index: %w", err)
	}
	return nil
}

func encodeNextNodes(nodes []string) string { return strings.Join(nodes, "\x1f") }

func decodeNextNodes(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "\x1f")
}

func (c *SQLiteCheckpointer) Put(ctx context.Context, threadID, checkpointID, parentID string, state []byte, nextNodes []string) error {
	const stmt = `
		INSERT INTO checkpoints (thread_id, checkpoint_id, parent_id, created_at, state, next_nodes)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_id, checkpoint_id) DO UPDATE SET
			parent_id = excluded.parent_id,
			created_at = excluded.created_at,
			state = excluded.state,
			next_nodes = excluded.next_nodes
	`
	_, err := c.db.ExecContext(ctx, stmt, threadID, checkpointID, parentID, time.Now(), state, encodeNextNodes(nextNodes))
	if err != nil {
		return fmt.Errorf("checkpoint: put: %w", err)
	}
	return nil
}

func (c *SQLiteCheckpointer) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	const query = `
		SELECT thread_id, checkpoint_id, parent_id, created_at, state, next_nodes
		FROM checkpoints WHERE thread_id = ? ORDER BY created_at DESC LIMIT 1
	`
	return c.scanOne(c.db.QueryRowContext(ctx, query, threadID))
}

func (c *SQLiteCheckpointer) Get(ctx context.Context, threadID, checkpointID string) (*Checkpoint, error) {
	const query = `
		SELECT thread_id, checkpoint_id, parent_id, created_at, state, next_nodes
		FROM checkpoints WHERE thread_id = ? AND checkpoint_id = ?
	`
	return c.scanOne(c.db.QueryRowContext(ctx, query, threadID, checkpointID))
}

func (c *SQLiteCheckpointer) scanOne(row *sql.Row) (*Checkpoint, error) {
	var cp Checkpoint
	var parentID sql.NullString
	var nextNodes string
	err := row.Scan(&cp.ThreadID, &cp.CheckpointID, &parentID, &cp.CreatedAt, &cp.State, &nextNodes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: scan: %w", err)
	}
	cp.ParentID = parentID.String
	cp.NextNodes = decodeNextNodes(nextNodes)
	return &cp, nil
}

func (c *SQLiteCheckpointer) List(ctx context.Context, threadID string) ([]Checkpoint, error) {
	const query = `
		SELECT thread_id, checkpoint_id, parent_id, created_at, state, next_nodes
		FROM checkpoints WHERE thread_id = ? ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		var cp Checkpoint
		var parentID sql.NullString
		var nextNodes string
		if err := rows.Scan(&cp.ThreadID, &cp.CheckpointID, &parentID, &cp.CreatedAt, &cp.State, &nextNodes); err != nil {
			return nil, fmt.Errorf("checkpoint: scan list row: %w", err)
		}
		cp.ParentID = parentID.String
		cp.NextNodes = decodeNextNodes(nextNodes)
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (c *SQLiteCheckpointer) Purge(ctx context.Context, terminalThreadIDs []string, olderThan time.Time) error {
	if len(terminalThreadIDs) == 0 {
		return nil
	}
	placeholders := make([]string, len(terminalThreadIDs))
	args := make([]interface{}, 0, len(terminalThreadIDs)+1)
	for i, id := range terminalThreadIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	args = append(args, olderThan)

	query := fmt.Sprintf(
		"DELETE FROM checkpoints WHERE thread_id IN (%s) AND created_at < ?",
		strings.Join(placeholders, ","),
	)
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("checkpoint: purge: %w", err)
	}
	return nil
}

func (c *SQLiteCheckpointer) Close() error { return c.db.Close() }
