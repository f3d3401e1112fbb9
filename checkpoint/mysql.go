package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLCheckpointer is a MySQL/MariaDB-backed Checkpointer, appropriate
// when the engine runs distributed across multiple processes and needs
// checkpoints durable beyond any single host's disk.
//
// The DSN format matches go-sql-driver/mysql:
//
//	user:password@tcp(host:3306)/dbname?parseTime=true
type MySQLCheckpointer struct {
	db *sql.DB
}

// NewMySQLCheckpointer opens a connection pool against dsn and ensures the
// checkpoints table exists.
func NewMySQLCheckpointer(dsn string) (*MySQLCheckpointer, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("checkpoint: ping mysql: %w", err)
	}

	c := &MySQLCheckpointer{db: db}
	if err := c.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *MySQLCheckpointer) createSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id     VARCHAR(191) NOT NULL,
			checkpoint_id VARCHAR(191) NOT NULL,
			parent_id     VARCHAR(191),
			created_at    DATETIME(6) NOT NULL,
			state         LONGBLOB NOT NULL,
			next_nodes    TEXT NOT NULL,
			PRIMARY KEY (thread_id, checkpoint_id),
			INDEX idx_checkpoints_thread_created (thread_id, created_at)
		) ENGINE=InnoDB
	`
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("checkpoint: create schema: %w", err)
	}
	return nil
}

func (c *MySQLCheckpointer) Put(ctx context.Context, threadID, checkpointID, parentID string, state []byte, nextNodes []string) error {
	const stmt = `
		INSERT INTO checkpoints (thread_id, checkpoint_id, parent_id, created_at, state, next_nodes)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			parent_id = VALUES(parent_id),
			created_at = VALUES(created_at),
			state = VALUES(state),
			next_nodes = VALUES(next_nodes)
	`
	_, err := c.db.ExecContext(ctx, stmt, threadID, checkpointID, nullableString(parentID), time.Now(), state, encodeNextNodes(nextNodes))
	if err != nil {
		return fmt.Errorf("checkpoint: put: %w", err)
	}
	return nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (c *MySQLCheckpointer) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	const query = `
		SELECT thread_id, checkpoint_id, parent_id, created_at, state, next_nodes
		FROM checkpoints WHERE thread_id = ? ORDER BY created_at DESC LIMIT 1
	`
	return c.scanOne(c.db.QueryRowContext(ctx, query, threadID))
}

func (c *MySQLCheckpointer) Get(ctx context.Context, threadID, checkpointID string) (*Checkpoint, error) {
	const query = `
		SELECT thread_id, checkpoint_id, parent_id, created_at, state, next_nodes
		FROM checkpoints WHERE thread_id = ? AND checkpoint_id = ?
	`
	return c.scanOne(c.db.QueryRowContext(ctx, query, threadID, checkpointID))
}

func (c *MySQLCheckpointer) scanOne(row *sql.Row) (*Checkpoint, error) {
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

func (c *MySQLCheckpointer) List(ctx context.Context, threadID string) ([]Checkpoint, error) {
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

func (c *MySQLCheckpointer) Purge(ctx context.Context, terminalThreadIDs []string, olderThan time.Time) error {
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

func (c *MySQLCheckpointer) Close() error { return c.db.Close() }
