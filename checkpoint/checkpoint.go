// Package checkpoint provides durable, versioned snapshots of workflow
// execution state keyed by (thread_id, checkpoint_id), with pluggable
// backends (in-memory, SQLite, MySQL).
package checkpoint

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound names a missing checkpoint. No Checkpointer in this package
// returns it: Get and Latest both report a missing checkpoint as
// (nil, nil).
var ErrNotFound = errors.New("checkpoint: not found")

// Checkpoint is a single durable snapshot: (thread_id, checkpoint_id,
// parent_id, created_at, state, next_nodes). thread_id is always a
// workflow_id. next_nodes is non-empty exactly when the workflow is paused
// at an interrupt awaiting resumption there.
type Checkpoint struct {
	ThreadID     string    `json:"thread_id"`
	CheckpointID string    `json:"checkpoint_id"`
	ParentID     string    `json:"parent_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	State        []byte    `json:"state"`
	NextNodes    []string  `json:"next_nodes,omitempty"`
}

// Checkpointer is the durable-snapshot contract every backend implements.
// State is opaque bytes: serialization is GraphRuntime's responsibility,
// not the store's — this package never inspects ExecutionState.
type Checkpointer interface {
	// Put writes a new checkpoint. parentID is advisory (best-effort
	// lineage, not enforced). Put is atomic: all-or-nothing.
	Put(ctx context.Context, threadID, checkpointID, parentID string, state []byte, nextNodes []string) error

	// Latest returns the most recently written checkpoint for threadID, or
	// (nil, nil) if none exists yet.
	Latest(ctx context.Context, threadID string) (*Checkpoint, error)

	// Get returns a specific checkpoint, or (nil, nil) if it doesn't exist.
	Get(ctx context.Context, threadID, checkpointID string) (*Checkpoint, error)

	// List returns every checkpoint for threadID ordered by created_at
	// descending (newest first).
	List(ctx context.Context, threadID string) ([]Checkpoint, error)

	// Purge removes checkpoints belonging to terminal workflows whose
	// CreatedAt is older than olderThan. terminalThreadIDs scopes the
	// purge to workflows the caller has already confirmed are terminal —
	// this package has no notion of Workflow.Status.
	Purge(ctx context.Context, terminalThreadIDs []string, olderThan time.Time) error

	// Close releases any resources (connections, file handles) held by
	// the backend.
	Close() error
}
