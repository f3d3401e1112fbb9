// Package prompt stores agent prompt text and its edit history: a default
// body per prompt id, numbered versions, and a movable current-version
// pointer. It does not pin a version per workflow.
package prompt

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by GetDefault when a prompt id has no default
// registered, and by GetVersion when the requested version does not exist.
var ErrNotFound = errors.New("prompt: not found")

// Version is one immutable, numbered edit of a prompt's content.
type Version struct {
	PromptID      string
	VersionID     string
	VersionNumber int
	Content       string
	ChangeNote    string
	CreatedAt     time.Time
}

// Store is the PromptStore contract: a default body per prompt id, plus a
// linear version history and a movable "current version" pointer.
//
// Store records no per-workflow binding: CurrentVersion always reflects the
// latest Reset/CreateVersion call. Nothing else in this module captures a
// binding either — pipeline nodes resolve a prompt's current version each
// time they execute, so an edit made mid-run reaches the next node that
// reads that prompt.
type Store interface {
	// GetDefault returns the built-in content for promptID.
	GetDefault(ctx context.Context, promptID string) (string, error)

	// GetVersion returns the content of a specific version.
	GetVersion(ctx context.Context, promptID, versionID string) (string, error)

	// CurrentVersion returns the version id the prompt currently points
	// to, or "" if it should fall back to the default.
	CurrentVersion(ctx context.Context, promptID string) (string, error)

	// CreateVersion appends a new version, advances the current-version
	// pointer to it, and returns the new version's id.
	CreateVersion(ctx context.Context, promptID, content, changeNote string) (string, error)

	// Reset clears the current-version pointer so the prompt falls back
	// to its default.
	Reset(ctx context.Context, promptID string) error
}
