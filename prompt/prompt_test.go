package prompt

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func backends(t *testing.T, defaults map[string]string) map[string]Store {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sqliteStore, err := NewSQLiteStore(context.Background(), db, defaults)
	require.NoError(t, err)

	return map[string]Store{
		"memory": NewMemStore(defaults),
		"sqlite": sqliteStore,
	}
}

func TestStore_GetDefault(t *testing.T) {
	for name, s := range backends(t, map[string]string{"architect": "plan the work"}) {
		t.Run(name, func(t *testing.T) {
			content, err := s.GetDefault(context.Background(), "architect")
			require.NoError(t, err)
			require.Equal(t, "plan the work", content)
		})
	}
}

func TestStore_GetDefaultMissingReturnsErrNotFound(t *testing.T) {
	for name, s := range backends(t, nil) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetDefault(context.Background(), "nope")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_CurrentVersionIsEmptyUntilCreated(t *testing.T) {
	for name, s := range backends(t, map[string]string{"architect": "default body"}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			current, err := s.CurrentVersion(ctx, "architect")
			require.NoError(t, err)
			require.Empty(t, current, "empty current version means callers fall back to the default")
		})
	}
}

func TestStore_CreateVersionAdvancesCurrentPointer(t *testing.T) {
	for name, s := range backends(t, map[string]string{"architect": "default body"}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			versionID, err := s.CreateVersion(ctx, "architect", "v2 body", "tightened the instructions")
			require.NoError(t, err)
			require.NotEmpty(t, versionID)

			current, err := s.CurrentVersion(ctx, "architect")
			require.NoError(t, err)
			require.Equal(t, versionID, current)

			content, err := s.GetVersion(ctx, "architect", versionID)
			require.NoError(t, err)
			require.Equal(t, "v2 body", content)
		})
	}
}

func TestStore_ResetClearsCurrentPointer(t *testing.T) {
	for name, s := range backends(t, map[string]string{"architect": "default body"}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.CreateVersion(ctx, "architect", "edited", "")
			require.NoError(t, err)

			require.NoError(t, s.Reset(ctx, "architect"))

			current, err := s.CurrentVersion(ctx, "architect")
			require.NoError(t, err)
			require.Empty(t, current)
		})
	}
}

func TestStore_MultipleVersionsAreIndependentlyRetrievable(t *testing.T) {
	for name, s := range backends(t, map[string]string{"reviewer": "v0"}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			v1, err := s.CreateVersion(ctx, "reviewer", "v1 body", "")
			require.NoError(t, err)
			v2, err := s.CreateVersion(ctx, "reviewer", "v2 body", "")
			require.NoError(t, err)
			require.NotEqual(t, v1, v2)

			content1, err := s.GetVersion(ctx, "reviewer", v1)
			require.NoError(t, err)
			require.Equal(t, "v1 body", content1)

			current, err := s.CurrentVersion(ctx, "reviewer")
			require.NoError(t, err)
			require.Equal(t, v2, current, "current always points at the most recently created version")
		})
	}
}

func TestStore_PromptsAreIsolated(t *testing.T) {
	for name, s := range backends(t, map[string]string{"architect": "a", "reviewer": "r"}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.CreateVersion(ctx, "architect", "architect v1", "")
			require.NoError(t, err)

			current, err := s.CurrentVersion(ctx, "reviewer")
			require.NoError(t, err)
			require.Empty(t, current, "creating a version for one prompt must not affect another")
		})
	}
}
