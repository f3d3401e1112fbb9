package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// backends returns every Checkpointer implementation this package ships,
// so contract tests run identically against each.
func backends(t *testing.T) map[string]Checkpointer {
	t.Helper()

	sqliteCP, err := NewSQLiteCheckpointer(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteCP.Close() })

	return map[string]Checkpointer{
		"memory": NewMemCheckpointer(),
		"sqlite": sqliteCP,
	}
}

func TestCheckpointer_PutThenGet(t *testing.T) {
	for name, cp := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			err := cp.Put(ctx, "wf-1", "cp-1", "", []byte(`{"step":1}`), nil)
			require.NoError(t, err)

			got, err := cp.Get(ctx, "wf-1", "cp-1")
			require.NoError(t, err)
			require.NotNil(t, got)
			require.Equal(t, []byte(`{"step":1}`), got.State)
			require.Equal(t, "wf-1", got.ThreadID)
		})
	}
}

func TestCheckpointer_GetMissingReturnsNilNotError(t *testing.T) {
	for name, cp := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := cp.Get(context.Background(), "never-seen", "cp-x")
			require.NoError(t, err)
			require.Nil(t, got)
		})
	}
}

func TestCheckpointer_LatestMissingThreadReturnsNilNotError(t *testing.T) {
	for name, cp := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := cp.Latest(context.Background(), "never-seen")
			require.NoError(t, err)
			require.Nil(t, got)
		})
	}
}

func TestCheckpointer_LatestReturnsMostRecent(t *testing.T) {
	for name, cp := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, cp.Put(ctx, "wf-1", "cp-1", "", []byte("first"), nil))
			time.Sleep(5 * time.Millisecond) // ensure distinct created_at ordering
			require.NoError(t, cp.Put(ctx, "wf-1", "cp-2", "cp-1", []byte("second"), []string{"developer_node"}))

			latest, err := cp.Latest(ctx, "wf-1")
			require.NoError(t, err)
			require.NotNil(t, latest)
			require.Equal(t, "cp-2", latest.CheckpointID)
			require.Equal(t, []byte("second"), latest.State)
			require.Equal(t, []string{"developer_node"}, latest.NextNodes)
		})
	}
}

func TestCheckpointer_PutIsUpsertByCheckpointID(t *testing.T) {
	for name, cp := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, cp.Put(ctx, "wf-1", "cp-1", "", []byte("v1"), nil))
			require.NoError(t, cp.Put(ctx, "wf-1", "cp-1", "", []byte("v2"), nil))

			got, err := cp.Get(ctx, "wf-1", "cp-1")
			require.NoError(t, err)
			require.Equal(t, []byte("v2"), got.State)

			all, err := cp.List(ctx, "wf-1")
			require.NoError(t, err)
			require.Len(t, all, 1, "a Put to the same checkpoint_id overwrites, not duplicates")
		})
	}
}

func TestCheckpointer_ListOrderedByCreatedAtDescending(t *testing.T) {
	for name, cp := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, cp.Put(ctx, "wf-1", "cp-1", "", []byte("first"), nil))
			time.Sleep(5 * time.Millisecond)
			require.NoError(t, cp.Put(ctx, "wf-1", "cp-2", "cp-1", []byte("second"), nil))

			list, err := cp.List(ctx, "wf-1")
			require.NoError(t, err)
			require.Len(t, list, 2)
			require.Equal(t, "cp-2", list[0].CheckpointID, "newest first")
			require.Equal(t, "cp-1", list[1].CheckpointID)
		})
	}
}

func TestCheckpointer_ThreadsAreIsolated(t *testing.T) {
	for name, cp := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, cp.Put(ctx, "wf-1", "cp-1", "", []byte("wf1"), nil))
			require.NoError(t, cp.Put(ctx, "wf-2", "cp-1", "", []byte("wf2"), nil))

			got1, err := cp.Get(ctx, "wf-1", "cp-1")
			require.NoError(t, err)
			got2, err := cp.Get(ctx, "wf-2", "cp-1")
			require.NoError(t, err)

			require.Equal(t, []byte("wf1"), got1.State)
			require.Equal(t, []byte("wf2"), got2.State)
		})
	}
}

func TestCheckpointer_PurgeRemovesOnlyOldCheckpointsOfNamedThreads(t *testing.T) {
	for name, cp := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, cp.Put(ctx, "wf-old", "cp-1", "", []byte("old"), nil))
			require.NoError(t, cp.Put(ctx, "wf-keep", "cp-1", "", []byte("keep"), nil))

			cutoff := time.Now().Add(time.Hour) // everything so far is "older than" this

			require.NoError(t, cp.Purge(ctx, []string{"wf-old"}, cutoff))

			gone, err := cp.Get(ctx, "wf-old", "cp-1")
			require.NoError(t, err)
			require.Nil(t, gone, "wf-old was named for purge and predates cutoff")

			kept, err := cp.Get(ctx, "wf-keep", "cp-1")
			require.NoError(t, err)
			require.NotNil(t, kept, "wf-keep was not named for purge")
		})
	}
}
