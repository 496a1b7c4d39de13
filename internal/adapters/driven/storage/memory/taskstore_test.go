package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/calsync/internal/core/domain"
	"github.com/custodia-labs/calsync/internal/core/ports/driven"
)

func TestTaskStore_UpsertKeepsLocalID(t *testing.T) {
	store := NewTaskStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, domain.MirroredTask{
		ID: "local-1", WorkspaceID: "ws", AccountID: "acc",
		ExternalTaskID: "t-1", ExternalListID: "l-1", Title: "First",
	}))
	require.NoError(t, store.Upsert(ctx, domain.MirroredTask{
		ID: "local-other", WorkspaceID: "ws", AccountID: "acc",
		ExternalTaskID: "t-1", ExternalListID: "l-1", Title: "Renamed",
	}))

	task, err := store.Get(ctx, "ws", "t-1", "l-1")
	require.NoError(t, err)
	assert.Equal(t, "local-1", task.ID)
	assert.Equal(t, "Renamed", task.Title)

	all, err := store.ListByAccount(ctx, "ws", "acc")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTaskStore_GetNotFound(t *testing.T) {
	store := NewTaskStore()
	_, err := store.Get(context.Background(), "ws", "missing", "l-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskStore_SoftDelete(t *testing.T) {
	store := NewTaskStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, domain.MirroredTask{
		ID: "local-1", WorkspaceID: "ws", AccountID: "acc",
		ExternalTaskID: "t-1", ExternalListID: "l-1",
		SyncStatus: domain.StatusSynced,
	}))
	require.NoError(t, store.SoftDelete(ctx, "ws", "t-1", "l-1", time.Now()))

	task, err := store.Get(ctx, "ws", "t-1", "l-1")
	require.NoError(t, err)
	assert.True(t, task.IsDeleted)
	assert.Equal(t, domain.StatusDeleted, task.SyncStatus)

	visible, err := store.ListByWorkspace(ctx, "ws", driven.TaskQuery{})
	require.NoError(t, err)
	assert.Empty(t, visible)

	all, err := store.ListByWorkspace(ctx, "ws", driven.TaskQuery{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTaskStore_TouchSyncedOnlyBumpsTimestamp(t *testing.T) {
	store := NewTaskStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, domain.MirroredTask{
		ID: "local-1", WorkspaceID: "ws", AccountID: "acc",
		ExternalTaskID: "t-1", ExternalListID: "l-1", Title: "Keep me",
	}))

	at := time.Now().Add(time.Hour)
	require.NoError(t, store.TouchSynced(ctx, "ws", "t-1", "l-1", at))

	task, err := store.Get(ctx, "ws", "t-1", "l-1")
	require.NoError(t, err)
	assert.Equal(t, "Keep me", task.Title)
	assert.True(t, task.LastSyncedAt.Equal(at))
}

func TestTaskStore_SaveByLocalID(t *testing.T) {
	store := NewTaskStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, domain.MirroredTask{
		ID: "local-1", WorkspaceID: "ws", AccountID: "acc",
		ExternalTaskID: "t-1", ExternalListID: "l-1",
		SyncStatus: domain.StatusSynced,
	}))

	task, err := store.GetByID(ctx, "ws", "local-1")
	require.NoError(t, err)
	task.SyncStatus = domain.StatusPending
	require.NoError(t, store.Save(ctx, *task))

	got, err := store.Get(ctx, "ws", "t-1", "l-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.SyncStatus)
}

func TestTaskStore_DeleteByAccount(t *testing.T) {
	store := NewTaskStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, domain.MirroredTask{
		ID: "a", WorkspaceID: "ws", AccountID: "acc-1",
		ExternalTaskID: "t-1", ExternalListID: "l-1",
	}))
	require.NoError(t, store.Upsert(ctx, domain.MirroredTask{
		ID: "b", WorkspaceID: "ws", AccountID: "acc-2",
		ExternalTaskID: "t-2", ExternalListID: "l-1",
	}))

	require.NoError(t, store.DeleteByAccount(ctx, "ws", "acc-1"))

	_, err := store.Get(ctx, "ws", "t-1", "l-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Get(ctx, "ws", "t-2", "l-1")
	assert.NoError(t, err)
}
