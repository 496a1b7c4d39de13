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

func TestEventStore_UpsertNoDuplicateForExternalKey(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, domain.MirroredEvent{
		ID: "local-1", WorkspaceID: "ws", AccountID: "acc",
		ExternalEventID: "ev-1", ExternalCalendarID: "cal-1", Title: "Standup",
	}))
	require.NoError(t, store.Upsert(ctx, domain.MirroredEvent{
		ID: "local-2", WorkspaceID: "ws", AccountID: "acc",
		ExternalEventID: "ev-1", ExternalCalendarID: "cal-1", Title: "Standup (moved)",
	}))

	events, err := store.ListByCalendar(ctx, "ws", "acc", "cal-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "local-1", events[0].ID)
	assert.Equal(t, "Standup (moved)", events[0].Title)
}

func TestEventStore_SameEventIDDifferentCalendars(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, domain.MirroredEvent{
		ID: "a", WorkspaceID: "ws", AccountID: "acc",
		ExternalEventID: "ev-1", ExternalCalendarID: "cal-1",
	}))
	require.NoError(t, store.Upsert(ctx, domain.MirroredEvent{
		ID: "b", WorkspaceID: "ws", AccountID: "acc",
		ExternalEventID: "ev-1", ExternalCalendarID: "cal-2",
	}))

	one, err := store.ListByCalendar(ctx, "ws", "acc", "cal-1")
	require.NoError(t, err)
	two, err := store.ListByCalendar(ctx, "ws", "acc", "cal-2")
	require.NoError(t, err)
	assert.Len(t, one, 1)
	assert.Len(t, two, 1)
}

func TestEventStore_SoftDeleteHiddenFromDefaultListing(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, domain.MirroredEvent{
		ID: "a", WorkspaceID: "ws", AccountID: "acc",
		ExternalEventID: "ev-1", ExternalCalendarID: "cal-1",
	}))
	require.NoError(t, store.SoftDelete(ctx, "ws", "ev-1", "cal-1", time.Now()))

	visible, err := store.ListByWorkspace(ctx, "ws", driven.EventQuery{})
	require.NoError(t, err)
	assert.Empty(t, visible)

	all, err := store.ListByWorkspace(ctx, "ws", driven.EventQuery{IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsDeleted)
	require.NotNil(t, all[0].DeletedAt)
}

func TestEventStore_ListByWorkspaceRangeFilter(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Upsert(ctx, domain.MirroredEvent{
		ID: "in", WorkspaceID: "ws", AccountID: "acc",
		ExternalEventID: "ev-1", ExternalCalendarID: "cal-1",
		StartTime: base, EndTime: base.Add(time.Hour),
	}))
	require.NoError(t, store.Upsert(ctx, domain.MirroredEvent{
		ID: "out", WorkspaceID: "ws", AccountID: "acc",
		ExternalEventID: "ev-2", ExternalCalendarID: "cal-1",
		StartTime: base.Add(48 * time.Hour), EndTime: base.Add(49 * time.Hour),
	}))

	events, err := store.ListByWorkspace(ctx, "ws", driven.EventQuery{
		Start: base.Add(-time.Hour),
		End:   base.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "in", events[0].ID)
}
