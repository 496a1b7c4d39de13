package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/calsync/internal/core/domain"
)

// EventQuery filters a mirrored event range listing.
type EventQuery struct {
	// Start/End bound the event time window. Zero values are unbounded.
	Start time.Time
	End   time.Time
	// AccountID limits results to one account ("source" in the API).
	AccountID string
	// IncludeDeleted returns soft-deleted mirrors too.
	IncludeDeleted bool
}

// TaskQuery filters a mirrored task listing.
type TaskQuery struct {
	// Status filters by sync status. Empty matches all.
	Status domain.SyncStatus
	// AccountID limits results to one account.
	AccountID string
	// IncludeDeleted returns soft-deleted mirrors too.
	IncludeDeleted bool
}

// EventMirrorStore persists mirrored calendar events.
// (WorkspaceID, ExternalEventID, ExternalCalendarID) is the upsert key;
// the store must never produce duplicates for it.
type EventMirrorStore interface {
	// Upsert creates or updates the mirror for its external key.
	Upsert(ctx context.Context, event domain.MirroredEvent) error

	// Get retrieves a mirror by its external key.
	// Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, workspaceID, externalEventID, externalCalendarID string) (*domain.MirroredEvent, error)

	// TouchSynced bumps only LastSyncedAt for an unchanged mirror, so
	// downstream consumers see no spurious update.
	TouchSynced(ctx context.Context, workspaceID, externalEventID, externalCalendarID string, at time.Time) error

	// SoftDelete marks a mirror deleted. Soft-deleted mirrors are kept.
	SoftDelete(ctx context.Context, workspaceID, externalEventID, externalCalendarID string, at time.Time) error

	// ListByCalendar returns all mirrors for one remote calendar,
	// including soft-deleted ones.
	ListByCalendar(ctx context.Context, workspaceID, accountID, externalCalendarID string) ([]domain.MirroredEvent, error)

	// ListByWorkspace returns mirrors matching the query, excluding
	// soft-deleted mirrors unless requested.
	ListByWorkspace(ctx context.Context, workspaceID string, q EventQuery) ([]domain.MirroredEvent, error)

	// DeleteByAccount removes all mirrors for an account.
	// Used when an account is disconnected.
	DeleteByAccount(ctx context.Context, workspaceID, accountID string) error
}

// TaskMirrorStore persists mirrored tasks.
// (WorkspaceID, ExternalTaskID, ExternalListID) is the upsert key.
type TaskMirrorStore interface {
	// Upsert creates or updates the mirror for its external key.
	Upsert(ctx context.Context, task domain.MirroredTask) error

	// Save writes a mirror addressed by its local ID. Used for
	// write-back status transitions.
	Save(ctx context.Context, task domain.MirroredTask) error

	// Get retrieves a mirror by its external key.
	Get(ctx context.Context, workspaceID, externalTaskID, externalListID string) (*domain.MirroredTask, error)

	// GetByID retrieves a mirror by its local ID.
	GetByID(ctx context.Context, workspaceID, id string) (*domain.MirroredTask, error)

	// TouchSynced bumps only LastSyncedAt for an unchanged mirror.
	TouchSynced(ctx context.Context, workspaceID, externalTaskID, externalListID string, at time.Time) error

	// SoftDelete marks a mirror deleted.
	SoftDelete(ctx context.Context, workspaceID, externalTaskID, externalListID string, at time.Time) error

	// ListByAccount returns all mirrors for an account, including
	// soft-deleted ones. Used by the deletion diff pass.
	ListByAccount(ctx context.Context, workspaceID, accountID string) ([]domain.MirroredTask, error)

	// ListByWorkspace returns mirrors matching the query, excluding
	// soft-deleted mirrors unless requested.
	ListByWorkspace(ctx context.Context, workspaceID string, q TaskQuery) ([]domain.MirroredTask, error)

	// DeleteByAccount removes all mirrors for an account.
	DeleteByAccount(ctx context.Context, workspaceID, accountID string) error
}
