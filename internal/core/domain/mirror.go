package domain

import "time"

// SyncStatus is the write-back state machine for a mirror.
// Transitions: synced → pending (local edit queued) → {synced | conflict |
// error} after a write-back attempt. Conflict requires explicit resolution;
// error is retried on the next scheduled cycle.
type SyncStatus string

const (
	// StatusSynced means the mirror matches the last-seen remote state.
	StatusSynced SyncStatus = "synced"
	// StatusPending means a local edit is queued for write-back.
	StatusPending SyncStatus = "pending"
	// StatusConflict means remote and local diverged; resolution required.
	StatusConflict SyncStatus = "conflict"
	// StatusDeleted means the mirror is soft-deleted.
	StatusDeleted SyncStatus = "deleted"
	// StatusError means the last write-back failed on every strategy.
	StatusError SyncStatus = "error"
)

// Attendee is a normalized calendar event participant.
type Attendee struct {
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Organizer bool   `json:"organizer,omitempty"`
	Response  string `json:"response,omitempty"`
}

// MirroredEvent is the local copy of one remote calendar event.
// (WorkspaceID, ExternalEventID, ExternalCalendarID) is unique.
type MirroredEvent struct {
	// ID is the unique identifier (UUID).
	ID string
	// WorkspaceID scopes the mirror to a workspace.
	WorkspaceID string
	// AccountID links to the IntegrationAccount that produced this mirror.
	AccountID string

	// ExternalEventID is the remote event identifier.
	ExternalEventID string
	// ExternalCalendarID is the remote container identifier.
	ExternalCalendarID string

	// Normalized content.
	Title       string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	AllDay      bool
	Status      string
	Attendees   []Attendee

	// MeetingLink is the extracted conferencing URL, if any.
	MeetingLink string
	// MeetingProvider classifies the conferencing service.
	MeetingProvider MeetingProvider

	// SyncStatus is the write-back state.
	SyncStatus SyncStatus
	// LastSyncedAt is when this mirror last matched remote state.
	LastSyncedAt time.Time

	// IsDeleted marks a soft-deleted mirror. Soft-deleted mirrors are
	// never resurrected by re-sync; only a genuinely new external ID
	// produces a new mirror.
	IsDeleted bool
	// DeletedAt is when the soft delete happened.
	DeletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContentEquals reports whether the user-visible event fields match the
// remote copy. Used to avoid spurious writes when nothing changed.
func (e *MirroredEvent) ContentEquals(r RemoteEvent) bool {
	if e.Title != r.Title || e.Description != r.Description || e.Location != r.Location {
		return false
	}
	if !e.StartTime.Equal(r.Start) || !e.EndTime.Equal(r.End) || e.AllDay != r.AllDay {
		return false
	}
	if e.Status != r.Status {
		return false
	}
	if len(e.Attendees) != len(r.Attendees) {
		return false
	}
	for i := range e.Attendees {
		if e.Attendees[i] != r.Attendees[i] {
			return false
		}
	}
	return true
}

// RemoteTaskSnapshot is the remote side of a detected conflict. Both
// versions are retained so the user can resolve explicitly.
type RemoteTaskSnapshot struct {
	Title     string     `json:"title"`
	Notes     string     `json:"notes,omitempty"`
	Status    string     `json:"status"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// MirroredTask is the local copy of one remote task.
// (WorkspaceID, ExternalTaskID, ExternalListID) is unique.
type MirroredTask struct {
	// ID is the unique identifier (UUID).
	ID string
	// WorkspaceID scopes the mirror to a workspace.
	WorkspaceID string
	// AccountID links to the IntegrationAccount that produced this mirror.
	AccountID string

	// ExternalTaskID is the remote task identifier.
	ExternalTaskID string
	// ExternalListID is the remote task list identifier.
	ExternalListID string

	// Normalized content.
	Title string
	Notes string
	// DueDate is nil for tasks without a due date.
	DueDate *time.Time
	// Status is "needsAction" or "completed".
	Status string
	// ParentExternalID is the remote ID of the parent task, for subtasks.
	ParentExternalID string
	// Position orders the task within its list.
	Position string

	// SyncStatus is the write-back state.
	SyncStatus SyncStatus
	// LastSyncedAt is when this mirror last matched remote state.
	LastSyncedAt time.Time

	// IsDeleted marks a soft-deleted mirror.
	IsDeleted bool
	// DeletedAt is when the soft delete happened.
	DeletedAt *time.Time

	// RemoteSnapshot holds the remote version when SyncStatus is conflict.
	RemoteSnapshot *RemoteTaskSnapshot

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContentEquals reports whether the user-visible task fields match the
// remote copy.
func (t *MirroredTask) ContentEquals(r RemoteTask) bool {
	if t.Title != r.Title || t.Notes != r.Notes || t.Status != r.Status {
		return false
	}
	if t.ParentExternalID != r.ParentID || t.Position != r.Position {
		return false
	}
	return equalDue(t.DueDate, r.Due)
}

// DivergesFrom reports whether the remote copy differs from the mirror in
// any user-visible field relevant to conflict detection (title, notes,
// status, due date).
func (t *MirroredTask) DivergesFrom(r RemoteTask) bool {
	if t.Title != r.Title || t.Notes != r.Notes || t.Status != r.Status {
		return true
	}
	return !equalDue(t.DueDate, r.Due)
}

func equalDue(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
