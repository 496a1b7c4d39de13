package domain

import "time"

// Remote types are normalized representations of provider objects.
// Adapters convert provider payloads into these; services never see the
// provider's own types.

// RemoteCalendar is one calendar visible to the account.
type RemoteCalendar struct {
	ID      string
	Title   string
	Primary bool
}

// RemoteEvent is a normalized remote calendar event.
type RemoteEvent struct {
	ID         string
	CalendarID string

	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool
	// Status is the provider status, e.g. "confirmed" or "cancelled".
	Status    string
	Attendees []Attendee

	// ConferenceURI is the structured conferencing entry point, when the
	// provider supplies one. Checked before pattern-matching free text.
	ConferenceURI string

	// UpdatedAt is the remote last-modified timestamp.
	UpdatedAt time.Time
}

// Cancelled reports whether the event was cancelled remotely.
// Cancelled events are treated as absent from the listing.
func (e RemoteEvent) Cancelled() bool {
	return e.Status == "cancelled"
}

// RemoteTaskList is one task list visible to the account.
type RemoteTaskList struct {
	ID    string
	Title string
}

// RemoteTask is a normalized remote task.
type RemoteTask struct {
	ID     string
	ListID string

	Title string
	Notes string
	// Status is "needsAction" or "completed".
	Status   string
	Due      *time.Time
	ParentID string
	Position string

	// Deleted marks tasks the provider reports as deleted.
	Deleted bool

	// UpdatedAt is the remote last-modified timestamp.
	UpdatedAt time.Time
}

// SyncWindow bounds a calendar pull: lookback days into the past, lookahead
// into the future.
type SyncWindow struct {
	Start time.Time
	End   time.Time
}

// NewSyncWindow computes the window around now.
func NewSyncWindow(now time.Time, lookback, lookahead time.Duration) SyncWindow {
	return SyncWindow{
		Start: now.Add(-lookback),
		End:   now.Add(lookahead),
	}
}
