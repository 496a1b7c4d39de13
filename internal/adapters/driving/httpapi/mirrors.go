package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/calsync/internal/core/domain"
	"github.com/custodia-labs/calsync/internal/core/ports/driven"
)

type attendeeJSON struct {
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Organizer bool   `json:"organizer,omitempty"`
	Response  string `json:"response,omitempty"`
}

type eventJSON struct {
	ID                 string         `json:"id"`
	AccountID          string         `json:"account_id"`
	ExternalEventID    string         `json:"external_event_id"`
	ExternalCalendarID string         `json:"external_calendar_id"`
	Title              string         `json:"title"`
	Description        string         `json:"description,omitempty"`
	Location           string         `json:"location,omitempty"`
	StartTime          time.Time      `json:"start_time"`
	EndTime            time.Time      `json:"end_time"`
	AllDay             bool           `json:"all_day"`
	Status             string         `json:"status"`
	Attendees          []attendeeJSON `json:"attendees,omitempty"`
	MeetingLink        string         `json:"meeting_link,omitempty"`
	MeetingProvider    string         `json:"meeting_provider,omitempty"`
	SyncStatus         string         `json:"sync_status"`
	LastSyncedAt       time.Time      `json:"last_synced_at"`
}

type taskJSON struct {
	ID               string     `json:"id"`
	AccountID        string     `json:"account_id"`
	ExternalTaskID   string     `json:"external_task_id"`
	ExternalListID   string     `json:"external_list_id"`
	Title            string     `json:"title"`
	Notes            string     `json:"notes,omitempty"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	Status           string     `json:"status"`
	ParentExternalID string     `json:"parent_external_id,omitempty"`
	Position         string     `json:"position,omitempty"`
	SyncStatus       string     `json:"sync_status"`
	LastSyncedAt     time.Time  `json:"last_synced_at"`

	RemoteSnapshot *domain.RemoteTaskSnapshot `json:"remote_snapshot,omitempty"`
}

func toEventJSON(e domain.MirroredEvent) eventJSON {
	attendees := make([]attendeeJSON, 0, len(e.Attendees))
	for _, a := range e.Attendees {
		attendees = append(attendees, attendeeJSON{
			Email:     a.Email,
			Name:      a.Name,
			Organizer: a.Organizer,
			Response:  a.Response,
		})
	}
	return eventJSON{
		ID:                 e.ID,
		AccountID:          e.AccountID,
		ExternalEventID:    e.ExternalEventID,
		ExternalCalendarID: e.ExternalCalendarID,
		Title:              e.Title,
		Description:        e.Description,
		Location:           e.Location,
		StartTime:          e.StartTime,
		EndTime:            e.EndTime,
		AllDay:             e.AllDay,
		Status:             e.Status,
		Attendees:          attendees,
		MeetingLink:        e.MeetingLink,
		MeetingProvider:    string(e.MeetingProvider),
		SyncStatus:         string(e.SyncStatus),
		LastSyncedAt:       e.LastSyncedAt,
	}
}

func toTaskJSON(t domain.MirroredTask) taskJSON {
	return taskJSON{
		ID:               t.ID,
		AccountID:        t.AccountID,
		ExternalTaskID:   t.ExternalTaskID,
		ExternalListID:   t.ExternalListID,
		Title:            t.Title,
		Notes:            t.Notes,
		DueDate:          t.DueDate,
		Status:           t.Status,
		ParentExternalID: t.ParentExternalID,
		Position:         t.Position,
		SyncStatus:       string(t.SyncStatus),
		LastSyncedAt:     t.LastSyncedAt,
		RemoteSnapshot:   t.RemoteSnapshot,
	}
}

// handleListEvents returns mirrored events in a date range.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspace")
	if !s.authorize(w, r, workspaceID) {
		return
	}

	query := driven.EventQuery{AccountID: r.URL.Query().Get("source")}

	var err error
	if query.Start, err = parseDateParam(r.URL.Query().Get("startDate")); err != nil {
		writeError(w, err)
		return
	}
	if query.End, err = parseDateParam(r.URL.Query().Get("endDate")); err != nil {
		writeError(w, err)
		return
	}

	events, err := s.events.ListByWorkspace(r.Context(), workspaceID, query)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]eventJSON, 0, len(events))
	for _, e := range events {
		out = append(out, toEventJSON(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

// handleListTasks returns mirrored tasks. Responses are never cached:
// sync status flips in the background.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspace")
	if !s.authorize(w, r, workspaceID) {
		return
	}

	query := driven.TaskQuery{
		Status:    domain.SyncStatus(r.URL.Query().Get("status")),
		AccountID: r.URL.Query().Get("accountId"),
	}

	tasks, err := s.tasks.ListByWorkspace(r.Context(), workspaceID, query)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]taskJSON, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskJSON(t))
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]any{"tasks": out})
}

// parseDateParam accepts RFC 3339 timestamps or plain dates.
func parseDateParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: invalid date %q", domain.ErrInvalidInput, s)
}
