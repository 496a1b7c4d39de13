package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/calsync/internal/core/domain"
	"github.com/custodia-labs/calsync/internal/core/ports/driven"
)

// eventStore implements driven.EventMirrorStore.
type eventStore struct {
	store *Store
}

var _ driven.EventMirrorStore = (*eventStore)(nil)

const eventColumns = `id, workspace_id, account_id, external_event_id, external_calendar_id,
	title, description, location, start_time, end_time, all_day, status, attendees,
	meeting_link, meeting_provider, sync_status, last_synced_at, is_deleted, deleted_at,
	created_at, updated_at`

// Upsert creates or updates the mirror for its external key. An existing
// row keeps its local ID and created_at.
func (s *eventStore) Upsert(ctx context.Context, event domain.MirroredEvent) error {
	attendeesJSON, err := json.Marshal(event.Attendees)
	if err != nil {
		return fmt.Errorf("marshalling attendees: %w", err)
	}

	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO event_mirrors (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(workspace_id, external_event_id, external_calendar_id) DO UPDATE SET
			account_id = excluded.account_id,
			title = excluded.title,
			description = excluded.description,
			location = excluded.location,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			all_day = excluded.all_day,
			status = excluded.status,
			attendees = excluded.attendees,
			meeting_link = excluded.meeting_link,
			meeting_provider = excluded.meeting_provider,
			sync_status = excluded.sync_status,
			last_synced_at = excluded.last_synced_at,
			is_deleted = excluded.is_deleted,
			deleted_at = excluded.deleted_at,
			updated_at = excluded.updated_at
	`, event.ID, event.WorkspaceID, event.AccountID, event.ExternalEventID, event.ExternalCalendarID,
		event.Title, event.Description, event.Location,
		formatTime(event.StartTime), formatTime(event.EndTime), boolToInt(event.AllDay),
		event.Status, string(attendeesJSON), event.MeetingLink, string(event.MeetingProvider),
		string(event.SyncStatus), formatTime(event.LastSyncedAt),
		boolToInt(event.IsDeleted), formatTimePtr(event.DeletedAt),
		formatTime(event.CreatedAt), formatTime(event.UpdatedAt))

	if err != nil {
		return fmt.Errorf("upserting event mirror: %w", err)
	}
	return nil
}

// Get retrieves a mirror by its external key.
func (s *eventStore) Get(ctx context.Context, workspaceID, externalEventID, externalCalendarID string) (*domain.MirroredEvent, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM event_mirrors
		WHERE workspace_id = ? AND external_event_id = ? AND external_calendar_id = ?
	`, workspaceID, externalEventID, externalCalendarID)
	return scanEvent(row)
}

// TouchSynced bumps only LastSyncedAt for an unchanged mirror.
func (s *eventStore) TouchSynced(ctx context.Context, workspaceID, externalEventID, externalCalendarID string, at time.Time) error {
	result, err := s.store.db.ExecContext(ctx, `
		UPDATE event_mirrors SET last_synced_at = ?
		WHERE workspace_id = ? AND external_event_id = ? AND external_calendar_id = ?
	`, formatTime(at), workspaceID, externalEventID, externalCalendarID)
	if err != nil {
		return fmt.Errorf("touching event mirror: %w", err)
	}
	return requireAffected(result)
}

// SoftDelete marks a mirror deleted. The row is kept.
func (s *eventStore) SoftDelete(ctx context.Context, workspaceID, externalEventID, externalCalendarID string, at time.Time) error {
	result, err := s.store.db.ExecContext(ctx, `
		UPDATE event_mirrors SET is_deleted = 1, deleted_at = ?, sync_status = ?, updated_at = ?
		WHERE workspace_id = ? AND external_event_id = ? AND external_calendar_id = ?
	`, formatTime(at), string(domain.StatusDeleted), formatTime(at),
		workspaceID, externalEventID, externalCalendarID)
	if err != nil {
		return fmt.Errorf("soft-deleting event mirror: %w", err)
	}
	return requireAffected(result)
}

// ListByCalendar returns all mirrors for one remote calendar, including
// soft-deleted ones.
func (s *eventStore) ListByCalendar(ctx context.Context, workspaceID, accountID, externalCalendarID string) ([]domain.MirroredEvent, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM event_mirrors
		WHERE workspace_id = ? AND account_id = ? AND external_calendar_id = ?
	`, workspaceID, accountID, externalCalendarID)
	if err != nil {
		return nil, fmt.Errorf("querying event mirrors: %w", err)
	}
	return collectEvents(rows)
}

// ListByWorkspace returns mirrors matching the query.
func (s *eventStore) ListByWorkspace(ctx context.Context, workspaceID string, q driven.EventQuery) ([]domain.MirroredEvent, error) {
	query := "SELECT " + eventColumns + " FROM event_mirrors WHERE workspace_id = ?"
	args := []any{workspaceID}

	if !q.IncludeDeleted {
		query += " AND is_deleted = 0"
	}
	if q.AccountID != "" {
		query += " AND account_id = ?"
		args = append(args, q.AccountID)
	}
	if !q.Start.IsZero() {
		query += " AND end_time >= ?"
		args = append(args, q.Start.UTC().Format(time.RFC3339Nano))
	}
	if !q.End.IsZero() {
		query += " AND start_time <= ?"
		args = append(args, q.End.UTC().Format(time.RFC3339Nano))
	}
	query += " ORDER BY start_time"

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying event mirrors: %w", err)
	}
	return collectEvents(rows)
}

// DeleteByAccount removes all mirrors for an account.
func (s *eventStore) DeleteByAccount(ctx context.Context, workspaceID, accountID string) error {
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM event_mirrors WHERE workspace_id = ? AND account_id = ?",
		workspaceID, accountID)
	if err != nil {
		return fmt.Errorf("deleting event mirrors: %w", err)
	}
	return nil
}

func scanEvent(row rowScanner) (*domain.MirroredEvent, error) {
	var (
		event                        domain.MirroredEvent
		attendeesJSON                string
		status, syncStatus, provider string
		startTime, endTime           sql.NullString
		lastSynced, deletedAt        sql.NullString
		createdAt, updatedAt         sql.NullString
		allDay, isDeleted            int
	)

	err := row.Scan(&event.ID, &event.WorkspaceID, &event.AccountID,
		&event.ExternalEventID, &event.ExternalCalendarID,
		&event.Title, &event.Description, &event.Location,
		&startTime, &endTime, &allDay, &status, &attendeesJSON,
		&event.MeetingLink, &provider, &syncStatus, &lastSynced,
		&isDeleted, &deletedAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning event mirror: %w", err)
	}

	if err := json.Unmarshal([]byte(attendeesJSON), &event.Attendees); err != nil {
		return nil, fmt.Errorf("unmarshalling attendees: %w", err)
	}

	event.Status = status
	event.MeetingProvider = domain.MeetingProvider(provider)
	event.SyncStatus = domain.SyncStatus(syncStatus)
	event.StartTime = parseTime(startTime)
	event.EndTime = parseTime(endTime)
	event.AllDay = allDay != 0
	event.IsDeleted = isDeleted != 0
	event.LastSyncedAt = parseTime(lastSynced)
	event.DeletedAt = parseTimePtr(deletedAt)
	event.CreatedAt = parseTime(createdAt)
	event.UpdatedAt = parseTime(updatedAt)
	return &event, nil
}

func collectEvents(rows *sql.Rows) ([]domain.MirroredEvent, error) {
	defer rows.Close()

	var events []domain.MirroredEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event mirrors: %w", err)
	}
	return events, nil
}

// requireAffected maps a zero-row update to ErrNotFound.
func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
