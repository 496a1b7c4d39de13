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

// taskStore implements driven.TaskMirrorStore.
type taskStore struct {
	store *Store
}

var _ driven.TaskMirrorStore = (*taskStore)(nil)

const taskColumns = `id, workspace_id, account_id, external_task_id, external_list_id,
	title, notes, due_date, status, parent_external_id, position, sync_status,
	last_synced_at, is_deleted, deleted_at, remote_snapshot, created_at, updated_at`

// Upsert creates or updates the mirror for its external key. An existing
// row keeps its local ID and created_at.
func (s *taskStore) Upsert(ctx context.Context, task domain.MirroredTask) error {
	snapshotJSON, err := marshalSnapshot(task.RemoteSnapshot)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO task_mirrors (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(workspace_id, external_task_id, external_list_id) DO UPDATE SET
			account_id = excluded.account_id,
			title = excluded.title,
			notes = excluded.notes,
			due_date = excluded.due_date,
			status = excluded.status,
			parent_external_id = excluded.parent_external_id,
			position = excluded.position,
			sync_status = excluded.sync_status,
			last_synced_at = excluded.last_synced_at,
			is_deleted = excluded.is_deleted,
			deleted_at = excluded.deleted_at,
			remote_snapshot = excluded.remote_snapshot,
			updated_at = excluded.updated_at
	`, task.ID, task.WorkspaceID, task.AccountID, task.ExternalTaskID, task.ExternalListID,
		task.Title, task.Notes, formatTimePtr(task.DueDate), task.Status,
		task.ParentExternalID, task.Position, string(task.SyncStatus),
		formatTime(task.LastSyncedAt), boolToInt(task.IsDeleted), formatTimePtr(task.DeletedAt),
		snapshotJSON, formatTime(task.CreatedAt), formatTime(task.UpdatedAt))

	if err != nil {
		return fmt.Errorf("upserting task mirror: %w", err)
	}
	return nil
}

// Save writes a mirror addressed by its local ID. Used for write-back
// status transitions.
func (s *taskStore) Save(ctx context.Context, task domain.MirroredTask) error {
	snapshotJSON, err := marshalSnapshot(task.RemoteSnapshot)
	if err != nil {
		return err
	}

	result, err := s.store.db.ExecContext(ctx, `
		UPDATE task_mirrors SET
			external_task_id = ?, external_list_id = ?,
			title = ?, notes = ?, due_date = ?, status = ?,
			parent_external_id = ?, position = ?, sync_status = ?,
			last_synced_at = ?, is_deleted = ?, deleted_at = ?,
			remote_snapshot = ?, updated_at = ?
		WHERE workspace_id = ? AND id = ?
	`, task.ExternalTaskID, task.ExternalListID,
		task.Title, task.Notes, formatTimePtr(task.DueDate), task.Status,
		task.ParentExternalID, task.Position, string(task.SyncStatus),
		formatTime(task.LastSyncedAt), boolToInt(task.IsDeleted), formatTimePtr(task.DeletedAt),
		snapshotJSON, formatTime(time.Now().UTC()),
		task.WorkspaceID, task.ID)
	if err != nil {
		return fmt.Errorf("saving task mirror: %w", err)
	}
	return requireAffected(result)
}

// Get retrieves a mirror by its external key.
func (s *taskStore) Get(ctx context.Context, workspaceID, externalTaskID, externalListID string) (*domain.MirroredTask, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM task_mirrors
		WHERE workspace_id = ? AND external_task_id = ? AND external_list_id = ?
	`, workspaceID, externalTaskID, externalListID)
	return scanTask(row)
}

// GetByID retrieves a mirror by its local ID.
func (s *taskStore) GetByID(ctx context.Context, workspaceID, id string) (*domain.MirroredTask, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM task_mirrors WHERE workspace_id = ? AND id = ?
	`, workspaceID, id)
	return scanTask(row)
}

// TouchSynced bumps only LastSyncedAt for an unchanged mirror.
func (s *taskStore) TouchSynced(ctx context.Context, workspaceID, externalTaskID, externalListID string, at time.Time) error {
	result, err := s.store.db.ExecContext(ctx, `
		UPDATE task_mirrors SET last_synced_at = ?
		WHERE workspace_id = ? AND external_task_id = ? AND external_list_id = ?
	`, formatTime(at), workspaceID, externalTaskID, externalListID)
	if err != nil {
		return fmt.Errorf("touching task mirror: %w", err)
	}
	return requireAffected(result)
}

// SoftDelete marks a mirror deleted. The row is kept.
func (s *taskStore) SoftDelete(ctx context.Context, workspaceID, externalTaskID, externalListID string, at time.Time) error {
	result, err := s.store.db.ExecContext(ctx, `
		UPDATE task_mirrors SET is_deleted = 1, deleted_at = ?, sync_status = ?, updated_at = ?
		WHERE workspace_id = ? AND external_task_id = ? AND external_list_id = ?
	`, formatTime(at), string(domain.StatusDeleted), formatTime(at),
		workspaceID, externalTaskID, externalListID)
	if err != nil {
		return fmt.Errorf("soft-deleting task mirror: %w", err)
	}
	return requireAffected(result)
}

// ListByAccount returns all mirrors for an account, including soft-deleted
// ones.
func (s *taskStore) ListByAccount(ctx context.Context, workspaceID, accountID string) ([]domain.MirroredTask, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM task_mirrors WHERE workspace_id = ? AND account_id = ?
	`, workspaceID, accountID)
	if err != nil {
		return nil, fmt.Errorf("querying task mirrors: %w", err)
	}
	return collectTasks(rows)
}

// ListByWorkspace returns mirrors matching the query.
func (s *taskStore) ListByWorkspace(ctx context.Context, workspaceID string, q driven.TaskQuery) ([]domain.MirroredTask, error) {
	query := "SELECT " + taskColumns + " FROM task_mirrors WHERE workspace_id = ?"
	args := []any{workspaceID}

	if !q.IncludeDeleted {
		query += " AND is_deleted = 0"
	}
	if q.AccountID != "" {
		query += " AND account_id = ?"
		args = append(args, q.AccountID)
	}
	if q.Status != "" {
		query += " AND sync_status = ?"
		args = append(args, string(q.Status))
	}
	query += " ORDER BY position"

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying task mirrors: %w", err)
	}
	return collectTasks(rows)
}

// DeleteByAccount removes all mirrors for an account.
func (s *taskStore) DeleteByAccount(ctx context.Context, workspaceID, accountID string) error {
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM task_mirrors WHERE workspace_id = ? AND account_id = ?",
		workspaceID, accountID)
	if err != nil {
		return fmt.Errorf("deleting task mirrors: %w", err)
	}
	return nil
}

func marshalSnapshot(snapshot *domain.RemoteTaskSnapshot) (any, error) {
	if snapshot == nil {
		return nil, nil
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshalling remote snapshot: %w", err)
	}
	return string(data), nil
}

func scanTask(row rowScanner) (*domain.MirroredTask, error) {
	var (
		task                  domain.MirroredTask
		syncStatus            string
		dueDate, lastSynced   sql.NullString
		deletedAt, snapshot   sql.NullString
		createdAt, updatedAt  sql.NullString
		isDeleted             int
	)

	err := row.Scan(&task.ID, &task.WorkspaceID, &task.AccountID,
		&task.ExternalTaskID, &task.ExternalListID,
		&task.Title, &task.Notes, &dueDate, &task.Status,
		&task.ParentExternalID, &task.Position, &syncStatus,
		&lastSynced, &isDeleted, &deletedAt, &snapshot,
		&createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning task mirror: %w", err)
	}

	if snapshot.Valid && snapshot.String != "" {
		var snap domain.RemoteTaskSnapshot
		if err := json.Unmarshal([]byte(snapshot.String), &snap); err != nil {
			return nil, fmt.Errorf("unmarshalling remote snapshot: %w", err)
		}
		task.RemoteSnapshot = &snap
	}

	task.SyncStatus = domain.SyncStatus(syncStatus)
	task.DueDate = parseTimePtr(dueDate)
	task.LastSyncedAt = parseTime(lastSynced)
	task.IsDeleted = isDeleted != 0
	task.DeletedAt = parseTimePtr(deletedAt)
	task.CreatedAt = parseTime(createdAt)
	task.UpdatedAt = parseTime(updatedAt)
	return &task, nil
}

func collectTasks(rows *sql.Rows) ([]domain.MirroredTask, error) {
	defer rows.Close()

	var tasks []domain.MirroredTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task mirrors: %w", err)
	}
	return tasks, nil
}
