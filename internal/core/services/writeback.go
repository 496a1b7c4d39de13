package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/calsync/internal/core/domain"
	"github.com/custodia-labs/calsync/internal/core/ports/driven"
	"github.com/custodia-labs/calsync/internal/core/ports/driving"
	"github.com/custodia-labs/calsync/internal/logger"
)

// Ensure WriteBack implements the interface.
var _ driving.WriteBackCoordinator = (*WriteBack)(nil)

// Conflict resolutions accepted by ResolveConflict.
const (
	ResolutionKeepLocal    = "keep-local"
	ResolutionAcceptRemote = "accept-remote"
)

// WriteBack pushes local task edits to the remote provider. Updates run
// through an ordered chain of strategies; a strategy failure falls through
// to the next one, and only the full chain failing marks the mirror
// errored.
type WriteBack struct {
	tasks   driven.TaskMirrorStore
	remotes driven.RemoteFactory
	auth    *AuthManager
}

// NewWriteBack creates a write-back coordinator.
func NewWriteBack(tasks driven.TaskMirrorStore, remotes driven.RemoteFactory, auth *AuthManager) *WriteBack {
	return &WriteBack{
		tasks:   tasks,
		remotes: remotes,
		auth:    auth,
	}
}

// writeStrategy is one way of delivering a task update.
type writeStrategy struct {
	name string
	run  func(ctx context.Context, w driven.TaskWriter, listID, taskID string, task domain.RemoteTask) error
}

// Strategies are tried in order: the client library's full update, its
// patch call, then raw HTTP PUT and PATCH against the provider endpoint.
var updateStrategies = []writeStrategy{
	{"update", func(ctx context.Context, w driven.TaskWriter, listID, taskID string, task domain.RemoteTask) error {
		return w.UpdateTask(ctx, listID, taskID, task)
	}},
	{"patch", func(ctx context.Context, w driven.TaskWriter, listID, taskID string, task domain.RemoteTask) error {
		return w.PatchTask(ctx, listID, taskID, task)
	}},
	{"raw-put", func(ctx context.Context, w driven.TaskWriter, listID, taskID string, task domain.RemoteTask) error {
		return w.RawPut(ctx, listID, taskID, task)
	}},
	{"raw-patch", func(ctx context.Context, w driven.TaskWriter, listID, taskID string, task domain.RemoteTask) error {
		return w.RawPatch(ctx, listID, taskID, task)
	}},
}

// requireRemoteIdentity rejects a mirror that was never paired with a
// remote task. Without both remote identifiers no endpoint can be
// addressed, so the check runs before any token or network work.
func requireRemoteIdentity(task *domain.MirroredTask) error {
	if task.ExternalTaskID == "" {
		return fmt.Errorf("%w: task %s has no remote task ID", domain.ErrValidation, task.ID)
	}
	if task.ExternalListID == "" {
		return fmt.Errorf("%w: task %s has no remote list ID", domain.ErrValidation, task.ID)
	}
	return nil
}

// guard rejects write-back before any network traffic when the account's
// task capability is off or read-only.
func (c *WriteBack) guard(account *domain.IntegrationAccount) error {
	if !account.Settings.Tasks.Enabled {
		return fmt.Errorf("%w: task sync disabled for account %s", domain.ErrCapability, account.ID)
	}
	if account.Settings.Tasks.Direction != domain.DirectionBidirectional {
		return fmt.Errorf("%w: account %s syncs tasks read-only", domain.ErrCapability, account.ID)
	}
	return nil
}

// PushTaskUpdate writes the mirror's content to the remote task. A remote
// copy that changed since the last sync and diverges in a user-visible
// field blocks the overwrite: the mirror is marked conflicted with the
// remote version retained for resolution.
func (c *WriteBack) PushTaskUpdate(ctx context.Context, account *domain.IntegrationAccount, task *domain.MirroredTask) error {
	return c.push(ctx, account, task, true)
}

func (c *WriteBack) push(ctx context.Context, account *domain.IntegrationAccount, task *domain.MirroredTask, checkConflict bool) error {
	if err := c.guard(account); err != nil {
		return err
	}
	if task.IsDeleted {
		return fmt.Errorf("%w: task %s is deleted", domain.ErrInvalidInput, task.ID)
	}
	if task.Title == "" {
		return fmt.Errorf("%w: task %s: title must not be empty", domain.ErrValidation, task.ID)
	}
	if err := requireRemoteIdentity(task); err != nil {
		return err
	}

	token, err := c.auth.EnsureFreshToken(ctx, account)
	if err != nil {
		return err
	}
	writer, err := c.remotes.TaskWriter(ctx, token)
	if err != nil {
		return err
	}

	if checkConflict {
		conflicted, err := c.detectConflict(ctx, writer, task)
		if err != nil {
			return err
		}
		if conflicted {
			if err := c.tasks.Save(ctx, *task); err != nil {
				return fmt.Errorf("persisting conflict: %w", err)
			}
			return fmt.Errorf("%w: task %s changed remotely since last sync", domain.ErrConflict, task.ID)
		}
	}

	payload := domain.RemoteTask{
		ID:       task.ExternalTaskID,
		ListID:   task.ExternalListID,
		Title:    task.Title,
		Notes:    task.Notes,
		Status:   task.Status,
		Due:      task.DueDate,
		ParentID: task.ParentExternalID,
		Position: task.Position,
	}

	var attempts []error
	for _, strategy := range updateStrategies {
		err := strategy.run(ctx, writer, task.ExternalListID, task.ExternalTaskID, payload)
		if err == nil {
			now := time.Now().UTC()
			task.SyncStatus = domain.StatusSynced
			task.LastSyncedAt = now
			task.RemoteSnapshot = nil
			task.UpdatedAt = now
			if saveErr := c.tasks.Save(ctx, *task); saveErr != nil {
				return fmt.Errorf("persisting pushed task: %w", saveErr)
			}
			logger.Debug("Pushed task %s via %s strategy", task.ID, strategy.name)
			return nil
		}
		if errors.Is(err, domain.ErrAuthExpired) {
			return err
		}
		attempts = append(attempts, fmt.Errorf("%s: %w", strategy.name, err))
	}

	task.SyncStatus = domain.StatusError
	task.UpdatedAt = time.Now().UTC()
	if saveErr := c.tasks.Save(ctx, *task); saveErr != nil {
		logger.Warn("Failed to persist error status for task %s: %v", task.ID, saveErr)
	}
	return fmt.Errorf("all update strategies failed for task %s: %w", task.ID, errors.Join(attempts...))
}

// detectConflict fetches the remote copy and marks the mirror conflicted
// when the remote changed after the last sync and differs in a
// user-visible field. Both versions are kept; neither overwrites the other
// without explicit resolution.
func (c *WriteBack) detectConflict(ctx context.Context, writer driven.TaskWriter, task *domain.MirroredTask) (bool, error) {
	remote, err := writer.GetTask(ctx, task.ExternalListID, task.ExternalTaskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted remotely; the push recreates nothing, report it.
			return false, fmt.Errorf("%w: task %s no longer exists remotely", domain.ErrNotFound, task.ID)
		}
		return false, err
	}

	if !remote.UpdatedAt.After(task.LastSyncedAt) {
		return false, nil
	}
	if !task.DivergesFrom(*remote) {
		return false, nil
	}

	task.SyncStatus = domain.StatusConflict
	task.RemoteSnapshot = &domain.RemoteTaskSnapshot{
		Title:     remote.Title,
		Notes:     remote.Notes,
		Status:    remote.Status,
		DueDate:   remote.Due,
		UpdatedAt: remote.UpdatedAt,
	}
	task.UpdatedAt = time.Now().UTC()
	return true, nil
}

// DeleteTask removes the remote task and soft-deletes the mirror. Known
// subtasks are deleted first, best-effort: a failing subtask delete is
// logged and skipped so orphan children do not block the parent. The local
// mirror is only soft-deleted after the parent's remote delete succeeds.
func (c *WriteBack) DeleteTask(ctx context.Context, account *domain.IntegrationAccount, task *domain.MirroredTask) error {
	if err := c.guard(account); err != nil {
		return err
	}
	if err := requireRemoteIdentity(task); err != nil {
		return err
	}

	token, err := c.auth.EnsureFreshToken(ctx, account)
	if err != nil {
		return err
	}
	writer, err := c.remotes.TaskWriter(ctx, token)
	if err != nil {
		return err
	}

	subtasks, err := writer.ListSubtasks(ctx, task.ExternalListID, task.ExternalTaskID)
	if err != nil {
		logger.Warn("Listing subtasks of %s failed: %v", task.ExternalTaskID, err)
	}
	for _, sub := range subtasks {
		if err := writer.DeleteTask(ctx, task.ExternalListID, sub.ID); err != nil {
			logger.Warn("Deleting subtask %s failed: %v", sub.ID, err)
		}
	}

	if err := writer.DeleteTask(ctx, task.ExternalListID, task.ExternalTaskID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		task.SyncStatus = domain.StatusError
		task.UpdatedAt = time.Now().UTC()
		if saveErr := c.tasks.Save(ctx, *task); saveErr != nil {
			logger.Warn("Failed to persist error status for task %s: %v", task.ID, saveErr)
		}
		return fmt.Errorf("deleting remote task %s: %w", task.ExternalTaskID, err)
	}

	return c.tasks.SoftDelete(ctx, task.WorkspaceID, task.ExternalTaskID, task.ExternalListID, time.Now().UTC())
}

// ResolveConflict applies an explicit resolution to a conflicted mirror.
func (c *WriteBack) ResolveConflict(ctx context.Context, account *domain.IntegrationAccount, task *domain.MirroredTask, resolution string) error {
	if task.SyncStatus != domain.StatusConflict {
		return fmt.Errorf("%w: task %s is not conflicted", domain.ErrInvalidInput, task.ID)
	}

	switch resolution {
	case ResolutionKeepLocal:
		// Re-push the local copy, skipping the conflict check the user
		// just overrode.
		return c.push(ctx, account, task, false)

	case ResolutionAcceptRemote:
		if task.RemoteSnapshot == nil {
			return fmt.Errorf("%w: task %s has no remote snapshot", domain.ErrInvalidInput, task.ID)
		}
		now := time.Now().UTC()
		task.Title = task.RemoteSnapshot.Title
		task.Notes = task.RemoteSnapshot.Notes
		task.Status = task.RemoteSnapshot.Status
		task.DueDate = task.RemoteSnapshot.DueDate
		task.RemoteSnapshot = nil
		task.SyncStatus = domain.StatusSynced
		task.LastSyncedAt = now
		task.UpdatedAt = now
		return c.tasks.Save(ctx, *task)

	default:
		return fmt.Errorf("%w: unknown resolution %q", domain.ErrValidation, resolution)
	}
}
