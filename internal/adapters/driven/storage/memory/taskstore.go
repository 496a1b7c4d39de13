package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/calsync/internal/core/domain"
	"github.com/custodia-labs/calsync/internal/core/ports/driven"
)

// Ensure TaskStore implements the interface.
var _ driven.TaskMirrorStore = (*TaskStore)(nil)

type taskKey struct {
	workspaceID string
	taskID      string
	listID      string
}

// TaskStore is an in-memory implementation of driven.TaskMirrorStore.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[taskKey]domain.MirroredTask
}

// NewTaskStore creates a new in-memory task mirror store.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[taskKey]domain.MirroredTask),
	}
}

func (s *TaskStore) key(t domain.MirroredTask) taskKey {
	return taskKey{t.WorkspaceID, t.ExternalTaskID, t.ExternalListID}
}

// Upsert creates or updates the mirror for its external key.
func (s *TaskStore) Upsert(_ context.Context, task domain.MirroredTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.key(task)
	if existing, ok := s.tasks[key]; ok {
		task.ID = existing.ID
		task.CreatedAt = existing.CreatedAt
	} else if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	task.UpdatedAt = time.Now().UTC()
	s.tasks[key] = task
	return nil
}

// Save writes a mirror addressed by its local ID.
func (s *TaskStore) Save(_ context.Context, task domain.MirroredTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, existing := range s.tasks {
		if existing.ID == task.ID && existing.WorkspaceID == task.WorkspaceID {
			delete(s.tasks, key)
			break
		}
	}
	task.UpdatedAt = time.Now().UTC()
	s.tasks[s.key(task)] = task
	return nil
}

// Get retrieves a mirror by its external key.
func (s *TaskStore) Get(_ context.Context, workspaceID, externalTaskID, externalListID string) (*domain.MirroredTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskKey{workspaceID, externalTaskID, externalListID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &task, nil
}

// GetByID retrieves a mirror by its local ID.
func (s *TaskStore) GetByID(_ context.Context, workspaceID, id string) (*domain.MirroredTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, task := range s.tasks {
		if task.WorkspaceID == workspaceID && task.ID == id {
			return &task, nil
		}
	}
	return nil, domain.ErrNotFound
}

// TouchSynced bumps only LastSyncedAt.
func (s *TaskStore) TouchSynced(_ context.Context, workspaceID, externalTaskID, externalListID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := taskKey{workspaceID, externalTaskID, externalListID}
	task, ok := s.tasks[key]
	if !ok {
		return domain.ErrNotFound
	}
	task.LastSyncedAt = at
	s.tasks[key] = task
	return nil
}

// SoftDelete marks a mirror deleted.
func (s *TaskStore) SoftDelete(_ context.Context, workspaceID, externalTaskID, externalListID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := taskKey{workspaceID, externalTaskID, externalListID}
	task, ok := s.tasks[key]
	if !ok {
		return domain.ErrNotFound
	}
	task.IsDeleted = true
	task.DeletedAt = &at
	task.SyncStatus = domain.StatusDeleted
	task.UpdatedAt = at
	s.tasks[key] = task
	return nil
}

// ListByAccount returns all mirrors for an account, including soft-deleted
// ones.
func (s *TaskStore) ListByAccount(_ context.Context, workspaceID, accountID string) ([]domain.MirroredTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.MirroredTask
	for _, task := range s.tasks {
		if task.WorkspaceID == workspaceID && task.AccountID == accountID {
			result = append(result, task)
		}
	}
	return result, nil
}

// ListByWorkspace returns mirrors matching the query.
func (s *TaskStore) ListByWorkspace(_ context.Context, workspaceID string, q driven.TaskQuery) ([]domain.MirroredTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.MirroredTask
	for _, task := range s.tasks {
		if task.WorkspaceID != workspaceID {
			continue
		}
		if task.IsDeleted && !q.IncludeDeleted {
			continue
		}
		if q.AccountID != "" && task.AccountID != q.AccountID {
			continue
		}
		if q.Status != "" && task.SyncStatus != q.Status {
			continue
		}
		result = append(result, task)
	}
	return result, nil
}

// DeleteByAccount removes all mirrors for an account.
func (s *TaskStore) DeleteByAccount(_ context.Context, workspaceID, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, task := range s.tasks {
		if task.WorkspaceID == workspaceID && task.AccountID == accountID {
			delete(s.tasks, key)
		}
	}
	return nil
}
