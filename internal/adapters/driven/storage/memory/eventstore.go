package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/calsync/internal/core/domain"
	"github.com/custodia-labs/calsync/internal/core/ports/driven"
)

// Ensure EventStore implements the interface.
var _ driven.EventMirrorStore = (*EventStore)(nil)

type eventKey struct {
	workspaceID string
	eventID     string
	calendarID  string
}

// EventStore is an in-memory implementation of driven.EventMirrorStore.
type EventStore struct {
	mu     sync.RWMutex
	events map[eventKey]domain.MirroredEvent
}

// NewEventStore creates a new in-memory event mirror store.
func NewEventStore() *EventStore {
	return &EventStore{
		events: make(map[eventKey]domain.MirroredEvent),
	}
}

func (s *EventStore) key(e domain.MirroredEvent) eventKey {
	return eventKey{e.WorkspaceID, e.ExternalEventID, e.ExternalCalendarID}
}

// Upsert creates or updates the mirror for its external key.
func (s *EventStore) Upsert(_ context.Context, event domain.MirroredEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.key(event)
	if existing, ok := s.events[key]; ok {
		event.ID = existing.ID
		event.CreatedAt = existing.CreatedAt
	} else if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	event.UpdatedAt = time.Now().UTC()
	s.events[key] = event
	return nil
}

// Get retrieves a mirror by its external key.
func (s *EventStore) Get(_ context.Context, workspaceID, externalEventID, externalCalendarID string) (*domain.MirroredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[eventKey{workspaceID, externalEventID, externalCalendarID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &event, nil
}

// TouchSynced bumps only LastSyncedAt.
func (s *EventStore) TouchSynced(_ context.Context, workspaceID, externalEventID, externalCalendarID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := eventKey{workspaceID, externalEventID, externalCalendarID}
	event, ok := s.events[key]
	if !ok {
		return domain.ErrNotFound
	}
	event.LastSyncedAt = at
	s.events[key] = event
	return nil
}

// SoftDelete marks a mirror deleted.
func (s *EventStore) SoftDelete(_ context.Context, workspaceID, externalEventID, externalCalendarID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := eventKey{workspaceID, externalEventID, externalCalendarID}
	event, ok := s.events[key]
	if !ok {
		return domain.ErrNotFound
	}
	event.IsDeleted = true
	event.DeletedAt = &at
	event.SyncStatus = domain.StatusDeleted
	event.UpdatedAt = at
	s.events[key] = event
	return nil
}

// ListByCalendar returns all mirrors for one remote calendar, including
// soft-deleted ones.
func (s *EventStore) ListByCalendar(_ context.Context, workspaceID, accountID, externalCalendarID string) ([]domain.MirroredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.MirroredEvent
	for _, event := range s.events {
		if event.WorkspaceID == workspaceID && event.AccountID == accountID && event.ExternalCalendarID == externalCalendarID {
			result = append(result, event)
		}
	}
	return result, nil
}

// ListByWorkspace returns mirrors matching the query.
func (s *EventStore) ListByWorkspace(_ context.Context, workspaceID string, q driven.EventQuery) ([]domain.MirroredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.MirroredEvent
	for _, event := range s.events {
		if event.WorkspaceID != workspaceID {
			continue
		}
		if event.IsDeleted && !q.IncludeDeleted {
			continue
		}
		if q.AccountID != "" && event.AccountID != q.AccountID {
			continue
		}
		if !q.Start.IsZero() && event.EndTime.Before(q.Start) {
			continue
		}
		if !q.End.IsZero() && event.StartTime.After(q.End) {
			continue
		}
		result = append(result, event)
	}
	return result, nil
}

// DeleteByAccount removes all mirrors for an account.
func (s *EventStore) DeleteByAccount(_ context.Context, workspaceID, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, event := range s.events {
		if event.WorkspaceID == workspaceID && event.AccountID == accountID {
			delete(s.events, key)
		}
	}
	return nil
}
