package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/calsync/internal/core/domain"
	"github.com/custodia-labs/calsync/internal/core/ports/driven"
	"github.com/custodia-labs/calsync/internal/core/ports/driving"
	"github.com/custodia-labs/calsync/internal/logger"
)

// Ensure SyncEngine implements the interface.
var _ driving.SyncRunner = (*SyncEngine)(nil)

// SyncEngineConfig holds the pull window configuration.
type SyncEngineConfig struct {
	// Lookback bounds how far into the past calendar events are pulled.
	Lookback time.Duration
	// Lookahead bounds how far into the future.
	Lookahead time.Duration
}

// DefaultSyncEngineConfig returns the default pull window: 7 days back,
// 365 days ahead.
func DefaultSyncEngineConfig() SyncEngineConfig {
	return SyncEngineConfig{
		Lookback:  7 * 24 * time.Hour,
		Lookahead: 365 * 24 * time.Hour,
	}
}

func (c SyncEngineConfig) withDefaults() SyncEngineConfig {
	def := DefaultSyncEngineConfig()
	if c.Lookback <= 0 {
		c.Lookback = def.Lookback
	}
	if c.Lookahead <= 0 {
		c.Lookahead = def.Lookahead
	}
	return c
}

// SyncEngine performs per-account pull reconciliation: it pages remote
// state, upserts mirrors, and soft-deletes mirrors absent from the full
// remote listing. One failing calendar or list never aborts the others.
type SyncEngine struct {
	accounts driven.AccountStore
	events   driven.EventMirrorStore
	tasks    driven.TaskMirrorStore
	remotes  driven.RemoteFactory
	auth     *AuthManager
	cfg      SyncEngineConfig
}

// NewSyncEngine creates a sync engine.
func NewSyncEngine(
	accounts driven.AccountStore,
	events driven.EventMirrorStore,
	tasks driven.TaskMirrorStore,
	remotes driven.RemoteFactory,
	auth *AuthManager,
	cfg SyncEngineConfig,
) *SyncEngine {
	return &SyncEngine{
		accounts: accounts,
		events:   events,
		tasks:    tasks,
		remotes:  remotes,
		auth:     auth,
		cfg:      cfg.withDefaults(),
	}
}

// SyncCalendar reconciles the account's calendars. The returned error is
// non-nil only for auth expiry, which halts all remaining work for this
// account; every other failure is recorded and isolated.
func (e *SyncEngine) SyncCalendar(ctx context.Context, account *domain.IntegrationAccount) (domain.SyncCycleResult, error) {
	var result domain.SyncCycleResult
	if !account.Settings.Calendar.Enabled {
		return result, nil
	}

	token, err := e.auth.EnsureFreshToken(ctx, account)
	if err != nil {
		if errors.Is(err, domain.ErrAuthExpired) {
			return result, err
		}
		e.recordFailure(ctx, account, &result, "calendar", err)
		return result, nil
	}

	client, err := e.remotes.CalendarClient(ctx, token)
	if err != nil {
		e.recordFailure(ctx, account, &result, "calendar", err)
		return result, nil
	}

	calendarIDs := account.Settings.Calendar.SelectedIDs
	if len(calendarIDs) == 0 {
		calendars, err := client.ListCalendars(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrAuthExpired) {
				e.expireAccount(ctx, account, "calendar")
				return result, fmt.Errorf("account %s: %w", account.ID, domain.ErrAuthExpired)
			}
			e.recordFailure(ctx, account, &result, "calendar", err)
			return result, nil
		}
		for _, cal := range calendars {
			calendarIDs = append(calendarIDs, cal.ID)
		}
	}

	now := time.Now().UTC()
	window := domain.NewSyncWindow(now, e.cfg.Lookback, e.cfg.Lookahead)

	for _, calendarID := range calendarIDs {
		if err := e.syncOneCalendar(ctx, account, client, calendarID, window, &result); err != nil {
			if errors.Is(err, domain.ErrAuthExpired) {
				e.expireAccount(ctx, account, "calendar:"+calendarID)
				return result, fmt.Errorf("account %s: %w", account.ID, domain.ErrAuthExpired)
			}
			account.RecordError("calendar:"+calendarID, err.Error())
			result.Errors = append(result.Errors, fmt.Sprintf("calendar %s: %v", calendarID, err))
		}
	}

	account.LastSyncAt = now
	e.saveAccount(ctx, account)

	logger.Info("Calendar sync for account %s: %d synced, %d deleted, %d errors",
		account.ID, result.SyncedCount, result.DeletedCount, len(result.Errors))
	return result, nil
}

// syncOneCalendar pulls one calendar's window and diffs it into mirrors.
func (e *SyncEngine) syncOneCalendar(
	ctx context.Context,
	account *domain.IntegrationAccount,
	client driven.CalendarClient,
	calendarID string,
	window domain.SyncWindow,
	result *domain.SyncCycleResult,
) error {
	events, err := client.ListEvents(ctx, calendarID, window)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(events))
	for _, remote := range events {
		if remote.Cancelled() {
			// Treated as absent from the listing.
			continue
		}
		seen[remote.ID] = struct{}{}

		if err := e.upsertEvent(ctx, account, remote, result); err != nil {
			account.RecordError("calendar:"+calendarID, err.Error())
			result.Errors = append(result.Errors, fmt.Sprintf("event %s: %v", remote.ID, err))
		}
	}

	// Soft-delete mirrors inside the window that the full listing no
	// longer contains. Mirrors outside the window are left alone.
	local, err := e.events.ListByCalendar(ctx, account.WorkspaceID, account.ID, calendarID)
	if err != nil {
		return fmt.Errorf("listing local mirrors: %w", err)
	}
	now := time.Now().UTC()
	for i := range local {
		mirror := &local[i]
		if mirror.IsDeleted {
			continue
		}
		if _, ok := seen[mirror.ExternalEventID]; ok {
			continue
		}
		if mirror.StartTime.Before(window.Start) || mirror.StartTime.After(window.End) {
			continue
		}
		if err := e.events.SoftDelete(ctx, mirror.WorkspaceID, mirror.ExternalEventID, mirror.ExternalCalendarID, now); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("soft-delete event %s: %v", mirror.ExternalEventID, err))
			continue
		}
		result.DeletedCount++
	}

	return nil
}

// upsertEvent writes one remote event into its mirror. Unchanged mirrors
// only get their LastSyncedAt bumped so downstream consumers see no
// spurious update.
func (e *SyncEngine) upsertEvent(
	ctx context.Context,
	account *domain.IntegrationAccount,
	remote domain.RemoteEvent,
	result *domain.SyncCycleResult,
) error {
	existing, err := e.events.Get(ctx, account.WorkspaceID, remote.ID, remote.CalendarID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	now := time.Now().UTC()

	if existing == nil {
		link, provider := domain.ExtractMeetingLink(remote.ConferenceURI, remote.Location, remote.Description)
		mirror := domain.MirroredEvent{
			ID:                 uuid.NewString(),
			WorkspaceID:        account.WorkspaceID,
			AccountID:          account.ID,
			ExternalEventID:    remote.ID,
			ExternalCalendarID: remote.CalendarID,
			Title:              remote.Title,
			Description:        remote.Description,
			Location:           remote.Location,
			StartTime:          remote.Start,
			EndTime:            remote.End,
			AllDay:             remote.AllDay,
			Status:             remote.Status,
			Attendees:          remote.Attendees,
			MeetingLink:        link,
			MeetingProvider:    provider,
			SyncStatus:         domain.StatusSynced,
			LastSyncedAt:       now,
		}
		if err := e.events.Upsert(ctx, mirror); err != nil {
			return err
		}
		result.SyncedCount++
		return nil
	}

	// A soft-deleted mirror is never resurrected by re-sync.
	if existing.IsDeleted {
		return nil
	}

	if existing.ContentEquals(remote) {
		return e.events.TouchSynced(ctx, existing.WorkspaceID, existing.ExternalEventID, existing.ExternalCalendarID, now)
	}

	link, provider := domain.ExtractMeetingLink(remote.ConferenceURI, remote.Location, remote.Description)
	existing.Title = remote.Title
	existing.Description = remote.Description
	existing.Location = remote.Location
	existing.StartTime = remote.Start
	existing.EndTime = remote.End
	existing.AllDay = remote.AllDay
	existing.Status = remote.Status
	existing.Attendees = remote.Attendees
	existing.MeetingLink = link
	existing.MeetingProvider = provider
	existing.SyncStatus = domain.StatusSynced
	existing.LastSyncedAt = now

	if err := e.events.Upsert(ctx, *existing); err != nil {
		return err
	}
	result.SyncedCount++
	return nil
}

// SyncTasks reconciles the account's task lists: upserts mirrors, then
// soft-deletes any local mirror absent from the set of all remote task IDs
// collected during the same pass.
func (e *SyncEngine) SyncTasks(ctx context.Context, account *domain.IntegrationAccount) (domain.SyncCycleResult, error) {
	var result domain.SyncCycleResult
	if !account.Settings.Tasks.Enabled {
		return result, nil
	}

	token, err := e.auth.EnsureFreshToken(ctx, account)
	if err != nil {
		if errors.Is(err, domain.ErrAuthExpired) {
			return result, err
		}
		e.recordFailure(ctx, account, &result, "tasks", err)
		return result, nil
	}

	client, err := e.remotes.TaskClient(ctx, token)
	if err != nil {
		e.recordFailure(ctx, account, &result, "tasks", err)
		return result, nil
	}

	discovered := false
	listIDs := account.Settings.Tasks.SelectedIDs
	if len(listIDs) == 0 {
		discovered = true
		lists, err := client.ListTaskLists(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrAuthExpired) {
				e.expireAccount(ctx, account, "tasks")
				return result, fmt.Errorf("account %s: %w", account.ID, domain.ErrAuthExpired)
			}
			e.recordFailure(ctx, account, &result, "tasks", err)
			return result, nil
		}
		for _, list := range lists {
			listIDs = append(listIDs, list.ID)
		}
	}

	remoteIDs := make(map[string]struct{})
	synced := make(map[string]bool, len(listIDs))
	for _, listID := range listIDs {
		tasks, err := client.ListTasks(ctx, listID)
		if err != nil {
			if errors.Is(err, domain.ErrAuthExpired) {
				e.expireAccount(ctx, account, "tasks:"+listID)
				return result, fmt.Errorf("account %s: %w", account.ID, domain.ErrAuthExpired)
			}
			account.RecordError("tasks:"+listID, err.Error())
			result.Errors = append(result.Errors, fmt.Sprintf("list %s: %v", listID, err))
			continue
		}
		synced[listID] = true

		for _, remote := range tasks {
			if remote.Deleted {
				continue
			}
			remoteIDs[remote.ID] = struct{}{}
			if err := e.upsertTask(ctx, account, remote, &result); err != nil {
				account.RecordError("tasks:"+listID, err.Error())
				result.Errors = append(result.Errors, fmt.Sprintf("task %s: %v", remote.ID, err))
			}
		}
	}

	e.softDeleteAbsentTasks(ctx, account, remoteIDs, synced, discovered, len(listIDs), &result)

	account.LastSyncAt = time.Now().UTC()
	e.saveAccount(ctx, account)

	logger.Info("Task sync for account %s: %d synced, %d deleted, %d errors",
		account.ID, result.SyncedCount, result.DeletedCount, len(result.Errors))
	return result, nil
}

// softDeleteAbsentTasks performs the deletion diff. The remote ID set is
// collected during the sync pass itself, so each list is listed once per
// cycle. Lists that failed to fetch are excluded from the diff so a
// transient failure cannot mass-delete their mirrors.
func (e *SyncEngine) softDeleteAbsentTasks(
	ctx context.Context,
	account *domain.IntegrationAccount,
	remoteIDs map[string]struct{},
	synced map[string]bool,
	discovered bool,
	listCount int,
	result *domain.SyncCycleResult,
) {
	if len(synced) == 0 && listCount > 0 {
		return
	}

	mirrors, err := e.tasks.ListByAccount(ctx, account.WorkspaceID, account.ID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("listing task mirrors: %v", err))
		return
	}

	// In discovery mode with a fully successful pass, the remote set is a
	// complete listing, so mirrors from vanished lists are deleted too.
	fullListing := discovered && len(synced) == listCount

	now := time.Now().UTC()
	for i := range mirrors {
		mirror := &mirrors[i]
		if mirror.IsDeleted {
			continue
		}
		if !fullListing && !synced[mirror.ExternalListID] {
			continue
		}
		if _, ok := remoteIDs[mirror.ExternalTaskID]; ok {
			continue
		}
		if err := e.tasks.SoftDelete(ctx, mirror.WorkspaceID, mirror.ExternalTaskID, mirror.ExternalListID, now); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("soft-delete task %s: %v", mirror.ExternalTaskID, err))
			continue
		}
		result.DeletedCount++
	}
}

// upsertTask writes one remote task into its mirror.
func (e *SyncEngine) upsertTask(
	ctx context.Context,
	account *domain.IntegrationAccount,
	remote domain.RemoteTask,
	result *domain.SyncCycleResult,
) error {
	existing, err := e.tasks.Get(ctx, account.WorkspaceID, remote.ID, remote.ListID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	now := time.Now().UTC()

	if existing == nil {
		mirror := domain.MirroredTask{
			ID:               uuid.NewString(),
			WorkspaceID:      account.WorkspaceID,
			AccountID:        account.ID,
			ExternalTaskID:   remote.ID,
			ExternalListID:   remote.ListID,
			Title:            remote.Title,
			Notes:            remote.Notes,
			DueDate:          remote.Due,
			Status:           remote.Status,
			ParentExternalID: remote.ParentID,
			Position:         remote.Position,
			SyncStatus:       domain.StatusSynced,
			LastSyncedAt:     now,
		}
		if err := e.tasks.Upsert(ctx, mirror); err != nil {
			return err
		}
		result.SyncedCount++
		return nil
	}

	if existing.IsDeleted {
		return nil
	}

	// Pending or conflicted mirrors hold local state awaiting write-back
	// or resolution; the pull pass must not clobber them.
	if existing.SyncStatus == domain.StatusPending || existing.SyncStatus == domain.StatusConflict {
		return nil
	}

	if existing.ContentEquals(remote) {
		return e.tasks.TouchSynced(ctx, existing.WorkspaceID, existing.ExternalTaskID, existing.ExternalListID, now)
	}

	existing.Title = remote.Title
	existing.Notes = remote.Notes
	existing.DueDate = remote.Due
	existing.Status = remote.Status
	existing.ParentExternalID = remote.ParentID
	existing.Position = remote.Position
	existing.SyncStatus = domain.StatusSynced
	existing.LastSyncedAt = now

	if err := e.tasks.Upsert(ctx, *existing); err != nil {
		return err
	}
	result.SyncedCount++
	return nil
}

// recordFailure notes a cycle-level failure on the account and in the
// result without aborting the overall scheduled run.
func (e *SyncEngine) recordFailure(
	ctx context.Context,
	account *domain.IntegrationAccount,
	result *domain.SyncCycleResult,
	scope string,
	err error,
) {
	account.RecordError(scope, err.Error())
	result.Errors = append(result.Errors, err.Error())
	e.saveAccount(ctx, account)
}

// expireAccount transitions the account to expired after an auth failure
// and persists the transition.
func (e *SyncEngine) expireAccount(ctx context.Context, account *domain.IntegrationAccount, scope string) {
	account.Status = domain.AccountExpired
	account.RecordError(scope, "authorization rejected by provider; re-authentication required")
	e.saveAccount(ctx, account)
}

func (e *SyncEngine) saveAccount(ctx context.Context, account *domain.IntegrationAccount) {
	account.UpdatedAt = time.Now().UTC()
	if err := e.accounts.Save(ctx, *account); err != nil {
		logger.Warn("Failed to persist account %s: %v", account.ID, err)
	}
}
