package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/calsync/internal/core/domain"
	"github.com/custodia-labs/calsync/internal/core/ports/driven"
	"github.com/custodia-labs/calsync/internal/core/ports/driving"
	"github.com/custodia-labs/calsync/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.SyncScheduler = (*Scheduler)(nil)

// DefaultSyncInterval is the period between scheduled ticks.
const DefaultSyncInterval = 15 * time.Minute

// slotTable tracks which (workspace, account) pairs have a cycle in
// flight. Acquisition is non-blocking: a busy slot means skip, never queue.
type slotTable struct {
	mu    sync.Mutex
	slots map[string]struct{}
}

func newSlotTable() *slotTable {
	return &slotTable{slots: make(map[string]struct{})}
}

func slotKey(workspaceID, accountID string) string {
	return workspaceID + "/" + accountID
}

// TryAcquire claims the slot. Returns false when a cycle already holds it.
func (t *slotTable) TryAcquire(workspaceID, accountID string) bool {
	key := slotKey(workspaceID, accountID)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.slots[key]; busy {
		return false
	}
	t.slots[key] = struct{}{}
	return true
}

// Release frees the slot.
func (t *slotTable) Release(workspaceID, accountID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.slots, slotKey(workspaceID, accountID))
}

// Active returns the keys of slots currently held, sorted.
func (t *slotTable) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]string, 0, len(t.slots))
	for key := range t.slots {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Scheduler drives periodic reconciliation: one tick immediately on start,
// then one per interval. Each tick fans out a goroutine per active account;
// the slot table guarantees at most one in-flight cycle per account.
type Scheduler struct {
	accounts driven.AccountStore
	runner   driving.SyncRunner
	interval time.Duration
	slots    *slotTable

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. A non-positive interval falls back to
// DefaultSyncInterval.
func NewScheduler(accounts driven.AccountStore, runner driving.SyncRunner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &Scheduler{
		accounts: accounts,
		runner:   runner,
		interval: interval,
		slots:    newSlotTable(),
	}
}

// Start runs the scheduler loop until Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	logger.Info("Scheduler started with interval %s", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.spawnTick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.spawnTick(ctx)
		}
	}
}

// spawnTick runs a tick without blocking the loop. A slow account must
// never delay the next tick's scheduling; the slot table alone keeps
// overlapping ticks from double-syncing an account.
func (s *Scheduler) spawnTick(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.tick(ctx)
	}()
}

// Stop shuts the loop down and waits for in-flight cycles to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	logger.Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) shutdown() {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.stopCh)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// tick fans out one cycle per active account and waits for all of them.
func (s *Scheduler) tick(ctx context.Context) {
	accounts, err := s.accounts.ListActive(ctx)
	if err != nil {
		logger.Warn("Tick skipped, listing active accounts failed: %v", err)
		return
	}

	var (
		summaryMu sync.Mutex
		summary   = domain.TickSummary{Accounts: len(accounts)}
		tickWG    sync.WaitGroup
	)

	for i := range accounts {
		account := accounts[i]
		tickWG.Add(1)
		s.wg.Add(1)
		go func() {
			defer tickWG.Done()
			defer s.wg.Done()

			outcome := s.runCycle(ctx, &account, domain.SyncBoth)

			summaryMu.Lock()
			switch {
			case outcome.Skipped:
				summary.Skipped++
			case len(outcome.Calendar.Errors) > 0 || len(outcome.Tasks.Errors) > 0:
				summary.Failed++
			default:
				summary.Succeeded++
			}
			summaryMu.Unlock()
		}()
	}

	tickWG.Wait()
	logger.Info("Tick complete: %d accounts, %d succeeded, %d failed, %d skipped",
		summary.Accounts, summary.Succeeded, summary.Failed, summary.Skipped)
}

// runCycle executes one full cycle for an account under its slot. A busy
// slot reports Skipped without doing any work.
func (s *Scheduler) runCycle(ctx context.Context, account *domain.IntegrationAccount, syncType domain.SyncType) domain.CycleOutcome {
	outcome := domain.CycleOutcome{
		WorkspaceID: account.WorkspaceID,
		AccountID:   account.ID,
	}

	if !s.slots.TryAcquire(account.WorkspaceID, account.ID) {
		logger.Debug("Cycle for account %s already in flight, skipping", account.ID)
		outcome.Skipped = true
		return outcome
	}
	defer s.slots.Release(account.WorkspaceID, account.ID)

	if syncType.IncludesCalendar() {
		result, err := s.runner.SyncCalendar(ctx, account)
		outcome.Calendar = result
		if err != nil {
			// Auth expiry halts the remaining capabilities too.
			outcome.Calendar.Errors = append(outcome.Calendar.Errors, err.Error())
			return outcome
		}
	}

	if syncType.IncludesTasks() {
		result, err := s.runner.SyncTasks(ctx, account)
		outcome.Tasks = result
		if err != nil {
			outcome.Tasks.Errors = append(outcome.Tasks.Errors, err.Error())
		}
	}

	return outcome
}

// SyncNow triggers an immediate cycle for one account through the same
// slot path as the scheduled tick.
func (s *Scheduler) SyncNow(ctx context.Context, workspaceID, accountID string, syncType domain.SyncType) (*domain.CycleOutcome, error) {
	account, err := s.accounts.Get(ctx, workspaceID, accountID)
	if err != nil {
		return nil, err
	}
	if account.Status == domain.AccountExpired || account.Status == domain.AccountRevoked {
		return nil, fmt.Errorf("%w: account %s is %s", domain.ErrAuthExpired, accountID, account.Status)
	}

	outcome := s.runCycle(ctx, account, syncType)
	return &outcome, nil
}

// ActiveSlots exposes the keys of currently running cycles.
func (s *Scheduler) ActiveSlots() []string {
	return s.slots.Active()
}
