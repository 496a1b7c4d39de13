package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/calsync/internal/core/domain"
)

// fakeRunner is a test double for driving.SyncRunner. When blockID is
// set, only that account's calendar sync parks on the block channel.
type fakeRunner struct {
	mu            sync.Mutex
	calendarCalls int
	taskCalls     int
	calendarByID  map[string]int
	calendarErr   error
	block         chan struct{}
	blockID       string
}

func (f *fakeRunner) SyncCalendar(_ context.Context, account *domain.IntegrationAccount) (domain.SyncCycleResult, error) {
	f.mu.Lock()
	f.calendarCalls++
	if f.calendarByID == nil {
		f.calendarByID = make(map[string]int)
	}
	f.calendarByID[account.ID]++
	f.mu.Unlock()
	if f.block != nil && (f.blockID == "" || f.blockID == account.ID) {
		<-f.block
	}
	if f.calendarErr != nil {
		return domain.SyncCycleResult{}, f.calendarErr
	}
	return domain.SyncCycleResult{SyncedCount: 1}, nil
}

func (f *fakeRunner) SyncTasks(_ context.Context, _ *domain.IntegrationAccount) (domain.SyncCycleResult, error) {
	f.mu.Lock()
	f.taskCalls++
	f.mu.Unlock()
	return domain.SyncCycleResult{SyncedCount: 2}, nil
}

func (f *fakeRunner) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calendarCalls, f.taskCalls
}

func (f *fakeRunner) calendarCount(accountID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calendarByID[accountID]
}

func TestSlotTable_AcquireReleaseActive(t *testing.T) {
	slots := newSlotTable()

	assert.True(t, slots.TryAcquire("ws", "acc-1"))
	assert.False(t, slots.TryAcquire("ws", "acc-1"))
	assert.True(t, slots.TryAcquire("ws", "acc-2"))

	assert.Equal(t, []string{"ws/acc-1", "ws/acc-2"}, slots.Active())

	slots.Release("ws", "acc-1")
	assert.Equal(t, []string{"ws/acc-2"}, slots.Active())
	assert.True(t, slots.TryAcquire("ws", "acc-1"))
}

func TestScheduler_SyncNowRunsBothCapabilities(t *testing.T) {
	accounts, _, _ := newMemoryStores()
	auth := newTestAuth(t, accounts, &fakeOAuth{})
	newTestAccount(t, auth, accounts)
	runner := &fakeRunner{}
	sched := NewScheduler(accounts, runner, 0)

	outcome, err := sched.SyncNow(context.Background(), "ws-1", "acc-1", domain.SyncBoth)
	require.NoError(t, err)
	assert.False(t, outcome.Skipped)
	assert.Equal(t, 1, outcome.Calendar.SyncedCount)
	assert.Equal(t, 2, outcome.Tasks.SyncedCount)
	assert.Empty(t, sched.ActiveSlots())
}

func TestScheduler_SyncNowCalendarOnly(t *testing.T) {
	accounts, _, _ := newMemoryStores()
	auth := newTestAuth(t, accounts, &fakeOAuth{})
	newTestAccount(t, auth, accounts)
	runner := &fakeRunner{}
	sched := NewScheduler(accounts, runner, 0)

	_, err := sched.SyncNow(context.Background(), "ws-1", "acc-1", domain.SyncCalendar)
	require.NoError(t, err)

	cal, tasks := runner.counts()
	assert.Equal(t, 1, cal)
	assert.Equal(t, 0, tasks)
}

func TestScheduler_SyncNowSkipsBusyAccount(t *testing.T) {
	accounts, _, _ := newMemoryStores()
	auth := newTestAuth(t, accounts, &fakeOAuth{})
	newTestAccount(t, auth, accounts)

	block := make(chan struct{})
	runner := &fakeRunner{block: block}
	sched := NewScheduler(accounts, runner, 0)

	started := make(chan struct{})
	done := make(chan *domain.CycleOutcome, 1)
	go func() {
		close(started)
		outcome, _ := sched.SyncNow(context.Background(), "ws-1", "acc-1", domain.SyncBoth)
		done <- outcome
	}()

	<-started
	// Wait for the first cycle to hold the slot.
	require.Eventually(t, func() bool {
		return len(sched.ActiveSlots()) == 1
	}, time.Second, 5*time.Millisecond)

	second, err := sched.SyncNow(context.Background(), "ws-1", "acc-1", domain.SyncBoth)
	require.NoError(t, err)
	assert.True(t, second.Skipped)

	close(block)
	first := <-done
	assert.False(t, first.Skipped)

	cal, _ := runner.counts()
	assert.Equal(t, 1, cal)
}

func TestScheduler_SyncNowRejectsExpiredAccount(t *testing.T) {
	accounts, _, _ := newMemoryStores()
	auth := newTestAuth(t, accounts, &fakeOAuth{})
	account := newTestAccount(t, auth, accounts)
	account.Status = domain.AccountExpired
	require.NoError(t, accounts.Save(context.Background(), *account))

	sched := NewScheduler(accounts, &fakeRunner{}, 0)
	_, err := sched.SyncNow(context.Background(), "ws-1", "acc-1", domain.SyncBoth)
	assert.ErrorIs(t, err, domain.ErrAuthExpired)
}

func TestScheduler_SyncNowUnknownAccount(t *testing.T) {
	accounts, _, _ := newMemoryStores()
	sched := NewScheduler(accounts, &fakeRunner{}, 0)

	_, err := sched.SyncNow(context.Background(), "ws-1", "missing", domain.SyncBoth)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestScheduler_AuthExpiryHaltsTasksForAccount(t *testing.T) {
	accounts, _, _ := newMemoryStores()
	auth := newTestAuth(t, accounts, &fakeOAuth{})
	newTestAccount(t, auth, accounts)

	runner := &fakeRunner{calendarErr: fmt.Errorf("account acc-1: %w", domain.ErrAuthExpired)}
	sched := NewScheduler(accounts, runner, 0)

	outcome, err := sched.SyncNow(context.Background(), "ws-1", "acc-1", domain.SyncBoth)
	require.NoError(t, err)
	require.NotEmpty(t, outcome.Calendar.Errors)

	_, tasks := runner.counts()
	assert.Equal(t, 0, tasks)
}

func TestScheduler_TickFansOutActiveAccounts(t *testing.T) {
	accounts, _, _ := newMemoryStores()
	ctx := context.Background()
	for _, id := range []string{"acc-1", "acc-2"} {
		require.NoError(t, accounts.Save(ctx, domain.IntegrationAccount{
			ID: id, WorkspaceID: "ws-1", Status: domain.AccountActive,
			Settings: domain.DefaultSyncSettings(),
		}))
	}
	require.NoError(t, accounts.Save(ctx, domain.IntegrationAccount{
		ID: "acc-expired", WorkspaceID: "ws-1", Status: domain.AccountExpired,
	}))

	runner := &fakeRunner{}
	sched := NewScheduler(accounts, runner, time.Hour)
	sched.tick(ctx)

	cal, tasks := runner.counts()
	assert.Equal(t, 2, cal)
	assert.Equal(t, 2, tasks)
	assert.Empty(t, sched.ActiveSlots())
}

func TestScheduler_StartStop(t *testing.T) {
	accounts, _, _ := newMemoryStores()
	require.NoError(t, accounts.Save(context.Background(), domain.IntegrationAccount{
		ID: "acc-1", WorkspaceID: "ws-1", Status: domain.AccountActive,
		Settings: domain.DefaultSyncSettings(),
	}))
	runner := &fakeRunner{}
	sched := NewScheduler(accounts, runner, time.Hour)

	errCh := make(chan error, 1)
	go func() { errCh <- sched.Start(context.Background()) }()

	// The startup tick runs without waiting for the first interval.
	require.Eventually(t, func() bool {
		cal, _ := runner.counts()
		return cal >= 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, sched.Stop())
	require.NoError(t, <-errCh)

	// Stopping twice is harmless.
	require.NoError(t, sched.Stop())
}

func TestScheduler_SlowAccountDoesNotDelayNextTick(t *testing.T) {
	accounts, _, _ := newMemoryStores()
	ctx := context.Background()
	for _, id := range []string{"acc-slow", "acc-fast"} {
		require.NoError(t, accounts.Save(ctx, domain.IntegrationAccount{
			ID: id, WorkspaceID: "ws-1", Status: domain.AccountActive,
			Settings: domain.DefaultSyncSettings(),
		}))
	}

	block := make(chan struct{})
	runner := &fakeRunner{block: block, blockID: "acc-slow"}
	sched := NewScheduler(accounts, runner, 20*time.Millisecond)

	errCh := make(chan error, 1)
	go func() { errCh <- sched.Start(context.Background()) }()

	// While the slow account holds its slot from the startup tick, later
	// ticks must still schedule and sync the fast account.
	require.Eventually(t, func() bool {
		return runner.calendarCount("acc-fast") >= 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, runner.calendarCount("acc-slow"))

	close(block)
	require.NoError(t, sched.Stop())
	require.NoError(t, <-errCh)
}
