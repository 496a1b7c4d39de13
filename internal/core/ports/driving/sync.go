package driving

import (
	"context"

	"github.com/custodia-labs/calsync/internal/core/domain"
)

// SyncRunner executes one reconciliation pass per capability for an
// account. Per-item failures are recorded in the result and on the
// account's error log; the returned error is non-nil only when the whole
// pass is fatal for the account (auth expiry).
type SyncRunner interface {
	SyncCalendar(ctx context.Context, account *domain.IntegrationAccount) (domain.SyncCycleResult, error)
	SyncTasks(ctx context.Context, account *domain.IntegrationAccount) (domain.SyncCycleResult, error)
}

// SyncScheduler drives periodic reconciliation across all active accounts.
type SyncScheduler interface {
	// Start runs the scheduler loop: once immediately, then on the
	// configured interval. Blocks until Stop or ctx cancellation.
	Start(ctx context.Context) error

	// Stop shuts the loop down and waits for in-flight cycles.
	Stop() error

	// SyncNow triggers an immediate cycle through the same per-account
	// slot path as the scheduled tick. If the account is already
	// mid-cycle the outcome reports Skipped and no work is done.
	SyncNow(ctx context.Context, workspaceID, accountID string, syncType domain.SyncType) (*domain.CycleOutcome, error)

	// ActiveSlots exposes the keys of currently running cycles, for
	// observability only.
	ActiveSlots() []string
}

// WriteBackCoordinator pushes local task edits to the remote system.
type WriteBackCoordinator interface {
	// PushTaskUpdate writes the mirror's current content to the remote
	// task, trying each update strategy in order. Conflicts block the
	// overwrite and mark the mirror.
	PushTaskUpdate(ctx context.Context, account *domain.IntegrationAccount, task *domain.MirroredTask) error

	// DeleteTask removes the remote task (subtasks first, best-effort)
	// and soft-deletes the mirror once the parent delete succeeds.
	DeleteTask(ctx context.Context, account *domain.IntegrationAccount, task *domain.MirroredTask) error

	// ResolveConflict applies an explicit resolution to a conflicted
	// mirror: "keep-local" re-pushes the local copy, "accept-remote"
	// adopts the retained remote snapshot.
	ResolveConflict(ctx context.Context, account *domain.IntegrationAccount, task *domain.MirroredTask, resolution string) error
}
