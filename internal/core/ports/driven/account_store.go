package driven

import (
	"context"

	"github.com/custodia-labs/calsync/internal/core/domain"
)

// AccountStore persists integration accounts. The account document is the
// only shared mutable resource in a cycle; every Save is one atomic
// document write.
type AccountStore interface {
	// Save stores or updates an account by ID.
	Save(ctx context.Context, account domain.IntegrationAccount) error

	// Get retrieves an account scoped to a workspace.
	// Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, workspaceID, accountID string) (*domain.IntegrationAccount, error)

	// FindByEmail retrieves the account for an external identity within a
	// workspace. Returns domain.ErrNotFound if absent.
	FindByEmail(ctx context.Context, workspaceID, email string) (*domain.IntegrationAccount, error)

	// ListByWorkspace returns all accounts in a workspace.
	ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.IntegrationAccount, error)

	// ListActive returns every account with status active, across all
	// workspaces. Used by the scheduler tick.
	ListActive(ctx context.Context) ([]domain.IntegrationAccount, error)

	// Delete removes an account. Mirror cascade removal is the caller's
	// responsibility.
	Delete(ctx context.Context, workspaceID, accountID string) error
}
