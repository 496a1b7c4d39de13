// Package memory provides in-memory implementations of the storage ports,
// used in tests and as a zero-dependency fallback.
package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/calsync/internal/core/domain"
	"github.com/custodia-labs/calsync/internal/core/ports/driven"
)

// Ensure AccountStore implements the interface.
var _ driven.AccountStore = (*AccountStore)(nil)

// AccountStore is an in-memory implementation of driven.AccountStore.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]domain.IntegrationAccount
}

// NewAccountStore creates a new in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]domain.IntegrationAccount),
	}
}

// Save stores or updates an account by ID as one atomic write.
func (s *AccountStore) Save(_ context.Context, account domain.IntegrationAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = account
	return nil
}

// Get retrieves an account scoped to a workspace.
func (s *AccountStore) Get(_ context.Context, workspaceID, accountID string) (*domain.IntegrationAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[accountID]
	if !ok || account.WorkspaceID != workspaceID {
		return nil, domain.ErrNotFound
	}
	return &account, nil
}

// FindByEmail retrieves the account for an external identity.
func (s *AccountStore) FindByEmail(_ context.Context, workspaceID, email string) (*domain.IntegrationAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, account := range s.accounts {
		if account.WorkspaceID == workspaceID && account.ExternalEmail == email {
			return &account, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListByWorkspace returns all accounts in a workspace.
func (s *AccountStore) ListByWorkspace(_ context.Context, workspaceID string) ([]domain.IntegrationAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.IntegrationAccount
	for _, account := range s.accounts {
		if account.WorkspaceID == workspaceID {
			result = append(result, account)
		}
	}
	return result, nil
}

// ListActive returns every active account across all workspaces.
func (s *AccountStore) ListActive(_ context.Context) ([]domain.IntegrationAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.IntegrationAccount
	for _, account := range s.accounts {
		if account.Status == domain.AccountActive {
			result = append(result, account)
		}
	}
	return result, nil
}

// Delete removes an account.
func (s *AccountStore) Delete(_ context.Context, workspaceID, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok || account.WorkspaceID != workspaceID {
		return domain.ErrNotFound
	}
	delete(s.accounts, accountID)
	return nil
}
