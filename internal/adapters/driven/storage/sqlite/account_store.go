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

// accountStore implements driven.AccountStore.
type accountStore struct {
	store *Store
}

var _ driven.AccountStore = (*accountStore)(nil)

const accountColumns = `id, workspace_id, external_email, access_token, refresh_token,
	token_expiry, scopes, settings, status, last_sync_at, errors, created_at, updated_at`

// Save stores or updates an account by ID as one atomic document write.
// Tokens are persisted in their encrypted encoded form only.
func (s *accountStore) Save(ctx context.Context, account domain.IntegrationAccount) error {
	scopesJSON, err := json.Marshal(account.Scopes)
	if err != nil {
		return fmt.Errorf("marshalling scopes: %w", err)
	}
	settingsJSON, err := json.Marshal(account.Settings)
	if err != nil {
		return fmt.Errorf("marshalling settings: %w", err)
	}
	errorsJSON, err := json.Marshal(account.Errors)
	if err != nil {
		return fmt.Errorf("marshalling errors: %w", err)
	}

	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = now
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workspace_id = excluded.workspace_id,
			external_email = excluded.external_email,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_expiry = excluded.token_expiry,
			scopes = excluded.scopes,
			settings = excluded.settings,
			status = excluded.status,
			last_sync_at = excluded.last_sync_at,
			errors = excluded.errors,
			updated_at = excluded.updated_at
	`, account.ID, account.WorkspaceID, account.ExternalEmail,
		account.AccessToken.Encode(), account.RefreshToken.Encode(),
		formatTime(account.TokenExpiry), string(scopesJSON), string(settingsJSON),
		string(account.Status), formatTime(account.LastSyncAt), string(errorsJSON),
		formatTime(account.CreatedAt), formatTime(account.UpdatedAt))

	if err != nil {
		return fmt.Errorf("saving account: %w", err)
	}
	return nil
}

// Get retrieves an account scoped to a workspace.
func (s *accountStore) Get(ctx context.Context, workspaceID, accountID string) (*domain.IntegrationAccount, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE workspace_id = ? AND id = ?
	`, workspaceID, accountID)
	return scanAccount(row)
}

// FindByEmail retrieves the account for an external identity.
func (s *accountStore) FindByEmail(ctx context.Context, workspaceID, email string) (*domain.IntegrationAccount, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE workspace_id = ? AND external_email = ?
	`, workspaceID, email)
	return scanAccount(row)
}

// ListByWorkspace returns all accounts in a workspace.
func (s *accountStore) ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.IntegrationAccount, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE workspace_id = ? ORDER BY created_at
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	return collectAccounts(rows)
}

// ListActive returns every active account across all workspaces.
func (s *accountStore) ListActive(ctx context.Context) ([]domain.IntegrationAccount, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE status = ? ORDER BY created_at
	`, string(domain.AccountActive))
	if err != nil {
		return nil, fmt.Errorf("querying active accounts: %w", err)
	}
	return collectAccounts(rows)
}

// Delete removes an account.
func (s *accountStore) Delete(ctx context.Context, workspaceID, accountID string) error {
	result, err := s.store.db.ExecContext(ctx,
		"DELETE FROM accounts WHERE workspace_id = ? AND id = ?", workspaceID, accountID)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.IntegrationAccount, error) {
	var (
		account                  domain.IntegrationAccount
		accessEnc, refreshEnc    string
		scopesJSON, settingsJSON string
		errorsJSON, status       string
		expiry, lastSync         sql.NullString
		createdAt, updatedAt     sql.NullString
	)

	err := row.Scan(&account.ID, &account.WorkspaceID, &account.ExternalEmail,
		&accessEnc, &refreshEnc, &expiry, &scopesJSON, &settingsJSON,
		&status, &lastSync, &errorsJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning account: %w", err)
	}

	if account.AccessToken, err = domain.ParseEncryptedToken(accessEnc); err != nil {
		return nil, fmt.Errorf("parsing access token: %w", err)
	}
	if account.RefreshToken, err = domain.ParseEncryptedToken(refreshEnc); err != nil {
		return nil, fmt.Errorf("parsing refresh token: %w", err)
	}
	if err := json.Unmarshal([]byte(scopesJSON), &account.Scopes); err != nil {
		return nil, fmt.Errorf("unmarshalling scopes: %w", err)
	}
	if err := json.Unmarshal([]byte(settingsJSON), &account.Settings); err != nil {
		return nil, fmt.Errorf("unmarshalling settings: %w", err)
	}
	if err := json.Unmarshal([]byte(errorsJSON), &account.Errors); err != nil {
		return nil, fmt.Errorf("unmarshalling errors: %w", err)
	}

	account.Status = domain.AccountStatus(status)
	account.TokenExpiry = parseTime(expiry)
	account.LastSyncAt = parseTime(lastSync)
	account.CreatedAt = parseTime(createdAt)
	account.UpdatedAt = parseTime(updatedAt)
	return &account, nil
}

func collectAccounts(rows *sql.Rows) ([]domain.IntegrationAccount, error) {
	defer rows.Close()

	var accounts []domain.IntegrationAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}
	return accounts, nil
}
